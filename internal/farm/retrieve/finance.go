package retrieve

import (
	"context"
	"time"
)

// FinanceSummary merges the revenue, expense and drone-operational
// cost datasets for one farm over a lookback window.
type FinanceSummary struct {
	FarmID             string           `json:"farm_id"`
	AnalysisPeriodDays int              `json:"analysis_period_days"`
	StartDate          string           `json:"start_date"`
	EndDate            string           `json:"end_date"`
	Totals             FinanceTotals    `json:"summary"`
	ZonesCovered       []string         `json:"zones_covered"`
	RevenueRecords     []map[string]any `json:"revenue_data"`
	ExpenseRecords     []map[string]any `json:"expense_data"`
	OperationalRecords []map[string]any `json:"operational_data"`
}

type FinanceTotals struct {
	TotalRevenue          float64 `json:"total_revenue"`
	TotalExpenses         float64 `json:"total_expenses"`
	TotalOperationalCosts float64 `json:"total_operational_costs"`
	TotalCosts            float64 `json:"total_costs"`
	NetProfit             float64 `json:"net_profit"`
	ProfitMarginPct       float64 `json:"profit_margin_percentage"`
}

// FinancialData fetches and aggregates the three finance datasets.
// Missing datasets contribute zeros rather than failing the summary.
func FinancialData(ctx context.Context, q Querier, farmID string, daysBack int) (*FinanceSummary, error) {
	revenue, err := q.Query(ctx, "finance:revenue:"+farmID+":", 0)
	if err != nil {
		return nil, err
	}
	expenses, err := q.Query(ctx, "finance:expenses:"+farmID+":", 0)
	if err != nil {
		return nil, err
	}
	operational, err := q.Query(ctx, "finance:operational:"+farmID+":", 0)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -daysBack).Unix()
	revenue = since(revenue, "revenue_date", cutoff)
	expenses = since(expenses, "expense_date", cutoff)
	operational = since(operational, "operation_date", cutoff)

	var totals FinanceTotals
	for _, r := range revenue {
		totals.TotalRevenue += asFloat(r["amount"])
	}
	for _, r := range expenses {
		totals.TotalExpenses += asFloat(r["amount"])
	}
	for _, r := range operational {
		totals.TotalOperationalCosts += asFloat(r["fuel_cost"]) + asFloat(r["battery_cost"]) +
			asFloat(r["maintenance_cost"]) + asFloat(r["labor_cost"]) + asFloat(r["materials_cost"])
	}
	totals.TotalCosts = totals.TotalExpenses + totals.TotalOperationalCosts
	totals.NetProfit = totals.TotalRevenue - totals.TotalCosts
	if totals.TotalRevenue > 0 {
		totals.ProfitMarginPct = round2(totals.NetProfit / totals.TotalRevenue * 100)
	}

	if revenue == nil {
		revenue = []map[string]any{}
	}
	if expenses == nil {
		expenses = []map[string]any{}
	}
	if operational == nil {
		operational = []map[string]any{}
	}

	return &FinanceSummary{
		FarmID:             farmID,
		AnalysisPeriodDays: daysBack,
		StartDate:          time.Unix(cutoff, 0).UTC().Format("2006-01-02"),
		EndDate:            now.Format("2006-01-02"),
		Totals:             totals,
		ZonesCovered:       distinct(operational, "zone"),
		RevenueRecords:     revenue,
		ExpenseRecords:     expenses,
		OperationalRecords: operational,
	}, nil
}

func since(records []map[string]any, dateField string, cutoff int64) []map[string]any {
	out := records[:0]
	for _, r := range records {
		if int64(asFloat(r[dateField])) >= cutoff {
			out = append(out, r)
		}
	}
	return out
}
