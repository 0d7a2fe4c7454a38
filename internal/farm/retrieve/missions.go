package retrieve

import (
	"context"
	"fmt"
	"time"
)

// MissionSummary covers drone mission logs over a lookback window:
// per-mission efficiency metrics plus fleet-level analytics.
type MissionSummary struct {
	FarmID        string           `json:"farm_id"`
	DaysBack      int              `json:"days_back"`
	MissionsCount int              `json:"missions_count"`
	TimeRangeFrom string           `json:"time_range_from"`
	TimeRangeTo   string           `json:"time_range_to"`
	Analytics     MissionAnalytics `json:"analytics"`
	Missions      []map[string]any `json:"missions"`
	Message       string           `json:"message,omitempty"`
}

type MissionAnalytics struct {
	ByType            map[string]int `json:"by_type"`
	ByStatus          map[string]int `json:"by_status"`
	ByDrone           map[string]int `json:"by_drone"`
	TotalAreaHectares float64        `json:"total_area_hectares"`
	TotalImages       int            `json:"total_images"`
	TotalDistanceKm   float64        `json:"total_distance_km"`
}

// MissionLogs fetches mission records for a farm and decorates each
// with duration and efficiency metrics.
func MissionLogs(ctx context.Context, q Querier, farmID string, daysBack, limit int) (*MissionSummary, error) {
	records, err := q.Query(ctx, "mission:"+farmID+":", limit)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cutoffMs := now.AddDate(0, 0, -daysBack).UnixMilli()

	summary := &MissionSummary{
		FarmID:        farmID,
		DaysBack:      daysBack,
		TimeRangeFrom: now.AddDate(0, 0, -daysBack).Format("2006-01-02"),
		TimeRangeTo:   now.Format("2006-01-02"),
		Analytics: MissionAnalytics{
			ByType:   map[string]int{},
			ByStatus: map[string]int{},
			ByDrone:  map[string]int{},
		},
		Missions: []map[string]any{},
	}

	for _, m := range records {
		start := int64(asFloat(m["mission_start_timestamp"]))
		if start < cutoffMs {
			continue
		}
		m["mission_start_formatted"] = formatUnixMilli(start)
		if end := int64(asFloat(m["mission_end_timestamp"])); end > 0 {
			m["mission_end_formatted"] = formatUnixMilli(end)
			m["mission_duration"] = formatDuration(time.Duration(end-start) * time.Millisecond)
		}
		m["efficiency_metrics"] = missionEfficiency(m)
		summary.Missions = append(summary.Missions, m)

		summary.Analytics.ByType[asString(m["mission_type"], "unknown")]++
		summary.Analytics.ByStatus[asString(m["mission_status"], "unknown")]++
		summary.Analytics.ByDrone[asString(m["drone_id"], "unknown")]++
		summary.Analytics.TotalAreaHectares += asFloat(m["actual_area_hectares"])
		summary.Analytics.TotalImages += asInt(m["images_captured"])
		summary.Analytics.TotalDistanceKm += asFloat(m["total_distance_km"])
	}
	summary.MissionsCount = len(summary.Missions)
	summary.Analytics.TotalAreaHectares = round2(summary.Analytics.TotalAreaHectares)
	summary.Analytics.TotalDistanceKm = round2(summary.Analytics.TotalDistanceKm)
	if summary.MissionsCount == 0 {
		summary.Message = fmt.Sprintf("no missions found for farm %s in the last %d days", farmID, daysBack)
	}
	return summary, nil
}

// missionEfficiency derives the coverage and autonomy metrics the
// finance stage uses to judge fleet performance.
func missionEfficiency(m map[string]any) map[string]any {
	eff := map[string]any{}

	planned := asFloat(m["planned_area_hectares"])
	actual := asFloat(m["actual_area_hectares"])
	if planned > 0 {
		eff["coverage_percentage"] = round2(actual / planned * 100)
		eff["area_variance_hectares"] = round2(actual - planned)
	}
	eff["completeness_percentage"] = round2(asFloat(m["coverage_completeness"]))
	eff["autonomous_percentage"] = round2(asFloat(m["autonomous_percentage"]))

	interventions := asInt(m["manual_interventions"])
	eff["manual_interventions"] = interventions
	switch {
	case interventions > 5:
		eff["intervention_level"] = "HIGH"
	case interventions > 0:
		eff["intervention_level"] = "MODERATE"
	default:
		eff["intervention_level"] = "NONE"
	}
	return eff
}

func formatUnixMilli(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
