package guardrail

import "strings"

// VisionAnalysis validates the vision stage output: detection records plus
// summary statistics derived from them.
var VisionAnalysis = wrap(func(raw string) Verdict {
	data, bad := parseObject(raw)
	if bad != nil {
		return *bad
	}
	analysis, bad := section(data, "vision_analysis")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(analysis, "vision_analysis", "summary", "records"); bad != nil {
		return *bad
	}
	summary, bad := requireObjectField(analysis, "summary")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(summary, "summary",
		"total_records", "total_detections", "healthy_detections", "unhealthy_detections",
		"health_percentage", "crop_types", "field_names", "detection_classes", "key_findings"); bad != nil {
		return *bad
	}
	for _, f := range []string{"crop_types", "field_names", "detection_classes", "key_findings"} {
		if _, bad := requireList(summary, f, false); bad != nil {
			return *bad
		}
	}
	if _, bad := requireList(analysis, "records", false); bad != nil {
		return *bad
	}
	return accept(raw)
})

// WeatherReport validates the weather stage output, including the nested
// weather_data, air_quality, and agricultural_assessment objects.
var WeatherReport = wrap(func(raw string) Verdict {
	data, bad := parseObject(raw)
	if bad != nil {
		return *bad
	}
	analysis, bad := section(data, "weather_analysis")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(analysis, "weather_analysis",
		"summary", "location", "date", "weather_data", "air_quality", "agricultural_assessment"); bad != nil {
		return *bad
	}

	weather, bad := requireObjectField(analysis, "weather_data")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(weather, "weather_data",
		"temperature_c", "feels_like_c", "condition", "humidity", "wind_kph"); bad != nil {
		return *bad
	}

	air, bad := requireObjectField(analysis, "air_quality")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(air, "air_quality", "aqi", "pm2_5", "pm10", "o3", "no2", "so2", "co"); bad != nil {
		return *bad
	}

	assessment, bad := requireObjectField(analysis, "agricultural_assessment")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(assessment, "agricultural_assessment",
		"flight_clearance_status", "disease_risk_level", "disease_risk_percentage",
		"nitrogen_volatilization_risk", "optimal_operations"); bad != nil {
		return *bad
	}
	if _, ok := assessment["flight_clearance_status"].(bool); !ok {
		return reject("flight_clearance_status must be a boolean (true/false).")
	}
	if bad := requireEnum(assessment, "disease_risk_level", "Low", "Medium", "High"); bad != nil {
		return *bad
	}
	if _, bad := requireList(assessment, "optimal_operations", false); bad != nil {
		return *bad
	}
	return accept(raw)
})

// SensorAnalysis validates the soil-sensor stage output. Per-zone soil
// metrics must be present and non-empty.
var SensorAnalysis = wrap(func(raw string) Verdict {
	data, bad := parseObject(raw)
	if bad != nil {
		return *bad
	}
	analysis, bad := section(data, "sensor_analysis")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(analysis, "sensor_analysis",
		"summary", "farm_id", "readings_count", "analysis_period", "zones_analyzed",
		"soil_health_metrics", "irrigation_recommendations", "environmental_correlations", "alerts"); bad != nil {
		return *bad
	}
	if _, bad := requireList(analysis, "zones_analyzed", false); bad != nil {
		return *bad
	}

	metrics, bad := requireList(analysis, "soil_health_metrics", true)
	if bad != nil {
		return *bad
	}
	for i, m := range metrics {
		obj, ok := m.(map[string]any)
		if !ok {
			return reject("soil_health_metrics[%d] must be an object.", i)
		}
		if missing := missingFields(obj, "zone_name", "average_moisture", "average_temperature", "average_ph", "status"); len(missing) > 0 {
			return reject("soil_health_metrics[%d] is missing fields: %s.", i, strings.Join(missing, ", "))
		}
	}

	recs, bad := requireList(analysis, "irrigation_recommendations", false)
	if bad != nil {
		return *bad
	}
	for i, r := range recs {
		obj, ok := r.(map[string]any)
		if !ok {
			return reject("irrigation_recommendations[%d] must be an object.", i)
		}
		if missing := missingFields(obj, "zone", "action", "priority", "reasoning"); len(missing) > 0 {
			return reject("irrigation_recommendations[%d] is missing fields: %s.", i, strings.Join(missing, ", "))
		}
	}

	for _, f := range []string{"environmental_correlations", "alerts"} {
		if _, bad := requireList(analysis, f, false); bad != nil {
			return *bad
		}
	}
	return accept(raw)
})

// FinancialAnalysis validates the finance stage output: overview and
// cash-flow totals, per-category breakdowns, per-zone ROI, and
// forecasts.
var FinancialAnalysis = wrap(func(raw string) Verdict {
	data, bad := parseObject(raw)
	if bad != nil {
		return *bad
	}
	analysis, bad := section(data, "financial_analysis")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(analysis, "financial_analysis",
		"summary", "farm_id", "analysis_period", "total_days_analyzed",
		"financial_overview", "revenue_analysis", "expense_analysis",
		"operational_analysis", "roi_by_zone", "cash_flow_analysis",
		"forecasts", "recommendations", "alerts"); bad != nil {
		return *bad
	}

	overview, bad := requireObjectField(analysis, "financial_overview")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(overview, "financial_overview",
		"total_revenue", "total_expenses", "total_operational_costs", "net_profit", "profit_margin_percentage"); bad != nil {
		return *bad
	}

	for _, part := range []struct{ field, list string }{
		{"revenue_analysis", "revenue_by_type"},
		{"expense_analysis", "expense_by_category"},
		{"operational_analysis", "operations_by_type"},
	} {
		field, list := part.field, part.list
		obj, bad := requireObjectField(analysis, field)
		if bad != nil {
			return *bad
		}
		if _, ok := obj[list].([]any); !ok {
			return reject("%s.%s must be an array.", field, list)
		}
	}

	rois, bad := requireList(analysis, "roi_by_zone", false)
	if bad != nil {
		return *bad
	}
	for i, r := range rois {
		obj, ok := r.(map[string]any)
		if !ok {
			return reject("roi_by_zone[%d] must be an object.", i)
		}
		if missing := missingFields(obj, "zone", "revenue", "costs", "roi_percentage", "status"); len(missing) > 0 {
			return reject("roi_by_zone[%d] is missing fields: %s.", i, strings.Join(missing, ", "))
		}
	}

	cashFlow, bad := requireObjectField(analysis, "cash_flow_analysis")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(cashFlow, "cash_flow_analysis",
		"cash_inflow", "cash_outflow", "net_cash_flow", "cash_flow_status"); bad != nil {
		return *bad
	}

	forecasts, bad := requireObjectField(analysis, "forecasts")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(forecasts, "forecasts",
		"projected_monthly_revenue", "projected_monthly_expenses", "projected_monthly_profit"); bad != nil {
		return *bad
	}

	for _, f := range []string{"recommendations", "alerts"} {
		if _, bad := requireList(analysis, f, false); bad != nil {
			return *bad
		}
	}
	return accept(raw)
})

// ComplianceAnalysis validates the nitrogen-emissions compliance output.
var ComplianceAnalysis = wrap(func(raw string) Verdict {
	data, bad := parseObject(raw)
	if bad != nil {
		return *bad
	}
	analysis, bad := section(data, "compliance_analysis")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(analysis, "compliance_analysis",
		"summary", "topic", "date", "classification", "operational_impact",
		"nitrogen_emissions_relevance", "recommendations"); bad != nil {
		return *bad
	}
	if bad := requireEnum(analysis, "classification", "Positive", "Neutral", "Negative"); bad != nil {
		return *bad
	}
	if _, bad := requireList(analysis, "recommendations", false); bad != nil {
		return *bad
	}
	return accept(raw)
})

var euAIActListFields = []string{
	"transparency_obligations", "human_oversight_requirements",
	"data_governance_requirements", "documentation_requirements",
	"logging_requirements", "security_requirements",
	"compliance_gaps", "action_items",
}

// EUAIActAssessment validates the regulatory (EU AI Act) assessment output.
var EUAIActAssessment = wrap(func(raw string) Verdict {
	data, bad := parseObject(raw)
	if bad != nil {
		return *bad
	}
	assessment, bad := section(data, "eu_ai_act_assessment")
	if bad != nil {
		return *bad
	}
	required := append([]string{"summary", "system_classification", "risk_level", "overall_compliance_status"}, euAIActListFields...)
	if bad := requireFields(assessment, "eu_ai_act_assessment", required...); bad != nil {
		return *bad
	}
	if bad := requireEnum(assessment, "risk_level", "minimal_risk", "limited_risk", "high_risk"); bad != nil {
		return *bad
	}
	if bad := requireEnum(assessment, "overall_compliance_status", "Compliant", "Partially Compliant", "Non-Compliant"); bad != nil {
		return *bad
	}
	for _, f := range euAIActListFields {
		if _, bad := requireList(assessment, f, false); bad != nil {
			return *bad
		}
	}
	return accept(raw)
})

// CombinedCompliance validates the merged compliance payload: both sections
// present and objects. Internals were already validated by their own
// guardrails.
var CombinedCompliance = combinedSections("compliance_analysis", "eu_ai_act_assessment")

// MasterReport validates the aggregation stage output.
var MasterReport = wrap(func(raw string) Verdict {
	data, bad := parseObject(raw)
	if bad != nil {
		return *bad
	}
	analysis, bad := section(data, "master_analysis")
	if bad != nil {
		return *bad
	}
	if bad := requireFields(analysis, "master_analysis",
		"executive_summary", "critical_alerts", "vision_summary", "weather_summary",
		"sensor_summary", "compliance_summary", "cross_functional_insights",
		"strategic_recommendations", "operational_priorities", "overall_farm_status"); bad != nil {
		return *bad
	}
	for _, f := range []string{"critical_alerts", "cross_functional_insights", "strategic_recommendations", "operational_priorities"} {
		if _, bad := requireList(analysis, f, false); bad != nil {
			return *bad
		}
	}
	if bad := requireEnum(analysis, "overall_farm_status", "Excellent", "Good", "Attention Needed", "Critical"); bad != nil {
		return *bad
	}
	return accept(raw)
})
