package model

import "fmt"

// ReportType identifies which analysis a stored report represents.
type ReportType string

const (
	ReportVisionAnalysis    ReportType = "vision_analysis"
	ReportSensorAnalysis    ReportType = "sensor_analysis"
	ReportWeather           ReportType = "weather_report"
	ReportFinancialAnalysis ReportType = "financial_analysis"
	ReportCompliance        ReportType = "compliance_report"
	ReportMaster            ReportType = "master_report"

	// Drone sub-category, stored under the reports/drone/ key segment.
	ReportMissionPlan           ReportType = "mission_plan"
	ReportRealtimeMonitoring    ReportType = "realtime_monitoring"
	ReportImageAnalysis         ReportType = "image_analysis"
	ReportMaintenancePrediction ReportType = "maintenance_prediction"
)

var allReportTypes = map[ReportType]bool{
	ReportVisionAnalysis:        true,
	ReportSensorAnalysis:        true,
	ReportWeather:               true,
	ReportFinancialAnalysis:     true,
	ReportCompliance:            true,
	ReportMaster:                true,
	ReportMissionPlan:           true,
	ReportRealtimeMonitoring:    true,
	ReportImageAnalysis:         true,
	ReportMaintenancePrediction: true,
}

var droneReportTypes = map[ReportType]bool{
	ReportMissionPlan:           true,
	ReportRealtimeMonitoring:    true,
	ReportImageAnalysis:         true,
	ReportMaintenancePrediction: true,
}

// KnownReportTypes lists the non-drone report types the read API serves,
// in presentation order.
var KnownReportTypes = []ReportType{
	ReportMaster,
	ReportVisionAnalysis,
	ReportSensorAnalysis,
	ReportWeather,
	ReportCompliance,
}

func (t ReportType) Valid() bool {
	return allReportTypes[t]
}

// IsDrone reports whether the type belongs to the drone sub-category.
func (t ReportType) IsDrone() bool {
	return droneReportTypes[t]
}

func (t ReportType) String() string {
	return string(t)
}

// ReportRecord is one unit of persisted output. Content is text, normally a
// JSON document. Records are written once and never updated in place.
type ReportRecord struct {
	Type    ReportType
	FarmID  string
	Date    string // YYYY-MM-DD partition key; empty means "today"
	Content string
}

// ReportFailure names one record that could not be persisted.
type ReportFailure struct {
	Type   ReportType
	Reason string
}

// SubmissionOutcome is the aggregate result of a report submission. The
// transaction is not atomic: partial success is reported, not rolled back.
type SubmissionOutcome struct {
	Total     int
	Succeeded int
	Failed    []ReportFailure
	Locations []string
}

// String renders the operator-facing submission tally.
func (o SubmissionOutcome) String() string {
	if len(o.Failed) == 0 {
		return fmt.Sprintf("All %d reports submitted successfully", o.Total)
	}
	s := fmt.Sprintf("%d/%d reports submitted", o.Succeeded, o.Total)
	for _, f := range o.Failed {
		s += fmt.Sprintf("; %s failed: %s", f.Type, f.Reason)
	}
	return s
}
