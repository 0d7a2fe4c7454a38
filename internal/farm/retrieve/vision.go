package retrieve

import (
	"context"
	"fmt"
	"math"
)

// VisionSummary aggregates crop detection records: per-record
// detections plus the healthy/unhealthy tallies the vision stage
// reasons over.
type VisionSummary struct {
	FarmID              string           `json:"farm_id"`
	DateFilter          string           `json:"date_filter,omitempty"`
	RecordsCount        int              `json:"records_count"`
	TotalDetections     int              `json:"total_detections"`
	HealthyDetections   int              `json:"healthy_detections"`
	UnhealthyDetections int              `json:"unhealthy_detections"`
	HealthPercentage    float64          `json:"health_percentage"`
	LatestTimestamp     string           `json:"latest_timestamp,omitempty"`
	CropTypes           []string         `json:"crop_types"`
	FieldNames          []string         `json:"field_names"`
	DetectionClasses    []string         `json:"detection_classes"`
	Records             []map[string]any `json:"records"`
	Message             string           `json:"message,omitempty"`
}

// VisionDetections fetches detection records for a farm, optionally
// restricted to a YYYY-MM-DD date.
func VisionDetections(ctx context.Context, q Querier, farmID, date string, limit int) (*VisionSummary, error) {
	prefix := "vision:" + farmID + ":"
	if date != "" {
		prefix += date
	}
	records, err := q.Query(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}

	summary := &VisionSummary{
		FarmID:           farmID,
		DateFilter:       date,
		RecordsCount:     len(records),
		CropTypes:        []string{},
		FieldNames:       []string{},
		DetectionClasses: []string{},
		Records:          records,
	}
	if len(records) == 0 {
		summary.Records = []map[string]any{}
		summary.Message = fmt.Sprintf("no vision data found for farm %s", farmID)
		return summary, nil
	}

	for _, r := range records {
		detections, _ := r["detections"].([]any)
		for _, d := range detections {
			det, ok := d.(map[string]any)
			if !ok {
				continue
			}
			summary.TotalDetections++
			healthy, present := det["isHealthy"].(bool)
			if healthy || !present {
				summary.HealthyDetections++
			}
		}
	}
	summary.UnhealthyDetections = summary.TotalDetections - summary.HealthyDetections
	if summary.TotalDetections > 0 {
		summary.HealthPercentage = round2(float64(summary.HealthyDetections) / float64(summary.TotalDetections) * 100)
	}
	summary.LatestTimestamp = asString(records[0]["timestamp"], "")
	summary.CropTypes = distinct(records, "crop_name")
	summary.FieldNames = distinct(records, "field_name")
	summary.DetectionClasses = distinct(records, "primary_class")
	return summary, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
