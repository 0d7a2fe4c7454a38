package retrieve

import (
	"context"
	"fmt"
)

// SensorSummary is the stage-facing view of the latest IoT readings:
// the raw records plus the aggregates the soil analysis cares about.
type SensorSummary struct {
	FarmID          string           `json:"farm_id"`
	ReadingsCount   int              `json:"readings_count"`
	LatestTimestamp string           `json:"latest_timestamp,omitempty"`
	ZonesCovered    []string         `json:"zones_covered"`
	SensorTypes     []string         `json:"sensor_types"`
	Readings        []map[string]any `json:"readings"`
	Message         string           `json:"message,omitempty"`
}

// SensorReadings fetches the latest limit readings for a farm.
func SensorReadings(ctx context.Context, q Querier, farmID string, limit int) (*SensorSummary, error) {
	records, err := q.Query(ctx, "sensor:"+farmID+":", limit)
	if err != nil {
		return nil, err
	}

	summary := &SensorSummary{
		FarmID:        farmID,
		ReadingsCount: len(records),
		ZonesCovered:  []string{},
		SensorTypes:   []string{},
		Readings:      records,
	}
	if len(records) == 0 {
		summary.Readings = []map[string]any{}
		summary.Message = fmt.Sprintf("no sensor data found for farm %s", farmID)
		return summary, nil
	}

	summary.LatestTimestamp = formatUnix(records[0]["timestamp"])
	for _, r := range records {
		if ts, ok := r["timestamp"]; ok {
			r["timestamp_formatted"] = formatUnix(ts)
		}
	}
	summary.ZonesCovered = distinct(records, "field_zone")
	summary.SensorTypes = distinct(records, "sensor_type")
	return summary, nil
}

// distinct collects the unique values of a string field, in first-seen
// order so output is stable for tests and prompts.
func distinct(records []map[string]any, field string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range records {
		v := asString(r[field], "Unknown")
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
