package retrieve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-hawk/smartfarm/internal/farm/cache"
)

type fakeQuerier struct {
	byPrefix map[string][]map[string]any
	err      error
	calls    []string
}

func (f *fakeQuerier) Query(ctx context.Context, prefix string, limit int) ([]map[string]any, error) {
	f.calls = append(f.calls, prefix)
	if f.err != nil {
		return nil, f.err
	}
	records := f.byPrefix[prefix]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func TestDecodeRecordNormalizesNumbers(t *testing.T) {
	obj, err := decodeRecord([]byte(`{"moisture":38.5,"count":12,"nested":{"ph":6.8},"list":[1,2.5]}`))
	require.NoError(t, err)

	assert.Equal(t, 38.5, obj["moisture"])
	assert.Equal(t, int64(12), obj["count"])
	nested := obj["nested"].(map[string]any)
	assert.Equal(t, 6.8, nested["ph"])
	list := obj["list"].([]any)
	assert.Equal(t, int64(1), list[0])
	assert.Equal(t, 2.5, list[1])
}

func TestSensorReadingsSummarizesZonesAndTypes(t *testing.T) {
	q := &fakeQuerier{byPrefix: map[string][]map[string]any{
		"sensor:farm-001:": {
			{"timestamp": int64(1757400000), "field_zone": "north", "sensor_type": "moisture", "value": 38.5},
			{"timestamp": int64(1757300000), "field_zone": "south", "sensor_type": "moisture", "value": 41.0},
			{"timestamp": int64(1757200000), "field_zone": "north", "sensor_type": "ph", "value": 6.8},
		},
	}}

	s, err := SensorReadings(context.Background(), q, "farm-001", 10)
	require.NoError(t, err)

	assert.Equal(t, 3, s.ReadingsCount)
	assert.Equal(t, []string{"north", "south"}, s.ZonesCovered)
	assert.Equal(t, []string{"moisture", "ph"}, s.SensorTypes)
	assert.NotEmpty(t, s.LatestTimestamp)
	assert.Equal(t, s.LatestTimestamp, s.Readings[0]["timestamp_formatted"])
}

func TestSensorReadingsEmptyDataset(t *testing.T) {
	q := &fakeQuerier{byPrefix: map[string][]map[string]any{}}

	s, err := SensorReadings(context.Background(), q, "farm-009", 10)
	require.NoError(t, err)

	assert.Equal(t, 0, s.ReadingsCount)
	assert.Contains(t, s.Message, "farm-009")
	assert.NotNil(t, s.Readings)
}

func TestVisionDetectionsTallies(t *testing.T) {
	q := &fakeQuerier{byPrefix: map[string][]map[string]any{
		"vision:farm-001:2026-08-30": {
			{
				"timestamp":     "2026-08-30T10:00:00Z",
				"crop_name":     "rice",
				"field_name":    "paddy-2",
				"primary_class": "leaf_blight",
				"detections": []any{
					map[string]any{"label": "rice", "isHealthy": true, "confidence": 0.92},
					map[string]any{"label": "leaf_blight", "isHealthy": false, "confidence": 0.81},
					map[string]any{"label": "rice", "isHealthy": true, "confidence": 0.88},
				},
			},
		},
	}}

	s, err := VisionDetections(context.Background(), q, "farm-001", "2026-08-30", 50)
	require.NoError(t, err)

	assert.Equal(t, 3, s.TotalDetections)
	assert.Equal(t, 2, s.HealthyDetections)
	assert.Equal(t, 1, s.UnhealthyDetections)
	assert.InDelta(t, 66.67, s.HealthPercentage, 0.01)
	assert.Equal(t, []string{"rice"}, s.CropTypes)
	assert.Equal(t, "vision:farm-001:2026-08-30", q.calls[0])
}

func TestFinancialDataAggregates(t *testing.T) {
	now := time.Now().UTC().Unix()
	q := &fakeQuerier{byPrefix: map[string][]map[string]any{
		"finance:revenue:farm-001:": {
			{"amount": 12000.0, "revenue_date": now - 86400},
			{"amount": 8000.0, "revenue_date": now - 2*86400},
		},
		"finance:expenses:farm-001:": {
			{"amount": 5000.0, "expense_date": now - 86400},
		},
		"finance:operational:farm-001:": {
			{"fuel_cost": 300.0, "battery_cost": 120.0, "maintenance_cost": 80.0,
				"labor_cost": 0.0, "materials_cost": 500.0, "operation_date": now - 86400, "zone": "north"},
		},
	}}

	s, err := FinancialData(context.Background(), q, "farm-001", 30)
	require.NoError(t, err)

	assert.Equal(t, 20000.0, s.Totals.TotalRevenue)
	assert.Equal(t, 5000.0, s.Totals.TotalExpenses)
	assert.Equal(t, 1000.0, s.Totals.TotalOperationalCosts)
	assert.Equal(t, 6000.0, s.Totals.TotalCosts)
	assert.Equal(t, 14000.0, s.Totals.NetProfit)
	assert.Equal(t, 70.0, s.Totals.ProfitMarginPct)
	assert.Equal(t, []string{"north"}, s.ZonesCovered)
}

func TestFinancialDataExcludesRecordsBeforeCutoff(t *testing.T) {
	now := time.Now().UTC().Unix()
	q := &fakeQuerier{byPrefix: map[string][]map[string]any{
		"finance:revenue:farm-001:": {
			{"amount": 1000.0, "revenue_date": now - 86400},
			{"amount": 9999.0, "revenue_date": now - 60*86400},
		},
	}}

	s, err := FinancialData(context.Background(), q, "farm-001", 30)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, s.Totals.TotalRevenue)
}

func TestMissionLogsEfficiencyAndAnalytics(t *testing.T) {
	nowMs := time.Now().UTC().UnixMilli()
	q := &fakeQuerier{byPrefix: map[string][]map[string]any{
		"mission:farm-001:": {
			{
				"drone_id":                "dr-7",
				"mission_type":            "spraying",
				"mission_status":          "completed",
				"mission_start_timestamp": nowMs - 3600_000,
				"mission_end_timestamp":   nowMs - 1800_000,
				"planned_area_hectares":   10.0,
				"actual_area_hectares":    9.5,
				"coverage_completeness":   95.0,
				"autonomous_percentage":   88.0,
				"manual_interventions":    int64(2),
				"images_captured":         int64(40),
				"total_distance_km":       12.4,
			},
		},
	}}

	s, err := MissionLogs(context.Background(), q, "farm-001", 30, 50)
	require.NoError(t, err)
	require.Equal(t, 1, s.MissionsCount)

	m := s.Missions[0]
	assert.Equal(t, "30m 0s", m["mission_duration"])
	eff := m["efficiency_metrics"].(map[string]any)
	assert.Equal(t, 95.0, eff["coverage_percentage"])
	assert.Equal(t, "MODERATE", eff["intervention_level"])
	assert.Equal(t, 1, s.Analytics.ByType["spraying"])
	assert.Equal(t, 40, s.Analytics.TotalImages)
	assert.Equal(t, 12.4, s.Analytics.TotalDistanceKm)
}

func TestMissionLogsRoundsNegativeAreaVariance(t *testing.T) {
	nowMs := time.Now().UTC().UnixMilli()
	q := &fakeQuerier{byPrefix: map[string][]map[string]any{
		"mission:farm-001:": {
			{
				"drone_id":                "dr-7",
				"mission_type":            "spraying",
				"mission_status":          "completed",
				"mission_start_timestamp": nowMs - 3600_000,
				"mission_end_timestamp":   nowMs - 1800_000,
				"planned_area_hectares":   10.0,
				"actual_area_hectares":    8.125,
			},
		},
	}}

	s, err := MissionLogs(context.Background(), q, "farm-001", 30, 50)
	require.NoError(t, err)
	require.Equal(t, 1, s.MissionsCount)

	// The shortfall rounds half away from zero, not toward zero.
	eff := s.Missions[0]["efficiency_metrics"].(map[string]any)
	assert.Equal(t, -1.88, eff["area_variance_hectares"])
	assert.Equal(t, 81.25, eff["coverage_percentage"])
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 1.88, round2(1.875))
	assert.Equal(t, -1.88, round2(-1.875))
	assert.Equal(t, -0.5, round2(-0.5))
	assert.Equal(t, 0.0, round2(0))
}

func TestMissionLogsFiltersOldMissions(t *testing.T) {
	nowMs := time.Now().UTC().UnixMilli()
	q := &fakeQuerier{byPrefix: map[string][]map[string]any{
		"mission:farm-001:": {
			{"mission_start_timestamp": nowMs - int64(60*24)*3600_000, "mission_type": "mapping"},
		},
	}}

	s, err := MissionLogs(context.Background(), q, "farm-001", 30, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, s.MissionsCount)
	assert.Contains(t, s.Message, "last 30 days")
}

const weatherBody = `{"current":{"temp_c":31.5,"feelslike_c":35.0,"humidity":64,"wind_kph":11.2,
"condition":{"text":"Partly cloudy"},
"air_quality":{"us-epa-index":2,"pm2_5":18.3,"pm10":24.1,"o3":41.0,"no2":9.7,"so2":3.1,"co":310.4}}}`

func TestWeatherClientFetchesAndCaches(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "yes", r.URL.Query().Get("aqi"))
		_, _ = w.Write([]byte(weatherBody))
	}))
	defer srv.Close()

	store, err := cache.Open("")
	require.NoError(t, err)
	defer store.Close()

	c := NewWeatherClient(srv.URL, "test-key", store)

	doc, err := c.Current(context.Background(), "Chiang Mai")
	require.NoError(t, err)
	assert.Contains(t, doc, `"temperature_c":31.5`)
	assert.Contains(t, doc, `"pm2_5":18.3`)

	// Second lookup inside the cache window never reaches the server.
	_, err = c.Current(context.Background(), "Chiang Mai")
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func TestWeatherClientTypedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("q"), "nowhere") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewWeatherClient(srv.URL, "bad-key", nil)

	_, err := c.Current(context.Background(), "nowhere-ville")
	assert.ErrorIs(t, err, ErrUnknownLocation)

	_, err = c.Current(context.Background(), "Chiang Mai")
	assert.ErrorIs(t, err, ErrWeatherAPIKeyInvalid)

	empty := NewWeatherClient(srv.URL, "", nil)
	_, err = empty.Current(context.Background(), "Chiang Mai")
	assert.ErrorIs(t, err, ErrWeatherAPIKeyMissing)
}
