package flow

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-hawk/smartfarm/internal/farm/cache"
	"github.com/terra-hawk/smartfarm/internal/farm/ledger"
	"github.com/terra-hawk/smartfarm/internal/farm/model"
)

const (
	visionPayload = `{"vision_analysis":{"summary":{"total_records":2,"total_detections":10,
"healthy_detections":8,"unhealthy_detections":2,"health_percentage":80.0,
"crop_types":["rice"],"field_names":["paddy-2"],"detection_classes":["leaf_blight"],
"key_findings":["localized blight in paddy-2"]},"records":[]}}`

	sensorPayload = `{"sensor_analysis":{"summary":"soil in good shape","farm_id":"FARM-001",
"readings_count":10,"analysis_period":"last 24h","zones_analyzed":["north"],
"soil_health_metrics":[{"zone_name":"north","average_moisture":38.5,"average_temperature":24.1,
"average_ph":6.8,"status":"Good"}],
"irrigation_recommendations":[{"zone":"north","action":"Maintain","priority":"Low","reasoning":"moisture adequate"}],
"environmental_correlations":[],"alerts":[]}}`

	weatherPayload = `{"weather_analysis":{"summary":"clear and calm","location":"Eindhoven","date":"2026-09-01",
"weather_data":{"temperature_c":21.0,"feels_like_c":20.0,"condition":"Sunny","humidity":55,"wind_kph":9.0},
"air_quality":{"aqi":1,"pm2_5":6.1,"pm10":9.4,"o3":40.2,"no2":8.8,"so2":2.0,"co":220.0},
"agricultural_assessment":{"flight_clearance_status":true,"disease_risk_level":"Low",
"disease_risk_percentage":4.0,"nitrogen_volatilization_risk":"Low","optimal_operations":["spraying before noon"]}}}`

	financePayload = `{"financial_analysis":{"summary":"profitable month","farm_id":"FARM-001",
"analysis_period":"last 30 days","total_days_analyzed":30,
"financial_overview":{"total_revenue":20000,"total_expenses":5000,"total_operational_costs":1000,
"net_profit":14000,"profit_margin_percentage":70.0},
"revenue_analysis":{"revenue_by_type":[{"type":"Rice","amount":20000}]},
"expense_analysis":{"expense_by_category":[{"category":"Fertilizer","amount":3000}]},
"operational_analysis":{"operations_by_type":[{"type":"spraying","cost":1000}]},
"roi_by_zone":[{"zone":"north","revenue":20000,"costs":6000,"roi_percentage":233.3,"status":"Excellent"}],
"cash_flow_analysis":{"cash_inflow":20000,"cash_outflow":6000,"net_cash_flow":14000,"cash_flow_status":"Positive"},
"forecasts":{"projected_monthly_revenue":21000,"projected_monthly_expenses":6200,"projected_monthly_profit":14800},
"recommendations":["consolidate spraying missions"],"alerts":[]}}`

	compliancePayload = `{"compliance_analysis":{"summary":"within limits","topic":"nitrogen emissions",
"date":"2026-09-01","classification":"Positive","operational_impact":"none",
"nitrogen_emissions_relevance":"low volatilization conditions","recommendations":[]}}`

	euAIActPayload = `{"eu_ai_act_assessment":{"summary":"limited risk system","system_classification":"crop analytics",
"risk_level":"limited_risk","transparency_obligations":[],"human_oversight_requirements":["approval checkpoint"],
"data_governance_requirements":[],"documentation_requirements":[],"logging_requirements":[],
"security_requirements":[],"overall_compliance_status":"Compliant","compliance_gaps":[],"action_items":[]}}`

	masterPayload = `{"master_analysis":{"executive_summary":"farm in good shape","critical_alerts":[],
"vision_summary":"v","weather_summary":"w","sensor_summary":"s","compliance_summary":"c",
"cross_functional_insights":[],"strategic_recommendations":[],"operational_priorities":["monitor paddy-2"],
"overall_farm_status":"Good"}}`
)

// stageFake answers by matching the system prompt against per-stage
// markers from the prompt templates. A script queues per-call answers
// consumed before the stage falls back to its override or default
// payload.
type stageFake struct {
	mu        sync.Mutex
	overrides map[string]string   // marker -> payload override
	scripts   map[string][]string // marker -> queued per-call answers
	calls     map[string]int
}

var stageMarkers = map[string]string{
	"crop vision analyst":           visionPayload,
	"soil and irrigation analyst":   sensorPayload,
	"agricultural meteorologist":    weatherPayload,
	"farm finance analyst":          financePayload,
	"regulatory compliance analyst": compliancePayload,
	"EU AI Act specialist":          euAIActPayload,
	"chief agronomist":              masterPayload,
}

func newStageFake() *stageFake {
	return &stageFake{
		overrides: map[string]string{},
		scripts:   map[string][]string{},
		calls:     map[string]int{},
	}
}

func (f *stageFake) Name() string { return "fake-model" }

func (f *stageFake) Generate(ctx context.Context, messages []*schema.Message) (string, model.TokenUsage, error) {
	system := messages[0].Content
	usage := model.TokenUsage{PromptTokens: 200, CompletionTokens: 100, TotalTokens: 300, Requests: 1}
	for marker, payload := range stageMarkers {
		if !strings.Contains(system, marker) {
			continue
		}
		f.mu.Lock()
		f.calls[marker]++
		if queued := f.scripts[marker]; len(queued) > 0 {
			next := queued[0]
			f.scripts[marker] = queued[1:]
			f.mu.Unlock()
			return next, usage, nil
		}
		override, ok := f.overrides[marker]
		f.mu.Unlock()
		if ok {
			return override, usage, nil
		}
		return payload, usage, nil
	}
	return "{}", usage, nil
}

func (f *stageFake) callCount(marker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[marker]
}

type fakeQuerier struct{}

func (fakeQuerier) Query(ctx context.Context, prefix string, limit int) ([]map[string]any, error) {
	return nil, nil
}

type fakeWeather struct{}

func (fakeWeather) Current(ctx context.Context, location string) (string, error) {
	return `{"location":"Eindhoven","temperature_c":21.0}`, nil
}

type recordingSubmitter struct {
	mu      sync.Mutex
	records []model.ReportRecord
	outcome model.SubmissionOutcome
}

func (s *recordingSubmitter) Submit(ctx context.Context, records []model.ReportRecord) model.SubmissionOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	if s.outcome.Total == 0 {
		return model.SubmissionOutcome{Total: len(records), Succeeded: len(records)}
	}
	return s.outcome
}

func newTestPipeline(t *testing.T, fake *stageFake, sub *recordingSubmitter, decision DecisionSource) *Pipeline {
	t.Helper()
	store, err := cache.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &Pipeline{
		Farm:                   model.FarmConfig{ID: "FARM-001", Location: "Eindhoven"},
		Querier:                fakeQuerier{},
		Weather:                fakeWeather{},
		Analysis:               fake,
		Reasoning:              fake,
		AnalysisExtraAttempts:  2,
		ReasoningExtraAttempts: 2,
		Cache:                  store,
		Ledger:                 ledger.New(),
		Submitter:              sub,
		Checkpoint:             Checkpoint{Source: decision, Timeout: time.Second, Default: "no"},
	}
}

func TestRunSubmitsAllFiveReports(t *testing.T) {
	fake := newStageFake()
	sub := &recordingSubmitter{}
	p := newTestPipeline(t, fake, sub, StaticSource("yes"))

	outcome, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "All 5 reports submitted successfully", outcome)

	require.Len(t, sub.records, 5)
	assert.Equal(t, model.ReportMaster, sub.records[0].Type)
	types := map[model.ReportType]bool{}
	for _, r := range sub.records {
		types[r.Type] = true
		assert.Equal(t, "FARM-001", r.FarmID)
		assert.NotEmpty(t, r.Content)
		assert.NotEqual(t, model.EmptyObject, r.Content)
	}
	assert.True(t, types[model.ReportVisionAnalysis])
	assert.True(t, types[model.ReportSensorAnalysis])
	assert.True(t, types[model.ReportWeather])
	assert.True(t, types[model.ReportCompliance])

	// The compliance record carries both merged sections.
	for _, r := range sub.records {
		if r.Type == model.ReportCompliance {
			assert.Contains(t, r.Content, "compliance_analysis")
			assert.Contains(t, r.Content, "eu_ai_act_assessment")
		}
	}

	// Seven stages ran once each.
	assert.Equal(t, 7, p.Ledger.Totals().Requests)
}

func TestRunCompletenessGuardBlocksSubmission(t *testing.T) {
	fake := newStageFake()
	fake.overrides["soil and irrigation analyst"] = "not valid json"
	sub := &recordingSubmitter{}

	// A "yes" source that must never be consulted.
	p := newTestPipeline(t, fake, sub, StaticSource("yes"))

	outcome, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, outcome, "incomplete analyses")
	assert.Contains(t, outcome, "sensor_analysis")
	assert.Nil(t, sub.records)
}

func TestRunDegradedStageDoesNotAbortSiblings(t *testing.T) {
	fake := newStageFake()
	fake.overrides["crop vision analyst"] = "garbage"
	sub := &recordingSubmitter{}
	p := newTestPipeline(t, fake, sub, StaticSource("yes"))

	outcome, err := p.Run(context.Background())
	require.NoError(t, err)

	// Vision degrades and compliance follows, but every other stage
	// still ran to completion before the guard resolved the run.
	assert.Contains(t, outcome, "vision_analysis")
	assert.Equal(t, 1, fake.callCount("soil and irrigation analyst"))
	assert.Equal(t, 1, fake.callCount("agricultural meteorologist"))
	assert.Equal(t, 1, fake.callCount("farm finance analyst"))
	assert.Equal(t, 1, fake.callCount("chief agronomist"))
}

func TestRunAnalysisStageRetriesAfterRejection(t *testing.T) {
	fake := newStageFake()
	fake.scripts["soil and irrigation analyst"] = []string{"not valid json"}
	sub := &recordingSubmitter{}
	p := newTestPipeline(t, fake, sub, StaticSource("yes"))

	outcome, err := p.Run(context.Background())
	require.NoError(t, err)

	// The rejected first attempt is corrected on the retry, so the run
	// still submits everything.
	assert.Equal(t, "All 5 reports submitted successfully", outcome)
	assert.Equal(t, 2, fake.callCount("soil and irrigation analyst"))
	assert.Equal(t, 8, p.Ledger.Totals().Requests)
}

func TestRunAnalysisStageExhaustsRetryBudget(t *testing.T) {
	fake := newStageFake()
	fake.overrides["soil and irrigation analyst"] = "garbage"
	sub := &recordingSubmitter{}
	p := newTestPipeline(t, fake, sub, StaticSource("yes"))

	outcome, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, outcome, "incomplete analyses")
	assert.Contains(t, outcome, "sensor_analysis")
	assert.Equal(t, 3, fake.callCount("soil and irrigation analyst"))
	assert.Nil(t, sub.records)
}

func TestRunDeclineSkipsSubmission(t *testing.T) {
	fake := newStageFake()
	sub := &recordingSubmitter{}
	p := newTestPipeline(t, fake, sub, StaticSource("no"))

	outcome, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Report submission declined by operator", outcome)
	assert.Nil(t, sub.records)
}

func TestRunDeclineCarriesOperatorFeedback(t *testing.T) {
	fake := newStageFake()
	sub := &recordingSubmitter{}
	p := newTestPipeline(t, fake, sub, StaticSource("no - the sensor section looks wrong, re-run tomorrow"))

	outcome, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Report submission declined by operator: no - the sensor section looks wrong, re-run tomorrow", outcome)
	assert.Nil(t, sub.records)
}

func TestRunCheckpointTimeoutDefaultsToNo(t *testing.T) {
	fake := newStageFake()
	sub := &recordingSubmitter{}
	p := newTestPipeline(t, fake, sub, blockingSource{})
	p.Checkpoint.Timeout = 50 * time.Millisecond

	outcome, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Report submission declined by operator", outcome)
	assert.Nil(t, sub.records)
}

func TestRunRegulatoryAssessmentCachedAcrossRuns(t *testing.T) {
	fake := newStageFake()
	sub := &recordingSubmitter{}
	p := newTestPipeline(t, fake, sub, StaticSource("yes"))

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.callCount("EU AI Act specialist"))

	// Same cache, fresh run: the assessment is served without a new
	// inference call.
	p.Ledger = ledger.New()
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.callCount("EU AI Act specialist"))
	assert.Equal(t, 6, p.Ledger.Totals().Requests)
}

func TestRunPartialSubmissionTallyIsSurfaced(t *testing.T) {
	fake := newStageFake()
	sub := &recordingSubmitter{outcome: model.SubmissionOutcome{
		Total:     5,
		Succeeded: 4,
		Failed:    []model.ReportFailure{{Type: model.ReportWeather, Reason: "storage unavailable"}},
	}}
	p := newTestPipeline(t, fake, sub, StaticSource("yes"))

	outcome, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, outcome, "4/5 reports submitted")
	assert.Contains(t, outcome, "weather_report failed")
}
