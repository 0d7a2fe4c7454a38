package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/terra-hawk/smartfarm/internal/farm/cache"
	"github.com/terra-hawk/smartfarm/internal/farm/guardrail"
	"github.com/terra-hawk/smartfarm/internal/farm/ledger"
	"github.com/terra-hawk/smartfarm/internal/farm/model"
	"github.com/terra-hawk/smartfarm/internal/farm/prompt"
	"github.com/terra-hawk/smartfarm/internal/farm/retrieve"
	"github.com/terra-hawk/smartfarm/internal/farm/stage"
	logx "github.com/terra-hawk/smartfarm/pkg/logger"
)

// Submitter persists the accumulated report set. The report package
// provides the storage-backed implementation.
type Submitter interface {
	Submit(ctx context.Context, records []model.ReportRecord) model.SubmissionOutcome
}

// HistoryReader supplies recent master reports as context for the
// aggregation stage. Optional.
type HistoryReader interface {
	History(ctx context.Context, farmID string, days int) (string, error)
}

// WeatherSource provides the current-conditions document for a location.
type WeatherSource interface {
	Current(ctx context.Context, location string) (string, error)
}

const euAIActCacheKey = "regulatory:eu_ai_act"

// Pipeline wires one farm's daily analysis run: retrieval, the stage
// graph, the approval checkpoint, and submission.
type Pipeline struct {
	Farm      model.FarmConfig
	Querier   retrieve.Querier
	Weather   WeatherSource
	Analysis  stage.Capability
	Reasoning stage.Capability
	// AnalysisExtraAttempts is the corrective retry budget for the
	// fan-out stages; ReasoningExtraAttempts covers the compliance and
	// aggregation stages.
	AnalysisExtraAttempts  int
	ReasoningExtraAttempts int
	Cache                  *cache.Store
	Ledger                 *ledger.Ledger
	Submitter              Submitter
	History                HistoryReader
	Checkpoint             Checkpoint
}

// Run executes one full workflow and returns the operator-facing
// outcome string. Stage failures degrade the run; only the completeness
// guard or a "no" decision ends it without submission.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	state := model.NewRunState(uuid.NewString(), time.Now().UTC().Format("2006-01-02"))
	vars := prompt.Vars{FarmID: p.Farm.ID, Location: p.Farm.Location, Date: state.Date}

	analysis := stage.NewRunner(p.Analysis, p.Ledger)
	reasoning := stage.NewRunner(p.Reasoning, p.Ledger)

	logx.Info().Str("run_id", state.RunID).Str("farm_id", p.Farm.ID).Msg("analysis run starting")

	g := NewGraph()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(g.Add(&Node{Name: "vision", Run: func(ctx context.Context) error {
		return p.runVision(ctx, analysis, state, vars)
	}}))
	must(g.Add(&Node{Name: "sensor", Run: func(ctx context.Context) error {
		return p.runSensor(ctx, analysis, state, vars)
	}}))
	must(g.Add(&Node{Name: "weather", Run: func(ctx context.Context) error {
		return p.runWeather(ctx, analysis, state, vars)
	}}))
	must(g.Add(&Node{Name: "finance", Run: func(ctx context.Context) error {
		return p.runFinance(ctx, analysis, state, vars)
	}}))
	must(g.Add(&Node{Name: "compliance", After: []string{"vision"}, Run: func(ctx context.Context) error {
		return p.runCompliance(ctx, reasoning, state, vars)
	}}))
	must(g.Add(&Node{Name: "master", After: []string{"vision", "sensor", "weather", "finance", "compliance"},
		Run: func(ctx context.Context) error {
			return p.runMaster(ctx, reasoning, state, vars)
		}}))

	if err := Execute(ctx, g); err != nil {
		return "", fmt.Errorf("stage graph execution: %w", err)
	}

	logx.Info().Str("run_id", state.RunID).
		Int("total_tokens", p.Ledger.Totals().TotalTokens).
		Float64("estimated_spend_usd", p.Ledger.EstimatedSpendUSD()).
		Msg("all stages finished")

	// Completeness guard: a degraded slot means the report set would be
	// partial, so the run resolves to an implicit "no" without asking.
	if missing := degradedSlots(state); len(missing) > 0 {
		outcome := fmt.Sprintf("Report submission skipped: incomplete analyses (%s)", strings.Join(missing, ", "))
		logx.Warn().Str("run_id", state.RunID).Strs("degraded", missing).Msg("completeness guard blocked submission")
		return outcome, nil
	}

	decision, feedback := p.Checkpoint.Await(ctx, state.Get(model.SlotSummary))
	if decision != "yes" {
		logx.Info().Str("run_id", state.RunID).Str("feedback", feedback).Msg("submission declined")
		if feedback != "" {
			return fmt.Sprintf("Report submission declined by operator: %s", feedback), nil
		}
		return "Report submission declined by operator", nil
	}

	outcome := p.Submitter.Submit(ctx, collectRecords(p.Farm.ID, state))
	logx.Info().Str("run_id", state.RunID).
		Int("succeeded", outcome.Succeeded).Int("total", outcome.Total).
		Msg("report submission finished")
	return outcome.String(), nil
}

func degradedSlots(state *model.RunState) []string {
	var missing []string
	for _, slot := range []model.Slot{
		model.SlotVisionAnalysis, model.SlotSensorAnalysis, model.SlotWeatherReport,
		model.SlotFinancialAnalysis, model.SlotComplianceAnalysis, model.SlotSummary,
	} {
		if state.Degraded(slot) {
			missing = append(missing, string(slot))
		}
	}
	return missing
}

func collectRecords(farmID string, state *model.RunState) []model.ReportRecord {
	build := func(t model.ReportType, slot model.Slot) model.ReportRecord {
		return model.ReportRecord{Type: t, FarmID: farmID, Date: state.Date, Content: state.Get(slot)}
	}
	return []model.ReportRecord{
		build(model.ReportMaster, model.SlotSummary),
		build(model.ReportVisionAnalysis, model.SlotVisionAnalysis),
		build(model.ReportSensorAnalysis, model.SlotSensorAnalysis),
		build(model.ReportWeather, model.SlotWeatherReport),
		build(model.ReportCompliance, model.SlotComplianceAnalysis),
	}
}

// setOutcome writes the stage result into its slot, substituting the
// empty-object sentinel when the stage did not produce validated
// output. Rejection and failure degrade the run instead of ending it.
func setOutcome(state *model.RunState, slot model.Slot, res model.StageResult) error {
	payload := res.Payload
	switch res.Status {
	case model.StageValidated:
	case model.StageRejected:
		logx.Warn().Str("stage", res.Stage).Str("reason", res.Reason).Msg("stage retries exhausted, continuing degraded")
		payload = model.EmptyObject
	case model.StageFailed:
		logx.Error().Str("stage", res.Stage).Err(res.Err).Msg("stage failed, continuing degraded")
		payload = model.EmptyObject
	}
	return state.Set(slot, payload)
}

func (p *Pipeline) runVision(ctx context.Context, r *stage.Runner, state *model.RunState, vars prompt.Vars) error {
	system, err := prompt.System(ctx, "vision", vars)
	if err != nil {
		return err
	}
	doc := p.retrieveContext(ctx, "vision", func(ctx context.Context) (any, error) {
		return retrieve.VisionDetections(ctx, p.Querier, p.Farm.ID, state.Date, 50)
	})
	res := r.Run(ctx, stage.Invocation{Stage: "vision", System: system, Context: doc, ExtraAttempts: p.AnalysisExtraAttempts})
	return setOutcome(state, model.SlotVisionAnalysis, res)
}

func (p *Pipeline) runSensor(ctx context.Context, r *stage.Runner, state *model.RunState, vars prompt.Vars) error {
	system, err := prompt.System(ctx, "sensor", vars)
	if err != nil {
		return err
	}
	doc := p.retrieveContext(ctx, "sensor", func(ctx context.Context) (any, error) {
		return retrieve.SensorReadings(ctx, p.Querier, p.Farm.ID, 10)
	})
	res := r.Run(ctx, stage.Invocation{Stage: "sensor", System: system, Context: doc, ExtraAttempts: p.AnalysisExtraAttempts})
	return setOutcome(state, model.SlotSensorAnalysis, res)
}

func (p *Pipeline) runWeather(ctx context.Context, r *stage.Runner, state *model.RunState, vars prompt.Vars) error {
	system, err := prompt.System(ctx, "weather", vars)
	if err != nil {
		return err
	}
	doc, err := p.Weather.Current(ctx, p.Farm.Location)
	if err != nil {
		logx.Error().Err(err).Msg("weather retrieval failed, continuing degraded")
		return state.Set(model.SlotWeatherReport, model.EmptyObject)
	}
	res := r.Run(ctx, stage.Invocation{Stage: "weather", System: system, Context: doc, ExtraAttempts: p.AnalysisExtraAttempts})
	return setOutcome(state, model.SlotWeatherReport, res)
}

func (p *Pipeline) runFinance(ctx context.Context, r *stage.Runner, state *model.RunState, vars prompt.Vars) error {
	system, err := prompt.System(ctx, "finance", vars)
	if err != nil {
		return err
	}
	finance := p.retrieveContext(ctx, "finance", func(ctx context.Context) (any, error) {
		return retrieve.FinancialData(ctx, p.Querier, p.Farm.ID, 30)
	})
	missions := p.retrieveContext(ctx, "missions", func(ctx context.Context) (any, error) {
		return retrieve.MissionLogs(ctx, p.Querier, p.Farm.ID, 30, 50)
	})
	doc := fmt.Sprintf("Financial records:\n%s\n\nMission logs:\n%s", finance, missions)
	res := r.Run(ctx, stage.Invocation{Stage: "finance", System: system, Context: doc, ExtraAttempts: p.AnalysisExtraAttempts})
	return setOutcome(state, model.SlotFinancialAnalysis, res)
}

// runCompliance chains the nitrogen-emissions analysis with the
// regulatory assessment and merges them into one compliance document.
// The regulatory assessment is farm-independent, so it is served from
// the seven-day cache when possible.
func (p *Pipeline) runCompliance(ctx context.Context, r *stage.Runner, state *model.RunState, vars prompt.Vars) error {
	system, err := prompt.System(ctx, "compliance", vars)
	if err != nil {
		return err
	}
	doc := "Vision analysis for compliance review:\n" + state.Get(model.SlotVisionAnalysis)
	res := r.Run(ctx, stage.Invocation{
		Stage: "compliance", System: system, Context: doc, ExtraAttempts: p.ReasoningExtraAttempts,
	})
	if res.Status != model.StageValidated {
		return setOutcome(state, model.SlotComplianceAnalysis, res)
	}

	euPayload := p.regulatoryAssessment(ctx, r, state, vars)
	combined, err := mergeCompliance(res.Payload, euPayload)
	if err != nil {
		logx.Warn().Err(err).Msg("compliance merge failed, continuing degraded")
		return state.Set(model.SlotComplianceAnalysis, model.EmptyObject)
	}
	return state.Set(model.SlotComplianceAnalysis, combined)
}

func (p *Pipeline) regulatoryAssessment(ctx context.Context, r *stage.Runner, state *model.RunState, vars prompt.Vars) string {
	if p.Cache != nil {
		if cached, ok := p.Cache.Get(euAIActCacheKey, cache.Regulatory); ok {
			state.EUAIActCached = true
			logx.Info().Msg("regulatory assessment served from cache")
			return cached
		}
	}

	system, err := prompt.System(ctx, "eu_ai_act", vars)
	if err != nil {
		logx.Warn().Err(err).Msg("regulatory prompt render failed")
		return ""
	}
	res := r.Run(ctx, stage.Invocation{
		Stage:  "eu_ai_act",
		System: system,
		Context: "Assess the agricultural drone analytics system described in the system prompt " +
			"against the current EU AI Act obligations.",
		ExtraAttempts: p.ReasoningExtraAttempts,
	})
	if res.Status != model.StageValidated {
		return ""
	}
	if p.Cache != nil {
		p.Cache.Set(euAIActCacheKey, res.Payload)
	}
	return res.Payload
}

func (p *Pipeline) runMaster(ctx context.Context, r *stage.Runner, state *model.RunState, vars prompt.Vars) error {
	system, err := prompt.System(ctx, "master", vars)
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, part := range []struct {
		title string
		slot  model.Slot
	}{
		{"Vision analysis", model.SlotVisionAnalysis},
		{"Soil sensor analysis", model.SlotSensorAnalysis},
		{"Weather report", model.SlotWeatherReport},
		{"Financial analysis", model.SlotFinancialAnalysis},
		{"Compliance analysis", model.SlotComplianceAnalysis},
	} {
		fmt.Fprintf(&b, "## %s\n%s\n\n", part.title, state.Get(part.slot))
	}
	if p.History != nil {
		if history, err := p.History.History(ctx, p.Farm.ID, 7); err == nil && history != "" {
			fmt.Fprintf(&b, "## Recent master reports\n%s\n", history)
		}
	}

	res := r.Run(ctx, stage.Invocation{
		Stage: "master", System: system, Context: b.String(), ExtraAttempts: p.ReasoningExtraAttempts,
	})
	return setOutcome(state, model.SlotSummary, res)
}

// retrieveContext fetches and serializes one dataset. Retrieval
// failure degrades to an explanatory note so the stage still runs.
func (p *Pipeline) retrieveContext(ctx context.Context, name string, fetch func(ctx context.Context) (any, error)) string {
	v, err := fetch(ctx)
	if err != nil {
		logx.Error().Str("dataset", name).Err(err).Msg("retrieval failed")
		return fmt.Sprintf(`{"error": "no %s data available"}`, name)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		logx.Error().Str("dataset", name).Err(err).Msg("context serialization failed")
		return fmt.Sprintf(`{"error": "no %s data available"}`, name)
	}
	return string(raw)
}

// mergeCompliance lifts both section objects into one document the
// combined guardrail can vouch for. A missing regulatory payload fails
// the merge: the compliance report is only complete with both halves.
func mergeCompliance(compliancePayload, euPayload string) (string, error) {
	var comp, eu map[string]json.RawMessage
	if err := json.Unmarshal([]byte(compliancePayload), &comp); err != nil {
		return "", fmt.Errorf("compliance payload: %w", err)
	}
	if euPayload == "" {
		return "", fmt.Errorf("regulatory assessment unavailable")
	}
	if err := json.Unmarshal([]byte(euPayload), &eu); err != nil {
		return "", fmt.Errorf("regulatory payload: %w", err)
	}

	combined := map[string]json.RawMessage{
		"compliance_analysis":  comp["compliance_analysis"],
		"eu_ai_act_assessment": eu["eu_ai_act_assessment"],
	}
	raw, err := json.Marshal(combined)
	if err != nil {
		return "", err
	}

	if verdict := guardrail.Validate("compliance_combined", string(raw)); !verdict.OK {
		return "", fmt.Errorf("combined compliance document failed validation: %s", verdict.Reason)
	}
	return string(raw), nil
}
