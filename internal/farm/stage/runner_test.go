package stage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-hawk/smartfarm/internal/farm/ledger"
	"github.com/terra-hawk/smartfarm/internal/farm/model"
)

type scriptedCapability struct {
	responses []string
	err       error
	calls     [][]*schema.Message
}

func (s *scriptedCapability) Name() string { return "fake-model" }

func (s *scriptedCapability) Generate(ctx context.Context, messages []*schema.Message) (string, model.TokenUsage, error) {
	s.calls = append(s.calls, messages)
	usage := model.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, Requests: 1}
	if s.err != nil {
		return "", model.TokenUsage{}, s.err
	}
	idx := len(s.calls) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], usage, nil
}

const validCompliance = `{"compliance_analysis":{"summary":"s","topic":"nitrogen emissions","date":"2026-08-30",
"classification":"Neutral","operational_impact":"none","nitrogen_emissions_relevance":"low","recommendations":[]}}`

func TestRunValidatedFirstAttempt(t *testing.T) {
	fake := &scriptedCapability{responses: []string{validCompliance}}
	led := ledger.New()
	r := NewRunner(fake, led)

	res := r.Run(context.Background(), Invocation{
		Stage:         "compliance",
		System:        "system prompt",
		Context:       "context document",
		ExtraAttempts: 2,
	})

	assert.Equal(t, model.StageValidated, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Len(t, fake.calls, 1)
	assert.Len(t, led.Entries(), 1)
	assert.Equal(t, 150, led.Totals().TotalTokens)
}

func TestRunFeedsRejectionReasonIntoRetry(t *testing.T) {
	fake := &scriptedCapability{responses: []string{"not json at all", validCompliance}}
	r := NewRunner(fake, ledger.New())

	res := r.Run(context.Background(), Invocation{
		Stage:         "compliance",
		System:        "system prompt",
		Context:       "context document",
		ExtraAttempts: 2,
	})

	require.Equal(t, model.StageValidated, res.Status)
	assert.Equal(t, 2, res.Attempts)
	require.Len(t, fake.calls, 2)

	// First attempt carries only the context; the retry carries the
	// rejection reason as a corrective instruction.
	first := fake.calls[0][1].Content
	second := fake.calls[1][1].Content
	assert.Equal(t, "context document", first)
	assert.Contains(t, second, "context document")
	assert.Contains(t, second, "previous response was rejected")
	assert.Contains(t, second, "not valid JSON")
}

func TestRunExhaustsExactAttemptBudget(t *testing.T) {
	fake := &scriptedCapability{responses: []string{`{"compliance_analysis":{}}`}}
	led := ledger.New()
	r := NewRunner(fake, led)

	res := r.Run(context.Background(), Invocation{
		Stage:         "compliance",
		Context:       "ctx",
		ExtraAttempts: 2,
	})

	assert.Equal(t, model.StageRejected, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, fake.calls, 3)
	assert.Len(t, led.Entries(), 3)
	assert.NotEmpty(t, res.Reason)
}

func TestRunZeroExtraAttemptsMeansSingleCall(t *testing.T) {
	fake := &scriptedCapability{responses: []string{"garbage"}}
	r := NewRunner(fake, ledger.New())

	res := r.Run(context.Background(), Invocation{Stage: "compliance", Context: "ctx"})

	assert.Equal(t, model.StageRejected, res.Status)
	assert.Len(t, fake.calls, 1)
}

func TestPreviewTruncatesLongPayloads(t *testing.T) {
	short := "not json at all"
	assert.Equal(t, short, preview(short))

	long := strings.Repeat("x", previewLimit+50)
	got := preview(long)
	assert.Len(t, got, previewLimit+3)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, long[:previewLimit], got[:previewLimit])
}

func TestRunCapabilityFailureEndsStage(t *testing.T) {
	fake := &scriptedCapability{err: errors.New("credentials rejected")}
	led := ledger.New()
	r := NewRunner(fake, led)

	res := r.Run(context.Background(), Invocation{
		Stage:         "compliance",
		Context:       "ctx",
		ExtraAttempts: 2,
	})

	assert.Equal(t, model.StageFailed, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorContains(t, res.Err, "credentials rejected")
	// The failed call is still recorded for cost accounting.
	assert.Len(t, led.Entries(), 1)
}
