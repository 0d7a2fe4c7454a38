// Package stage runs one analysis stage: render prompt, invoke the
// inference capability, validate the output, and feed rejection
// reasons back into a bounded retry loop.
package stage

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/terra-hawk/smartfarm/internal/farm/guardrail"
	"github.com/terra-hawk/smartfarm/internal/farm/ledger"
	"github.com/terra-hawk/smartfarm/internal/farm/model"
	logx "github.com/terra-hawk/smartfarm/pkg/logger"
)

// Capability is the inference contract a stage invokes: messages in,
// raw text plus usage out. The LLM layer satisfies it; tests use
// scripted fakes.
type Capability interface {
	Name() string
	Generate(ctx context.Context, messages []*schema.Message) (string, model.TokenUsage, error)
}

// Invocation describes one stage run.
type Invocation struct {
	// Stage selects the guardrail and tags ledger entries.
	Stage string
	// System is the rendered system prompt.
	System string
	// Context is the retrieved data document the stage analyzes.
	Context string
	// ExtraAttempts is how many corrective retries follow a guardrail
	// rejection. Zero means a single attempt.
	ExtraAttempts int
}

// Runner executes invocations against a capability and records every
// LLM call in the ledger, validated or not.
type Runner struct {
	capability Capability
	ledger     *ledger.Ledger
}

func NewRunner(capability Capability, l *ledger.Ledger) *Runner {
	return &Runner{capability: capability, ledger: l}
}

// Run performs up to 1+ExtraAttempts invocations. A guardrail rejection
// appends the reason to the next attempt's context as a corrective
// instruction; a capability error ends the stage immediately.
func (r *Runner) Run(ctx context.Context, inv Invocation) model.StageResult {
	attempts := 1 + inv.ExtraAttempts
	if attempts < 1 {
		attempts = 1
	}

	var total model.TokenUsage
	var lastReason string

	for attempt := 1; attempt <= attempts; attempt++ {
		userContent := inv.Context
		if lastReason != "" {
			userContent = fmt.Sprintf(
				"%s\n\nYour previous response was rejected: %s\nFix the issue and return the complete corrected JSON.",
				inv.Context, lastReason)
		}
		messages := []*schema.Message{
			schema.SystemMessage(inv.System),
			schema.UserMessage(userContent),
		}

		raw, usage, err := r.capability.Generate(ctx, messages)
		r.ledger.Record(inv.Stage, r.capability.Name(), usage)
		total.Add(usage)
		if err != nil {
			logx.Error().Str("stage", inv.Stage).Int("attempt", attempt).Err(err).Msg("stage capability failed")
			return model.Failed(inv.Stage, err, attempt, total)
		}

		verdict := guardrail.Validate(inv.Stage, raw)
		if verdict.OK {
			logx.Info().Str("stage", inv.Stage).Int("attempt", attempt).Msg("stage output validated")
			return model.Validated(inv.Stage, verdict.Payload, attempt, total)
		}

		lastReason = verdict.Reason
		logx.Warn().Str("stage", inv.Stage).Int("attempt", attempt).
			Str("reason", verdict.Reason).
			Str("payload_preview", preview(raw)).Msg("stage output rejected")
	}

	return model.Rejected(inv.Stage, lastReason, attempts, total)
}

const previewLimit = 200

// preview truncates a raw payload for log output.
func preview(raw string) string {
	if len(raw) <= previewLimit {
		return raw
	}
	return raw[:previewLimit] + "..."
}
