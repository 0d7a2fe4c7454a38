// Package ledger tracks token usage across the stages of one run. It is a
// dependency-injected collaborator constructed per run, never a process
// global, and is safe for concurrent use from independent stages.
package ledger

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/terra-hawk/smartfarm/internal/farm/model"
)

// Entry is one recorded LLM invocation, tagged by stage and wall-clock time.
type Entry struct {
	Stage     string           `json:"stage"`
	Model     string           `json:"model"`
	Timestamp time.Time        `json:"timestamp"`
	Usage     model.TokenUsage `json:"usage"`
}

// Ledger accumulates per-invocation usage entries.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func New() *Ledger {
	return &Ledger{now: time.Now}
}

// Record appends one invocation's usage. Each writer appends a distinct
// record, so no cross-stage coordination beyond the mutex is needed.
func (l *Ledger) Record(stage, modelName string, usage model.TokenUsage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		Stage:     stage,
		Model:     modelName,
		Timestamp: l.now().UTC(),
		Usage:     usage,
	})
}

// Entries returns a copy of the recorded entries.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Totals sums usage across all entries.
func (l *Ledger) Totals() model.TokenUsage {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total model.TokenUsage
	for _, e := range l.entries {
		total.Add(e.Usage)
	}
	return total
}

// EstimatedSpendUSD converts the recorded usage to an estimated USD total
// using the per-model pricing table.
func (l *Ledger) EstimatedSpendUSD() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, e := range l.entries {
		_, _, cost := model.ComputeCost(e.Usage, model.ResolvePricing(e.Model))
		total += cost
	}
	return total
}

// Summary renders the ledger as a JSON document for the token_usage slot of
// the run report.
func (l *Ledger) Summary() string {
	totals := l.Totals()
	b, err := json.Marshal(map[string]any{
		"totals":              totals,
		"estimated_spend_usd": l.EstimatedSpendUSD(),
		"entries":             l.Entries(),
	})
	if err != nil {
		return model.EmptyObject
	}
	return string(b)
}
