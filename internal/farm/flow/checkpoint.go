package flow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	logx "github.com/terra-hawk/smartfarm/pkg/logger"
)

// DecisionSource supplies the human approval decision for a run. Decide
// receives the master summary and returns "yes" or "no"; any other
// answer, an error, or running past the checkpoint timeout resolves to
// the configured default.
type DecisionSource interface {
	Decide(ctx context.Context, summary string) (string, error)
}

// Checkpoint is the human-in-the-loop gate between aggregation and
// submission. It never waits unbounded.
type Checkpoint struct {
	Source  DecisionSource
	Timeout time.Duration
	Default string
}

// Await resolves the checkpoint decision to "yes" or "no", plus the
// operator's free-text answer when one was given beyond the bare
// decision word. Timeouts and source errors resolve to the default
// with no feedback.
func (c Checkpoint) Await(ctx context.Context, summary string) (string, string) {
	fallback := normalizeDecision(c.Default)

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	type answer struct {
		value string
		err   error
	}
	ch := make(chan answer, 1)
	// On timeout the goroutine is abandoned; a ReaderSource stays
	// blocked in its read until the process exits, which is acceptable
	// for a run-once binary but means Await must never be called twice
	// against the same blocking reader.
	go func() {
		v, err := c.Source.Decide(ctx, summary)
		ch <- answer{value: v, err: err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			logx.Warn().Err(a.err).Str("default", fallback).Msg("checkpoint decision failed, using default")
			return fallback, ""
		}
		return normalizeDecision(a.value), freeText(a.value)
	case <-ctx.Done():
		logx.Warn().Str("default", fallback).Msg("checkpoint timed out, using default")
		return fallback, ""
	}
}

// normalizeDecision maps free-form input onto the closed decision set.
// Only an explicit yes submits.
func normalizeDecision(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y":
		return "yes"
	default:
		return "no"
	}
}

// freeText returns the operator's answer when it carries more than a
// bare decision word, so denials can echo the reasoning back.
func freeText(answer string) string {
	answer = strings.TrimSpace(answer)
	switch strings.ToLower(answer) {
	case "", "yes", "y", "no", "n":
		return ""
	}
	return answer
}

// ReaderSource shows the summary and reads one decision line from an
// input stream, normally the operator's terminal.
type ReaderSource struct {
	In  io.Reader
	Out io.Writer
}

func (r ReaderSource) Decide(ctx context.Context, summary string) (string, error) {
	if r.Out != nil {
		fmt.Fprintf(r.Out, "%s\n\nSubmit reports? [yes/no]: ", summary)
	}
	line, err := bufio.NewReader(r.In).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// StaticSource always answers the same decision. Useful for
// non-interactive runs and tests.
type StaticSource string

func (s StaticSource) Decide(ctx context.Context, summary string) (string, error) {
	return string(s), nil
}
