package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/terra-hawk/smartfarm/internal/farm/model"
	logx "github.com/terra-hawk/smartfarm/pkg/logger"
)

const generatedBy = "smart_farm_flow"

// Submitter writes the accumulated report set to partitioned storage.
// The transaction is deliberately not atomic: each record is attempted
// independently and the outcome is a tally, so operators still get 4
// of 5 reports when one write fails.
type Submitter struct {
	store ObjectStore
	now   func() time.Time
}

func NewSubmitter(store ObjectStore) *Submitter {
	return &Submitter{store: store, now: time.Now}
}

// Submit persists every record in order. Each record is written in two
// representations: the long-form markdown document and a strict-JSON
// sibling for programmatic consumption.
func (s *Submitter) Submit(ctx context.Context, records []model.ReportRecord) model.SubmissionOutcome {
	outcome := model.SubmissionOutcome{Total: len(records)}

	for _, rec := range records {
		key, err := s.write(ctx, rec)
		if err != nil {
			logx.Error().Str("report_type", rec.Type.String()).Err(err).Msg("report write failed")
			outcome.Failed = append(outcome.Failed, model.ReportFailure{Type: rec.Type, Reason: err.Error()})
			continue
		}
		outcome.Succeeded++
		outcome.Locations = append(outcome.Locations, key)
		logx.Info().Str("report_type", rec.Type.String()).Str("key", key).Msg("report written")
	}
	return outcome
}

func (s *Submitter) write(ctx context.Context, rec model.ReportRecord) (string, error) {
	if !rec.Type.Valid() {
		return "", fmt.Errorf("invalid report type %q", rec.Type)
	}

	date := rec.Date
	if date == "" {
		date = s.now().UTC().Format("2006-01-02")
	}

	// The filename timestamp is write time, not partition time, so
	// repeated submissions on the same date never collide and list in
	// order.
	stamp := s.now().UTC().Format("20060102_150405")
	base := fmt.Sprintf("%s/%s/reports/", rec.FarmID, date)
	if rec.Type.IsDrone() {
		base += "drone/"
	}
	key := fmt.Sprintf("%s%s_%s", base, rec.Type, stamp)

	metadata := map[string]string{
		"generated_by": generatedBy,
		"farm_id":      rec.FarmID,
		"report_type":  rec.Type.String(),
		"date":         date,
		"created_at":   s.now().UTC().Format(time.RFC3339),
	}

	if err := s.store.Put(ctx, key+".md", []byte(rec.Content), "text/markdown", metadata); err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, key+".json", jsonForm(rec.Content), "application/json", metadata); err != nil {
		return "", err
	}
	return key + ".md", nil
}

// jsonForm returns the strict-JSON representation of the content. When
// the long form is not itself valid JSON it is wrapped under a
// fallback field instead of failing the write.
func jsonForm(content string) []byte {
	if json.Valid([]byte(content)) {
		return []byte(content)
	}
	wrapped, err := json.Marshal(map[string]string{"raw_content": content})
	if err != nil {
		return []byte(`{"raw_content": ""}`)
	}
	return wrapped
}
