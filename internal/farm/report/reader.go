package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/terra-hawk/smartfarm/internal/farm/model"
	logx "github.com/terra-hawk/smartfarm/pkg/logger"
)

// Listing is one entry of the per-date report inventory.
type Listing struct {
	ReportType   string `json:"report_type"`
	Key          string `json:"key"`
	Size         string `json:"size"`
	SizeBytes    int64  `json:"size_bytes"`
	LastModified string `json:"last_modified"`
	PresignedURL string `json:"presigned_url,omitempty"`
}

// Fetched is one report's parsed content plus its object metadata.
type Fetched struct {
	Key          string
	Size         string
	LastModified string
	Content      json.RawMessage
}

// ErrNotFound reports that no report of the requested type exists for
// the date.
type ErrNotFound struct {
	ReportType string
	Date       string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("no %s report found for %s", strings.ReplaceAll(e.ReportType, "_", " "), e.Date)
}

// Reader serves stored reports: the latest object per type for a date,
// a single report's content, and the recent master-report history the
// aggregation stage compares against.
type Reader struct {
	store ObjectStore
	now   func() time.Time
}

func NewReader(store ObjectStore) *Reader {
	return &Reader{store: store, now: time.Now}
}

// Latest lists the newest stored report of each known type for a farm
// and date. Types with no stored report are simply absent.
func (r *Reader) Latest(ctx context.Context, farmID, date string) ([]Listing, error) {
	prefix := fmt.Sprintf("%s/%s/reports/", farmID, date)
	objects, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var listings []Listing
	for _, rt := range model.KnownReportTypes {
		var ofType []ObjectInfo
		for _, o := range objects {
			if strings.HasPrefix(o.Key, prefix+string(rt)+"_") {
				ofType = append(ofType, o)
			}
		}
		latest, ok := newestJSON(ofType)
		if !ok {
			continue
		}
		l := Listing{
			ReportType:   rt.String(),
			Key:          latest.Key,
			Size:         FormatSize(latest.Size),
			SizeBytes:    latest.Size,
			LastModified: latest.LastModified.UTC().Format(time.RFC3339),
		}
		if u, err := r.store.SignedURL(latest.Key, time.Hour); err == nil {
			l.PresignedURL = u
		} else {
			logx.Warn().Str("key", latest.Key).Err(err).Msg("signed url generation failed")
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// Fetch returns the newest report of one type for a farm and date.
func (r *Reader) Fetch(ctx context.Context, farmID string, rt model.ReportType, date string) (*Fetched, error) {
	objects, err := r.store.List(ctx, typePrefix(farmID, date, rt))
	if err != nil {
		return nil, err
	}
	latest, ok := newestJSON(objects)
	if !ok {
		return nil, ErrNotFound{ReportType: rt.String(), Date: date}
	}

	content, err := r.store.Read(ctx, latest.Key)
	if err != nil {
		return nil, err
	}
	if !json.Valid(content) {
		return nil, fmt.Errorf("stored report %s is not valid JSON", latest.Key)
	}
	return &Fetched{
		Key:          latest.Key,
		Size:         FormatSize(latest.Size),
		LastModified: latest.LastModified.UTC().Format(time.RFC3339),
		Content:      content,
	}, nil
}

// History collects the newest master report for each of the last days
// partitions, newest first, as a context document for aggregation.
// Missing days are skipped; lookup failures end the scan early.
func (r *Reader) History(ctx context.Context, farmID string, days int) (string, error) {
	var parts []string
	for i := 1; i <= days; i++ {
		date := r.now().UTC().AddDate(0, 0, -i).Format("2006-01-02")
		fetched, err := r.Fetch(ctx, farmID, model.ReportMaster, date)
		if err != nil {
			if _, ok := err.(ErrNotFound); ok {
				continue
			}
			return strings.Join(parts, "\n"), err
		}
		parts = append(parts, fmt.Sprintf("### %s\n%s", date, fetched.Content))
		if len(parts) >= 3 {
			break
		}
	}
	return strings.Join(parts, "\n"), nil
}

func typePrefix(farmID, date string, rt model.ReportType) string {
	p := fmt.Sprintf("%s/%s/reports/", farmID, date)
	if rt.IsDrone() {
		p += "drone/"
	}
	return p + string(rt) + "_"
}

// newestJSON picks the newest strict-JSON object. Keys carry a
// write-time timestamp suffix, so descending key order is newest first.
func newestJSON(objects []ObjectInfo) (ObjectInfo, bool) {
	var matches []ObjectInfo
	for _, o := range objects {
		if strings.HasSuffix(o.Key, ".json") {
			matches = append(matches, o)
		}
	}
	if len(matches) == 0 {
		return ObjectInfo{}, false
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Key > matches[j].Key })
	return matches[0], true
}
