// Package report persists and serves the report set: partitioned
// object-store writes with per-record failure tolerance, and the
// read-side lookups the API and the aggregation stage use.
package report

import (
	"context"
	"fmt"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the storage capability the report layer is written
// against. The GCS implementation is the production one; tests use an
// in-memory fake.
type ObjectStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string, metadata map[string]string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Read(ctx context.Context, key string) ([]byte, error)
	SignedURL(key string, ttl time.Duration) (string, error)
}

// FormatSize renders a byte count the way the report listings show it.
func FormatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
