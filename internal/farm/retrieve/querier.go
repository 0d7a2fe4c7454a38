// Package retrieve adapts the external key-value datasets (sensor
// readings, vision detections, finance records, mission logs) into the
// summarized JSON contexts the analysis stages consume.
package retrieve

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	errx "github.com/terra-hawk/smartfarm/internal/core/error"
	logx "github.com/terra-hawk/smartfarm/pkg/logger"
)

// Querier is the narrow query capability the adapters are written
// against: all records whose key starts with prefix, newest first,
// decoded from JSON. Implementations own retry and error typing.
type Querier interface {
	Query(ctx context.Context, prefix string, limit int) ([]map[string]any, error)
}

// RedisQuerier reads datasets stored as JSON values under
// timestamp-suffixed keys, e.g. sensor:{farm_id}:{unix_ts}. Keys sort
// lexicographically by suffix, so descending key order is newest
// first.
type RedisQuerier struct {
	rdb *redis.Client
}

func NewRedisQuerier(rdb *redis.Client) *RedisQuerier {
	return &RedisQuerier{rdb: rdb}
}

const scanBatch = 200

func (q *RedisQuerier) Query(ctx context.Context, prefix string, limit int) ([]map[string]any, error) {
	var records []map[string]any

	op := func() error {
		keys, err := q.scanKeys(ctx, prefix)
		if err != nil {
			return errx.WrapRedis(err)
		}
		if len(keys) == 0 {
			records = nil
			return nil
		}

		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
		if limit > 0 && len(keys) > limit {
			keys = keys[:limit]
		}

		vals, err := q.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return errx.WrapRedis(err)
		}

		records = records[:0]
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			obj, err := decodeRecord([]byte(raw))
			if err != nil {
				logx.Warn().Str("key", keys[i]).Err(err).Msg("skipping undecodable record")
				continue
			}
			records = append(records, obj)
		}
		return nil
	}

	err := backoff.Retry(func() error {
		err := op()
		if err != nil && (errx.IsNotFound(err) || errx.IsAuth(err)) {
			return backoff.Permanent(err)
		}
		return err
	}, queryBackoff(ctx))
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (q *RedisQuerier) scanKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := q.rdb.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func queryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)
}

// decodeRecord parses a stored record keeping numbers as json.Number,
// then normalizes them to native ints and floats so downstream
// aggregation never sees decimal strings.
func decodeRecord(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return normalize(obj).(map[string]any), nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	}
	return 0
}

func asInt(v any) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case float64:
		return int(t)
	case int:
		return t
	}
	return 0
}

func asString(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func formatUnix(v any) string {
	sec := int64(asFloat(v))
	if sec == 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format("2006-01-02 15:04:05")
}
