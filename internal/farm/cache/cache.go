// Package cache provides a durable result cache for analyses whose
// inputs change slowly. Entries carry their own write timestamp and
// expiry is decided at read time, so the same store can serve lookup
// classes with different lifetimes.
package cache

import (
	"encoding/json"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	logx "github.com/terra-hawk/smartfarm/pkg/logger"
)

// Lifetimes for the two cache classes. Volatile covers fast-moving
// inputs such as weather snapshots; Regulatory covers assessments of
// slow-moving frameworks.
const (
	Volatile   = 30 * time.Minute
	Regulatory = 7 * 24 * time.Hour
)

type entry struct {
	Timestamp time.Time `json:"timestamp"`
	Result    string    `json:"result"`
}

// Store is a TTL result cache backed by badger. All failures are
// reported as misses: the cache only ever saves work, it never blocks
// the pipeline.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens (or creates) a cache at dir. An empty dir opens an
// in-memory store, which is what the tests use.
func Open(dir string) (*Store, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Key builds a cache key from a class prefix and a free-form subject.
// The subject is normalized so values like "Chiang Mai, Thailand" and
// "chiang mai thailand" share an entry.
func Key(class, subject string) string {
	subject = strings.ToLower(strings.TrimSpace(subject))
	var b strings.Builder
	sep := false
	for _, r := range subject {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			sep = false
		case r == ' ' || r == ',' || r == '-' || r == '_' || r == '/':
			if !sep && b.Len() > 0 {
				b.WriteRune('_')
			}
			sep = true
		}
	}
	return class + ":" + strings.Trim(b.String(), "_")
}

// Get returns the cached payload for key if an entry exists and is
// younger than ttl. Corrupt or unreadable entries are misses.
func (s *Store) Get(key string, ttl time.Duration) (string, bool) {
	var e entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			logx.Warn().Str("key", key).Err(err).Msg("cache read failed, treating as miss")
		}
		return "", false
	}
	if s.now().Sub(e.Timestamp) >= ttl {
		return "", false
	}
	return e.Result, true
}

// Set stores payload under key with the current time. Write failures
// are logged and swallowed.
func (s *Store) Set(key, payload string) {
	raw, err := json.Marshal(entry{Timestamp: s.now(), Result: payload})
	if err != nil {
		logx.Warn().Str("key", key).Err(err).Msg("cache encode failed")
		return
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	if err != nil {
		logx.Warn().Str("key", key).Err(err).Msg("cache write failed")
	}
}
