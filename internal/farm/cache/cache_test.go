package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetMissOnEmptyStore(t *testing.T) {
	s := openTestStore(t)

	_, ok := s.Get(Key("weather", "chiang mai"), Volatile)
	assert.False(t, ok)
}

func TestSetThenGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	key := Key("weather", "Chiang Mai, Thailand")
	s.Set(key, `{"temp_c":31.5}`)

	got, ok := s.Get(key, Volatile)
	require.True(t, ok)
	assert.Equal(t, `{"temp_c":31.5}`, got)
}

func TestExpiryBoundary(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.Set("weather:farm", "payload")

	// Just under the lifetime: still served.
	s.now = func() time.Time { return base.Add(Volatile - time.Second) }
	got, ok := s.Get("weather:farm", Volatile)
	require.True(t, ok)
	assert.Equal(t, "payload", got)

	// At the lifetime exactly: expired.
	s.now = func() time.Time { return base.Add(Volatile) }
	_, ok = s.Get("weather:farm", Volatile)
	assert.False(t, ok)
}

func TestDifferentLifetimesSameStore(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.Set("euaiact:assessment", "assessment")

	// An hour later the entry is stale for the volatile class but
	// fresh for the regulatory one.
	s.now = func() time.Time { return base.Add(time.Hour) }
	_, ok := s.Get("euaiact:assessment", Volatile)
	assert.False(t, ok)

	got, ok := s.Get("euaiact:assessment", Regulatory)
	require.True(t, ok)
	assert.Equal(t, "assessment", got)
}

func TestOverwriteRefreshesTimestamp(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.Set("weather:farm", "old")

	s.now = func() time.Time { return base.Add(25 * time.Minute) }
	s.Set("weather:farm", "new")

	s.now = func() time.Time { return base.Add(40 * time.Minute) }
	got, ok := s.Get("weather:farm", Volatile)
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestKeyNormalization(t *testing.T) {
	assert.Equal(t, Key("weather", "Chiang Mai, Thailand"), Key("weather", "chiang mai thailand"))
	assert.Equal(t, "weather:chiang_mai_thailand", Key("weather", "Chiang Mai, Thailand"))
	assert.Equal(t, "euaiact:singleton", Key("euaiact", "  Singleton  "))
}
