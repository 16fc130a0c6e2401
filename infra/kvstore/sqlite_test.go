package kvstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorePutGetTouch(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "forecast")
	require.NoError(t, err)
	assert.False(t, ok)

	t1 := time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(ctx, "forecast", []byte(`{"a":1}`), t1))
	e, ok, err := s.Get(ctx, "forecast")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(e.Payload))
	assert.True(t, e.Stamp.Equal(t1))

	t2 := t1.Add(time.Hour)
	require.NoError(t, s.Touch(ctx, "forecast", t2))
	e, _, err = s.Get(ctx, "forecast")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(e.Payload))
	assert.True(t, e.Stamp.Equal(t2))

	require.NoError(t, s.Put(ctx, "forecast", []byte(`{"a":2}`), t2))
	e, _, _ = s.Get(ctx, "forecast")
	assert.Equal(t, `{"a":2}`, string(e.Payload))
}

func TestSQLiteStoreTouchUnknownKey(t *testing.T) {
	s, err := NewSQLiteStore("file:touch.db?mode=memory&cache=shared")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()
	now := time.Unix(1715680800, 0).UTC()

	require.NoError(t, s.Touch(ctx, "k", now))
	e, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, e.Payload)
	assert.True(t, e.Stamp.Equal(now))
}
