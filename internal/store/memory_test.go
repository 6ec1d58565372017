package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "user:abc", "payload"))

	val, err := s.Get(ctx, "user:abc")
	require.NoError(t, err)
	assert.Equal(t, "payload", val)

	_, err = s.Get(ctx, "user:missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SetExExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.SetEx(ctx, "oauth_code:c1", "v", 20*time.Millisecond))

	val, err := s.Get(ctx, "oauth_code:c1")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	time.Sleep(40 * time.Millisecond)

	_, err = s.Get(ctx, "oauth_code:c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetDelIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "k", "v"))

	val, err := s.GetDel(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	_, err = s.GetDel(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ScanPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "user:a", "1"))
	require.NoError(t, s.Set(ctx, "user:b", "2"))
	require.NoError(t, s.Set(ctx, "user:c", "3"))
	require.NoError(t, s.Set(ctx, "other:x", "4"))

	keys, cursor, err := s.Scan(ctx, "user:", "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:a", "user:b"}, keys)
	require.NotEmpty(t, cursor)

	keys, cursor, err = s.Scan(ctx, "user:", cursor, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:c"}, keys)
	assert.Empty(t, cursor)
}

func TestMemoryStore_Close(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "k", "v"))

	s.Close()

	// Entries stay readable after the cleanup goroutine stops.
	val, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestMemoryStore_Counters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.Incr(ctx, "stats:total_users")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Incr(ctx, "stats:total_users")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.Decr(ctx, "stats:total_users")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Counters are plain string keys, visible to Get.
	raw, err := s.Get(ctx, "stats:total_users")
	require.NoError(t, err)
	assert.Equal(t, "1", raw)
}
