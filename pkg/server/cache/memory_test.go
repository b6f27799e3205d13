package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryCache_MissReturnsNilNil(t *testing.T) {
	c := NewMemoryCache(nil)

	got, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 30*time.Second))

	now = now.Add(29 * time.Second)
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.NotNil(t, got, "value must survive until the TTL elapses")

	now = now.Add(time.Second)
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got, "value must expire exactly at the TTL boundary")
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))

	now = now.Add(24 * time.Hour)
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMemoryCache_OverwriteReplacesValueAndTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("old"), 10*time.Second))
	require.NoError(t, c.Set(ctx, "k", []byte("new"), time.Minute))

	now = now.Add(30 * time.Second)
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestMemoryCache_DeletePattern(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "tokens:page:a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "tokens:page:b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "tokens:master", []byte("3"), 0))

	n, err := c.DeletePattern(ctx, "tokens:page:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := c.Get(ctx, "tokens:master")
	require.NoError(t, err)
	assert.NotNil(t, got, "non-matching keys must survive")
}

func TestMemoryCache_GetReturnsCopy(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("abc"), 0))

	got, _ := c.Get(ctx, "k")
	got[0] = 'x'

	again, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}
