package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/azure-vminfo/pkg/vminfo/inventory"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheLifecycle(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t)
	fetchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Now = func() time.Time { return fetchedAt }
	fp := inventory.FingerprintOf(inventory.Descriptor{Terms: []string{"linux-01"}})

	_, found, err := c.Get(ctx, fp)
	require.NoError(t, err)
	assert.False(t, found)

	vms := testVMs("linux-01")
	require.NoError(t, c.Put(ctx, fp, vms))
	assert.True(t, mr.Exists(defaultRedisPrefix+string(fp)))
	assert.Equal(t, time.Duration(0), mr.TTL(defaultRedisPrefix+string(fp)))

	entry, found, err := c.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, vms, entry.VMs)
	assert.Equal(t, fetchedAt, entry.FetchedAt)

	summaries, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Records)

	require.NoError(t, c.Clear(ctx))
	require.NoError(t, c.Clear(ctx))
	_, found, err = c.Get(ctx, fp)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t)
	fp := inventory.Fingerprint("deadbeef")
	require.NoError(t, mr.Set(defaultRedisPrefix+"deadbeef", "not json"))

	_, found, err := c.Get(ctx, fp)
	assert.False(t, found)
	assert.ErrorIs(t, err, ErrCacheCorrupt)
}

func TestRedisCacheClearKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t)
	require.NoError(t, mr.Set("other:key", "keep"))
	require.NoError(t, c.Put(ctx, "fp", testVMs("a")))

	require.NoError(t, c.Clear(ctx))
	assert.True(t, mr.Exists("other:key"))
	assert.False(t, mr.Exists(defaultRedisPrefix+"fp"))
}

func TestNewRedisCacheRequiresAddr(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{})
	assert.Error(t, err)
}
