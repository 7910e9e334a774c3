package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterUnlimited(t *testing.T) {
	l := New(Config{Rate: 0})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestLimiterBurst(t *testing.T) {
	l := New(Config{Rate: 1, Burst: 2})
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))

	// Third request exceeds the burst and must wait roughly one second,
	// which the short deadline does not allow.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(short))
}

func TestLimiterNilAndCancelled(t *testing.T) {
	var l *Limiter
	assert.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}

func TestDefaultQueryConfig(t *testing.T) {
	cfg := DefaultQueryConfig()
	assert.Greater(t, cfg.Rate, 0.0)
	assert.GreaterOrEqual(t, cfg.Burst, 1)
}
