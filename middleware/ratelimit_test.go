package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/spinneret"
)

func TestRateLimitSpacesSameKey(t *testing.T) {
	t.Parallel()

	m := NewRateLimit(RateLimitConfig{RPS: 20, Burst: 1})
	req := spinneret.NewRequest("https://example.com/a")

	start := time.Now()
	for i := 0; i < 3; i++ {
		action, err := m.BeforeRequest(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, spinneret.ActionContinue, action.Kind)
	}
	// three requests at 20 rps with burst 1 need two 50ms waits
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimitIndependentKeys(t *testing.T) {
	t.Parallel()

	m := NewRateLimit(RateLimitConfig{RPS: 1, Burst: 1})

	start := time.Now()
	for _, u := range []string{"https://a.test/", "https://b.test/", "https://c.test/"} {
		action, err := m.BeforeRequest(context.Background(), spinneret.NewRequest(u))
		require.NoError(t, err)
		require.Equal(t, spinneret.ActionContinue, action.Kind)
	}
	// distinct hosts draw from distinct buckets and never wait
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRateLimitRespectsCancellation(t *testing.T) {
	t.Parallel()

	m := NewRateLimit(RateLimitConfig{RPS: 0.1, Burst: 1})
	req := spinneret.NewRequest("https://slow.test/")

	action, err := m.BeforeRequest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, spinneret.ActionContinue, action.Kind)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	action, err = m.BeforeRequest(ctx, req)
	require.Error(t, err)
	require.Equal(t, spinneret.ActionDrop, action.Kind)
}

func TestRateLimitUnlimitedByDefault(t *testing.T) {
	t.Parallel()

	m := NewRateLimit(RateLimitConfig{})
	req := spinneret.NewRequest("https://example.com/")

	start := time.Now()
	for i := 0; i < 100; i++ {
		action, err := m.BeforeRequest(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, spinneret.ActionContinue, action.Kind)
	}
	require.Less(t, time.Since(start), time.Second)
}
