package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/postline-app/PublishDispatcher/internal/config"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	p := NewPolicy(config.DispatcherConfig{
		MaxAttempts:   4,
		BackoffBaseMs: 1000,
		BackoffMaxMs:  5000,
	})

	first := p.Backoff(1)
	second := p.Backoff(2)
	third := p.Backoff(3)

	require.Equal(t, time.Second, first)
	require.Greater(t, second, first)
	require.Greater(t, third, second)
	require.Equal(t, 5*time.Second, p.Backoff(4), "delay is capped")
	require.Equal(t, 5*time.Second, p.Backoff(10))
}

func TestExhausted(t *testing.T) {
	p := NewPolicy(config.DispatcherConfig{MaxAttempts: 3})

	require.False(t, p.Exhausted(2))
	require.True(t, p.Exhausted(3))
	require.True(t, p.Exhausted(4))
}

func TestPolicyDefaults(t *testing.T) {
	p := NewPolicy(config.DispatcherConfig{})

	require.Equal(t, 5, p.MaxAttempts)
	require.Equal(t, time.Second, p.BackoffBase)
	require.Equal(t, time.Minute, p.BackoffMax)
}
