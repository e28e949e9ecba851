package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchSpecTunables(t *testing.T) {
	d := Defaults()
	require.Equal(t, 8, d.Shards)
	require.Equal(t, 100_000, d.MaxPending)
	require.Equal(t, 50, d.MaxPollers)
	require.Equal(t, 5, d.MaxAttempts)
	require.Equal(t, 4*time.Second, d.PollerTimeout)
	require.Equal(t, 32, d.MaxExtraSize)
	require.Equal(t, 24*60*60, d.LeafTTLSeconds)
	require.Equal(t, int64(4<<20), d.MaxBodyBytes)
}

func TestFromEnvOverridesRecognizedVars(t *testing.T) {
	t.Setenv("SEQUENCER_SHARDS", "4")
	t.Setenv("SEQUENCER_MAX_POLLERS", "10")
	t.Setenv("SEQUENCER_POLLER_TIMEOUT_MS", "1500")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Shards)
	require.Equal(t, 10, cfg.MaxPollers)
	require.Equal(t, 1500*time.Millisecond, cfg.PollerTimeout)
	require.Equal(t, Defaults().MaxAttempts, cfg.MaxAttempts)
}

func TestFromEnvFailsFastOnMalformedValue(t *testing.T) {
	t.Setenv("SEQUENCER_MAX_PENDING", "not-a-number")
	_, err := FromEnv()
	require.Error(t, err)
}
