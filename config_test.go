package spinneret

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Config{}.withDefaults()
	require.NoError(t, err)
	require.Equal(t, DefaultFetchWorkers, cfg.FetchWorkers)
	require.Equal(t, DefaultParseWorkers, cfg.ParseWorkers)
	require.Equal(t, DefaultHandoffCapacity, cfg.HandoffCapacity)
	require.Equal(t, DefaultPerKeyConcurrency, cfg.PerKeyConcurrency)
	require.Equal(t, DefaultUserAgent, cfg.UserAgent)
	require.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	require.Zero(t, cfg.PolitenessDelay)
	require.Zero(t, cfg.CheckpointEvery)
}

func TestConfigExplicitValuesKept(t *testing.T) {
	t.Parallel()

	in := Config{
		FetchWorkers:      2,
		ParseWorkers:      1,
		HandoffCapacity:   10,
		PolitenessDelay:   200 * time.Millisecond,
		PerKeyConcurrency: 1,
		UserAgent:         "custom/1.0",
		RequestTimeout:    3 * time.Second,
		CheckpointEvery:   50,
	}
	cfg, err := in.withDefaults()
	require.NoError(t, err)
	require.Equal(t, in, cfg)
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
	}{
		{"negative fetch workers", Config{FetchWorkers: -1}},
		{"negative parse workers", Config{ParseWorkers: -2}},
		{"negative handoff capacity", Config{HandoffCapacity: -1}},
		{"negative per-key concurrency", Config{PerKeyConcurrency: -3}},
		{"negative politeness delay", Config{PolitenessDelay: -time.Second}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.cfg.withDefaults()
			require.Error(t, err)
		})
	}
}
