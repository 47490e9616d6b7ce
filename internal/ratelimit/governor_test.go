package ratelimit_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/lights-manager/internal/config"
	"github.com/oshokin/lights-manager/internal/ratelimit"
)

// withoutEnvToken hides a GITHUB_TOKEN from the environment while f runs.
func withoutEnvToken(f func()) {
	envy.Temp(func() {
		envy.Set(config.TokenEnvVar, "")
		f()
	})
}

func TestCooldown(t *testing.T) {
	withoutEnvToken(func() {
		testCooldown(t)
	})
}

func testCooldown(t *testing.T) {
	t.Helper()

	anonymous := &config.Settings{}
	authenticated := &config.Settings{GitHubToken: "t"}

	require.Equal(t, 8*time.Minute, ratelimit.Cooldown(anonymous, 4))
	require.Equal(t, 2*time.Minute, ratelimit.Cooldown(anonymous, 1))
	require.Equal(t, time.Minute, ratelimit.Cooldown(authenticated, 4))
	require.Equal(t, time.Duration(0), ratelimit.Cooldown(anonymous, 0))
}

func TestShouldPoll(t *testing.T) {
	withoutEnvToken(func() {
		testShouldPoll(t)
	})
}

func testShouldPoll(t *testing.T) {
	t.Helper()

	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name     string
		settings config.Settings
		apps     int
		want     bool
	}{
		{
			name:     "override",
			settings: config.Settings{OverrideRateLimit: true, LastGitHubCheck: now.Unix()},
			apps:     4,
			want:     true,
		},
		{
			name:     "anonymous exactly at cooldown",
			settings: config.Settings{LastGitHubCheck: now.Add(-8 * time.Minute).Unix()},
			apps:     4,
			want:     false,
		},
		{
			name:     "anonymous past cooldown",
			settings: config.Settings{LastGitHubCheck: now.Add(-8*time.Minute - time.Second).Unix()},
			apps:     4,
			want:     true,
		},
		{
			name:     "token past short cooldown",
			settings: config.Settings{GitHubToken: "t", LastGitHubCheck: now.Add(-61 * time.Second).Unix()},
			apps:     4,
			want:     true,
		},
		{
			name:     "fresh defaults",
			settings: config.Default(now),
			apps:     4,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ratelimit.ShouldPoll(&tt.settings, tt.apps, now))
		})
	}
}

func TestRecordPoll(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)

	store, err := config.OpenStore(filepath.Join(t.TempDir(), "config.json"), now)
	require.NoError(t, err)

	later := now.Add(time.Hour)
	require.NoError(t, ratelimit.RecordPoll(store, later))

	settings := store.Settings()
	require.Equal(t, later.Unix(), settings.LastGitHubCheck)
	require.Equal(t, later.Add(2*time.Minute), ratelimit.NextPoll(&settings, 1))

	reloaded, err := config.Load(store.Path(), now)
	require.NoError(t, err)
	require.Equal(t, later.Unix(), reloaded.LastGitHubCheck)
}
