// Package ratelimit decides when the manager may poll GitHub again.
//
// Every tracked application costs two requests per poll cycle (metadata and
// release list). The cool-down spreads those requests over the hourly quota:
// 5000 requests with a token, 60 anonymously.
package ratelimit

import (
	"fmt"
	"math"
	"time"

	"github.com/oshokin/lights-manager/internal/config"
)

const (
	// AuthenticatedRequestsPerHour is GitHub's quota for token-authenticated clients.
	AuthenticatedRequestsPerHour = 5000
	// AnonymousRequestsPerHour is GitHub's quota for anonymous clients.
	AnonymousRequestsPerHour = 60
	// RequestsPerApp is the number of API calls one application needs per cycle.
	RequestsPerApp = 2
)

// RequestsPerHour returns the hourly quota that applies to settings.
func RequestsPerHour(settings *config.Settings) int {
	if settings.HasToken() {
		return AuthenticatedRequestsPerHour
	}

	return AnonymousRequestsPerHour
}

// Cooldown is the minimum time between two poll cycles for trackedApps applications,
// rounded up to whole minutes.
func Cooldown(settings *config.Settings, trackedApps int) time.Duration {
	minutes := math.Ceil(60 / float64(RequestsPerHour(settings)) * RequestsPerApp * float64(trackedApps))

	return time.Duration(minutes) * time.Minute
}

// ShouldPoll reports whether a poll cycle may start at now.
// The override flag always allows polling.
func ShouldPoll(settings *config.Settings, trackedApps int, now time.Time) bool {
	if settings.OverrideRateLimit {
		return true
	}

	return now.Sub(settings.LastCheck()) > Cooldown(settings, trackedApps)
}

// NextPoll returns the earliest time ShouldPoll turns true without the override.
func NextPoll(settings *config.Settings, trackedApps int) time.Time {
	return settings.LastCheck().Add(Cooldown(settings, trackedApps))
}

// RecordPoll stores now as the last successful poll. Call it only after a full
// cycle finished without rate limiting.
func RecordPoll(store *config.Store, now time.Time) error {
	err := store.Update(func(s *config.Settings) {
		s.LastGitHubCheck = now.Unix()
	})
	if err != nil {
		return fmt.Errorf("record poll time: %w", err)
	}

	return nil
}
