package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gobuffalo/envy"
)

// Settings is the process-wide user configuration.
type Settings struct {
	// UnstableReleases opts into prerelease builds when checking for updates.
	UnstableReleases bool `json:"unstable_releases"`
	// DarkTheme selects the presentation theme.
	DarkTheme bool `json:"dark_theme"`
	// RuntimePath is the java/javaw executable used by launch templates.
	RuntimePath string `json:"jvm_path"`
	// GitHubToken authenticates API requests and raises the hourly quota.
	GitHubToken string `json:"github_token"`
	// LastGitHubCheck is the unix time of the last successful poll cycle.
	LastGitHubCheck int64 `json:"last_github_check"`
	// OverrideRateLimit disables the poll cool-down.
	OverrideRateLimit bool `json:"override_rate_limit"`
}

// migration mirrors Settings with optional fields so partial files can be salvaged.
type migration struct {
	UnstableReleases  *bool   `json:"unstable_releases"`
	DarkTheme         *bool   `json:"dark_theme"`
	RuntimePath       *string `json:"jvm_path"`
	GitHubToken       *string `json:"github_token"`
	LastGitHubCheck   *int64  `json:"last_github_check"`
	OverrideRateLimit *bool   `json:"override_rate_limit"`
}

const (
	// DefaultFilePermissions keeps the token readable by the owner only.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is used for every directory the manager creates.
	DefaultDirPermissions = 0o755

	// TokenEnvVar is consulted when no token is stored in the settings.
	TokenEnvVar = "GITHUB_TOKEN"

	// initialCheckAge backdates the first poll so a fresh install may poll immediately.
	initialCheckAge = time.Hour
)

var errSettingsNotSet = errors.New("settings are not set")

// Default returns the settings written on first start.
func Default(now time.Time) Settings {
	return Settings{
		DarkTheme:       true,
		LastGitHubCheck: now.Add(-initialCheckAge).Unix(),
	}
}

// LastCheck returns LastGitHubCheck as a time.
func (s *Settings) LastCheck() time.Time {
	return time.Unix(s.LastGitHubCheck, 0)
}

// Token returns the stored token or, when none is stored, the GITHUB_TOKEN environment value.
func (s *Settings) Token() string {
	if token := strings.TrimSpace(s.GitHubToken); token != "" {
		return token
	}

	return strings.TrimSpace(envy.Get(TokenEnvVar, ""))
}

// HasToken reports whether requests will be authenticated.
func (s *Settings) HasToken() bool {
	return s.Token() != ""
}

// Validate normalises user-entered values.
func Validate(s *Settings) error {
	if s == nil {
		return errSettingsNotSet
	}

	s.GitHubToken = strings.TrimSpace(s.GitHubToken)
	s.RuntimePath = strings.TrimSpace(s.RuntimePath)

	return nil
}

// Load reads settings from path. A missing file yields defaults; a partial or
// corrupt file is migrated onto defaults. In both cases the result is written back.
func Load(path string, now time.Time) (*Settings, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read settings: %w", err)
		}

		settings := Default(now)
		if err = Save(path, &settings); err != nil {
			return nil, err
		}

		return &settings, nil
	}

	settings, complete := migrate(contents, now)
	if !complete {
		if err = Save(path, &settings); err != nil {
			return nil, err
		}
	}

	return &settings, nil
}

// Save writes settings to path, creating parent directories as needed.
func Save(path string, s *Settings) error {
	if err := Validate(s); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// migrate decodes contents onto defaults and reports whether every field was present.
func migrate(contents []byte, now time.Time) (Settings, bool) {
	settings := Default(now)

	var m migration
	if err := json.Unmarshal(contents, &m); err != nil {
		return settings, false
	}

	complete := true

	applyField(&settings.UnstableReleases, m.UnstableReleases, &complete)
	applyField(&settings.DarkTheme, m.DarkTheme, &complete)
	applyField(&settings.RuntimePath, m.RuntimePath, &complete)
	applyField(&settings.GitHubToken, m.GitHubToken, &complete)
	applyField(&settings.LastGitHubCheck, m.LastGitHubCheck, &complete)
	applyField(&settings.OverrideRateLimit, m.OverrideRateLimit, &complete)

	return settings, complete
}

func applyField[T any](dst *T, src *T, complete *bool) {
	if src == nil {
		*complete = false
		return
	}

	*dst = *src
}

// Store owns the loaded settings and persists every mutation before returning.
type Store struct {
	// path is the config.json location.
	path string
	// settings is the in-memory copy; callers only ever see values.
	settings Settings
	// mu serialises mutations with their writes.
	mu sync.Mutex
}

// OpenStore loads settings from path.
func OpenStore(path string, now time.Time) (*Store, error) {
	settings, err := Load(path, now)
	if err != nil {
		return nil, err
	}

	return &Store{
		path:     path,
		settings: *settings,
	}, nil
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

// Update applies fn to a copy of the settings and persists the result.
// The in-memory settings change only if the write succeeds.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	fn(&next)

	if err := Save(s.path, &next); err != nil {
		return err
	}

	s.settings = next

	return nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}
