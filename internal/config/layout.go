package config

import "path/filepath"

const (
	// DefaultRoot is the directory, relative to the working directory, holding all state.
	DefaultRoot = "openlightsmanager"

	// ConfigFilename is the settings file inside the root.
	ConfigFilename = "config.json"

	appDataDirName = "appdata"
	appsDirName    = "apps"
	recordExt      = ".json"
	markerExt      = ".lock"
)

// Layout resolves every on-disk location under a root directory.
type Layout struct {
	// Root holds config.json, appdata/ and apps/.
	Root string
	// WorkDir receives staged manager updates. Empty means the current directory.
	WorkDir string
}

// NewLayout returns a layout rooted at root, or DefaultRoot when root is empty.
// A relative root is resolved against the current directory, so every path
// stored in records stays valid for children started in another directory.
func NewLayout(root string) Layout {
	if root == "" {
		root = DefaultRoot
	}

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	return Layout{Root: filepath.Clean(root)}
}

// ConfigPath is ‹root›/config.json.
func (l Layout) ConfigPath() string {
	return filepath.Join(l.Root, ConfigFilename)
}

// AppDataDir is ‹root›/appdata.
func (l Layout) AppDataDir() string {
	return filepath.Join(l.Root, appDataDirName)
}

// RecordPath is ‹root›/appdata/{app}.json.
func (l Layout) RecordPath(app string) string {
	return filepath.Join(l.AppDataDir(), app+recordExt)
}

// AppsDir is ‹root›/apps.
func (l Layout) AppsDir() string {
	return filepath.Join(l.Root, appsDirName)
}

// AppDir is ‹root›/apps/{app}, the canonical installation directory.
func (l Layout) AppDir(app string) string {
	return filepath.Join(l.AppsDir(), app)
}

// MarkerPath is the per-application pipeline marker, ‹root›/apps/{app}.lock.
func (l Layout) MarkerPath(app string) string {
	return filepath.Join(l.AppsDir(), app+markerExt)
}

// StagingDir is where manager artifacts are downloaded.
func (l Layout) StagingDir() string {
	if l.WorkDir == "" {
		return "."
	}

	return l.WorkDir
}
