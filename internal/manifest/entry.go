package manifest

import (
	"fmt"
	"runtime"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// Platform tokens accepted in asset filters and executable paths.
const (
	tokenOS         = "OS"
	tokenArch       = "ARCH"
	tokenArchiveExt = "ARCHIVE_EXT"
	tokenExe        = "EXE"
)

// Entry describes how one application is fetched, unpacked and started.
type Entry struct {
	// Name is the catalog key and display name.
	Name string `yaml:"name"`
	// Repository is the GitHub "owner/repo" identifier.
	Repository string `yaml:"repository"`
	// Launchable marks applications the launcher may start.
	Launchable bool `yaml:"launchable"`
	// LaunchCommand is the command template. It may reference ${RUNTIME} and ${EXECUTABLE}.
	LaunchCommand string `yaml:"launch_command"`
	// Runtime marks the entry that provides the JVM other entries launch with.
	Runtime bool `yaml:"runtime"`
	// Manager marks the entry describing this program itself.
	Manager bool `yaml:"manager"`
	// Executable is the launched file relative to the application directory.
	// Empty means the downloaded asset itself.
	Executable string `yaml:"executable"`
	// ExtraFolder is set when archives wrap their content in a versioned top-level folder.
	ExtraFolder bool `yaml:"extra_folder"`
	// FolderKeyword identifies that top-level folder.
	FolderKeyword string `yaml:"folder_keyword"`
	// AssetExtension is the required asset file suffix, e.g. ".jar".
	AssetExtension string `yaml:"asset_extension"`
	// AssetKeyword must appear in the asset file name.
	AssetKeyword string `yaml:"asset_keyword"`
	// RuntimeKeyword marks assets that install a runtime.
	RuntimeKeyword string `yaml:"runtime_keyword"`
}

// MatchesAsset reports whether an asset file name passes the extension and keyword filters.
func (e *Entry) MatchesAsset(name string) bool {
	lower := strings.ToLower(name)

	if e.AssetExtension != "" && !strings.HasSuffix(lower, strings.ToLower(e.AssetExtension)) {
		return false
	}

	return e.AssetKeyword == "" || strings.Contains(lower, strings.ToLower(e.AssetKeyword))
}

// IsRuntimeAsset reports whether installing name provides a runtime.
func (e *Entry) IsRuntimeAsset(name string) bool {
	return e.Runtime && e.RuntimeKeyword != "" &&
		strings.Contains(strings.ToLower(name), strings.ToLower(e.RuntimeKeyword))
}

// ForPlatform returns a copy with ${OS}, ${ARCH}, ${ARCHIVE_EXT} and ${EXE}
// resolved for goos/goarch in the asset filters and the executable path.
func (e *Entry) ForPlatform(goos, goarch string) (*Entry, error) {
	vars := platformVars(goos, goarch)
	env := func(name string) string {
		return vars[name]
	}

	resolved := *e

	for _, field := range []*string{&resolved.AssetExtension, &resolved.AssetKeyword, &resolved.Executable} {
		if !strings.Contains(*field, "$") {
			continue
		}

		value, err := shell.Expand(*field, env)
		if err != nil {
			return nil, fmt.Errorf("%s: expand %q: %w", e.Name, *field, err)
		}

		*field = value
	}

	return &resolved, nil
}

// Current is ForPlatform for the running platform.
func (e *Entry) Current() (*Entry, error) {
	return e.ForPlatform(runtime.GOOS, runtime.GOARCH)
}

// platformVars maps Go platform names onto the spelling used by release asset names.
func platformVars(goos, goarch string) map[string]string {
	vars := map[string]string{
		tokenOS:         goos,
		tokenArch:       goarch,
		tokenArchiveExt: ".tar.gz",
	}

	switch goos {
	case "darwin":
		vars[tokenOS] = "macos"
	case "windows":
		vars[tokenArchiveExt] = ".zip"
		vars[tokenExe] = ".exe"
	}

	switch goarch {
	case "amd64":
		vars[tokenArch] = "x64"
	case "arm64":
		vars[tokenArch] = "aarch64"
	}

	return vars
}
