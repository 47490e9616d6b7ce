package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/lights-manager/internal/archive"
	"github.com/oshokin/lights-manager/internal/domain/app"
	"github.com/oshokin/lights-manager/internal/manifest"
)

var (
	// ErrNoMatchingAsset is returned when no release asset passes the entry's filters.
	ErrNoMatchingAsset = errors.New("no release asset matches")
	// ErrNoRelease is returned when the record carries no release to install.
	ErrNoRelease = errors.New("no release to install")
)

// SelectAsset returns the first asset, in server order, that passes the entry's
// filters. Unsupported archive formats fail here, before anything is downloaded.
func SelectAsset(release *app.Release, entry *manifest.Entry) (*app.Asset, error) {
	if release == nil {
		return nil, ErrNoRelease
	}

	for i := range release.Assets {
		asset := &release.Assets[i]
		if !safeFileName(asset.FileName()) || !entry.MatchesAsset(asset.FileName()) {
			continue
		}

		if err := archive.Supported(asset.FileName()); err != nil {
			return nil, err
		}

		return asset, nil
	}

	return nil, fmt.Errorf("%s %s: %w", entry.Name, release.TagName, ErrNoMatchingAsset)
}

// safeFileName reports whether name can be joined to a directory as a single
// path element.
func safeFileName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`) &&
		filepath.VolumeName(name) == ""
}

// flattenExtraFolder moves the content of the top-level folder matching keyword
// into dir and removes the folder. Nothing happens when no folder matches.
func flattenExtraFolder(dir string, topLevel []string, keyword string) error {
	keyword = strings.ToLower(keyword)

	for _, name := range topLevel {
		if !strings.Contains(strings.ToLower(name), keyword) {
			continue
		}

		nested := filepath.Join(dir, name)

		info, err := os.Stat(nested)
		if err != nil || !info.IsDir() {
			continue
		}

		// Move the folder aside first: it may contain an entry with its own name.
		staging := filepath.Join(dir, ".flatten-"+name)
		if err = os.Rename(nested, staging); err != nil {
			return fmt.Errorf("move %s: %w", nested, err)
		}

		children, err := os.ReadDir(staging)
		if err != nil {
			return fmt.Errorf("read %s: %w", staging, err)
		}

		for _, child := range children {
			from := filepath.Join(staging, child.Name())
			to := filepath.Join(dir, child.Name())

			if err = os.RemoveAll(to); err != nil {
				return fmt.Errorf("replace %s: %w", to, err)
			}

			if err = os.Rename(from, to); err != nil {
				return fmt.Errorf("move %s: %w", from, err)
			}
		}

		if err = os.Remove(staging); err != nil {
			return fmt.Errorf("remove %s: %w", staging, err)
		}

		return nil
	}

	return nil
}
