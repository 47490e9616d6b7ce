package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/lights-manager/internal/logger"
	"github.com/oshokin/lights-manager/internal/pipeline"
)

// DefaultFileMode is applied to the replaced executable.
const DefaultFileMode os.FileMode = 0o755

// ErrNoStagedUpdate is returned when the staging directory holds no build.
var ErrNoStagedUpdate = errors.New("no staged update found")

// FindStaged returns the newest update-* file in dir.
func FindStaged(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read staging directory: %w", err)
	}

	var (
		found  string
		newest int64
	)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), pipeline.StagedPrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if found == "" || info.ModTime().UnixNano() > newest {
			found = filepath.Join(dir, entry.Name())
			newest = info.ModTime().UnixNano()
		}
	}

	if found == "" {
		return "", fmt.Errorf("%s: %w", dir, ErrNoStagedUpdate)
	}

	return found, nil
}

// Apply streams staged over target, keeping target+".old" until the swap
// succeeded, and removes the staged file afterwards. An empty target means
// the running executable.
func Apply(ctx context.Context, staged, target string) error {
	ctx = logger.WithName(ctx, "selfupdate")

	f, err := os.Open(filepath.Clean(staged))
	if err != nil {
		return fmt.Errorf("open staged update: %w", err)
	}

	logger.InfoKV(ctx, "Applying staged update", "staged", staged, "target", target)

	opts := goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
	}

	applyErr := goupdate.Apply(f, opts)
	_ = f.Close()

	if applyErr != nil {
		return fmt.Errorf("apply update: %w", applyErr)
	}

	oldPath := target + ".old"
	if target == "" {
		if exe, exeErr := os.Executable(); exeErr == nil {
			oldPath = exe + ".old"
		}
	}

	if err = os.Remove(oldPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove previous executable", "path", oldPath, "error", err)
	}

	if err = os.Remove(staged); err != nil {
		return fmt.Errorf("remove staged update: %w", err)
	}

	logger.Info(ctx, "Staged update applied")

	return nil
}
