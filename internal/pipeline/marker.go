package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/lights-manager/internal/config"
	"github.com/oshokin/lights-manager/internal/logger"
)

// markerLifetime is the age after which a leftover marker is considered stale.
const markerLifetime = 30 * time.Minute

// ErrAlreadyRunning is returned when another process holds the application's marker.
var ErrAlreadyRunning = errors.New("pipeline is already running for this application")

// acquireMarker creates the per-application marker file. A marker younger than
// markerLifetime means another process is working on the application.
func acquireMarker(ctx context.Context, path string, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}

	for range 2 {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, config.DefaultFilePermissions)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())

			return f.Close()
		}

		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create marker: %w", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		if now.Sub(info.ModTime()) <= markerLifetime {
			return ErrAlreadyRunning
		}

		logger.WarnKV(ctx, "Removing stale pipeline marker", "path", path, "modified", info.ModTime())

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale marker: %w", err)
		}
	}

	return ErrAlreadyRunning
}

func releaseMarker(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove pipeline marker", "path", path, "error", err)
	}
}
