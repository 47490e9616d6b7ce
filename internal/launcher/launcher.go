package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"github.com/oshokin/lights-manager/internal/config"
	"github.com/oshokin/lights-manager/internal/domain/app"
	"github.com/oshokin/lights-manager/internal/logger"
	"github.com/oshokin/lights-manager/internal/manifest"
)

// Template variables.
const (
	varRuntime    = "RUNTIME"
	varExecutable = "EXECUTABLE"
)

var (
	// ErrMissingRuntime is returned when the template needs ${RUNTIME} and none is configured.
	ErrMissingRuntime = errors.New("no runtime configured")
	// ErrNotLaunchable is returned for catalog entries that cannot be started.
	ErrNotLaunchable = errors.New("application is not launchable")
	// ErrNotInstalled is returned when the record has no installed executable.
	ErrNotInstalled = errors.New("application is not installed")
	// errEmptyCommand is returned when the template expands to nothing.
	errEmptyCommand = errors.New("launch command is empty")
)

// Launcher starts applications inside their installation directories.
type Launcher struct {
	layout config.Layout
}

// New creates a Launcher for layout.
func New(layout config.Layout) *Launcher {
	return &Launcher{layout: layout}
}

// Command expands the entry's launch template into argv.
// An empty template runs the executable directly.
func Command(rec *app.Record, entry *manifest.Entry, runtimePath string) ([]string, error) {
	if !entry.Launchable {
		return nil, fmt.Errorf("%s: %w", entry.Name, ErrNotLaunchable)
	}

	if !rec.Installed || rec.Executable == "" {
		return nil, fmt.Errorf("%s: %w", rec.Name, ErrNotInstalled)
	}

	if entry.LaunchCommand == "" {
		return []string{rec.Executable}, nil
	}

	missingRuntime := false
	env := func(name string) string {
		switch name {
		case varRuntime:
			if runtimePath == "" {
				missingRuntime = true
			}

			return runtimePath
		case varExecutable:
			return rec.Executable
		default:
			return ""
		}
	}

	argv, err := shell.Fields(entry.LaunchCommand, env)
	if err != nil {
		return nil, fmt.Errorf("expand launch command of %s: %w", entry.Name, err)
	}

	if missingRuntime {
		return nil, fmt.Errorf("%s: %w", entry.Name, ErrMissingRuntime)
	}

	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("%s: %w", entry.Name, errEmptyCommand)
	}

	return argv, nil
}

// Launch starts the application detached from the caller: the child outlives
// ctx and this process. The working directory is the application directory.
func (l *Launcher) Launch(ctx context.Context, rec *app.Record, entry *manifest.Entry, runtimePath string) (*Handle, error) {
	// The child runs in the application directory, so relative paths are
	// resolved against ours first.
	resolved := *rec
	resolved.Executable = absolute(rec.Executable)

	argv, err := Command(&resolved, entry, absolute(runtimePath))
	if err != nil {
		return nil, err
	}

	dir := l.layout.AppDir(rec.Name)
	if _, err = os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", rec.Name, ErrNotInstalled, err)
	}

	//nolint:gosec,noctx // The command comes from the catalog and must not die with ctx.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", rec.Name, err)
	}

	logger.InfoKV(ctx, "Launched application", "app", rec.Name, "pid", cmd.Process.Pid, "command", argv)

	return newHandle(cmd), nil
}

// absolute resolves a relative path against the current directory. Bare
// command names are left alone for the PATH lookup.
func absolute(path string) string {
	if path == "" || filepath.IsAbs(path) || !strings.ContainsAny(path, `/\`) {
		return path
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	return abs
}
