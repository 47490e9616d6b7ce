package launcher

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// runtimeCheckTimeout bounds the "--version" call.
const runtimeCheckTimeout = 10 * time.Second

var (
	// ErrInvalidRuntime is returned when the path does not name java or javaw.
	ErrInvalidRuntime = errors.New(`invalid java runtime, select "java" or "javaw"`)
	// ErrRuntimeCorrupted is returned when the runtime ran but reported failure.
	ErrRuntimeCorrupted = errors.New("java runtime is invalid or corrupted")
	// ErrRuntimeCheckFailed is returned when the runtime could not be executed at all.
	ErrRuntimeCheckFailed = errors.New("unable to run the java check")
)

var runtimeNames = map[string]struct{}{"java": {}, "javaw": {}}

// CheckRuntime runs "path --version" and returns the second output line,
// which names the runtime build.
func CheckRuntime(ctx context.Context, path string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if _, ok := runtimeNames[strings.ToLower(stem)]; !ok || strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%q: %w", path, ErrInvalidRuntime)
	}

	ctx, cancel := context.WithTimeout(ctx, runtimeCheckTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "--version").Output() //nolint:gosec // Path is chosen by the user.
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s: %w", path, ErrRuntimeCorrupted)
		}

		return "", fmt.Errorf("%w: %w", ErrRuntimeCheckFailed, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for line := 0; scanner.Scan(); line++ {
		if line == 1 {
			return strings.TrimSpace(scanner.Text()), nil
		}
	}

	return "", nil
}
