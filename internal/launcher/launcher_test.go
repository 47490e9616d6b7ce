package launcher_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/lights-manager/internal/config"
	"github.com/oshokin/lights-manager/internal/domain/app"
	"github.com/oshokin/lights-manager/internal/launcher"
	"github.com/oshokin/lights-manager/internal/manifest"
)

func jarEntry() *manifest.Entry {
	return &manifest.Entry{
		Name:          "BeatMaker",
		Launchable:    true,
		LaunchCommand: `"${RUNTIME}" -jar "${EXECUTABLE}"`,
	}
}

func installed(executable string) *app.Record {
	return &app.Record{Name: "BeatMaker", Installed: true, Executable: executable}
}

func TestCommand(t *testing.T) {
	t.Parallel()

	argv, err := launcher.Command(installed("/opt/apps/Beat Maker.jar"), jarEntry(), "/opt/jdk/bin/java")
	require.NoError(t, err)
	require.Equal(t, []string{"/opt/jdk/bin/java", "-jar", "/opt/apps/Beat Maker.jar"}, argv)

	argv, err = launcher.Command(installed("/opt/apps/tool"), &manifest.Entry{Name: "tool", Launchable: true}, "")
	require.NoError(t, err)
	require.Equal(t, []string{"/opt/apps/tool"}, argv)
}

func TestCommandErrors(t *testing.T) {
	t.Parallel()

	_, err := launcher.Command(installed("/a.jar"), jarEntry(), "")
	require.ErrorIs(t, err, launcher.ErrMissingRuntime)

	_, err = launcher.Command(installed("/a.jar"), &manifest.Entry{Name: "x"}, "/java")
	require.ErrorIs(t, err, launcher.ErrNotLaunchable)

	_, err = launcher.Command(&app.Record{Name: "BeatMaker"}, jarEntry(), "/java")
	require.ErrorIs(t, err, launcher.ErrNotInstalled)

	// Runtime-less templates do not need a runtime.
	_, err = launcher.Command(installed("/a"), &manifest.Entry{Name: "x", Launchable: true, LaunchCommand: `"${EXECUTABLE}" --fullscreen`}, "")
	require.NoError(t, err)
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755)) //nolint:gosec // Test script must be executable.
}

func TestLaunchMissingRuntimeDoesNotSpawn(t *testing.T) {
	t.Parallel()

	layout := config.NewLayout(t.TempDir())
	l := launcher.New(layout)

	h, err := l.Launch(context.Background(), installed(filepath.Join(layout.AppDir("BeatMaker"), "a.jar")), jarEntry(), "")
	require.ErrorIs(t, err, launcher.ErrMissingRuntime)
	require.Nil(t, h)
}

func TestLaunchAndKill(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}

	layout := config.NewLayout(t.TempDir())
	dir := layout.AppDir("BeatMaker")
	script := filepath.Join(dir, "run.sh")
	writeScript(t, script, `pwd > started; sleep 30`)

	l := launcher.New(layout)

	h, err := l.Launch(context.Background(), installed(script), &manifest.Entry{Name: "BeatMaker", Launchable: true}, "")
	require.NoError(t, err)
	require.Positive(t, h.PID())

	require.Eventually(t, func() bool {
		_, statErr := os.Stat(filepath.Join(dir, "started"))
		return statErr == nil
	}, 5*time.Second, 20*time.Millisecond, "child must run inside the application directory")

	require.True(t, h.Running())
	require.True(t, launcher.Alive(h.PID()))

	require.NoError(t, h.Kill())

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Kill")
	}

	require.False(t, h.Running())
	require.NoError(t, h.Kill())
}

// TestLaunchWithRelativeRoot stores paths relative to the caller's directory
// while the child starts inside the application directory.
func TestLaunchWithRelativeRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}

	t.Chdir(t.TempDir())

	layout := config.NewLayout("")
	dir := layout.AppDir("BeatMaker")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	jar := filepath.Join(config.DefaultRoot, "apps", "BeatMaker", "BeatMaker.jar")
	require.NoError(t, os.WriteFile(jar, []byte("jar"), 0o600))

	java := filepath.Join("jdk", "bin", "java")
	writeScript(t, java, `[ -f "$2" ] && touch found`)

	l := launcher.New(layout)

	h, err := l.Launch(context.Background(), installed(jar), jarEntry(), java)
	require.NoError(t, err)

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not exit")
	}

	_, err = os.Stat(filepath.Join(dir, "found"))
	require.NoError(t, err, "runtime must find its -jar argument from the application directory")
}

func TestCheckRuntime(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("uses shell scripts")
	}

	dir := t.TempDir()

	good := filepath.Join(dir, "good", "java")
	writeScript(t, good, `echo 'openjdk 21.0.2 2024-01-16'; echo 'OpenJDK Runtime Environment GraalVM CE 21.0.2'`)

	version, err := launcher.CheckRuntime(context.Background(), good)
	require.NoError(t, err)
	require.Equal(t, "OpenJDK Runtime Environment GraalVM CE 21.0.2", version)

	broken := filepath.Join(dir, "broken", "javaw")
	writeScript(t, broken, `exit 3`)

	_, err = launcher.CheckRuntime(context.Background(), broken)
	require.ErrorIs(t, err, launcher.ErrRuntimeCorrupted)

	_, err = launcher.CheckRuntime(context.Background(), filepath.Join(dir, "missing", "java"))
	require.ErrorIs(t, err, launcher.ErrRuntimeCheckFailed)

	_, err = launcher.CheckRuntime(context.Background(), filepath.Join(dir, "python"))
	require.ErrorIs(t, err, launcher.ErrInvalidRuntime)
}
