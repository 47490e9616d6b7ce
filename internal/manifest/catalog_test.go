package manifest_test

import (
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/lights-manager/internal/manifest"
)

func testFS(t *testing.T, descriptors map[string]string) fstest.MapFS {
	t.Helper()

	schema, err := os.ReadFile("schema.json")
	require.NoError(t, err)

	fsys := fstest.MapFS{"schema.json": {Data: schema}}
	for name, body := range descriptors {
		fsys["catalog/"+name] = &fstest.MapFile{Data: []byte(body)}
	}

	return fsys
}

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c, err := manifest.Default()
	require.NoError(t, err)
	require.Equal(t, []string{"BeatMaker", "GraalVM", "OpenLightsCore", "OpenLightsManager"}, c.Names())
	require.Equal(t, 4, c.Len())

	core, err := c.Load("OpenLightsCore")
	require.NoError(t, err)
	require.True(t, core.Launchable)
	require.Contains(t, core.LaunchCommand, "${RUNTIME}")

	jvm, err := c.Load("GraalVM")
	require.NoError(t, err)
	require.True(t, jvm.Runtime)
	require.NotContains(t, jvm.Executable, "$")

	_, err = c.Load("Nope")
	require.ErrorIs(t, err, manifest.ErrUnknownApp)
}

func TestInvalidDescriptors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"missing repository":  "name: A\n",
		"unknown field":       "name: A\nrepository: o/r\ncolour: red\n",
		"wrong type":          "name: A\nrepository: o/r\nlaunchable: maybe\n",
		"bad repository":      "name: A\nrepository: just-a-name\n",
		"runtime and manager": "name: A\nrepository: o/r\nruntime: true\nmanager: true\n",
		"launch without flag": "name: A\nrepository: o/r\nlaunch_command: run\n",
		"folder without key":  "name: A\nrepository: o/r\nextra_folder: true\n",
		"not yaml":            "name: [\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c, err := manifest.NewCatalog(testFS(t, map[string]string{
				"a.yaml":    body,
				"good.yaml": "name: Good\nrepository: o/good\n",
			}))
			require.NoError(t, err)
			require.Equal(t, []string{"Good"}, c.Names())
			require.Len(t, c.Invalid(), 1)

			key := "A"
			if name == "not yaml" {
				key = "a"
			}

			_, err = c.Load(key)
			require.ErrorIs(t, err, manifest.ErrInvalidManifest)

			good, err := c.Load("Good")
			require.NoError(t, err)
			require.Equal(t, "o/good", good.Repository)
		})
	}
}

func TestDuplicateNames(t *testing.T) {
	t.Parallel()

	c, err := manifest.NewCatalog(testFS(t, map[string]string{
		"a.yaml": "name: A\nrepository: o/a\n",
		"b.yaml": "name: A\nrepository: o/b\n",
		"c.yaml": "name: A\nrepository: o/c\n",
	}))
	require.NoError(t, err)
	require.Zero(t, c.Len())

	_, err = c.Load("A")
	require.ErrorIs(t, err, manifest.ErrInvalidManifest)
}

func TestMatchesAsset(t *testing.T) {
	t.Parallel()

	e := &manifest.Entry{AssetExtension: ".zip", AssetKeyword: "linux"}

	require.True(t, e.MatchesAsset("tool-linux-x64.ZIP"))
	require.False(t, e.MatchesAsset("tool-linux-x64.tar.gz"))
	require.False(t, e.MatchesAsset("tool-windows-x64.zip"))
	require.True(t, (&manifest.Entry{}).MatchesAsset("anything"))
}

func TestIsRuntimeAsset(t *testing.T) {
	t.Parallel()

	e := &manifest.Entry{Runtime: true, RuntimeKeyword: "graalvm"}
	require.True(t, e.IsRuntimeAsset("GraalVM-community_linux.tar.gz"))
	require.False(t, e.IsRuntimeAsset("openjdk.tar.gz"))

	e.Runtime = false
	require.False(t, e.IsRuntimeAsset("graalvm.tar.gz"))
}

func TestForPlatform(t *testing.T) {
	t.Parallel()

	e := &manifest.Entry{
		Name:           "GraalVM",
		AssetKeyword:   "${OS}-${ARCH}_bin",
		AssetExtension: "${ARCHIVE_EXT}",
		Executable:     "bin/java${EXE}",
	}

	tests := []struct {
		goos, goarch         string
		keyword, ext, binary string
	}{
		{goos: "linux", goarch: "amd64", keyword: "linux-x64_bin", ext: ".tar.gz", binary: "bin/java"},
		{goos: "windows", goarch: "amd64", keyword: "windows-x64_bin", ext: ".zip", binary: "bin/java.exe"},
		{goos: "darwin", goarch: "arm64", keyword: "macos-aarch64_bin", ext: ".tar.gz", binary: "bin/java"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			t.Parallel()

			got, err := e.ForPlatform(tt.goos, tt.goarch)
			require.NoError(t, err)
			require.Equal(t, tt.keyword, got.AssetKeyword)
			require.Equal(t, tt.ext, got.AssetExtension)
			require.Equal(t, tt.binary, got.Executable)
		})
	}

	require.Equal(t, "${OS}-${ARCH}_bin", e.AssetKeyword, "catalog entry must stay untouched")
}
