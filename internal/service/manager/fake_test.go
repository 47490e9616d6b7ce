package manager_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/lights-manager/internal/manifest"
)

type fakeRelease struct {
	ID         int64
	Tag        string
	Prerelease bool
	Assets     []string
}

// fakeGitHub serves repository metadata, releases and asset downloads.
type fakeGitHub struct {
	t   *testing.T
	srv *httptest.Server

	mu          sync.Mutex
	releases    map[string][]fakeRelease
	assets      map[string][]byte
	rateLimited bool
	requests    int
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()

	f := &fakeGitHub{
		t:        t,
		releases: make(map[string][]fakeRelease),
		assets:   make(map[string][]byte),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeGitHub) setReleases(repo string, releases ...fakeRelease) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.releases[repo] = releases
}

func (f *fakeGitHub) setAsset(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.assets[name] = data
}

func (f *fakeGitHub) setRateLimited(limited bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rateLimited = limited
}

func (f *fakeGitHub) apiRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.requests
}

func (f *fakeGitHub) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if name, ok := strings.CutPrefix(r.URL.Path, "/dl/"); ok {
		data, found := f.assets[name]
		if !found {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)

		return
	}

	f.requests++

	if f.rateLimited {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "4102444800")
		w.WriteHeader(http.StatusForbidden)
		_, _ = fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)

		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 || parts[0] != "repos" {
		http.NotFound(w, r)

		return
	}

	repo := parts[1] + "/" + parts[2]

	releases, known := f.releases[repo]
	if !known {
		http.NotFound(w, r)

		return
	}

	switch {
	case len(parts) == 3:
		f.writeJSON(w, map[string]any{
			"description":  repo + " description",
			"releases_url": f.srv.URL + "/repos/" + repo + "/releases{/id}",
		})
	case len(parts) == 4 && parts[3] == "releases":
		list := make([]any, 0, len(releases))
		for _, rel := range releases {
			list = append(list, f.releaseJSON(rel))
		}

		f.writeJSON(w, list)
	case len(parts) == 5 && parts[3] == "releases":
		for _, rel := range releases {
			if strconv.FormatInt(rel.ID, 10) == parts[4] {
				f.writeJSON(w, f.releaseJSON(rel))

				return
			}
		}

		http.NotFound(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGitHub) releaseJSON(rel fakeRelease) map[string]any {
	assets := make([]any, 0, len(rel.Assets))
	for _, name := range rel.Assets {
		assets = append(assets, map[string]any{
			"name":                 name,
			"size":                 len(f.assets[name]),
			"browser_download_url": f.srv.URL + "/dl/" + name,
		})
	}

	return map[string]any{
		"id":         rel.ID,
		"tag_name":   rel.Tag,
		"prerelease": rel.Prerelease,
		"assets":     assets,
	}
}

func (f *fakeGitHub) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(v))
}

// testCatalog tracks a jar application, a runtime and the manager itself.
func testCatalog(t *testing.T) *manifest.Catalog {
	t.Helper()

	catalog, err := manifest.NewCatalog(testCatalogFS(t))
	require.NoError(t, err)

	return catalog
}

func testCatalogFS(t *testing.T) fstest.MapFS {
	t.Helper()

	schema, err := os.ReadFile("../../manifest/schema.json")
	require.NoError(t, err)

	return fstest.MapFS{
		"schema.json": {Data: schema},
		"catalog/beatmaker.yaml": {Data: []byte(`name: BeatMaker
repository: Open-Lights/BeatMaker
launchable: true
launch_command: '"${RUNTIME}" -jar "${EXECUTABLE}"'
asset_extension: .jar
`)},
		"catalog/graalvm.yaml": {Data: []byte(`name: GraalVM
repository: graalvm/graalvm-ce-builds
runtime: true
runtime_keyword: graalvm
executable: bin/java
extra_folder: true
folder_keyword: graalvm
asset_extension: .zip
`)},
		"catalog/manager.yaml": {Data: []byte(`name: OpenLightsManager
repository: Open-Lights/OpenLightsManager
manager: true
`)},
	}
}
