package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleRecord() *Record {
	return &Record{
		Name:       "BeatMaker",
		Repository: "Open-Lights/BeatMaker",
		Version:    "v1.0.0",
		Release: &Release{
			TagName: "v1.0.0",
			ID:      7,
			Assets:  []Asset{{Name: "BeatMaker.jar", Size: 10, DownloadURL: "https://example.com/BeatMaker.jar"}},
		},
		HasUpdate: true,
		UpdateRelease: &Release{
			TagName: "v1.1.0",
			ID:      8,
		},
	}
}

// TestRecordClone verifies that Clone deep-copies releases and their assets.
func TestRecordClone(t *testing.T) {
	t.Parallel()

	require.Nil(t, (*Record)(nil).Clone())

	r := sampleRecord()
	c := r.Clone()

	require.Equal(t, r, c)
	require.NotSame(t, r.Release, c.Release)
	require.NotSame(t, r.UpdateRelease, c.UpdateRelease)

	c.Release.Assets[0].Name = "changed"
	require.Equal(t, "BeatMaker.jar", r.Release.Assets[0].Name)
}

// TestRecordTargetRelease checks that a pending update wins over the fetched release.
func TestRecordTargetRelease(t *testing.T) {
	t.Parallel()

	r := sampleRecord()
	require.Equal(t, int64(8), r.TargetRelease().ID)

	r.HasUpdate = false
	require.Equal(t, int64(7), r.TargetRelease().ID)
}

// TestPhase covers names and the active classification.
func TestPhase(t *testing.T) {
	t.Parallel()

	require.Equal(t, "extracting", PhaseExtracting.String())
	require.Equal(t, "unknown", Phase(42).String())
	require.True(t, PhaseDownloading.Active())
	require.False(t, PhaseInstalled.Active())
	require.False(t, PhaseIdle.Active())
}

// TestAssetFileName checks the URL fallback.
func TestAssetFileName(t *testing.T) {
	t.Parallel()

	a := Asset{DownloadURL: "https://github.com/o/r/releases/download/v1/app.zip"}
	require.Equal(t, "app.zip", a.FileName())

	a.Name = "named.zip"
	require.Equal(t, "named.zip", a.FileName())
}
