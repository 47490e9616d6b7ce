package release_test

import (
	"context"
	"errors"
	"testing"

	"github.com/blang/semver"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/lights-manager/internal/domain/app"
	"github.com/oshokin/lights-manager/internal/github"
	"github.com/oshokin/lights-manager/internal/release"
)

func TestParseTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag  string
		want semver.Version
	}{
		{tag: "v1.2.3", want: semver.MustParse("1.2.3")},
		{tag: "1.2", want: semver.MustParse("1.2.0")},
		{tag: "release-2", want: semver.MustParse("2.0.0")},
		{tag: "jdk-21.0.2", want: semver.MustParse("21.0.2")},
		{tag: "v1.0.0-beta.1", want: semver.MustParse("1.0.0-beta.1")},
		{tag: "nightly", want: semver.Version{}},
		{tag: "", want: semver.Version{}},
		{tag: "v1.x", want: semver.Version{}},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			t.Parallel()
			require.True(t, tt.want.EQ(release.ParseTag(tt.tag)), "got %s", release.ParseTag(tt.tag))
		})
	}
}

func TestOutdated(t *testing.T) {
	t.Parallel()

	require.True(t, release.Outdated("v1.0.0", "v1.0.1"))
	require.True(t, release.Outdated("garbage", "0.0.1"))
	require.True(t, release.Outdated("1.0.0-rc1", "1.0.0"))
	require.False(t, release.Outdated("v1.0.0", "1.0"))
	require.False(t, release.Outdated("v2.0.0", "v1.9.9"))
	require.False(t, release.Outdated("1.0.0", "garbage"))
}

func TestSelect(t *testing.T) {
	t.Parallel()

	pre := &app.Release{TagName: "v2.0.0-rc1", Prerelease: true}
	stable := &app.Release{TagName: "v1.9.0"}
	older := &app.Release{TagName: "v1.8.0"}

	tests := []struct {
		name         string
		releases     []*app.Release
		preferStable bool
		strict       bool
		want         *app.Release
	}{
		{name: "empty", releases: nil, preferStable: true, want: nil},
		{name: "newest when unstable allowed", releases: []*app.Release{pre, stable}, want: pre},
		{name: "first stable", releases: []*app.Release{pre, stable, older}, preferStable: true, want: stable},
		{name: "lenient fallback", releases: []*app.Release{pre}, preferStable: true, want: pre},
		{name: "strict without stable", releases: []*app.Release{pre}, preferStable: true, strict: true, want: nil},
		{name: "strict with stable", releases: []*app.Release{pre, stable}, preferStable: true, strict: true, want: stable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Same(t, tt.want, release.Select(tt.releases, tt.preferStable, tt.strict))
		})
	}
}

type fakeSource struct {
	meta     *app.Metadata
	releases []*app.Release
	err      error
}

func (f *fakeSource) Metadata(context.Context, string) (*app.Metadata, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.meta, nil
}

func (f *fakeSource) Releases(context.Context, *app.Metadata) ([]*app.Release, error) {
	return f.releases, nil
}

func (f *fakeSource) Release(_ context.Context, _ *app.Metadata, id int64) (*app.Release, error) {
	for _, r := range f.releases {
		if r.ID == id {
			return r, nil
		}
	}

	return nil, errors.New("not found")
}

func TestResolve(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		meta: &app.Metadata{Description: "d", ReleasesURL: "u{/id}"},
		releases: []*app.Release{
			{ID: 2, TagName: "v2.0.0-rc1", Prerelease: true},
			{ID: 1, TagName: "v1.0.0"},
		},
	}
	r := release.NewResolver(src)
	ctx := context.Background()

	res, err := r.Resolve(ctx, "o/r", true, true)
	require.NoError(t, err)
	require.Equal(t, "d", res.Metadata.Description)
	require.Equal(t, "v1.0.0", res.Release.TagName)

	res, err = r.Resolve(ctx, "o/r", false, true)
	require.NoError(t, err)
	require.Equal(t, "v2.0.0-rc1", res.Release.TagName)

	got, err := r.ReleaseByID(ctx, src.meta, 1)
	require.NoError(t, err)
	require.Equal(t, "v1.0.0", got.TagName)
}

func TestResolveRateLimited(t *testing.T) {
	t.Parallel()

	r := release.NewResolver(&fakeSource{err: github.ErrRateLimited})

	res, err := r.Resolve(context.Background(), "o/r", true, false)
	require.ErrorIs(t, err, github.ErrRateLimited)
	require.NotNil(t, res)
	require.Equal(t, "o/r", res.Repository)
	require.Nil(t, res.Release)
}
