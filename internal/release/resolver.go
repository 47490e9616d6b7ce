package release

import (
	"context"
	"fmt"

	"github.com/oshokin/lights-manager/internal/domain/app"
	"github.com/oshokin/lights-manager/internal/logger"
)

// Source is the part of the GitHub client the resolver needs.
type Source interface {
	Metadata(ctx context.Context, repository string) (*app.Metadata, error)
	Releases(ctx context.Context, meta *app.Metadata) ([]*app.Release, error)
	Release(ctx context.Context, meta *app.Metadata, id int64) (*app.Release, error)
}

// Resolution is the outcome of resolving a repository.
type Resolution struct {
	// Repository is the "owner/repo" that was resolved.
	Repository string
	// Metadata is the fetched repository metadata; zero on failure.
	Metadata app.Metadata
	// Release is the selected release or nil when none qualifies.
	Release *app.Release
}

// Resolver fetches metadata and releases and applies the selection policy.
type Resolver struct {
	source Source
}

// NewResolver creates a resolver over source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve fetches the repository metadata and its releases and selects one of them.
// On error the returned resolution is a placeholder carrying only the repository name,
// so callers can still report which application failed.
func (r *Resolver) Resolve(ctx context.Context, repository string, preferStable, strict bool) (*Resolution, error) {
	res := &Resolution{Repository: repository}

	meta, err := r.source.Metadata(ctx, repository)
	if err != nil {
		return res, fmt.Errorf("fetch metadata of %s: %w", repository, err)
	}

	res.Metadata = *meta

	releases, err := r.source.Releases(ctx, meta)
	if err != nil {
		return res, fmt.Errorf("fetch releases of %s: %w", repository, err)
	}

	res.Release = Select(releases, preferStable, strict)

	logger.DebugKV(ctx, "resolved repository",
		"repository", repository,
		"releases", len(releases),
		"selected", tagOf(res.Release))

	return res, nil
}

// ReleaseByID fetches one release through the metadata's releases URL.
func (r *Resolver) ReleaseByID(ctx context.Context, meta *app.Metadata, id int64) (*app.Release, error) {
	release, err := r.source.Release(ctx, meta, id)
	if err != nil {
		return nil, fmt.Errorf("fetch release %d: %w", id, err)
	}

	return release, nil
}

// Select applies the selection policy to releases in server order (newest first).
//
// With preferStable the first non-prerelease wins; if there is none, strict
// selection returns nil and lenient selection falls back to the newest release.
// Without preferStable the newest release always wins.
func Select(releases []*app.Release, preferStable, strict bool) *app.Release {
	if len(releases) == 0 {
		return nil
	}

	if !preferStable {
		return releases[0]
	}

	for _, rel := range releases {
		if !rel.Prerelease {
			return rel
		}
	}

	if strict {
		return nil
	}

	return releases[0]
}

func tagOf(r *app.Release) string {
	if r == nil {
		return "<none>"
	}

	return r.TagName
}
