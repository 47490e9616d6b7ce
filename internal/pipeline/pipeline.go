package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/lights-manager/internal/archive"
	"github.com/oshokin/lights-manager/internal/config"
	"github.com/oshokin/lights-manager/internal/domain/app"
	"github.com/oshokin/lights-manager/internal/logger"
	"github.com/oshokin/lights-manager/internal/manifest"
)

// StagedPrefix names manager builds downloaded next to the running executable.
const StagedPrefix = "update-"

// Saver persists records. The pipeline is the only writer of a record while it runs.
type Saver interface {
	Save(ctx context.Context, rec *app.Record) error
}

// Options are the dependencies of a Pipeline.
type Options struct {
	// Downloader streams release assets.
	Downloader Downloader
	// Records persists the final record.
	Records Saver
	// Layout resolves application, marker and staging paths.
	Layout config.Layout
	// Now is the clock used for marker staleness; time.Now when nil.
	Now func() time.Time
}

// Pipeline starts install and update runs.
type Pipeline struct {
	downloader Downloader
	records    Saver
	layout     config.Layout
	now        func() time.Time
}

// New creates a Pipeline.
func New(opts *Options) *Pipeline {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		downloader: opts.Downloader,
		records:    opts.Records,
		layout:     opts.Layout,
		now:        now,
	}
}

// Install starts a fresh installation of rec's last fetched release.
func (p *Pipeline) Install(ctx context.Context, rec *app.Record, entry *manifest.Entry) (*Job, error) {
	return p.start(ctx, rec, entry, false)
}

// Update removes the current installation and installs the pending update release.
func (p *Pipeline) Update(ctx context.Context, rec *app.Record, entry *manifest.Entry) (*Job, error) {
	return p.start(ctx, rec, entry, true)
}

// StagedPath is where a manager asset called name is downloaded to.
func (p *Pipeline) StagedPath(name string) string {
	return filepath.Join(p.layout.StagingDir(), StagedPrefix+name)
}

func (p *Pipeline) start(ctx context.Context, rec *app.Record, entry *manifest.Entry, update bool) (*Job, error) {
	marker := p.layout.MarkerPath(rec.Name)
	if err := acquireMarker(ctx, marker, p.now()); err != nil {
		return nil, fmt.Errorf("%s: %w", rec.Name, err)
	}

	job := newJob(rec.Name)
	job.enter(app.PhaseDownloading)

	r := &run{
		Pipeline: p,
		job:      job,
		rec:      rec.Clone(),
		entry:    entry,
		update:   update,
	}

	ctx = logger.WithName(ctx, "pipeline")
	ctx = logger.WithKV(ctx, "app", rec.Name)

	go func() {
		defer releaseMarker(ctx, marker)

		job.finish(r.execute(ctx))
	}()

	return job, nil
}

// run is the state of one pipeline execution, owned by its goroutine.
type run struct {
	*Pipeline

	job    *Job
	rec    *app.Record
	entry  *manifest.Entry
	update bool

	// partial is the download to remove when the run fails.
	partial string
	// removed is set once the previous installation is gone.
	removed bool
}

func (r *run) execute(ctx context.Context) Event {
	logger.InfoKV(ctx, "Pipeline started", "update", r.update)

	ev, err := r.steps(ctx)
	if err != nil {
		return r.fail(ctx, err)
	}

	logger.InfoKV(ctx, "Pipeline finished", "version", r.rec.Version)

	return ev
}

func (r *run) steps(ctx context.Context) (Event, error) {
	release := r.rec.Release
	if r.update {
		release = r.rec.TargetRelease()
	}

	asset, err := SelectAsset(release, r.entry)
	if err != nil {
		return nil, err
	}

	if r.update && !r.entry.Manager {
		if err = r.removePrevious(ctx); err != nil {
			return nil, err
		}
	}

	appDir := r.layout.AppDir(r.rec.Name)

	dst := filepath.Join(appDir, asset.FileName())
	if r.entry.Manager {
		dst = r.StagedPath(asset.FileName())
	}

	r.partial = dst

	if _, err = download(ctx, r.downloader, asset.DownloadURL, dst, r.job.setProgress); err != nil {
		return nil, err
	}

	isArchive := archive.IsArchive(dst) && !r.entry.Manager
	if isArchive {
		if err = r.extract(ctx, dst, appDir); err != nil {
			return nil, err
		}
	}

	r.partial = ""
	r.job.enter(app.PhaseFinalizing)

	executable := dst
	switch {
	case r.entry.Executable != "":
		executable = filepath.Join(appDir, filepath.FromSlash(r.entry.Executable))
	case isArchive:
		executable = ""
	}

	r.rec.Installed = true
	r.rec.Version = release.TagName
	r.rec.Release = release.Clone()
	r.rec.HasUpdate = false
	r.rec.UpdateURL = ""
	r.rec.UpdateRelease = nil
	r.rec.InstalledAsset = asset.FileName()
	r.rec.Archive = isArchive
	r.rec.Executable = executable

	if err = r.records.Save(ctx, r.rec); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}

	r.job.enter(app.PhaseInstalled)

	final := r.rec.Clone()
	final.Phase = app.PhaseInstalled

	switch {
	case r.entry.IsRuntimeAsset(asset.FileName()):
		return RuntimeInstalled{Final: final, Path: executable}, nil
	case r.entry.Manager:
		return ManagerInstalled{Final: final, Path: dst}, nil
	default:
		return Installed{Final: final}, nil
	}
}

func (r *run) extract(ctx context.Context, src, appDir string) error {
	r.job.enter(app.PhaseExtracting)

	logger.InfoKV(ctx, "Extracting archive", "archive", src, "destination", appDir)

	topLevel, err := archive.Extract(src, appDir, r.job.setProgress)
	if err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(src), err)
	}

	if err = os.Remove(src); err != nil {
		return fmt.Errorf("remove archive: %w", err)
	}

	if r.entry.ExtraFolder {
		if err = flattenExtraFolder(appDir, topLevel, r.entry.FolderKeyword); err != nil {
			return fmt.Errorf("flatten %s: %w", appDir, err)
		}
	}

	return nil
}

// removePrevious deletes the current installation: the whole directory for
// unpacked archives, the single installed file otherwise.
func (r *run) removePrevious(ctx context.Context) error {
	if !r.rec.Installed {
		return nil
	}

	target := r.layout.AppDir(r.rec.Name)
	if !r.rec.Archive && r.rec.InstalledAsset != "" {
		target = filepath.Join(target, r.rec.InstalledAsset)
	}

	logger.InfoKV(ctx, "Removing previous installation", "path", target, "version", r.rec.Version)

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove previous installation: %w", err)
	}

	r.removed = true
	r.rec.Installed = false
	r.rec.InstalledAsset = ""
	r.rec.Executable = ""

	return nil
}

func (r *run) fail(ctx context.Context, err error) Event {
	logger.ErrorKV(ctx, "Pipeline failed", "error", err)

	if r.partial != "" {
		if rmErr := os.Remove(r.partial); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove partial download", "path", r.partial, "error", rmErr)
		}
	}

	// The files are gone, so the stored record must stop claiming an installation.
	if r.removed {
		if saveErr := r.records.Save(ctx, r.rec); saveErr != nil {
			logger.WarnKV(ctx, "Unable to save record after failed update", "error", saveErr)
		}
	}

	r.job.enter(app.PhaseFailed)

	final := r.rec.Clone()
	final.Phase = app.PhaseFailed

	return Failed{Final: final, Err: err}
}
