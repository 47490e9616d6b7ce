package manager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oshokin/lights-manager/internal/config"
	"github.com/oshokin/lights-manager/internal/domain/app"
	"github.com/oshokin/lights-manager/internal/github"
	"github.com/oshokin/lights-manager/internal/launcher"
	"github.com/oshokin/lights-manager/internal/logger"
	"github.com/oshokin/lights-manager/internal/manifest"
	"github.com/oshokin/lights-manager/internal/pipeline"
	"github.com/oshokin/lights-manager/internal/ratelimit"
	"github.com/oshokin/lights-manager/internal/release"
	"github.com/oshokin/lights-manager/internal/repository/record"
	"github.com/oshokin/lights-manager/internal/version"
)

var (
	// ErrPollSuppressed is returned when the governor does not allow a GitHub poll yet.
	ErrPollSuppressed = errors.New("github polling suppressed by rate-limit cool-down")
	// ErrBusy is returned for applications with an active pipeline run.
	ErrBusy = errors.New("application is busy")
	// ErrNotLoaded is returned for applications whose record has not been loaded.
	ErrNotLoaded = errors.New("application record not loaded")
	// ErrAlreadyInstalled is returned by Install for installed applications.
	ErrAlreadyInstalled = errors.New("application is already installed")
	// ErrNotInstalled is returned by operations that need an installation.
	ErrNotInstalled = errors.New("application is not installed")
	// ErrNoUpdate is returned by Update when no newer release is known.
	ErrNoUpdate = errors.New("no update available")
	// ErrManagerUninstall is returned when uninstalling the manager itself.
	ErrManagerUninstall = errors.New("the manager cannot uninstall itself")
)

// Options configure a Manager.
type Options struct {
	// Layout locates settings, records and installations.
	Layout config.Layout
	// Catalog overrides the embedded catalog.
	Catalog *manifest.Catalog
	// GitHubBaseURL overrides the GitHub API root.
	GitHubBaseURL string
	// HTTPClient is used for API calls and downloads.
	HTTPClient *http.Client
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Manager is the facade over records, GitHub, pipelines and the launcher.
type Manager struct {
	opts     Options
	layout   config.Layout
	store    *config.Store
	catalog  *manifest.Catalog
	records  *record.FileRepository
	launcher *launcher.Launcher
	now      func() time.Time

	resolver *release.Resolver
	pipeline *pipeline.Pipeline
	token    string

	apps          map[string]*app.Record
	jobs          map[string]*pipeline.Job
	handles       map[string]*launcher.Handle
	notifications []Notification
}

// New opens the settings, the catalog and the record store and connects to GitHub.
func New(ctx context.Context, opts *Options) (*Manager, error) {
	m := &Manager{
		opts:     *opts,
		layout:   opts.Layout,
		catalog:  opts.Catalog,
		records:  record.NewFileRepository(opts.Layout.AppDataDir()),
		launcher: launcher.New(opts.Layout),
		now:      opts.Now,
		apps:     make(map[string]*app.Record),
		jobs:     make(map[string]*pipeline.Job),
		handles:  make(map[string]*launcher.Handle),
	}

	if m.now == nil {
		m.now = time.Now
	}

	if m.catalog == nil {
		catalog, err := manifest.Default()
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}

		m.catalog = catalog
	}

	for name, err := range m.catalog.Invalid() {
		logger.ErrorKV(ctx, "Application disabled by an invalid manifest", "app", name, "error", err)
	}

	store, err := config.OpenStore(m.layout.ConfigPath(), m.now())
	if err != nil {
		return nil, err
	}

	m.store = store

	if err = m.connect(ctx); err != nil {
		return nil, err
	}

	return m, nil
}

// connect builds the GitHub client and everything that depends on it.
func (m *Manager) connect(ctx context.Context) error {
	settings := m.store.Settings()

	ghOpts := []github.Option{github.WithToken(settings.Token())}
	if m.opts.GitHubBaseURL != "" {
		ghOpts = append(ghOpts, github.WithBaseURL(m.opts.GitHubBaseURL))
	}

	if m.opts.HTTPClient != nil {
		ghOpts = append(ghOpts, github.WithHTTPClient(m.opts.HTTPClient))
	}

	client, err := github.NewClient(ctx, ghOpts...)
	if err != nil {
		return fmt.Errorf("create github client: %w", err)
	}

	m.token = settings.Token()
	m.resolver = release.NewResolver(client)
	m.pipeline = pipeline.New(&pipeline.Options{
		Downloader: client,
		Records:    m.records,
		Layout:     m.layout,
		Now:        m.now,
	})

	return nil
}

// Catalog returns the installation catalog.
func (m *Manager) Catalog() *manifest.Catalog {
	return m.catalog
}

// Layout returns the on-disk layout.
func (m *Manager) Layout() config.Layout {
	return m.layout
}

// LoadAll loads every record already on disk without touching the network.
func (m *Manager) LoadAll(ctx context.Context) error {
	records, err := m.records.List(ctx)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if _, err = m.catalog.Load(rec.Name); err != nil {
			logger.WarnKV(ctx, "Ignoring record", "app", rec.Name, "error", err)

			continue
		}

		m.apps[rec.Name] = rec
		m.syncManager(ctx, rec)
	}

	return nil
}

// Startup loads or creates every catalog record and, when the governor allows,
// checks the loaded ones for updates. Records created here are already fresh,
// so creation and the check together form one poll cycle. Rate limiting stops
// the sequence early; it is reported through Notifications, not as an error.
func (m *Manager) Startup(ctx context.Context) error {
	ctx = logger.WithName(ctx, "manager")

	if err := m.LoadAll(ctx); err != nil {
		return err
	}

	created := make(map[string]bool)

	for _, name := range m.catalog.Names() {
		if _, ok := m.apps[name]; ok {
			continue
		}

		_, err := m.LoadOrCreate(ctx, name)

		switch {
		case err == nil:
			created[name] = true
		case errors.Is(err, ErrPollSuppressed):
			logger.InfoKV(ctx, "Record creation postponed by cool-down", "app", name)

			return nil
		case isGitHubThrottle(err):
			return nil
		default:
			return err
		}
	}

	err := m.checkAll(ctx, created)
	if errors.Is(err, ErrPollSuppressed) || isGitHubThrottle(err) {
		return nil
	}

	return err
}

// LoadOrCreate returns the record called name, loading it from disk or, when
// missing, resolving it through GitHub. Creation honours the governor: a
// suppressed poll returns ErrPollSuppressed and no record is fabricated.
func (m *Manager) LoadOrCreate(ctx context.Context, name string) (*app.Record, error) {
	entry, err := m.catalog.Load(name)
	if err != nil {
		return nil, err
	}

	if rec, ok := m.apps[name]; ok {
		return m.snapshot(rec), nil
	}

	rec, err := m.records.Load(ctx, name)

	switch {
	case err == nil:
		m.apps[name] = rec
		m.syncManager(ctx, rec)

		return m.snapshot(rec), nil
	case !errors.Is(err, record.ErrNotFound):
		return nil, err
	}

	settings := m.store.Settings()
	if !ratelimit.ShouldPoll(&settings, m.catalog.Len(), m.now()) {
		return nil, fmt.Errorf("create %s: %w", name, ErrPollSuppressed)
	}

	res, err := m.resolver.Resolve(ctx, entry.Repository, !settings.UnstableReleases, false)
	if err != nil {
		m.notifyGitHub(ctx, name, err)

		return nil, err
	}

	rec = &app.Record{
		Name:       name,
		Repository: entry.Repository,
		Metadata:   res.Metadata,
		Release:    res.Release,
		Launchable: entry.Launchable,
		Runtime:    entry.Runtime,
		Manager:    entry.Manager,
	}

	if res.Release != nil {
		rec.Version = res.Release.TagName
	}

	if entry.Manager {
		rec.Installed = true
		rec.Version = version.Short()
	}

	if err = m.records.Save(ctx, rec); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Created application record", "app", name, "version", rec.Version)

	m.apps[name] = rec

	return m.snapshot(rec), nil
}

// CheckForUpdates resolves every loaded record against GitHub and flags newer
// releases. The poll time is recorded only when the whole cycle succeeded.
func (m *Manager) CheckForUpdates(ctx context.Context) error {
	return m.checkAll(ctx, nil)
}

// checkAll runs one poll cycle over every loaded record except those in fresh.
func (m *Manager) checkAll(ctx context.Context, fresh map[string]bool) error {
	settings := m.store.Settings()
	if !ratelimit.ShouldPoll(&settings, m.catalog.Len(), m.now()) {
		return ErrPollSuppressed
	}

	preferStable := !settings.UnstableReleases

	var errs []error

	for _, name := range m.sortedNames() {
		if fresh[name] || m.busy(name) {
			continue
		}

		if err := m.checkOne(ctx, m.apps[name], preferStable); err != nil {
			if isGitHubThrottle(err) {
				m.notifyGitHub(ctx, name, err)

				return err
			}

			logger.ErrorKV(ctx, "Update check failed", "app", name, "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return ratelimit.RecordPoll(m.store, m.now())
}

func (m *Manager) checkOne(ctx context.Context, rec *app.Record, preferStable bool) error {
	res, err := m.resolver.Resolve(ctx, rec.Repository, preferStable, true)
	if err != nil {
		return err
	}

	rec.Metadata = res.Metadata

	candidate := res.Release

	switch {
	case !rec.Installed && candidate == nil:
		logger.DebugKV(ctx, "No eligible release", "app", rec.Name)
	case !rec.Installed:
		rec.Release = candidate
		rec.Version = candidate.TagName
	case candidate != nil && release.Outdated(rec.Version, candidate.TagName):
		rec.HasUpdate = true
		rec.UpdateURL = github.ReleasesURL(res.Metadata.ReleasesURL, candidate.ID)
		rec.UpdateRelease = candidate

		logger.InfoKV(ctx, "Update available", "app", rec.Name, "installed", rec.Version, "available", candidate.TagName)
	default:
		// A pending update picked under other settings no longer applies.
		if rec.HasUpdate {
			logger.InfoKV(ctx, "Pending update withdrawn", "app", rec.Name, "installed", rec.Version)
		}

		rec.HasUpdate = false
		rec.UpdateURL = ""
		rec.UpdateRelease = nil
	}

	return m.records.Save(ctx, rec)
}

// Install starts installing name. Progress is read with Progress, the outcome
// with Poll or Await.
func (m *Manager) Install(ctx context.Context, name string) error {
	rec, entry, err := m.idle(name)
	if err != nil {
		return err
	}

	if rec.Installed {
		return fmt.Errorf("%s: %w", name, ErrAlreadyInstalled)
	}

	job, err := m.pipeline.Install(ctx, rec, entry)
	if err != nil {
		return err
	}

	m.jobs[name] = job

	return nil
}

// Update starts replacing name with its pending update.
func (m *Manager) Update(ctx context.Context, name string) error {
	rec, entry, err := m.idle(name)
	if err != nil {
		return err
	}

	if !rec.HasUpdate || rec.UpdateRelease == nil {
		return fmt.Errorf("%s: %w", name, ErrNoUpdate)
	}

	job, err := m.pipeline.Update(ctx, rec, entry)
	if err != nil {
		return err
	}

	m.jobs[name] = job

	return nil
}

// Uninstall removes the installation directory of name and marks it not installed.
// Uninstalling the configured runtime also clears the runtime path.
func (m *Manager) Uninstall(ctx context.Context, name string) error {
	rec, entry, err := m.idle(name)
	if err != nil {
		return err
	}

	if entry.Manager {
		return ErrManagerUninstall
	}

	if !rec.Installed {
		return fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}

	dir := m.layout.AppDir(name)
	if err = os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}

	settings := m.store.Settings()
	if entry.Runtime && settings.RuntimePath != "" && within(dir, settings.RuntimePath) {
		if err = m.store.Update(func(s *config.Settings) { s.RuntimePath = "" }); err != nil {
			return err
		}
	}

	rec.Installed = false
	rec.InstalledAsset = ""
	rec.Archive = false
	rec.Executable = ""
	rec.HasUpdate = false
	rec.UpdateURL = ""
	rec.UpdateRelease = nil

	if err = m.records.Save(ctx, rec); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Uninstalled application", "app", name)

	return nil
}

// Launch starts name with the configured runtime.
func (m *Manager) Launch(ctx context.Context, name string) (*launcher.Handle, error) {
	rec, entry, err := m.idle(name)
	if err != nil {
		return nil, err
	}

	settings := m.store.Settings()

	handle, err := m.launcher.Launch(ctx, rec, entry, settings.RuntimePath)
	if err != nil {
		if errors.Is(err, launcher.ErrMissingRuntime) {
			m.notify(missingRuntimeNotification(name))
		}

		return nil, err
	}

	m.handles[name] = handle
	m.notify(launchingNotification(name))

	return handle, nil
}

// CheckRuntime validates the configured runtime and reports the outcome as a notification too.
func (m *Manager) CheckRuntime(ctx context.Context) (string, error) {
	settings := m.store.Settings()

	build, err := launcher.CheckRuntime(ctx, settings.RuntimePath)
	m.notify(runtimeCheckNotification(build, err))

	return build, err
}

// Records returns snapshots of every loaded record ordered by name.
func (m *Manager) Records() []*app.Record {
	names := m.sortedNames()

	result := make([]*app.Record, 0, len(names))
	for _, name := range names {
		result = append(result, m.snapshot(m.apps[name]))
	}

	return result
}

// Record returns a snapshot of the record called name.
func (m *Manager) Record(name string) (*app.Record, error) {
	rec, ok := m.apps[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotLoaded)
	}

	return m.snapshot(rec), nil
}

// Progress returns the phase and progress of name's active run, or its settled state.
func (m *Manager) Progress(name string) (app.Phase, int) {
	if job, ok := m.jobs[name]; ok {
		return job.Phase(), job.Progress()
	}

	if rec, ok := m.apps[name]; ok && rec.Installed {
		return app.PhaseInstalled, 0
	}

	return app.PhaseIdle, 0
}

// Poll applies every terminal event that is ready without blocking and returns them.
func (m *Manager) Poll(ctx context.Context) []pipeline.Event {
	var events []pipeline.Event

	for _, name := range m.sortedJobs() {
		select {
		case ev, ok := <-m.jobs[name].Events():
			if !ok {
				delete(m.jobs, name)

				continue
			}

			m.apply(ctx, name, ev)
			events = append(events, ev)
		default:
		}
	}

	return events
}

// Await blocks until name's active run finishes or ctx is done.
func (m *Manager) Await(ctx context.Context, name string) (pipeline.Event, error) {
	job, ok := m.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%s: no active run: %w", name, ErrNotLoaded)
	}

	select {
	case ev, ok := <-job.Events():
		if !ok {
			delete(m.jobs, name)

			return nil, fmt.Errorf("%s: run already drained: %w", name, ErrNotLoaded)
		}

		m.apply(ctx, name, ev)

		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notifications drains the queued notifications, oldest first.
func (m *Manager) Notifications() []Notification {
	queued := m.notifications
	m.notifications = nil

	return queued
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() config.Settings {
	return m.store.Settings()
}

// UpdateSettings changes and persists the settings. A changed token reconnects to GitHub.
func (m *Manager) UpdateSettings(ctx context.Context, fn func(*config.Settings)) error {
	if err := m.store.Update(fn); err != nil {
		return err
	}

	settings := m.store.Settings()
	if settings.Token() != m.token {
		return m.connect(ctx)
	}

	return nil
}

// apply stores the final record of a run and turns the event into a notification.
func (m *Manager) apply(ctx context.Context, name string, ev pipeline.Event) {
	delete(m.jobs, name)

	if final := ev.Record(); final != nil {
		stored := final.Clone()
		stored.Phase = app.PhaseIdle
		stored.Progress = 0
		m.apps[name] = stored
	}

	switch e := ev.(type) {
	case pipeline.Installed:
		m.notify(installSucceededNotification(name))
	case pipeline.RuntimeInstalled:
		m.notify(runtimeInstalledNotification(e.Path))

		settings := m.store.Settings()
		if settings.RuntimePath == "" {
			if err := m.store.Update(func(s *config.Settings) { s.RuntimePath = e.Path }); err != nil {
				logger.ErrorKV(ctx, "Unable to store runtime path", "path", e.Path, "error", err)
			}
		}
	case pipeline.ManagerInstalled:
		m.notify(managerInstalledNotification())
	case pipeline.Failed:
		m.notify(installFailedNotification(name, e.Err))
	}
}

// idle returns the record and entry of name, rejecting busy or unknown applications.
func (m *Manager) idle(name string) (*app.Record, *manifest.Entry, error) {
	entry, err := m.catalog.Load(name)
	if err != nil {
		return nil, nil, err
	}

	rec, ok := m.apps[name]
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", name, ErrNotLoaded)
	}

	if m.busy(name) {
		return nil, nil, fmt.Errorf("%s: %w", name, ErrBusy)
	}

	return rec, entry, nil
}

func (m *Manager) busy(name string) bool {
	_, ok := m.jobs[name]

	return ok
}

// syncManager keeps the manager's own record in line with the running build.
func (m *Manager) syncManager(ctx context.Context, rec *app.Record) {
	if !rec.Manager || (rec.Installed && rec.Version == version.Short()) {
		return
	}

	rec.Installed = true
	rec.Version = version.Short()

	if release.Outdated(rec.Version, tagOf(rec.UpdateRelease)) {
		rec.HasUpdate = true
	} else {
		rec.HasUpdate = false
		rec.UpdateURL = ""
		rec.UpdateRelease = nil
	}

	if err := m.records.Save(ctx, rec); err != nil {
		logger.WarnKV(ctx, "Unable to save manager record", "error", err)
	}
}

func (m *Manager) snapshot(rec *app.Record) *app.Record {
	snap := rec.Clone()
	snap.Phase, snap.Progress = m.Progress(rec.Name)

	if h, ok := m.handles[rec.Name]; ok && h.Running() {
		snap.PID = h.PID()
	}

	return snap
}

func (m *Manager) notify(n Notification) {
	m.notifications = append(m.notifications, n)
}

// notifyGitHub turns throttling errors into notifications; others are only logged.
func (m *Manager) notifyGitHub(ctx context.Context, name string, err error) {
	switch {
	case errors.Is(err, github.ErrRateLimited):
		logger.WarnKV(ctx, "GitHub rate limit reached", "app", name, "error", err)
		m.notify(rateLimitedNotification())
	case errors.Is(err, github.ErrMalformedMetadata):
		logger.ErrorKV(ctx, "GitHub returned malformed metadata", "app", name, "error", err)
		m.notify(malformedMetadataNotification(name))
	default:
		logger.ErrorKV(ctx, "GitHub request failed", "app", name, "error", err)
	}
}

func (m *Manager) sortedNames() []string {
	names := make([]string, 0, len(m.apps))
	for name := range m.apps {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (m *Manager) sortedJobs() []string {
	names := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// isGitHubThrottle reports errors handled as "try again later" rather than failures.
func isGitHubThrottle(err error) bool {
	return errors.Is(err, github.ErrRateLimited) || errors.Is(err, github.ErrMalformedMetadata)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)

	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func tagOf(r *app.Release) string {
	if r == nil {
		return ""
	}

	return r.TagName
}
