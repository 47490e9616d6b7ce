package app

// Phase is the pipeline state of an application.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDownloading
	PhaseExtracting
	PhaseFinalizing
	PhaseInstalled
	PhaseFailed
)

var phaseNames = [...]string{"idle", "downloading", "extracting", "finalizing", "installed", "failed"}

// String implements fmt.Stringer.
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}

	return phaseNames[p]
}

// Active reports whether a pipeline is between start and its terminal state.
func (p Phase) Active() bool {
	return p == PhaseDownloading || p == PhaseExtracting || p == PhaseFinalizing
}

// Record is the persisted state of one managed application.
// Fields tagged `json:"-"` are transient and filled in by the manager.
type Record struct {
	// Installed is true once a pipeline run finished successfully.
	Installed bool `json:"installed"`
	// Name is the catalog key and display name.
	Name string `json:"name"`
	// Repository is the GitHub "owner/repo" identifier.
	Repository string `json:"github_repo"`
	// DataPath is the location of this record's file.
	DataPath string `json:"path"`
	// Version is the installed (or, before install, the resolved) release tag.
	Version string `json:"version"`
	// Metadata is the last fetched repository metadata.
	Metadata Metadata `json:"github_data"`
	// Release is the last fetched release.
	Release *Release `json:"release_data,omitempty"`
	// HasUpdate is set when a newer release than Version exists.
	HasUpdate bool `json:"has_update"`
	// UpdateURL is the releases API URL of the pending update, if any.
	UpdateURL string `json:"update_url,omitempty"`
	// UpdateRelease is the pending update's release.
	UpdateRelease *Release `json:"update_release,omitempty"`
	// Launchable, Runtime and Manager are copied from the manifest entry.
	Launchable bool `json:"launchable"`
	Runtime    bool `json:"runtime"`
	Manager    bool `json:"manager"`
	// InstalledAsset is the file name of the installed artifact.
	InstalledAsset string `json:"installed_asset,omitempty"`
	// Archive tells whether InstalledAsset was unpacked into the application directory.
	Archive bool `json:"archive,omitempty"`
	// Executable is the path launched (or handed to the runtime) for this application.
	Executable string `json:"executable,omitempty"`

	// Phase is the current pipeline phase.
	Phase Phase `json:"-"`
	// Progress is the current pipeline progress in percent.
	Progress int `json:"-"`
	// PID is the process id of the last launched child, zero if none.
	PID int `json:"-"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cloned := *r
	cloned.Release = r.Release.Clone()
	cloned.UpdateRelease = r.UpdateRelease.Clone()

	return &cloned
}

// TargetRelease is the release an install or update should use:
// the pending update if one exists, otherwise the last fetched release.
func (r *Record) TargetRelease() *Release {
	if r.HasUpdate && r.UpdateRelease != nil {
		return r.UpdateRelease
	}

	return r.Release
}
