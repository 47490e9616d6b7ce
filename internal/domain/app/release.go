package app

import "strings"

// Asset is one downloadable file of a release.
type Asset struct {
	// Name is the file name, e.g. "BeatMaker-1.2.0.zip".
	Name string `json:"name"`
	// Size is the file size in bytes as reported by GitHub.
	Size int64 `json:"size"`
	// DownloadURL is the browser download URL.
	DownloadURL string `json:"browser_download_url"`
}

// FileName returns Name, falling back to the last path segment of the download URL.
func (a *Asset) FileName() string {
	if a.Name != "" {
		return a.Name
	}

	if i := strings.LastIndex(a.DownloadURL, "/"); i >= 0 {
		return a.DownloadURL[i+1:]
	}

	return a.DownloadURL
}

// Release describes one GitHub release.
type Release struct {
	TagName    string  `json:"tag_name"`
	Prerelease bool    `json:"prerelease"`
	ID         int64   `json:"id"`
	Assets     []Asset `json:"assets"`
}

// Clone returns a deep copy of the release.
func (r *Release) Clone() *Release {
	if r == nil {
		return nil
	}

	cloned := *r
	cloned.Assets = append([]Asset(nil), r.Assets...)

	return &cloned
}

// Metadata is the subset of the repository payload the manager keeps.
type Metadata struct {
	// Description is shown next to the application.
	Description string `json:"description"`
	// ReleasesURL is the releases URL template ending in "{/id}".
	ReleasesURL string `json:"releases_url"`
}
