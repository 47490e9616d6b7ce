// Package github talks to the GitHub REST API through go-github.
//
// It fetches repository metadata, follows the releases URL template the
// metadata advertises, streams asset downloads and classifies rate-limit
// responses so callers can back off instead of failing hard.
package github
