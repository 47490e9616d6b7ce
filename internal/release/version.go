package release

import (
	"strings"

	"github.com/blang/semver"
)

// ParseTag converts a release tag such as "v1.2.3" or "release-2.0" into a version.
// Tags that do not parse yield 0.0.0, which is older than every valid version.
func ParseTag(tag string) semver.Version {
	cleaned := strings.TrimLeftFunc(tag, func(r rune) bool {
		return r < '0' || r > '9'
	})

	v, err := semver.ParseTolerant(cleaned)
	if err != nil {
		return semver.Version{}
	}

	return v
}

// Outdated reports whether candidate is strictly newer than current.
func Outdated(current, candidate string) bool {
	return ParseTag(candidate).GT(ParseTag(current))
}
