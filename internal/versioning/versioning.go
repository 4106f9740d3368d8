// Package versioning computes the next semantic version for releases.
package versioning

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"
)

// Part selects which component of a version gets bumped.
type Part string

const (
	Major Part = "major"
	Minor Part = "minor"
	Patch Part = "patch"
)

// ErrInvalidVersion wraps every parse failure.
var ErrInvalidVersion = eris.New("invalid version")

// ParsePart validates a part name. The empty string means Patch.
func ParsePart(s string) (Part, error) {
	switch Part(strings.ToLower(strings.TrimSpace(s))) {
	case "", Patch:
		return Patch, nil
	case Minor:
		return Minor, nil
	case Major:
		return Major, nil
	default:
		return "", eris.Errorf("unknown version part %q (want major, minor or patch)", s)
	}
}

// Parse reads a strict MAJOR.MINOR.PATCH[-pre][+build] version with an
// optional leading "v".
func Parse(raw string) (*semver.Version, string, error) {
	s := strings.TrimSpace(raw)
	prefix := ""
	if strings.HasPrefix(s, "v") {
		prefix, s = "v", s[1:]
	}
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return nil, "", eris.Wrapf(ErrInvalidVersion, "%q: %v", raw, err)
	}
	return v, prefix, nil
}

// Next bumps current by part. Lower components reset to zero and build
// metadata is dropped. A pre-release bumped by patch becomes its release
// (1.2.3-rc.1 -> 1.2.3). The leading "v", if any, is kept.
func Next(current string, part Part) (string, error) {
	v, prefix, err := Parse(current)
	if err != nil {
		return "", err
	}
	var next semver.Version
	switch part {
	case Patch, "":
		next = v.IncPatch()
	case Minor:
		next = v.IncMinor()
	case Major:
		next = v.IncMajor()
	default:
		return "", eris.Errorf("unknown version part %q", part)
	}
	return prefix + next.String(), nil
}

// NextPatch is Next(current, Patch).
func NextPatch(current string) (string, error) {
	return Next(current, Patch)
}

// Extract pulls the version out of a version tool's output: the last field
// of the last non-empty line. `poetry version` prints "name 1.2.3" while
// `poetry version -s` prints just "1.2.3"; both yield "1.2.3".
func Extract(output string) (string, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		fields := strings.Fields(lines[i])
		if len(fields) == 0 {
			continue
		}
		candidate := fields[len(fields)-1]
		if _, _, err := Parse(candidate); err != nil {
			return "", err
		}
		return candidate, nil
	}
	return "", eris.Wrap(ErrInvalidVersion, "version command printed nothing")
}
