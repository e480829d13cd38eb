package db

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	DefaultVersionTagPrefix = "metaflow_version:"
	DefaultMinimumVersion   = "2.0.5"
)

// VersionGate decides whether a client reports heartbeats, by its version in system tags.
//
// Records created by clients below the minimum version get no heartbeat at creation,
// so readers can tell "no heartbeat" from "heartbeat stopped".
type VersionGate struct {
	// system tag prefix followed by a client version. e.g. "metaflow_version:"
	Prefix string

	// minimum client version emitting heartbeats. e.g. "2.0.5"
	Minimum string
}

// DefaultVersionGate returns a gate with default prefix and minimum version.
func DefaultVersionGate() VersionGate {
	return VersionGate{Prefix: DefaultVersionTagPrefix, Minimum: DefaultMinimumVersion}
}

// Capable tells that some version tag in systemTags is at least Minimum.
//
// Tags with an unparsable version are ignored.
func (g VersionGate) Capable(systemTags TagSet) bool {
	min, ok := NormalizeVersion(g.Minimum)
	if !ok {
		return false
	}
	for _, t := range systemTags {
		raw, found := strings.CutPrefix(t, g.Prefix)
		if !found {
			continue
		}
		v, ok := NormalizeVersion(raw)
		if !ok {
			continue
		}
		if 0 <= semver.Compare(v, min) {
			return true
		}
	}
	return false
}

// Initial returns the heartbeat timestamp (ms epoch) a new run or task starts with.
//
// It is nil unless the client is Capable.
func (g VersionGate) Initial(systemTags TagSet, now time.Time) *int64 {
	if !g.Capable(systemTags) {
		return nil
	}
	ms := now.UnixMilli()
	return &ms
}

// NormalizeVersion converts a client version into canonical semver.
//
// Leading numeric components (up to 3) make major.minor.patch; missing ones are 0.
// Local build labels after "+" are dropped.
// Suffixes starting with a/b/c/rc/alpha/beta/pre/preview/dev are prereleases.
// Other suffixes (".postN", "-git...") are builds after the release, and sort
// above the release and below its next patch version.
//
//	"2.0.5"         -> "v2.0.5"
//	"2.1"           -> "v2.1.0"
//	"2.0.5rc1"      -> "v2.0.5-rc1"
//	"2.0.5+netflix" -> "v2.0.5"
//	"2.0.5.post1"   -> "v2.0.6-0.post.1"
//
// It returns false when v does not start with a number.
func NormalizeVersion(v string) (string, bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	v, _, _ = strings.Cut(v, "+")

	end := strings.IndexFunc(v, func(r rune) bool {
		return r != '.' && (r < '0' || '9' < r)
	})
	numeric, suffix := v, ""
	if 0 <= end {
		numeric, suffix = v[:end], v[end:]
	}

	components := []string{}
	for _, c := range strings.Split(numeric, ".") {
		if c == "" {
			break
		}
		components = append(components, c)
	}
	if len(components) == 0 {
		return "", false
	}
	for len(components) < 3 {
		components = append(components, "0")
	}
	components = components[:3]
	if !semver.IsValid("v" + strings.Join(components, ".")) {
		return "", false
	}

	suffix = strings.ToLower(strings.TrimLeft(suffix, ".-_"))
	if suffix == "" {
		return semver.Canonical("v" + strings.Join(components, ".")), true
	}

	label := suffix[:len(suffix)-len(strings.TrimLeftFunc(suffix, isLetter))]
	var prerelease []string
	switch label {
	case "a", "alpha", "b", "beta", "c", "rc", "pre", "preview", "dev":
		prerelease = identifiers(suffix)
	default:
		// a build after the release: the next patch, with the lowest prerelease.
		patch, err := strconv.ParseInt(components[2], 10, 64)
		if err != nil {
			return "", false
		}
		components[2] = strconv.FormatInt(patch+1, 10)

		rest := suffix
		number := "0"
		if label == "post" || label == "rev" || label == "r" {
			rest = strings.TrimLeft(rest[len(label):], ".-_")
			digits := rest[:len(rest)-len(strings.TrimLeftFunc(rest, isDigit))]
			if digits != "" {
				number = digits
				rest = rest[len(digits):]
			}
		}
		prerelease = append([]string{"0", "post"}, identifiers(number)...)
		prerelease = append(prerelease, identifiers(rest)...)
	}

	canonical := "v" + strings.Join(components, ".")
	if len(prerelease) != 0 {
		canonical += "-" + strings.Join(prerelease, ".")
	}
	if !semver.IsValid(canonical) {
		return "", false
	}
	return semver.Canonical(canonical), true
}

func isLetter(r rune) bool {
	return 'a' <= r && r <= 'z'
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

// identifiers splits s into semver prerelease identifiers.
//
// Characters other than lowercase letters and digits separate identifiers.
// Numeric identifiers lose their leading zeros.
func identifiers(s string) []string {
	ids := strings.FieldsFunc(s, func(r rune) bool {
		return !isLetter(r) && !isDigit(r)
	})
	for i, id := range ids {
		if strings.TrimLeftFunc(id, isDigit) != "" {
			continue
		}
		if trimmed := strings.TrimLeft(id, "0"); trimmed != "" {
			ids[i] = trimmed
		} else {
			ids[i] = "0"
		}
	}
	return ids
}
