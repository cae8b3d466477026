package model

import (
	"regexp"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
	"golang.org/x/mod/semver"
)

// TagRefPrefix is the git ref prefix of tag pushes
const TagRefPrefix = "refs/tags/"

var versionTagPattern = regexp.MustCompile(`^v[0-9]+(\.[0-9]+)*$`)

// Tag is a release tag such as "v1.2.3"
type Tag string

// ParseTag accepts either a bare tag name or a full "refs/tags/..." ref
func ParseTag(s string) (Tag, error) {
	name := strings.TrimPrefix(s, TagRefPrefix)
	tag := Tag(name)
	if !tag.IsVersion() {
		return "", goerr.New("tag is not a version tag", goerr.V("tag", s), goerr.T(types.ErrInvalidTag))
	}
	return tag, nil
}

// IsVersion reports whether the tag is "v" followed by a dotted numeric version
func (t Tag) IsVersion() bool {
	return versionTagPattern.MatchString(string(t))
}

func (t Tag) String() string { return string(t) }

// semver returns the canonical form of the first three components.
// semver rejects more than three, so the rest are ordered by extraParts.
func (t Tag) semver() string {
	parts := t.parts()
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return semver.Canonical("v" + strings.Join(parts, "."))
}

func (t Tag) parts() []string {
	return strings.Split(strings.TrimPrefix(string(t), "v"), ".")
}

// Compare orders tags by version. Missing components count as zero and
// "v1.2" sorts just below "v1.2.0". It returns -1, 0 or +1.
func (t Tag) Compare(other Tag) int {
	if c := semver.Compare(t.semver(), other.semver()); c != 0 {
		return c
	}
	if c := compareExtraParts(t.parts(), other.parts()); c != 0 {
		return c
	}
	return strings.Compare(string(t), string(other))
}

// compareExtraParts compares the components after the third one
// numerically. Components are digit strings of any length.
func compareExtraParts(a, b []string) int {
	n := max(len(a), len(b))
	for i := 3; i < n; i++ {
		if c := compareNumeric(partAt(a, i), partAt(b, i)); c != 0 {
			return c
		}
	}
	return 0
}

func partAt(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return "0"
}

func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// VersionTags filters names down to version tags sorted newest first
func VersionTags(names []string) []Tag {
	var tags []Tag
	for _, name := range names {
		tag := Tag(strings.TrimSpace(name))
		if tag.IsVersion() {
			tags = append(tags, tag)
		}
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Compare(tags[j]) > 0
	})
	return tags
}

// PreviousTag returns the newest tag older than target, or "" when target
// is the first release.
func PreviousTag(tags []Tag, target Tag) Tag {
	var prev Tag
	for _, tag := range tags {
		if tag.Compare(target) >= 0 {
			continue
		}
		if prev == "" || tag.Compare(prev) > 0 {
			prev = tag
		}
	}
	return prev
}
