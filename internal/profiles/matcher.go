// Package profiles compiles a Config's profile list into an ordered
// matcher, mixing gobwas/glob and regexp matchers behind one interface,
// narrowed to first-match-wins over a priority-sorted list.
package profiles

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"namefix/internal/log"
	"namefix/pkg/types"
)

type compiled struct {
	profile types.Profile
	test    func(basename string) bool
}

// Matcher is an immutable, priority-ordered view over a profile list built
// for fast first-match-wins lookups. Rebuild (via Build) whenever the
// underlying profile list changes.
type Matcher struct {
	entries []compiled
}

// Build filters profiles to enabled ones, sorts them ascending by priority
// (stable, so equal priorities keep input order), and compiles a matcher
// for each. Profiles whose regex fails to compile are skipped, not fatal.
func Build(profileList []types.Profile) *Matcher {
	enabled := make([]types.Profile, 0, len(profileList))
	for _, p := range profileList {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}

	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})

	entries := make([]compiled, 0, len(enabled))
	for _, p := range enabled {
		test, err := compileTest(p)
		if err != nil {
			log.Warnf("profiles: skipping %q, pattern %q failed to compile: %v", p.ID, p.Pattern, err)
			continue
		}
		entries = append(entries, compiled{profile: p, test: test})
	}

	return &Matcher{entries: entries}
}

func compileTest(p types.Profile) (func(string) bool, error) {
	if p.IsRegex {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, err
		}
		return re.MatchString, nil
	}

	g, err := glob.Compile(strings.ToLower(p.Pattern))
	if err != nil {
		return nil, err
	}
	return func(basename string) bool {
		return g.Match(strings.ToLower(basename))
	}, nil
}

// Match returns the first profile (in priority order) whose pattern
// matches basename, or nil for dotfiles and non-matches.
func (m *Matcher) Match(basename string) *types.Profile {
	if isDotfile(basename) {
		return nil
	}
	for _, c := range m.entries {
		if c.test(basename) {
			p := c.profile
			return &p
		}
	}
	return nil
}

// Test reports whether Match would return a non-nil profile for basename.
func (m *Matcher) Test(basename string) bool {
	return m.Match(basename) != nil
}

func isDotfile(basename string) bool {
	base := filepath.Base(basename)
	return strings.HasPrefix(base, ".")
}

// MatchLegacy reports whether basename matches the pre-profiles
// include/exclude pipeline: at least one include glob matches and no
// exclude glob matches. Dotfiles never match. Invalid globs are skipped
// with a warning rather than treated as fatal, same as Build.
func MatchLegacy(basename string, include, exclude []string) bool {
	if isDotfile(basename) || len(include) == 0 {
		return false
	}

	lower := strings.ToLower(basename)

	included := false
	for _, pattern := range include {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			log.Warnf("profiles: skipping invalid legacy include pattern %q: %v", pattern, err)
			continue
		}
		if g.Match(lower) {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for _, pattern := range exclude {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			log.Warnf("profiles: skipping invalid legacy exclude pattern %q: %v", pattern, err)
			continue
		}
		if g.Match(lower) {
			return false
		}
	}
	return true
}
