// Package rename computes output filenames for a matched profile and
// guards against two concurrent operations picking the same target before
// either has hit disk, via an explicit in-flight reservation set rather
// than a single-shot disk check.
package rename

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"namefix/internal/nametemplate"
	"namefix/pkg/types"
)

// Target is the outcome of reserving an output name for a profile.
type Target struct {
	Filename string
	Profile  types.Profile
}

// Service holds the in-flight target reservation set. Exactly one Service
// should exist per running orchestrator; its zero value is ready to use.
type Service struct {
	mu       sync.Mutex
	inFlight map[string]bool
}

// New returns a ready-to-use Service.
func New() *Service {
	return &Service{inFlight: make(map[string]bool)}
}

// TargetForProfile expands profile's template against ctx, then reserves a
// collision-free absolute path under dir: it tries the expanded base name,
// then name_2, name_3, ... until it finds a path that is neither already
// on disk nor already reserved by another in-flight operation. The caller
// MUST call Release(dir, target.Filename) when done, success or failure.
func (s *Service) TargetForProfile(dir string, ctx nametemplate.Context, profile types.Profile, existsOnDisk func(absPath string) bool) Target {
	base := nametemplate.Expand(profile.Template, ctx)
	ext := ctx.Ext
	if !nametemplate.HasExtToken(profile.Template) {
		base += ext
	}

	filename := s.reserve(dir, base, existsOnDisk)
	return Target{Filename: filename, Profile: profile}
}

func (s *Service) reserve(dir, base string, existsOnDisk func(string) bool) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight == nil {
		s.inFlight = make(map[string]bool)
	}

	candidate := base
	for n := 2; ; n++ {
		abs := filepath.Join(dir, candidate)
		if !s.inFlight[abs] && !existsOnDisk(abs) {
			s.inFlight[abs] = true
			return candidate
		}
		candidate = stem + "_" + strconv.Itoa(n) + ext
	}
}

// Release frees a previously reserved target so later operations may reuse
// the name (or observe it now exists on disk, if the rename succeeded).
func (s *Service) Release(dir, filename string) {
	abs := filepath.Join(dir, filename)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, abs)
}

// NeedsRenameForProfile reports whether basename still needs renaming for
// profile, i.e. it does NOT already match the idempotent output shape
// that reprocessing would otherwise reproduce.
func NeedsRenameForProfile(basename string, profile types.Profile) bool {
	return !nametemplate.MatchesIdempotentShape(basename)
}
