// Package config implements the ConfigStore: a validated, persisted,
// subscriber-broadcasting view over namefix's JSON configuration file.
// Defaults-first, merge-on-load, full read/write/validate/broadcast store.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	nferrors "namefix/internal/errors"
	"namefix/internal/log"
	"namefix/internal/nametemplate"
	"namefix/internal/pathutils"
	"namefix/pkg/types"
)

// Store is the on-disk, cached, broadcasting configuration store. One
// Store should exist per running orchestrator; it owns its backing file
// exclusively.
type Store struct {
	path string

	mu        sync.Mutex
	cached    *types.Config
	listeners []func(types.Config)
	nextID    int
}

// New returns a Store backed by path. Nothing is read from disk until Get
// is first called.
func New(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the config file path under the resolved config
// directory (<configDir>/config.json).
func DefaultPath() (string, error) {
	dir, err := pathutils.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Get returns the current configuration. On first call it reads the
// backing file. A file that fails to parse falls back to defaults without
// overwriting the (possibly malformed, manually-recoverable) on-disk file.
// A missing file is written with defaults, since there is nothing there to
// preserve.
func (s *Store) Get() (types.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return *s.cached, nil
	}

	cfg, fileExisted, err := s.readFromDisk()
	if err != nil {
		log.Warnf("config: %v; falling back to defaults", err)
		cfg = Defaults()
		if fileExisted {
			s.cached = &cfg
			return cfg, nil
		}
	} else if !fileExisted {
		cfg = Defaults()
	}

	cfg = Validate(cfg)
	if !fileExisted {
		if err := s.writeToDisk(cfg); err != nil {
			return types.Config{}, err
		}
	}

	s.cached = &cfg
	return cfg, nil
}

func (s *Store) readFromDisk() (types.Config, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Config{}, false, nil
		}
		return types.Config{}, false, nferrors.NewConfigError("cannot read config file", s.path, nferrors.ConfigNotFound, err)
	}

	var cfg types.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return types.Config{}, true, nferrors.NewConfigError("cannot parse config file", s.path, nferrors.ConfigValidationFailure, err)
	}
	return cfg, true, nil
}

// Set merges partial into the current configuration, validates the
// result, persists it atomically, caches it, and broadcasts it to
// subscribers. partial fields at their zero value are treated as "not
// specified" and left unchanged, except where Go zero values are
// themselves meaningful overrides (callers wanting to clear a slice
// should pass an explicit empty, non-nil slice).
func (s *Store) Set(partial types.Config) (types.Config, error) {
	s.mu.Lock()

	current := types.Config{}
	if s.cached != nil {
		current = *s.cached
	} else {
		loaded, fileExisted, err := s.readFromDisk()
		if err != nil || !fileExisted {
			loaded = Defaults()
		}
		current = loaded
	}

	merged := mergeConfig(current, partial)
	validated := Validate(merged)

	if err := s.writeToDisk(validated); err != nil {
		s.mu.Unlock()
		return types.Config{}, err
	}

	s.cached = &validated
	listeners := append([]func(types.Config){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(validated)
	}
	return validated, nil
}

// OnChange subscribes fn to future config changes. If a value is already
// cached, fn is invoked immediately with it (eager delivery).
func (s *Store) OnChange(fn func(types.Config)) func() {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	idx := len(s.listeners) - 1
	cached := s.cached
	s.mu.Unlock()

	if cached != nil {
		fn(*cached)
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
		compacted := make([]func(types.Config), 0, len(s.listeners))
		for _, l := range s.listeners {
			if l != nil {
				compacted = append(compacted, l)
			}
		}
		s.listeners = compacted
	}
}

// writeToDisk persists cfg atomically: write to a temp file, rename over
// the target, then chmod 0600. Must be called with s.mu held.
func (s *Store) writeToDisk(cfg types.Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nferrors.NewConfigError("cannot create config directory", filepath.Dir(s.path), nferrors.ConfigValidationFailure, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nferrors.NewConfigError("cannot encode config", s.path, nferrors.ConfigValidationFailure, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return nferrors.NewConfigError("cannot write config", s.path, nferrors.ConfigValidationFailure, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return nferrors.NewConfigError("cannot finalize config write", s.path, nferrors.ConfigValidationFailure, err)
	}
	if err := os.Chmod(s.path, 0600); err != nil {
		return nferrors.NewConfigError("cannot set config permissions", s.path, nferrors.ConfigValidationFailure, err)
	}
	return nil
}

// Defaults returns namefix's zero-configuration starting point: no watch
// directories, dry-run on (safe by default), and the full built-in
// profile set.
func Defaults() types.Config {
	return types.Config{
		WatchDirs: []string{},
		DryRun:    true,
		Theme:     "default",
		Profiles:  nametemplate.BuiltinProfiles(),
	}
}

func mergeConfig(base, partial types.Config) types.Config {
	merged := base

	if partial.WatchDir != "" {
		merged.WatchDir = partial.WatchDir
	}
	if partial.WatchDirs != nil {
		merged.WatchDirs = partial.WatchDirs
	}
	if partial.Prefix != "" {
		merged.Prefix = partial.Prefix
	}
	if partial.Include != nil {
		merged.Include = partial.Include
	}
	if partial.Exclude != nil {
		merged.Exclude = partial.Exclude
	}
	if partial.Theme != "" {
		merged.Theme = partial.Theme
	}
	if partial.Profiles != nil {
		merged.Profiles = partial.Profiles
	}
	// Bools are merged unconditionally: Partial<Config> semantics for a
	// bool field mean the caller always intends to state its value.
	merged.DryRun = partial.DryRun
	merged.LaunchOnLogin = partial.LaunchOnLogin

	return merged
}

// Validate normalizes and migrates cfg: watchDirs are trimmed, resolved
// absolute, and deduplicated preserving insertion order; watchDir is set
// to watchDirs[0] whenever watchDirs is non-empty, and an otherwise lone
// watchDir seeds watchDirs; legacy prefix/include configs are
// migrated into synthesized profiles; and every built-in default
// profile is re-injected if missing.
func Validate(cfg types.Config) types.Config {
	out := cfg

	out.WatchDirs = normalizeDirs(cfg.WatchDirs)
	if len(out.WatchDirs) > 0 {
		out.WatchDir = out.WatchDirs[0]
	} else if out.WatchDir != "" {
		normalized, err := pathutils.Normalize(out.WatchDir)
		if err == nil && normalized != "" {
			out.WatchDirs = []string{normalized}
			out.WatchDir = normalized
		}
	}

	out.Profiles = migrateLegacyProfiles(cfg)
	out.Profiles = validateProfiles(out.Profiles)
	out.Profiles = nametemplate.EnsureBuiltins(out.Profiles)

	if out.Theme == "" {
		out.Theme = "default"
	}

	return out
}

func normalizeDirs(dirs []string) []string {
	seen := make(map[string]bool, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		normalized, err := pathutils.Normalize(d)
		if err != nil || normalized == "" {
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}

// migrateLegacyProfiles handles the migration path: a loaded config with
// no profiles but a non-empty legacy prefix/include pair synthesizes one
// rename profile per include pattern.
func migrateLegacyProfiles(cfg types.Config) []types.Profile {
	if len(cfg.Profiles) > 0 || cfg.Prefix == "" || len(cfg.Include) == 0 {
		return cfg.Profiles
	}

	synthesized := make([]types.Profile, 0, len(cfg.Include))
	for i, pattern := range cfg.Include {
		synthesized = append(synthesized, types.Profile{
			ID:       fmt.Sprintf("legacy-%d", i),
			Name:     fmt.Sprintf("Legacy: %s", pattern),
			Enabled:  true,
			Pattern:  pattern,
			Template: nametemplate.DefaultTemplate,
			Prefix:   cfg.Prefix,
			Priority: 100 + i,
			Action:   types.ActionRename,
		})
	}
	return synthesized
}

// validateProfiles drops profiles with an invalid action tag: invalid
// action values cause the whole profile to be rejected at validation,
// not coerced.
func validateProfiles(profiles []types.Profile) []types.Profile {
	out := make([]types.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.Action != "" && !types.ValidAction(p.Action) {
			log.Warnf("config: dropping profile %q with invalid action %q", p.ID, p.Action)
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
