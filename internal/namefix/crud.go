package namefix

import (
	"sort"

	nferrors "namefix/internal/errors"
	"namefix/pkg/types"
)

// GetProfiles returns the current config's profile list.
func (s *Service) GetProfiles() []types.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Profile{}, s.cfg.Profiles...)
}

// GetProfile returns the profile with the given id, if any.
func (s *Service) GetProfile(id string) (types.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.cfg.Profiles {
		if p.ID == id {
			return p, true
		}
	}
	return types.Profile{}, false
}

// SetProfile inserts or replaces the profile with the given id and
// persists the result. A profile with an unrecognized action tag is
// rejected outright rather than silently dropped at validation time.
func (s *Service) SetProfile(p types.Profile) (types.Config, error) {
	if p.Action != "" && !types.ValidAction(p.Action) {
		return types.Config{}, nferrors.NewConfigError("profile has invalid action", p.ID, nferrors.InvalidConfig, nil)
	}

	s.mu.Lock()
	profiles := append([]types.Profile{}, s.cfg.Profiles...)
	s.mu.Unlock()

	replaced := false
	for i, existing := range profiles {
		if existing.ID == p.ID {
			profiles[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		profiles = append(profiles, p)
	}

	return s.configStore.Set(types.Config{Profiles: profiles})
}

// DeleteProfile removes the profile with the given id, if present.
func (s *Service) DeleteProfile(id string) (types.Config, error) {
	s.mu.Lock()
	profiles := make([]types.Profile, 0, len(s.cfg.Profiles))
	for _, p := range s.cfg.Profiles {
		if p.ID != id {
			profiles = append(profiles, p)
		}
	}
	s.mu.Unlock()
	return s.configStore.Set(types.Config{Profiles: profiles})
}

// ToggleProfile flips the Enabled flag on the profile with the given id.
func (s *Service) ToggleProfile(id string) (types.Config, error) {
	p, ok := s.GetProfile(id)
	if !ok {
		return types.Config{}, nferrors.NewProfileError("no such profile", id, nferrors.ProfileNotFound, nil)
	}
	p.Enabled = !p.Enabled
	return s.SetProfile(p)
}

// ReorderProfiles assigns ascending priorities to profiles in the order
// their ids appear in orderedIDs; ids not present keep their existing
// priority, sorted after the reordered ones.
func (s *Service) ReorderProfiles(orderedIDs []string) (types.Config, error) {
	s.mu.Lock()
	profiles := append([]types.Profile{}, s.cfg.Profiles...)
	s.mu.Unlock()

	rank := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		rank[id] = i
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		ri, iok := rank[profiles[i].ID]
		rj, jok := rank[profiles[j].ID]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		default:
			return profiles[i].Priority < profiles[j].Priority
		}
	})

	for i := range profiles {
		profiles[i].Priority = i
	}

	return s.configStore.Set(types.Config{Profiles: profiles})
}

// AddWatchDir appends dir to the watched directory set (deduplicated by
// ConfigStore.Set's validation).
func (s *Service) AddWatchDir(dir string) (types.Config, error) {
	s.mu.Lock()
	dirs := append([]string{}, s.cfg.WatchDirs...)
	s.mu.Unlock()
	dirs = append(dirs, absDir(dir))
	return s.configStore.Set(types.Config{WatchDirs: dirs})
}

// RemoveWatchDir removes dir from the watched directory set.
func (s *Service) RemoveWatchDir(dir string) (types.Config, error) {
	target := absDir(dir)
	s.mu.Lock()
	dirs := make([]string, 0, len(s.cfg.WatchDirs))
	for _, d := range s.cfg.WatchDirs {
		if d != target {
			dirs = append(dirs, d)
		}
	}
	s.mu.Unlock()
	return s.configStore.Set(types.Config{WatchDirs: dirs})
}

// SetPrimaryWatchDir moves dir to the front of the watched directory set,
// adding it if absent.
func (s *Service) SetPrimaryWatchDir(dir string) (types.Config, error) {
	target := absDir(dir)

	s.mu.Lock()
	existing := append([]string{}, s.cfg.WatchDirs...)
	s.mu.Unlock()

	dirs := make([]string, 0, len(existing)+1)
	dirs = append(dirs, target)
	for _, d := range existing {
		if d != target {
			dirs = append(dirs, d)
		}
	}
	return s.configStore.Set(types.Config{WatchDirs: dirs})
}

// SetWatchDirs replaces the watched directory set outright.
func (s *Service) SetWatchDirs(dirs []string) (types.Config, error) {
	abs := make([]string, len(dirs))
	for i, d := range dirs {
		abs[i] = absDir(d)
	}
	return s.configStore.Set(types.Config{WatchDirs: abs})
}

// SetConfig merges partial into the current config via the ConfigStore.
func (s *Service) SetConfig(partial types.Config) (types.Config, error) {
	return s.configStore.Set(partial)
}

// SetDryRun toggles dry-run mode.
func (s *Service) SetDryRun(dryRun bool) (types.Config, error) {
	return s.configStore.Set(types.Config{DryRun: dryRun})
}

// SetLaunchOnLogin toggles the launch-at-login preference.
func (s *Service) SetLaunchOnLogin(enabled bool) (types.Config, error) {
	return s.configStore.Set(types.Config{LaunchOnLogin: enabled})
}
