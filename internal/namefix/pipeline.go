package namefix

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"namefix/internal/convert"
	"namefix/internal/fssafe"
	"namefix/internal/log"
	"namefix/internal/nametemplate"
	"namefix/internal/profiles"
	"namefix/internal/rename"
	"namefix/pkg/types"
)

// sourceExistsRetryBudget and sourceExistsPollInterval implement the
// "verify source still exists" wait before an atomic rename (~900ms
// total, 150ms steps).
var (
	sourceExistsRetryBudget  = 900 * time.Millisecond
	sourceExistsPollInterval = 150 * time.Millisecond
)

// handleWatchEvent is the entry point for every stable WatchEvent.
// dir is the watched directory the event originated from.
func (s *Service) handleWatchEvent(dir string, ev types.WatchEvent) {
	basename := filepath.Base(ev.Path)
	ext := strings.ToLower(filepath.Ext(basename))

	s.mu.Lock()
	matcher := s.matcher
	dryRun := s.cfg.DryRun
	prefix := s.cfg.Prefix
	include := s.cfg.Include
	exclude := s.cfg.Exclude
	s.mu.Unlock()

	profile := matcher.Match(basename)
	if profile == nil {
		// Fall through to the legacy include/exclude pipeline, kept for
		// migration compatibility with configs that predate profiles.
		if !profiles.MatchLegacy(basename, include, exclude) {
			return
		}
		legacy := legacyProfile(prefix)
		profile = &legacy
	}

	birthtime := time.UnixMilli(ev.BirthtimeMs)
	ctx := context.Background()

	switch profile.EffectiveAction() {
	case types.ActionRename:
		s.runRenamePipeline(ctx, dir, ev.Path, basename, ext, birthtime, *profile, dryRun)
	case types.ActionConvert:
		s.runConvertPipeline(ctx, dir, ev.Path, basename, ext, birthtime, *profile, dryRun, false)
	case types.ActionRenameConvert:
		s.runConvertPipeline(ctx, dir, ev.Path, basename, ext, birthtime, *profile, dryRun, true)
	}
}

// legacyProfile synthesizes the fixed rename profile the pre-profiles
// pipeline applied: prefix + datetime, no conversion.
func legacyProfile(prefix string) types.Profile {
	return types.Profile{
		ID:       "legacy",
		Name:     "legacy",
		Enabled:  true,
		Template: "<prefix>_<datetime>",
		Prefix:   prefix,
		Action:   types.ActionRename,
	}
}

func (s *Service) runRenamePipeline(ctx context.Context, dir, srcPath, basename, ext string, birthtime time.Time, profile types.Profile, dryRun bool) {
	if !rename.NeedsRenameForProfile(basename, profile) {
		s.emitFile(types.ServiceFileEvent{Kind: types.FileEventSkipped, File: srcPath, Directory: dir, Message: "idempotent"})
		return
	}

	tmplCtx := nametemplate.NewContext(srcPath, birthtime, profile.Prefix)
	target := s.rename.TargetForProfile(dir, tmplCtx, profile, s.pathExists)
	defer s.rename.Release(dir, target.Filename)

	destPath := filepath.Join(dir, target.Filename)

	if dryRun {
		s.emitFile(types.ServiceFileEvent{Kind: types.FileEventPreview, File: srcPath, Directory: dir, Target: target.Filename})
		return
	}

	if !s.waitForSource(ctx, srcPath) {
		log.Warnf("namefix: source vanished before rename: %s", srcPath)
		return
	}

	if err := s.atomicRename(srcPath, destPath); err != nil {
		s.emitFile(types.ServiceFileEvent{Kind: types.FileEventError, File: srcPath, Directory: dir, Message: err.Error()})
		return
	}

	s.recordJournal(srcPath, destPath)
	s.emitFile(types.ServiceFileEvent{Kind: types.FileEventApplied, File: srcPath, Directory: dir, Target: target.Filename})
}

func (s *Service) runConvertPipeline(ctx context.Context, dir, srcPath, basename, ext string, birthtime time.Time, profile types.Profile, dryRun, chainRename bool) {
	if !s.convert.CanConvert(ext) {
		s.emitFile(types.ServiceFileEvent{Kind: types.FileEventSkipped, File: srcPath, Directory: dir, Message: "unsupported format"})
		return
	}

	stem := strings.TrimSuffix(basename, filepath.Ext(basename))
	if dryRun {
		s.emitFile(types.ServiceFileEvent{
			Kind: types.FileEventPreview, File: srcPath, Directory: dir,
			Target: stem + ".jpeg",
		})
		return
	}

	result, err := s.convert.Convert(ctx, srcPath, convert.Options{OutputFormat: "jpeg"})
	if err != nil {
		s.emitFile(types.ServiceFileEvent{Kind: types.FileEventConvertError, File: srcPath, Directory: dir, Message: err.Error()})
		return
	}

	// Converted-before-trashed ordering is load-bearing: the journal must
	// see the conversion before the original disappears.
	s.emitFile(types.ServiceFileEvent{Kind: types.FileEventConverted, File: srcPath, Directory: dir, Target: result.DestPath, Format: result.Format})
	s.recordJournal(srcPath, result.DestPath)

	finalPath := result.DestPath
	if chainRename {
		finalPath = s.runChainedRename(ctx, dir, result.DestPath, profile, birthtime)
	}

	s.trashOriginal(srcPath, finalPath, dir)
}

// runChainedRename applies the rename pipeline to a freshly converted
// file, reserving the converted extension's target separately from the
// original source's.
func (s *Service) runChainedRename(ctx context.Context, dir, convertedPath string, profile types.Profile, birthtime time.Time) string {
	tmplCtx := nametemplate.NewContext(convertedPath, birthtime, profile.Prefix)
	target := s.rename.TargetForProfile(dir, tmplCtx, profile, s.pathExists)
	defer s.rename.Release(dir, target.Filename)

	destPath := filepath.Join(dir, target.Filename)
	if !s.waitForSource(ctx, convertedPath) {
		log.Warnf("namefix: converted file vanished before rename: %s", convertedPath)
		return convertedPath
	}

	if err := s.atomicRename(convertedPath, destPath); err != nil {
		s.emitFile(types.ServiceFileEvent{Kind: types.FileEventError, File: convertedPath, Directory: dir, Message: err.Error()})
		return convertedPath
	}

	s.recordJournal(convertedPath, destPath)
	s.emitFile(types.ServiceFileEvent{Kind: types.FileEventApplied, File: convertedPath, Directory: dir, Target: target.Filename})
	return destPath
}

func (s *Service) trashOriginal(srcPath, convertedPath, dir string) {
	if srcPath == convertedPath {
		return
	}
	result, err := s.trash.MoveToTrash(srcPath)
	if err != nil {
		s.bus.EmitToast(types.ToastEvent{Level: types.ToastWarn, Message: "could not trash original: " + err.Error()})
		return
	}
	if !result.Success {
		s.bus.EmitToast(types.ToastEvent{Level: types.ToastWarn, Message: "could not trash original: " + result.Error})
		return
	}
	s.emitFile(types.ServiceFileEvent{Kind: types.FileEventTrashed, File: srcPath, Directory: dir})
}

func (s *Service) emitFile(e types.ServiceFileEvent) {
	e.Timestamp = time.Now()
	s.bus.EmitFile(e)
}

func (s *Service) recordJournal(from, to string) {
	if err := s.journal.Record(from, to, time.Now().UnixMilli()); err != nil {
		log.Warnf("namefix: failed to record journal entry %s -> %s: %v", from, to, err)
	}
}

func (s *Service) pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *Service) atomicRename(from, to string) error {
	return fssafe.AtomicRename(from, to)
}

// waitForSource polls for srcPath's existence up to sourceExistsRetryBudget,
// in sourceExistsPollInterval steps, before committing to a rename.
func (s *Service) waitForSource(ctx context.Context, srcPath string) bool {
	deadline := time.Now().Add(sourceExistsRetryBudget)
	for {
		if s.pathExists(srcPath) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(sourceExistsPollInterval):
		}
	}
}
