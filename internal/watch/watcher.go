// Package watch implements the per-directory WatchService: a stable-file
// add-event source with a health signal and an error channel. One Service
// per watched directory, each with its own lifecycle and restart budget;
// NamefixService owns the map of them.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	nferrors "namefix/internal/errors"
	"namefix/internal/fssafe"
	"namefix/internal/log"
	"namefix/pkg/types"
)

// Service watches exactly one directory for newly appearing, stable,
// non-dotfile regular files and emits a types.WatchEvent for each.
type Service struct {
	dir string

	mu          sync.Mutex
	fsWatcher   *fsnotify.Watcher
	running     bool
	errHandlers []func(error)

	inFlight sync.Map // path -> struct{}, per-path re-entry guard
}

// New constructs a Service for dir. The underlying fsnotify watcher is not
// created until Start.
func New(dir string) *Service {
	return &Service{dir: dir}
}

// Dir returns the directory this Service watches.
func (s *Service) Dir() string {
	return s.dir
}

// Start begins emitting WatchEvents for newly appearing files to onAdd.
// Each candidate is gated through fssafe.IsStable before emission; events
// for directories or dotfiles are ignored. Start creates dir if it does
// not already exist.
func (s *Service) Start(ctx context.Context, onAdd func(types.WatchEvent)) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nferrors.NewFileError("watcher already running", s.dir, nferrors.WatcherFailure, nil)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.mu.Unlock()
		return nferrors.NewFileError("cannot create watch directory", s.dir, nferrors.WatcherFailure, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return nferrors.NewFileError("cannot create fsnotify watcher", s.dir, nferrors.WatcherFailure, err)
	}
	if err := fsWatcher.Add(s.dir); err != nil {
		fsWatcher.Close()
		s.mu.Unlock()
		return nferrors.NewFileError("cannot watch directory", s.dir, nferrors.WatcherFailure, err)
	}

	s.fsWatcher = fsWatcher
	s.running = true
	s.mu.Unlock()

	go s.loop(ctx, fsWatcher, onAdd)
	log.LogWithFields(log.F("directory", s.dir)).Info("watcher started")
	return nil
}

func (s *Service) loop(ctx context.Context, fsWatcher *fsnotify.Watcher, onAdd func(types.WatchEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			s.handleCandidate(ctx, event.Name, onAdd)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			s.notifyError(nferrors.NewFileError("watcher error", s.dir, nferrors.WatcherFailure, err))
		}
	}
}

func (s *Service) handleCandidate(ctx context.Context, path string, onAdd func(types.WatchEvent)) {
	base := filepath.Base(path)
	if base == "" || base[0] == '.' {
		return
	}

	if _, already := s.inFlight.LoadOrStore(path, struct{}{}); already {
		return
	}
	defer s.inFlight.Delete(path)

	info, err := os.Stat(path)
	if err != nil {
		// ENOENT here means another actor already moved/deleted the file;
		// expected, not an error.
		if os.IsPermission(err) {
			s.notifyError(nferrors.NewFileError("cannot stat candidate file", path, nferrors.FileAccessDenied, err))
		} else if !os.IsNotExist(err) {
			s.notifyError(nferrors.NewFileError("cannot stat candidate file", path, nferrors.WatcherFailure, err))
		}
		return
	}
	if info.IsDir() {
		return
	}

	stable, err := fssafe.IsStable(ctx, path)
	if err != nil {
		s.notifyError(nferrors.NewFileError("stability check failed", path, nferrors.WatcherFailure, err))
		return
	}
	if !stable {
		return
	}

	// Re-stat after the stability wait: the file may have vanished while
	// we were polling it.
	info, err = os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.notifyError(nferrors.NewFileError("cannot stat stable file", path, nferrors.WatcherFailure, err))
		}
		return
	}

	onAdd(types.WatchEvent{
		Path:        path,
		BirthtimeMs: birthtimeMs(info),
		MtimeMs:     info.ModTime().UnixMilli(),
		Size:        info.Size(),
	})
}

// Stop tears down the underlying OS watch handle. It is safe to call Stop
// on a Service that was never started or already stopped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	if err := s.fsWatcher.Close(); err != nil {
		log.LogWithFields(log.F("directory", s.dir), log.F("error", err)).Error("error closing watcher")
	}
	s.running = false
}

// IsHealthy reports whether the watcher is active and its directory is
// still accessible.
func (s *Service) IsHealthy() bool {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return false
	}
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

// OnError subscribes handler to this Service's asynchronous watcher
// errors, returning an unsubscribe function.
func (s *Service) OnError(handler func(error)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errHandlers = append(s.errHandlers, handler)
	idx := len(s.errHandlers) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.errHandlers) {
			s.errHandlers[idx] = nil
		}
	}
}

func (s *Service) notifyError(err error) {
	s.mu.Lock()
	handlers := append([]func(error){}, s.errHandlers...)
	s.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			h(err)
		}
	}
}

func birthtimeMs(info os.FileInfo) int64 {
	if bt, ok := platformBirthtime(info); ok {
		return bt.UnixMilli()
	}
	return info.ModTime().UnixMilli()
}
