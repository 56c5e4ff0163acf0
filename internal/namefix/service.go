// Package namefix implements NamefixService, the orchestrator that wires
// together every other component: it owns the watcher map and the
// in-flight rename reservation set, routes stable-file events through the
// profile matcher into the rename/convert/trash pipelines, and emits
// typed events describing what happened. A supervised per-directory
// watcher map with health-check restarts, built around a signal-driven
// start/stop lifecycle.
package namefix

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"namefix/internal/convert"
	nferrors "namefix/internal/errors"
	"namefix/internal/events"
	"namefix/internal/nametemplate"
	"namefix/internal/profiles"
	"namefix/internal/rename"
	"namefix/internal/trash"
	"namefix/internal/watch"
	"namefix/pkg/types"
)

// lifecycle tags NamefixService's coarse state machine:
// uninitialized -> initialized -> running <-> stopped.
type lifecycle int

const (
	lifecycleUninitialized lifecycle = iota
	lifecycleInitialized
	lifecycleRunning
	lifecycleStopped
)

// HealthCheckInterval is how often the health monitor polls active
// watchers while the service is running.
var HealthCheckInterval = 30 * time.Second

// MaxRestartAttempts is the per-directory restart budget before the
// health monitor gives up and emits a permanent-failure toast.
const MaxRestartAttempts = 3

// ConfigStore is the subset of config.Store NamefixService depends on,
// named here so the orchestrator can be tested against a fake.
type ConfigStore interface {
	Get() (types.Config, error)
	Set(types.Config) (types.Config, error)
	OnChange(func(types.Config)) func()
}

// JournalStore is the subset of journal.Store NamefixService depends on.
type JournalStore interface {
	Record(from, to string, ts int64) error
	Undo() (types.UndoResult, error)
}

// ConversionService is the subset of convert.Service NamefixService needs.
type ConversionService interface {
	CanConvert(ext string) bool
	Convert(ctx context.Context, srcPath string, opts convert.Options) (convert.Result, error)
}

// TrashService is the subset of trash.Service NamefixService needs.
type TrashService interface {
	MoveToTrash(path string) (trash.Result, error)
}

// Rename is the minimal surface Service needs from a reservation-backed
// rename helper; it is satisfied by *rename.Service.
type Rename interface {
	TargetForProfile(dir string, ctx nametemplate.Context, profile types.Profile, existsOnDisk func(string) bool) rename.Target
	Release(dir, filename string)
}

// Service is the orchestrator. It must be constructed via New and brought
// up via Init before any other method is called.
type Service struct {
	configStore ConfigStore
	journal     JournalStore
	rename      Rename
	convert     ConversionService
	trash       TrashService
	bus         *events.Bus

	mu       sync.Mutex
	state    lifecycle
	cfg      types.Config
	matcher  *profiles.Matcher
	watchers map[string]*watch.Service
	restarts map[string]int
	syncLock sync.Mutex // serializes syncWatchers
	runCtx   context.Context
	cancel   context.CancelFunc
}

// Deps bundles Service's external collaborators.
type Deps struct {
	ConfigStore ConfigStore
	Journal     JournalStore
	Rename      Rename
	Convert     ConversionService
	Trash       TrashService
	Bus         *events.Bus
}

// New constructs an uninitialized Service.
func New(deps Deps) *Service {
	return &Service{
		configStore: deps.ConfigStore,
		journal:     deps.Journal,
		rename:      deps.Rename,
		convert:     deps.Convert,
		trash:       deps.Trash,
		bus:         deps.Bus,
		watchers:    make(map[string]*watch.Service),
		restarts:    make(map[string]int),
	}
}

// Init loads configuration (merging overrides, if any), builds the
// profile matcher, and transitions the service to initialized. Init is
// idempotent: calling it again re-applies overrides but does not start
// watchers.
func (s *Service) Init(overrides *types.Config) error {
	cfg, err := s.configStore.Get()
	if err != nil {
		return err
	}
	if overrides != nil {
		cfg, err = s.configStore.Set(*overrides)
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cfg = cfg
	s.matcher = profiles.Build(cfg.Profiles)
	first := s.state == lifecycleUninitialized
	if first {
		s.state = lifecycleInitialized
	}
	s.mu.Unlock()

	// Subscribed outside s.mu and only once: the store may deliver the
	// cached value synchronously, and handleConfigChange takes s.mu.
	if first {
		s.configStore.OnChange(s.handleConfigChange)
	}
	return nil
}

func (s *Service) handleConfigChange(cfg types.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.matcher = profiles.Build(cfg.Profiles)
	running := s.state == lifecycleRunning
	s.mu.Unlock()

	s.bus.EmitConfig(cfg)
	if running {
		s.syncWatchers()
	}
	s.emitStatus()
}

// Start transitions the service to running and brings watchers in sync
// with the current config's watchDirs. Calling Start when already
// running is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.state == lifecycleUninitialized {
		s.mu.Unlock()
		panic("namefix: Start called before Init")
	}
	if s.state == lifecycleRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = lifecycleRunning
	ctx, cancel := context.WithCancel(context.Background())
	s.runCtx = ctx
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.syncWatchers(); err != nil {
		return err
	}

	go s.healthMonitor(ctx)

	s.emitStatus()
	return nil
}

// Stop cancels the health-check monitor and synchronously tears down
// every active watcher.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.state != lifecycleRunning {
		s.mu.Unlock()
		return
	}
	s.state = lifecycleStopped
	cancel := s.cancel
	s.runCtx = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.syncLock.Lock()
	s.mu.Lock()
	for dir, w := range s.watchers {
		w.Stop()
		delete(s.watchers, dir)
	}
	s.mu.Unlock()
	s.syncLock.Unlock()

	s.emitStatus()
}

// ToggleRunning starts the service if stopped, or stops it if running.
func (s *Service) ToggleRunning() error {
	s.mu.Lock()
	running := s.state == lifecycleRunning
	s.mu.Unlock()
	if running {
		s.Stop()
		return nil
	}
	return s.Start()
}

// GetStatus returns the orchestrator's current lifecycle snapshot.
func (s *Service) GetStatus() types.StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.StatusEvent{
		Running:       s.state == lifecycleRunning && len(s.watchers) > 0,
		Directories:   s.currentDirsLocked(),
		DryRun:        s.cfg.DryRun,
		LaunchOnLogin: s.cfg.LaunchOnLogin,
	}
}

func (s *Service) currentDirsLocked() []string {
	dirs := make([]string, 0, len(s.watchers))
	for dir := range s.watchers {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func (s *Service) emitStatus() {
	s.bus.EmitStatus(s.GetStatus())
}

// UndoLast delegates to the journal's LIFO undo. A failed reverse rename
// is not an error here: it comes back as types.UndoResult{OK:false,
// Reason:...}, leaving the journal entry in place for a retry. Only a
// journal I/O failure surfaces as an error.
func (s *Service) UndoLast() (types.UndoResult, error) {
	result, err := s.journal.Undo()
	if err != nil {
		return types.UndoResult{}, nferrors.Wrap(err, "undo failed")
	}
	return result, nil
}

// On{File,Status,Config,Toast} subscribe to one event family each,
// returning an unsubscribe function.
func (s *Service) OnFile(fn func(types.ServiceFileEvent)) func() { return s.bus.OnFile(fn) }
func (s *Service) OnStatus(fn func(types.StatusEvent)) func()    { return s.bus.OnStatus(fn) }
func (s *Service) OnConfig(fn func(types.Config)) func()         { return s.bus.OnConfig(fn) }
func (s *Service) OnToast(fn func(types.ToastEvent)) func()      { return s.bus.OnToast(fn) }

func absDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}
