package namefix

import (
	"context"
	"strconv"
	"time"

	"namefix/internal/watch"
	"namefix/pkg/types"
)

// syncWatchers reconciles the watcher map against the desired set
// (config.watchDirs while running, empty while stopped). It is strictly
// serialized by syncLock so overlapping config changes never race each
// other.
func (s *Service) syncWatchers() error {
	s.syncLock.Lock()
	defer s.syncLock.Unlock()

	s.mu.Lock()
	running := s.state == lifecycleRunning
	var desired []string
	if running {
		desired = append(desired, s.cfg.WatchDirs...)
	}
	desiredSet := make(map[string]bool, len(desired))
	for _, d := range desired {
		desiredSet[d] = true
	}

	var toStop []*watch.Service
	for dir, w := range s.watchers {
		if !desiredSet[dir] {
			toStop = append(toStop, w)
			delete(s.watchers, dir)
			delete(s.restarts, dir)
		}
	}
	var toStart []string
	for _, dir := range desired {
		if _, exists := s.watchers[dir]; !exists {
			toStart = append(toStart, dir)
		}
	}
	s.mu.Unlock()

	// Removed watchers are stopped one after another, and all of them are
	// stopped before any new watcher starts. Stop returns no error.
	for _, w := range toStop {
		w.Stop()
	}

	for _, dir := range toStart {
		if err := s.startWatcher(dir); err != nil {
			s.bus.EmitToast(types.ToastEvent{
				Level:   types.ToastWarn,
				Message: "could not start watcher for " + dir + ": " + err.Error(),
			})
		}
	}

	return nil
}

func (s *Service) startWatcher(dir string) error {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	w := watch.New(dir)
	w.OnError(func(err error) {
		s.bus.EmitToast(types.ToastEvent{Level: types.ToastWarn, Message: err.Error()})
	})

	if err := w.Start(ctx, func(ev types.WatchEvent) { s.handleWatchEvent(dir, ev) }); err != nil {
		return err
	}

	s.mu.Lock()
	s.watchers[dir] = w
	s.mu.Unlock()
	return nil
}

// healthMonitor runs every HealthCheckInterval while the service is
// running: for each active watcher, it checks IsHealthy and directory
// accessibility, restarting failures up to MaxRestartAttempts times
// before giving up permanently on that directory.
func (s *Service) healthMonitor(ctx context.Context) {
	ticker := time.NewTicker(HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkWatcherHealth()
		}
	}
}

func (s *Service) checkWatcherHealth() {
	s.mu.Lock()
	snapshot := make(map[string]*watch.Service, len(s.watchers))
	for dir, w := range s.watchers {
		snapshot[dir] = w
	}
	s.mu.Unlock()

	for dir, w := range snapshot {
		if w.IsHealthy() {
			s.mu.Lock()
			s.restarts[dir] = 0
			s.mu.Unlock()
			continue
		}
		s.restartWatcher(dir, w)
	}
}

func (s *Service) restartWatcher(dir string, w *watch.Service) {
	s.mu.Lock()
	attempts := s.restarts[dir]
	s.mu.Unlock()

	if attempts >= MaxRestartAttempts {
		s.bus.EmitToast(types.ToastEvent{
			Level:   types.ToastError,
			Message: "watcher for " + dir + " failed permanently after " + strconv.Itoa(attempts) + " restart attempts",
		})
		return
	}

	w.Stop()
	if err := s.startWatcher(dir); err != nil {
		s.mu.Lock()
		s.restarts[dir] = attempts + 1
		s.mu.Unlock()
		s.bus.EmitToast(types.ToastEvent{
			Level:   types.ToastWarn,
			Message: "watcher restart failed for " + dir + ": " + err.Error(),
		})
		return
	}

	s.mu.Lock()
	s.restarts[dir] = 0
	s.mu.Unlock()
}

