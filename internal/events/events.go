// Package events implements namefix's typed pub/sub bus: a synchronous,
// single-process dispatcher keyed by event kind, with a typed-handler
// registry per kind rather than one hardcoded channel type.
package events

import (
	"sync"

	"namefix/internal/log"
	"namefix/pkg/types"
)

// Unsubscribe removes a previously registered handler.
type Unsubscribe func()

// Bus is namefix's single-process typed event bus. Handlers for a given
// key are invoked synchronously, in registration order; a panic in one
// handler is recovered and logged so it cannot prevent delivery to the
// rest.
type Bus struct {
	mu             sync.Mutex
	fileHandlers   []*fileHandler
	statusHandlers []*statusHandler
	configHandlers []*configHandler
	toastHandlers  []*toastHandler
	nextID         int
}

type fileHandler struct {
	id int
	fn func(types.ServiceFileEvent)
}

type statusHandler struct {
	id int
	fn func(types.StatusEvent)
}

type configHandler struct {
	id int
	fn func(types.Config)
}

type toastHandler struct {
	id int
	fn func(types.ToastEvent)
}

// New returns a ready-to-use Bus.
func New() *Bus {
	return &Bus{}
}

// OnFile subscribes to file events.
func (b *Bus) OnFile(fn func(types.ServiceFileEvent)) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.fileHandlers = append(b.fileHandlers, &fileHandler{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.fileHandlers = removeByID(b.fileHandlers, id, func(h *fileHandler) int { return h.id })
	}
}

// OnStatus subscribes to status events.
func (b *Bus) OnStatus(fn func(types.StatusEvent)) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.statusHandlers = append(b.statusHandlers, &statusHandler{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.statusHandlers = removeByID(b.statusHandlers, id, func(h *statusHandler) int { return h.id })
	}
}

// OnConfig subscribes to config change events.
func (b *Bus) OnConfig(fn func(types.Config)) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.configHandlers = append(b.configHandlers, &configHandler{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.configHandlers = removeByID(b.configHandlers, id, func(h *configHandler) int { return h.id })
	}
}

// OnToast subscribes to toast notification events.
func (b *Bus) OnToast(fn func(types.ToastEvent)) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.toastHandlers = append(b.toastHandlers, &toastHandler{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.toastHandlers = removeByID(b.toastHandlers, id, func(h *toastHandler) int { return h.id })
	}
}

// EmitFile dispatches a file event to every current subscriber.
func (b *Bus) EmitFile(e types.ServiceFileEvent) {
	b.mu.Lock()
	handlers := append([]*fileHandler{}, b.fileHandlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		dispatch(func() { h.fn(e) })
	}
}

// EmitStatus dispatches a status event to every current subscriber.
func (b *Bus) EmitStatus(e types.StatusEvent) {
	b.mu.Lock()
	handlers := append([]*statusHandler{}, b.statusHandlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		dispatch(func() { h.fn(e) })
	}
}

// EmitConfig dispatches a config change event to every current subscriber.
func (b *Bus) EmitConfig(e types.Config) {
	b.mu.Lock()
	handlers := append([]*configHandler{}, b.configHandlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		dispatch(func() { h.fn(e) })
	}
}

// EmitToast dispatches a toast event to every current subscriber.
func (b *Bus) EmitToast(e types.ToastEvent) {
	b.mu.Lock()
	handlers := append([]*toastHandler{}, b.toastHandlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		dispatch(func() { h.fn(e) })
	}
}

// dispatch invokes fn, recovering and logging any panic so one broken
// handler cannot stop delivery to the rest.
func dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("events: handler panicked: %v", r)
		}
	}()
	fn()
}

func removeByID[T any](items []T, id int, idOf func(T) int) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if idOf(item) != id {
			out = append(out, item)
		}
	}
	return out
}
