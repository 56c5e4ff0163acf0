package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namefix/internal/fssafe"
	"namefix/pkg/types"
)

func TestServiceEmitsAddEventForStableFile(t *testing.T) {
	origInterval, origBudget := fssafe.StabilityPollInterval, fssafe.StabilityIdleBudget
	fssafe.StabilityPollInterval = 10 * time.Millisecond
	fssafe.StabilityIdleBudget = 50 * time.Millisecond
	defer func() {
		fssafe.StabilityPollInterval = origInterval
		fssafe.StabilityIdleBudget = origBudget
	}()

	dir := t.TempDir()
	s := New(dir)

	events := make(chan types.WatchEvent, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx, func(e types.WatchEvent) { events <- e }))
	defer s.Stop()

	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

	select {
	case e := <-events:
		assert.Equal(t, path, e.Path)
		assert.Equal(t, int64(4), e.Size)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}

func TestServiceIgnoresDotfiles(t *testing.T) {
	origInterval, origBudget := fssafe.StabilityPollInterval, fssafe.StabilityIdleBudget
	fssafe.StabilityPollInterval = 10 * time.Millisecond
	fssafe.StabilityIdleBudget = 50 * time.Millisecond
	defer func() {
		fssafe.StabilityPollInterval = origInterval
		fssafe.StabilityIdleBudget = origBudget
	}()

	dir := t.TempDir()
	s := New(dir)

	events := make(chan types.WatchEvent, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx, func(e types.WatchEvent) { events <- e }))
	defer s.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644))

	select {
	case e := <-events:
		t.Fatalf("unexpected event for dotfile: %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestIsHealthyReflectsRunningState(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	assert.False(t, s.IsHealthy())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx, func(types.WatchEvent) {}))
	assert.True(t, s.IsHealthy())

	s.Stop()
	assert.False(t, s.IsHealthy())
}

func TestStartTwiceReturnsError(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx, func(types.WatchEvent) {}))
	defer s.Stop()

	err := s.Start(ctx, func(types.WatchEvent) {})
	assert.Error(t, err)
}

func TestOnErrorSubscribesAndUnsubscribes(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	var received []error
	unsub := s.OnError(func(err error) { received = append(received, err) })

	s.notifyError(assertError{})
	assert.Len(t, received, 1)

	unsub()
	s.notifyError(assertError{})
	assert.Len(t, received, 1)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
