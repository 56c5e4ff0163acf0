// Package fssafe is the single choke point for disk mutation: every
// atomic rename and every stability check in namefix goes through here, so
// retry discipline lives in one place instead of scattered ad hoc
// os.Rename call sites.
package fssafe

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	nferrors "namefix/internal/errors"
)

// Tunable: the stability-check timing is empirical, so these are vars,
// not consts.
var (
	StabilityPollInterval = 250 * time.Millisecond
	StabilityIdleBudget   = 750 * time.Millisecond

	RenameMaxAttempts  = 10
	EbusyBackoffMin    = 50 * time.Millisecond
	EbusyBackoffMax    = 150 * time.Millisecond
	EnoentBackoffMin   = 150 * time.Millisecond
	EnoentBackoffMax   = 400 * time.Millisecond
)

// IsStable polls path's size at StabilityPollInterval. It returns true once
// two consecutive polls see the same size, or once StabilityIdleBudget has
// elapsed since the first observation. It returns false, not an error, if
// the file disappears (ENOENT) — that is an ordinary race with another
// actor, not a failure. Any other stat error propagates.
func IsStable(ctx context.Context, path string) (bool, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, statError(path, err)
	}
	lastSize := info.Size()

	ticker := time.NewTicker(StabilityPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				if os.IsNotExist(err) {
					return false, nil
				}
				return false, statError(path, err)
			}
			if info.Size() == lastSize {
				return true, nil
			}
			lastSize = info.Size()
			if time.Since(start) >= StabilityIdleBudget {
				return true, nil
			}
		}
	}
}

// AtomicRename ensures to's parent directory exists, then renames from to
// to. It retries on EBUSY (jittered 50-150ms) and short-lived ENOENT
// (jittered 150-400ms) up to RenameMaxAttempts times; every other error
// surfaces immediately.
func AtomicRename(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return nferrors.NewFileError("cannot create destination directory", filepath.Dir(to), nferrors.FileOperationFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt < RenameMaxAttempts; attempt++ {
		err := os.Rename(from, to)
		if err == nil {
			return nil
		}
		lastErr = err

		switch {
		case errors.Is(err, os.ErrExist):
			return nferrors.NewFileError("rename failed", from, nferrors.FileOperationFailed, err)
		case isEbusy(err):
			time.Sleep(jitter(EbusyBackoffMin, EbusyBackoffMax))
		case os.IsNotExist(err):
			time.Sleep(jitter(EnoentBackoffMin, EnoentBackoffMax))
		case os.IsPermission(err):
			return nferrors.NewFileError("rename failed", from, nferrors.FileAccessDenied, err)
		default:
			return nferrors.NewFileError("rename failed", from, nferrors.FileOperationFailed, err)
		}
	}

	if os.IsNotExist(lastErr) {
		return nferrors.NewFileError("source vanished before rename completed", from, nferrors.MissingSource, lastErr)
	}
	return nferrors.NewFileError("rename retries exhausted", from, nferrors.TransientFile, lastErr)
}

// statError classifies a non-ENOENT os.Stat failure: permission errors
// get FileAccessDenied so callers can distinguish "can't tell if it's
// stable" from a generic I/O failure.
func statError(path string, err error) error {
	if os.IsPermission(err) {
		return nferrors.NewFileError("cannot stat file", path, nferrors.FileAccessDenied, err)
	}
	return nferrors.NewFileError("cannot stat file", path, nferrors.FileOperationFailed, err)
}

func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := max - min
	return min + time.Duration(rand.Int64N(int64(span)))
}
