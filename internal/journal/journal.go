// Package journal implements the append-only undo log namefix uses to
// reverse renames and conversions: an explicit NDJSON store with LIFO
// undo and restore-collision suffixing.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	nferrors "namefix/internal/errors"
	"namefix/internal/fssafe"
	"namefix/internal/log"
	"namefix/pkg/types"
)

// Store is the on-disk, in-memory-cached undo journal. It owns its backing
// file exclusively; callers never write to the file directly.
type Store struct {
	path    string
	mu      sync.Mutex
	entries []types.JournalEntry
	loaded  bool
}

// New returns a Store backed by path. The file is read lazily on first use.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	entries, err := readEntries(s.path)
	if err != nil {
		return err
	}
	s.entries = entries
	s.loaded = true
	return nil
}

func readEntries(path string) ([]types.JournalEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		if os.IsPermission(err) {
			return nil, nferrors.NewFileError("cannot open journal", path, nferrors.FileAccessDenied, err)
		}
		return nil, nferrors.NewFileError("cannot open journal", path, nferrors.FileOperationFailed, err)
	}
	defer f.Close()

	var entries []types.JournalEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e types.JournalEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			log.Warnf("journal: skipping malformed line in %s: %v", path, err)
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, nferrors.NewFileError("cannot read journal", path, nferrors.FileOperationFailed, err)
	}
	return entries, nil
}

// Record appends one (from, to) entry and persists the journal.
func (s *Store) Record(from, to string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}

	s.entries = append(s.entries, types.JournalEntry{From: from, To: to, Ts: ts})
	if err := s.persist(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return err
	}
	return nil
}

// Undo pops the most recent entry and attempts to reverse it: a rename of
// its "to" path back to a free name derived from its "from" path. The
// journal is rewritten without the popped entry only after the reverse
// rename succeeds, so a failed undo can be retried.
func (s *Store) Undo() (types.UndoResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return types.UndoResult{}, err
	}

	if len(s.entries) == 0 {
		return types.UndoResult{OK: false, Reason: "empty"}, nil
	}

	last := s.entries[len(s.entries)-1]

	target := restoreTarget(last.From)
	if err := fssafe.AtomicRename(last.To, target); err != nil {
		return types.UndoResult{OK: false, Reason: err.Error(), From: last.To, To: target}, nil
	}

	s.entries = s.entries[:len(s.entries)-1]
	if err := s.persist(); err != nil {
		// The rename already happened; re-append so the entry isn't lost,
		// and surface the persist failure to the caller.
		s.entries = append(s.entries, last)
		return types.UndoResult{}, err
	}

	return types.UndoResult{OK: true, From: last.To, To: target}, nil
}

// restoreTarget returns original if it is free on disk, otherwise
// {base}_restored{ext}, then _restored_2, _restored_3, ...
func restoreTarget(original string) string {
	if _, err := os.Stat(original); os.IsNotExist(err) {
		return original
	}

	dir := filepath.Dir(original)
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(filepath.Base(original), ext)

	candidate := filepath.Join(dir, base+"_restored"+ext)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}
	for n := 2; ; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_restored_%d%s", base, n, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// persist rewrites the entire backing file from s.entries. Must be called
// with s.mu held.
func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nferrors.NewFileError("cannot create journal directory", filepath.Dir(s.path), nferrors.FileOperationFailed, err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nferrors.NewFileError("cannot open journal for write", s.path, nferrors.FileOperationFailed, err)
	}

	w := bufio.NewWriter(f)
	for _, e := range s.entries {
		line, err := json.Marshal(e)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return nferrors.NewFileError("cannot encode journal entry", s.path, nferrors.FileOperationFailed, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			f.Close()
			os.Remove(tmp)
			return nferrors.NewFileError("cannot write journal", s.path, nferrors.FileOperationFailed, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return nferrors.NewFileError("cannot flush journal", s.path, nferrors.FileOperationFailed, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nferrors.NewFileError("cannot close journal", s.path, nferrors.FileOperationFailed, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return nferrors.NewFileError("cannot finalize journal", s.path, nferrors.FileOperationFailed, err)
	}
	return nil
}

// Len reports the number of entries currently recorded, loading the file
// first if necessary.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return 0, err
	}
	return len(s.entries), nil
}
