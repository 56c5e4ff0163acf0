// Package trash implements the pluggable TrashService boundary: a
// reversible delete that relocates a file instead of removing it, falling
// back to an io.Copy-then-remove for cross-volume moves when a plain
// os.Rename fails. The concrete OS trash mechanism (Finder/Explorer/XDG
// trash) is out of scope, so Service is an interface with a default
// implementation that relocates into a per-app trash directory.
package trash

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	nferrors "namefix/internal/errors"
	"namefix/internal/fssafe"
)

// Result describes the outcome of one MoveToTrash call.
type Result struct {
	SrcPath string
	Success bool
	Error   string
}

// Service is the pluggable reversible-delete boundary.
type Service interface {
	MoveToTrash(path string) (Result, error)
}

// FsService relocates files into trashDir, a user-visible recoverable
// location. It is not itself responsible for purging old entries.
type FsService struct {
	trashDir string
}

// New returns an FsService rooted at trashDir. trashDir is created lazily
// on first use.
func New(trashDir string) *FsService {
	return &FsService{trashDir: trashDir}
}

// MoveToTrash relocates path into the trash directory, disambiguating
// collisions with a timestamp suffix. It returns an error only when path
// does not exist before the attempt; any other failure is reported via
// Result.Success/Error so callers can treat it as non-fatal and keep
// processing the rest of the batch.
func (s *FsService) MoveToTrash(path string) (Result, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Result{}, nferrors.NewFileError("cannot trash missing file", path, nferrors.MissingSource, err)
		}
		kind := nferrors.FileOperationFailed
		if os.IsPermission(err) {
			kind = nferrors.FileAccessDenied
		}
		statErr := nferrors.NewFileError("cannot stat file before trashing", path, kind, err)
		return Result{SrcPath: path, Success: false, Error: statErr.Error()}, nil
	}

	if err := os.MkdirAll(s.trashDir, 0755); err != nil {
		return Result{SrcPath: path, Success: false, Error: err.Error()}, nil
	}

	dest := s.trashTarget(path)

	if err := fssafe.AtomicRename(path, dest); err == nil {
		return Result{SrcPath: path, Success: true}, nil
	}

	if err := copyThenRemove(path, dest); err != nil {
		return Result{SrcPath: path, Success: false, Error: err.Error()}, nil
	}
	return Result{SrcPath: path, Success: true}, nil
}

func (s *FsService) trashTarget(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stamped := stem + "_" + time.Now().Format("20060102T150405") + ext
	return filepath.Join(s.trashDir, stamped)
}

// copyThenRemove is the cross-volume fallback fssafe.AtomicRename cannot
// take: copy the bytes to dest, then remove the source.
func copyThenRemove(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nferrors.NewFileError("cannot open source for trash copy", src, nferrors.FileNotFound, err)
		}
		if os.IsPermission(err) {
			return nferrors.NewFileError("cannot open source for trash copy", src, nferrors.FileAccessDenied, err)
		}
		return nferrors.NewFileError("cannot open source for trash copy", src, nferrors.FileOperationFailed, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nferrors.NewFileError("cannot create trash directory", filepath.Dir(dest), nferrors.FileOperationFailed, err)
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nferrors.NewFileError("cannot create trash copy", dest, nferrors.FileOperationFailed, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return nferrors.NewFileError("cannot copy file to trash", src, nferrors.TrashFailure, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return nferrors.NewFileError("cannot finalize trash copy", dest, nferrors.TrashFailure, err)
	}

	if err := os.Remove(src); err != nil {
		return nferrors.NewFileError("trashed a copy but could not remove original", src, nferrors.TrashFailure, err)
	}
	return nil
}
