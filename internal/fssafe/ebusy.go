package fssafe

import (
	"errors"
	"syscall"
)

// isEbusy reports whether err ultimately wraps EBUSY, the errno Rename
// returns when the destination (or, on some platforms, the source) is
// momentarily locked by another process.
func isEbusy(err error) bool {
	return errors.Is(err, syscall.EBUSY)
}
