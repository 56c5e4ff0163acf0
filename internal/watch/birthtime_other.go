//go:build !darwin

package watch

import (
	"os"
	"time"
)

// platformBirthtime has no portable creation-time source on this
// platform; callers fall back to ModTime.
func platformBirthtime(info os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
