//go:build !darwin && !windows

package platform

import (
	"os"
	"time"
)

// os.Stat exposes no birth time here. Modification time is substituted and
// the second return value reports the substitution.
const creationTimeSupported = false

// CreationTime returns the file's modification time and false.
func CreationTime(info os.FileInfo) (time.Time, bool) {
	return info.ModTime(), false
}
