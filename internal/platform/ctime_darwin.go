//go:build darwin

package platform

import (
	"os"
	"syscall"
	"time"
)

const creationTimeSupported = true

// CreationTime returns the birth time recorded by APFS/HFS+.
func CreationTime(info os.FileInfo) (time.Time, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime(), false
	}
	return time.Unix(st.Birthtimespec.Sec, st.Birthtimespec.Nsec), true
}
