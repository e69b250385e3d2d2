//go:build windows

package platform

import (
	"os"
	"syscall"
	"time"
)

const creationTimeSupported = true

// CreationTime returns the NTFS creation time.
func CreationTime(info os.FileInfo) (time.Time, bool) {
	attr, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return info.ModTime(), false
	}
	return time.Unix(0, attr.CreationTime.Nanoseconds()), true
}
