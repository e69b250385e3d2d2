package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatBytes converts bytes to human-readable format
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatCount formats n with thousands separators.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// ParseSize converts human-readable size to bytes. A bare number is bytes;
// SI ("kB", "MB") and IEC ("KiB", "MiB") suffixes are accepted in any case.
func ParseSize(size string) (int64, error) {
	s := strings.TrimSpace(size)
	if s == "" {
		return 0, fmt.Errorf("invalid size format: empty")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("invalid size format: %s", size)
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size format: %s", size)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("size out of range: %s", size)
	}
	return int64(n), nil
}
