//go:build !linux && !darwin

package crawler

import (
	"io/fs"
	"time"
)

func createdTime(fs.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}

func fileUID(fs.FileInfo) (uint32, bool) {
	return 0, false
}
