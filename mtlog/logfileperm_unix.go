//go:build !windows

package mtlog

import (
	"os"
	"sync"
	"syscall"
)

var (
	logPerm     os.FileMode
	logPermOnce sync.Once
)

// logFilePerm is 0666 masked by the process umask, matching standard POSIX
// tool behavior (cp, rsync, ...) for the rotating log files rotatingWriter
// creates - the one place in this package that opens a file. Computed once
// and cached; nothing else here needs a general-purpose "default file
// permission" helper.
func logFilePerm() os.FileMode {
	logPermOnce.Do(func() {
		current := syscall.Umask(0)
		syscall.Umask(current)
		logPerm = os.FileMode(0666 &^ current)
	})
	return logPerm
}
