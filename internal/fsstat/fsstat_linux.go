package fsstat

import (
	"os"
	"syscall"
)

// os.Lstat's FileInfo.Sys() returns *syscall.Stat_t, not
// golang.org/x/sys/unix.Stat_t - they are distinct named types, so asserting
// the unix one here always fails.
func inspect(fi os.FileInfo) (Identity, uint64, bool) {
	stat, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return Identity{}, 0, false
	}
	return Identity{Dev: uint64(stat.Dev), Ino: stat.Ino}, uint64(stat.Nlink), true
}
