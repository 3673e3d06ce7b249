// Package fsstat extracts the device/inode identity and hardlink count of a
// regular file from the os.FileInfo the traversal engine already lstatted,
// without a second syscall.
package fsstat

import "os"

// Identity uniquely identifies a regular file's on-disk storage within one
// filesystem, for hardlink detection: two paths with the same Identity are
// the same inode.
type Identity struct {
	Dev uint64
	Ino uint64
}

// Inspect returns fi's device/inode identity, its hardlink count, and
// whether that information was available. It is only read on Linux; on
// every other platform ok is always false.
func Inspect(fi os.FileInfo) (id Identity, nlink uint64, ok bool) {
	return inspect(fi)
}
