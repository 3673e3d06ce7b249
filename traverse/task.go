package traverse

import "os"

// Optional represents a data slot that either holds a value written by the
// owning task, or is absent (the Go expression of the "data starts NULL"
// design note in the engine's design docs: callback return values are
// user-owned payloads, forwarded but never interpreted by the engine).
type Optional[T any] struct {
	Value   T
	Present bool
}

// Entry is one record in a directory's entries array: a child name paired
// with the data slot that child's task result (or absence of one) is
// written into. Entries are owned by the parent directory task; Data is
// written exactly once, by the entry's own task, and read only by the
// parent's DirExit. IsDir is stamped from the lstat the engine already
// performs while scheduling the child, so a DirExit callback that needs to
// tell a file child from a directory child never has to lstat the path a
// second time.
type Entry[T any] struct {
	Name  string
	IsDir bool
	Data  Optional[T]
}

// Callbacks is the visitor interface the traversal engine drives. Any field
// may be left nil.
type Callbacks[T any] struct {
	// DirEnter is invoked on entering a directory. Returning cont=false
	// skips the directory entirely: its entry's Data stays absent and no
	// DirExit fires for it. continuation is an opaque, caller-owned token
	// forwarded to this directory's DirExit and to its children's
	// DirEnter/FileMethod as parentContinuation.
	DirEnter func(userArg any, path string, st os.FileInfo, parentContinuation any) (cont bool, continuation any)

	// DirExit is invoked after every child of path has completed (or been
	// skipped/errored). Its return value becomes this directory's result,
	// written into the parent's corresponding Entry.Data.
	DirExit func(userArg any, path string, st os.FileInfo, continuation any, entries []Entry[T], n int) T

	// FileMethod is invoked for every non-directory child (and for the
	// root itself, on the calling goroutine, when the root is not a
	// directory).
	FileMethod func(userArg any, path string, st os.FileInfo, parentContinuation any) T

	// ErrorMethod is invoked for every failed opendir/readdir, every
	// lstat failure other than not-found, and every failed child-task
	// submission. st and continuation may be the interface nil value when
	// no snapshot/continuation is available for the failure.
	ErrorMethod func(userArg any, path string, st os.FileInfo, continuation any) T
}

// Config toggles engine behavior. Every flag defaults to off.
type Config struct {
	// FileTasks dispatches each non-directory child as its own worker-pool
	// task instead of invoking FileMethod inline from the parent's
	// DirEnter handler. Only affects non-directory children: a directory
	// child is always scheduled as a directory task regardless of this
	// flag.
	FileTasks bool

	// Sort orders a directory's entries by name before presenting them to
	// DirExit, and makes heap-mode scheduling prefer deeper/later paths
	// within a phase. Without Sort, entries keep readdir order and ties
	// within a phase are unordered.
	Sort bool

	// QueueMax bounds the internal worker-pool queue (0 = unbounded). A
	// small QueueMax is useful for exercising the DIR_EXIT requeue
	// fallback under test; production callers normally leave it 0.
	QueueMax int
}
