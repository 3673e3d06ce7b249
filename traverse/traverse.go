// Package traverse implements the multi-threaded path traversal engine: a
// state machine whose nodes are directory tasks and file tasks, run on a
// package pool worker pool. It enforces strict parent-before-child
// (DirEnter) and child-before-parent (DirExit) callback ordering, returns
// per-entry results upward through the entries array, and guarantees every
// allocated directory task is released exactly once regardless of error.
//
// The engine never follows symlinks (it only lstats) and offers no
// cancellation beyond the blocking Traverse call returning.
package traverse

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/scottd-labs/mtfs/pool"
)

// phase ranks a task for heap-mode scheduling: DirExit should drain ahead
// of File, which should drain ahead of DirEnter, so that in-flight
// directories finish before new ones are opened (keeps the working set of
// open directories bounded roughly by tree depth x parallelism).
type phase int

const (
	phaseDirExit phase = iota
	phaseFile
	phaseDirEnter
)

type priority struct {
	phase phase
	path  string
}

// makeComparator builds the pool.Comparator the engine always runs with.
// Phase always orders; the path tie-break (preferring deeper/later paths)
// only applies when sortOn is set, per the "without SORT all tasks compare
// equal within a phase" rule.
func makeComparator(sortOn bool) pool.Comparator {
	return func(a, b *pool.Task) int {
		pa, pb := a.Priority.(priority), b.Priority.(priority)
		if pa.phase != pb.phase {
			// Lower phase value means higher dequeue priority (DirExit
			// drains before File before DirEnter), but the pool's heap
			// dequeues the *larger* cmp result first, so the comparison
			// is inverted here.
			return int(pb.phase) - int(pa.phase)
		}
		if !sortOn || pa.path == pb.path {
			return 0
		}
		if pa.path > pb.path {
			return 1
		}
		return -1
	}
}

// dirTask is one directory's state as it moves DirEnter -> (children) ->
// DirExit. It is exclusively owned by whichever handler is currently
// running against it; parent is a non-owning back-reference. children is
// the join mechanism: when it reaches zero, ownership passes to DirExit.
type dirTask[T any] struct {
	path         string
	st           os.FileInfo
	parent       *dirTask[T]
	continuation any

	entries []Entry[T]

	mu       sync.Mutex
	children int

	// dataSlot points into the parent's entries array where this task's
	// result must land; nil for the root task.
	dataSlot *Optional[T]
}

type engine[T any] struct {
	cb      Callbacks[T]
	userArg any
	cfg     Config
	pool    *pool.Pool

	rootMu     sync.Mutex
	rootCond   *sync.Cond
	rootDone   bool
	rootResult T

	// countdown implements the queue-full deadlock-avoidance fallback: it
	// starts at the worker count and is decremented by every worker
	// currently trapped in submitWithBackoff, retrying a submission that
	// could not be queued immediately (DIR_EXIT or a child DIR_ENTER/FILE
	// task). It reaching zero means every worker is trapped, which can
	// only happen if the queue can never drain - a genuine deadlock,
	// reported by aborting rather than hanging forever.
	countdown int32
}

// Traverse walks root_path, starting a DirEnter visit and running to
// completion. It returns a non-nil error only if the root lstat failed or
// the first task submission failed; all other errors surface through
// ErrorMethod.
func Traverse[T any](nThreads int, cfg Config, rootPath string, cb Callbacks[T], userArg any) (T, error) {
	var zero T

	st, err := os.Lstat(rootPath)
	if err != nil {
		return zero, errors.Wrapf(err, "lstat %s", rootPath)
	}

	if !st.IsDir() {
		if cb.FileMethod != nil {
			return cb.FileMethod(userArg, rootPath, st, nil), nil
		}
		return zero, nil
	}

	if nThreads <= 0 {
		nThreads = 1
	}

	e := &engine[T]{
		cb:        cb,
		userArg:   userArg,
		cfg:       cfg,
		countdown: int32(nThreads),
	}
	e.rootCond = sync.NewCond(&e.rootMu)
	e.pool = pool.New(nThreads, cfg.QueueMax, makeComparator(cfg.Sort))

	root := &dirTask[T]{path: rootPath, st: st}
	submitErr := e.pool.Submit(&pool.Task{
		Priority: priority{phase: phaseDirEnter, path: rootPath},
		Run:      func() { e.handleDirEnter(root) },
	})
	if submitErr != nil {
		e.pool.Close()
		return zero, errors.Wrap(submitErr, "submitting root directory task")
	}

	e.rootMu.Lock()
	for !e.rootDone {
		e.rootCond.Wait()
	}
	result := e.rootResult
	e.rootMu.Unlock()

	e.pool.Close()
	return result, nil
}

func (e *engine[T]) finishRoot(res T) {
	e.rootMu.Lock()
	e.rootResult = res
	e.rootDone = true
	e.rootCond.Signal()
	e.rootMu.Unlock()
}

// notifyFinished is the join point every path through a directory task
// converges on: either write this task's result into the parent's entry
// slot and decrement the parent's outstanding-child counter, or, at the
// root, hand the final result to the blocked Traverse caller.
func (e *engine[T]) notifyFinished(dt *dirTask[T], data Optional[T]) {
	if dt.parent == nil {
		e.finishRoot(data.Value)
		return
	}
	if dt.dataSlot != nil {
		*dt.dataSlot = data
	}
	parent := dt.parent
	parent.mu.Lock()
	parent.children--
	last := parent.children == 0
	parent.mu.Unlock()
	if last {
		e.submitDirExit(parent)
	}
}

func (e *engine[T]) callErrorMethod(path string, st os.FileInfo, continuation any) T {
	var zero T
	if e.cb.ErrorMethod == nil {
		return zero
	}
	return e.cb.ErrorMethod(e.userArg, path, st, continuation)
}

// handleDirEnter is the DIR_ENTER handler (design docs §4.2): invoke
// DirEnter, opendir, drain readdir into an entries array, lstat each child
// and spawn its task, then - if nothing was scheduled - run DIR_EXIT
// synchronously to avoid an unnecessary round trip through the queue.
func (e *engine[T]) handleDirEnter(dt *dirTask[T]) {
	if e.cb.DirEnter != nil {
		cont, continuation := e.cb.DirEnter(e.userArg, dt.path, dt.st, dt.parentContinuation())
		if !cont {
			e.notifyFinished(dt, Optional[T]{})
			return
		}
		dt.continuation = continuation
	}

	f, err := os.Open(dt.path)
	if err != nil {
		res := e.callErrorMethod(dt.path, dt.st, dt.continuation)
		e.notifyFinished(dt, Optional[T]{Value: res, Present: true})
		return
	}
	names, err := f.Readdirnames(-1)
	_ = f.Close()
	if err != nil {
		res := e.callErrorMethod(dt.path, dt.st, dt.continuation)
		e.notifyFinished(dt, Optional[T]{Value: res, Present: true})
		return
	}

	if e.cfg.Sort {
		sortStrings(names)
	}
	dt.entries = make([]Entry[T], len(names))
	for i, name := range names {
		dt.entries[i].Name = name
	}

	dt.mu.Lock()
	for i := range dt.entries {
		e.scheduleChild(dt, i)
	}
	noChildrenScheduled := dt.children == 0
	dt.mu.Unlock()

	if noChildrenScheduled {
		e.handleDirExit(dt)
	}
}

// parentContinuation returns the token this task's parent published for its
// children, or nil at the root.
func (dt *dirTask[T]) parentContinuation() any {
	if dt.parent == nil {
		return nil
	}
	return dt.parent.continuation
}

// scheduleChild lstats dt.entries[i] and, for a directory, submits a
// DIR_ENTER task; for a non-directory, either submits a FILE task or runs
// FileMethod inline, depending on Config.FileTasks. Must be called with
// dt.mu held (it is always called from within the child-spawn loop).
func (e *engine[T]) scheduleChild(dt *dirTask[T], i int) {
	name := dt.entries[i].Name
	childPath := filepath.Join(dt.path, name)

	st, err := os.Lstat(childPath)
	if err != nil {
		if os.IsNotExist(err) {
			// filesystem churn between readdir and lstat is tolerated
			// silently: the entry stays absent, no callback fires.
			return
		}
		e.callErrorMethod(childPath, nil, nil)
		return
	}
	dt.entries[i].IsDir = st.IsDir()

	if st.IsDir() {
		child := &dirTask[T]{
			path:     childPath,
			st:       st,
			parent:   dt,
			dataSlot: &dt.entries[i].Data,
		}
		submitErr := e.submitWithBackoff(&pool.Task{
			Priority: priority{phase: phaseDirEnter, path: childPath},
			Run:      func() { e.handleDirEnter(child) },
		})
		if submitErr != nil {
			e.callErrorMethod(childPath, st, dt.continuation)
			return
		}
		dt.children++
		return
	}

	if e.cfg.FileTasks {
		slot := &dt.entries[i].Data
		continuation := dt.continuation
		submitErr := e.submitWithBackoff(&pool.Task{
			Priority: priority{phase: phaseFile, path: childPath},
			Run:      func() { e.handleFileTask(dt, slot, childPath, st, continuation) },
		})
		if submitErr != nil {
			e.callErrorMethod(childPath, st, dt.continuation)
			return
		}
		dt.children++
		return
	}

	var res T
	if e.cb.FileMethod != nil {
		res = e.cb.FileMethod(e.userArg, childPath, st, dt.continuation)
	}
	dt.entries[i].Data = Optional[T]{Value: res, Present: true}
}

// handleFileTask is the FILE task handler: invoke FileMethod, store the
// result, then notify the parent exactly as a completing directory task
// would.
func (e *engine[T]) handleFileTask(parent *dirTask[T], slot *Optional[T], path string, st os.FileInfo, continuation any) {
	var res T
	if e.cb.FileMethod != nil {
		res = e.cb.FileMethod(e.userArg, path, st, continuation)
	}
	*slot = Optional[T]{Value: res, Present: true}

	parent.mu.Lock()
	parent.children--
	last := parent.children == 0
	parent.mu.Unlock()
	if last {
		e.submitDirExit(parent)
	}
}

// handleDirExit is the DIR_EXIT handler. Step 1 below is not a no-op: it is
// the barrier that makes the child-spawn loop's writes to dt.children
// visible here, so a child completing between the loop body and its
// closing brace can never observe children==0 and invoke DirExit
// prematurely.
func (e *engine[T]) handleDirExit(dt *dirTask[T]) {
	dt.mu.Lock()
	dt.mu.Unlock() //nolint:staticcheck // synchronization barrier, not dead code

	var result T
	if e.cb.DirExit != nil {
		result = e.cb.DirExit(e.userArg, dt.path, dt.st, dt.continuation, dt.entries, len(dt.entries))
	}
	e.notifyFinished(dt, Optional[T]{Value: result, Present: true})
}

// submitDirExit enqueues dt's DIR_EXIT. DIR_EXIT submission failure (beyond
// a momentarily full queue, which submitWithBackoff already retries) has no
// ErrorMethod to route through - there is no parent-side entry left to
// carry a substitute result once every child has already finished - so it
// is always fatal.
func (e *engine[T]) submitDirExit(dt *dirTask[T]) {
	task := &pool.Task{
		Priority: priority{phase: phaseDirExit, path: dt.path},
		Run:      func() { e.handleDirExit(dt) },
	}
	if err := e.submitWithBackoff(task); err != nil {
		panic(fmt.Sprintf("traverse: DIR_EXIT submission for %s failed: %v", dt.path, err))
	}
}

// submitWithBackoff enqueues task, which may be running on a worker
// goroutine itself (DIR_EXIT always is; a child DIR_ENTER/FILE submission
// from scheduleChild does too, holding its parent's mutex). A blocking
// pool.Submit there would park this worker as a queue producer; if every
// worker ends up parked the same way at once, nobody is left running
// workerLoop to dequeue and make room, and the bounded queue never drains.
// So a queue that cannot accept the task immediately falls back to the
// spinlock-countdown retry loop from the design docs instead of blocking:
// decrement the shared countdown; if it reaches zero, every worker is
// trapped retrying and the traversal can never drain, so abort with a
// diagnostic; otherwise sleep and retry, restoring the counter on success.
// Any other submission error (closed pool, allocation failure) is returned
// to the caller rather than retried.
func (e *engine[T]) submitWithBackoff(task *pool.Task) error {
	ok, err := e.pool.TrySubmit(task)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	remaining := atomic.AddInt32(&e.countdown, -1)
	if remaining <= 0 {
		p, _ := task.Priority.(priority)
		panic(fmt.Sprintf("traverse: all workers trapped retrying a full queue while submitting a task for %s; aborting to avoid deadlock", p.path))
	}
	for {
		time.Sleep(time.Second)
		ok, err := e.pool.TrySubmit(task)
		if err != nil {
			atomic.AddInt32(&e.countdown, 1)
			return err
		}
		if ok {
			atomic.AddInt32(&e.countdown, 1)
			return nil
		}
	}
}
