// Package pool implements the fixed-size worker pool that the traversal
// engine (package traverse) runs on. It is deliberately generic: a Task is
// an opaque unit of work, the queue discipline (FIFO ring or priority heap)
// and bound (unbounded or capped) are chosen once at construction, and the
// pool has no knowledge of directories, files, or traversal phases.
package pool

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Submit once the pool has been told to stop.
var ErrClosed = errors.New("pool: closed")

// errOOM is returned internally when the unbounded queue cannot grow further.
var errOOM = errors.New("pool: out of memory growing queue")

// Task is a unit of work submitted to the pool. Run is invoked on a worker
// goroutine. Priority is opaque payload a caller-supplied Comparator may
// inspect when the pool is in heap mode; it is ignored in FIFO mode.
type Task struct {
	Run      func()
	Priority any
}

// Comparator orders two tasks for heap-mode dequeueing. cmp(a, b) > 0 means
// a should be dequeued before b. A nil Comparator selects FIFO mode.
type Comparator func(a, b *Task) int

type queue interface {
	len() int
	push(t *Task) error
	pop() *Task
}

// Pool is a fixed set of worker goroutines draining a shared task queue.
type Pool struct {
	mu      sync.Mutex
	consume *sync.Cond // signalled when the queue transitions empty -> non-empty
	produce *sync.Cond // signalled when a bounded queue transitions full -> non-full
	q       queue
	qmax    int // 0 = unbounded
	stop    bool
	running int
	wg      sync.WaitGroup
}

// New launches n workers draining a queue that is FIFO (cmp == nil) or a
// binary max-heap ordered by cmp. qmax == 0 selects an unbounded,
// geometrically-growing queue; qmax > 0 bounds it, blocking Submit while
// full.
func New(n, qmax int, cmp Comparator) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{qmax: qmax}
	p.consume = sync.NewCond(&p.mu)
	p.produce = sync.NewCond(&p.mu)
	if cmp == nil {
		p.q = newRingQueue()
	} else {
		p.q = newHeapQueue(cmp)
	}

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.workerLoop()
	}
	return p
}

// Submit enqueues t. In bounded mode it blocks while the queue is full; it
// returns ErrClosed if the pool has been closed, and may return an
// allocation error if an unbounded queue fails to grow.
func (p *Pool) Submit(t *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.qmax > 0 {
		for p.q.len() == p.qmax && !p.stop {
			p.produce.Wait()
		}
	}
	if p.stop {
		return ErrClosed
	}

	wasEmpty := p.q.len() == 0
	if err := p.q.push(t); err != nil {
		return err
	}
	if wasEmpty {
		p.consume.Signal()
	}
	return nil
}

// TrySubmit attempts to enqueue t without blocking. It returns (false, nil)
// if a bounded queue is currently full, (false, ErrClosed) if the pool has
// been closed, and (true, nil) on success. Callers that cannot afford to
// block on a full queue (the traversal engine's DIR_EXIT submission, which
// runs on a worker goroutine and must not wedge the pool against itself)
// use this instead of Submit.
func (p *Pool) TrySubmit(t *Task) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop {
		return false, ErrClosed
	}
	if p.qmax > 0 && p.q.len() == p.qmax {
		return false, nil
	}

	wasEmpty := p.q.len() == 0
	if err := p.q.push(t); err != nil {
		return false, err
	}
	if wasEmpty {
		p.consume.Signal()
	}
	return true, nil
}

// Close stops the pool from accepting further dequeues once drained, wakes
// every worker, and blocks until all have exited. Submitted-but-not-yet-run
// tasks already in the queue are still executed before workers exit; the
// contract (per the design) is that callers do not submit more work
// concurrently with Close.
func (p *Pool) Close() {
	p.mu.Lock()
	p.stop = true
	p.consume.Broadcast()
	p.produce.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

// Running reports the number of tasks currently executing.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Queued reports the number of tasks waiting to be dequeued.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.q.len()
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.q.len() == 0 && !p.stop {
			p.consume.Wait()
		}
		if p.q.len() == 0 {
			// stop is set and nothing left to drain.
			p.mu.Unlock()
			return
		}

		t := p.q.pop()
		if p.qmax > 0 && p.q.len() == p.qmax-1 {
			p.produce.Signal()
		}
		p.running++
		p.mu.Unlock()

		t.Run()

		p.mu.Lock()
		p.running--
		p.mu.Unlock()
	}
}
