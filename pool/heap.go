package pool

// heapQueue is a binary max-heap ordered by a caller-supplied Comparator:
// cmp(a, b) > 0 iff a should be dequeued before b. Tie-breaking is
// unspecified; this implementation breaks ties by insertion order only
// incidentally (it is not guaranteed stable).
type heapQueue struct {
	buf []*Task
	cmp Comparator
}

func newHeapQueue(cmp Comparator) *heapQueue {
	return &heapQueue{cmp: cmp}
}

func (h *heapQueue) len() int { return len(h.buf) }

func (h *heapQueue) push(t *Task) error {
	h.buf = append(h.buf, t)
	h.siftUp(len(h.buf) - 1)
	return nil
}

func (h *heapQueue) pop() *Task {
	top := h.buf[0]
	last := len(h.buf) - 1
	h.buf[0] = h.buf[last]
	h.buf[last] = nil
	h.buf = h.buf[:last]
	if len(h.buf) > 0 {
		h.siftDown(0)
	}
	return top
}

func (h *heapQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.cmp(h.buf[i], h.buf[parent]) <= 0 {
			break
		}
		h.buf[i], h.buf[parent] = h.buf[parent], h.buf[i]
		i = parent
	}
}

func (h *heapQueue) siftDown(i int) {
	n := len(h.buf)
	for {
		left, right := 2*i+1, 2*i+2
		largest := i
		if left < n && h.cmp(h.buf[left], h.buf[largest]) > 0 {
			largest = left
		}
		if right < n && h.cmp(h.buf[right], h.buf[largest]) > 0 {
			largest = right
		}
		if largest == i {
			return
		}
		h.buf[i], h.buf[largest] = h.buf[largest], h.buf[i]
		i = largest
	}
}
