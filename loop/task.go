package loop

import (
	"container/heap"

	"github.com/joeycumines/go-tickloop/handledmutex"
)

// scheduledTask is a Task awaiting dispatch.
type scheduledTask struct {
	fn    Task
	owner *Module
	due   float64
	seq   uint64
	et    ExecutionType
}

// taskHeap implements heap.Interface, ordered by due time then insertion.
type taskHeap []*scheduledTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*scheduledTask))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// taskQueue is the loop's pending task queue, shared by external callers
// and the loop goroutine.
type taskQueue struct {
	heap taskHeap
	seq  uint64
	mu   handledmutex.HandledMutex
}

func (q *taskQueue) push(t *scheduledTask) {
	g := q.mu.GetLock()
	defer g.Unlock()
	t.seq = q.seq
	q.seq++
	heap.Push(&q.heap, t)
}

// popDue removes and returns every task due at or before now, in order.
func (q *taskQueue) popDue(now float64) (due []*scheduledTask) {
	g := q.mu.GetLock()
	defer g.Unlock()
	for len(q.heap) != 0 && q.heap[0].due <= now {
		due = append(due, heap.Pop(&q.heap).(*scheduledTask))
	}
	return due
}

// clear drops every pending task, returning the number dropped.
func (q *taskQueue) clear() int {
	g := q.mu.GetLock()
	defer g.Unlock()
	n := len(q.heap)
	clear(q.heap)
	q.heap = q.heap[:0]
	return n
}

func (q *taskQueue) len() int {
	g := q.mu.GetSharedLock()
	defer g.Unlock()
	return len(q.heap)
}
