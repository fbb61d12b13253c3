package cache

import (
	"container/heap"
	"sync"
)

type queuedJob struct {
	job   WarmupJob
	seq   int
	index int
}

// jobHeap orders by priority, highest first, then by insertion order.
type jobHeap []*queuedJob

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority > h[j].job.Priority
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x interface{}) {
	item := x.(*queuedJob)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// PriorityQueue is a concurrency safe max-heap of warmup jobs.
type PriorityQueue struct {
	mu    sync.Mutex
	items jobHeap
	seq   int
}

func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{}
}

func (pq *PriorityQueue) Push(job WarmupJob) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.seq++
	heap.Push(&pq.items, &queuedJob{job: job, seq: pq.seq})
}

func (pq *PriorityQueue) Pop() (WarmupJob, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if len(pq.items) == 0 {
		return WarmupJob{}, false
	}
	return heap.Pop(&pq.items).(*queuedJob).job, true
}

func (pq *PriorityQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.items)
}
