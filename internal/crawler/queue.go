package crawler

import (
	"sync"

	"github.com/entro314-labs/spacemap/internal/core"
	"github.com/entro314-labs/spacemap/internal/metrics"
)

type job struct {
	id   core.ID
	path string
}

// queue is a LIFO of pending directories shared by all workers. pending
// counts queued and in-flight jobs; the crawl is over when it reaches zero.
// Popping the most recent push keeps the crawl roughly depth-first, which
// bounds the queue on wide trees.
type queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	jobs    []job
	pending int
	closed  bool
	metrics *metrics.Scan
}

func (q *queue) init(m *metrics.Scan) {
	q.cond = sync.NewCond(&q.mu)
	q.metrics = m
}

func (q *queue) push(jobs ...job) {
	if len(jobs) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.jobs = append(q.jobs, jobs...)
	q.pending += len(jobs)
	q.metrics.SetQueueDepth(len(q.jobs))
	q.cond.Broadcast()
}

// pop blocks until a job is available. It reports false once the queue is
// closed or all work is done.
func (q *queue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) == 0 && q.pending > 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed || len(q.jobs) == 0 {
		return job{}, false
	}
	j := q.jobs[len(q.jobs)-1]
	q.jobs[len(q.jobs)-1] = job{}
	q.jobs = q.jobs[:len(q.jobs)-1]
	q.metrics.SetQueueDepth(len(q.jobs))
	return j, true
}

// done marks one popped job as finished.
func (q *queue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending == 0 {
		q.cond.Broadcast()
	}
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.jobs = nil
	q.metrics.SetQueueDepth(0)
	q.cond.Broadcast()
}
