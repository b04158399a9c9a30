package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

var (
	// ErrQueueClosed is returned when operations are attempted on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueEmpty is returned by TryDequeue when no job is waiting
	ErrQueueEmpty = errors.New("queue is empty")
)

// Job is one unit of synthesis work.
type Job struct {
	Segment ttypes.Segment
	Future  *Future
	Queued  time.Time
}

// JobQueue is an unbounded FIFO of jobs with blocking dequeue.
// After Close, remaining jobs can still be dequeued; Dequeue returns
// ErrQueueClosed once the queue is both closed and drained.
type JobQueue struct {
	items []Job

	mu       sync.Mutex
	notEmpty *sync.Cond

	closed bool
	stats  Stats
}

// Stats tracks queue metrics.
type Stats struct {
	TotalEnqueued   int64
	TotalDequeued   int64
	CurrentSize     int
	PeakSize        int
	LastEnqueue     time.Time
	LastDequeue     time.Time
	AverageWaitTime time.Duration
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	q := &JobQueue{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a job.
func (q *JobQueue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	job.Queued = time.Now()
	q.items = append(q.items, job)

	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = job.Queued
	q.stats.CurrentSize = len(q.items)
	if q.stats.CurrentSize > q.stats.PeakSize {
		q.stats.PeakSize = q.stats.CurrentSize
	}

	q.notEmpty.Signal()
	return nil
}

// Dequeue removes the oldest job, blocking while the queue is empty and open.
func (q *JobQueue) Dequeue() (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	if len(q.items) == 0 {
		return Job{}, ErrQueueClosed
	}

	return q.pop(), nil
}

// TryDequeue removes the oldest job without blocking.
func (q *JobQueue) TryDequeue() (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		if q.closed {
			return Job{}, ErrQueueClosed
		}
		return Job{}, ErrQueueEmpty
	}

	return q.pop(), nil
}

// pop must be called with mu held and at least one item present.
func (q *JobQueue) pop() Job {
	job := q.items[0]
	q.items[0] = Job{}
	q.items = q.items[1:]

	now := time.Now()
	wait := now.Sub(job.Queued)
	q.stats.TotalDequeued++
	q.stats.LastDequeue = now
	q.stats.CurrentSize = len(q.items)
	// running average
	q.stats.AverageWaitTime += (wait - q.stats.AverageWaitTime) / time.Duration(q.stats.TotalDequeued)

	return job
}

// Close stops accepting jobs and wakes blocked consumers.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
}

// Len returns the number of waiting jobs.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsClosed reports whether Close has been called.
func (q *JobQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Stats returns a snapshot of queue metrics.
func (q *JobQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}
