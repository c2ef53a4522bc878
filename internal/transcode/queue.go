package transcode

import (
	"context"
	"sync"

	"github.com/podibleapp/podible-server/internal/domain"
)

// Queue is the unbounded FIFO of transcode jobs. One producer (the scanner),
// one consumer (the worker). Push never blocks; Pop blocks until a job is
// available or the context is cancelled. There is no close: the process
// exits to shut down.
type Queue struct {
	mu   sync.Mutex
	jobs []domain.TranscodeJob
	// Capacity-1 wake signal for the consumer.
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends a job and wakes the consumer.
func (q *Queue) Push(job domain.TranscodeJob) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
		// Already notified.
	}
}

// Pop removes and returns the oldest job, blocking while the queue is empty.
func (q *Queue) Pop(ctx context.Context) (domain.TranscodeJob, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.TranscodeJob{}, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
