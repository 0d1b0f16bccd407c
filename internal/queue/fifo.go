// Package queue provides the in-memory FIFO a tier's scheduler and executor
// share. Entries are never persisted; a crash drops whatever is in flight and
// the missed-schedule policy applies.
package queue

import (
	"context"
	"sync"

	"errands/internal/domain"
)

// FIFO supports concurrent appends from the scheduler and a single draining
// consumer (the executor loop).
type FIFO struct {
	mu      sync.Mutex
	entries []domain.QueueEntry
	wake    chan struct{}
}

func NewFIFO() *FIFO {
	return &FIFO{wake: make(chan struct{}, 1)}
}

func (q *FIFO) Push(e domain.QueueEntry) {
	q.mu.Lock()
	q.entries = append(q.entries, e)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest entry, blocking until one is available
// or ctx is done.
func (q *FIFO) Pop(ctx context.Context) (domain.QueueEntry, error) {
	for {
		q.mu.Lock()
		if len(q.entries) > 0 {
			e := q.entries[0]
			q.entries = q.entries[1:]
			q.mu.Unlock()
			return e, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.QueueEntry{}, ctx.Err()
		case <-q.wake:
		}
	}
}

func (q *FIFO) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
