package executor

import (
	"sync"

	"errands/internal/domain"
)

// History is a bounded ring of recent execution outcomes. It exists for the
// status API and logs; scheduling never reads it.
type History struct {
	mu   sync.Mutex
	buf  []domain.ExecutionOutcome
	next int
	full bool
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]domain.ExecutionOutcome, capacity)}
}

func (h *History) Add(out domain.ExecutionOutcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = out
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns outcomes newest first.
func (h *History) Recent() []domain.ExecutionOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.next
	if h.full {
		n = len(h.buf)
	}
	out := make([]domain.ExecutionOutcome, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, h.buf[(h.next-i+len(h.buf))%len(h.buf)])
	}
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.buf)
	}
	return h.next
}
