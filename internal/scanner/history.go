package scanner

import "sync"

// History is a bounded, concurrency-safe ring of the most recent items.
type History[T any] struct {
	mu    sync.Mutex
	items []T
	next  int
	full  bool
}

// NewHistory creates a history holding at most size items (minimum 1).
func NewHistory[T any](size int) *History[T] {
	return &History[T]{items: make([]T, max(size, 1))}
}

// Add appends items, evicting the oldest once the ring is full.
func (h *History[T]) Add(items ...T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, it := range items {
		h.items[h.next] = it
		h.next = (h.next + 1) % len(h.items)
		if h.next == 0 {
			h.full = true
		}
	}
}

// Recent returns up to n items, newest first. n <= 0 returns everything.
func (h *History[T]) Recent(n int) []T {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := h.lenLocked()
	if n <= 0 || n > count {
		n = count
	}
	out := make([]T, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

// Len returns the number of stored items.
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lenLocked()
}

func (h *History[T]) lenLocked() int {
	if h.full {
		return len(h.items)
	}
	return h.next
}
