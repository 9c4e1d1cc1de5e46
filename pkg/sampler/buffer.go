package sampler

import "fmt"

// Buffer is a fixed-capacity ring that overwrites its oldest entry when full.
// Push never blocks.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest item
	size  int
}

// NewBuffer creates a ring with the given capacity
func NewBuffer[T any](capacity int) (*Buffer[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid buffer capacity: %d", capacity)
	}
	return &Buffer[T]{items: make([]T, capacity)}, nil
}

// Push appends v, evicting the oldest entry when the ring is full.
// It reports whether an entry was overwritten.
func (b *Buffer[T]) Push(v T) bool {
	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.head+b.size)%capacity] = v
		b.size++
		return false
	}
	b.items[b.head] = v
	b.head = (b.head + 1) % capacity
	return true
}

// Len returns the number of stored entries
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the ring capacity
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Latest returns the newest entry
func (b *Buffer[T]) Latest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.items[(b.head+b.size-1)%len(b.items)], true
}

// Drain removes and returns every entry, oldest first
func (b *Buffer[T]) Drain() []T {
	out := b.Snapshot()
	b.Reset()
	return out
}

// Snapshot copies the entries, oldest first, without removing them
func (b *Buffer[T]) Snapshot() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Reset empties the ring
func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}
