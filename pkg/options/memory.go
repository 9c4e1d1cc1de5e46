package options

import (
	"fmt"
	"io"
	"sync"
)

// MemoryStore is a fixed-size byte store that starts erased
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryStore creates an erased store of size bytes
func NewMemoryStore(size int) *MemoryStore {
	data := make([]byte, size)
	for i := range data {
		data[i] = Blank
	}
	return &MemoryStore{data: data}
}

// ReadAt implements io.ReaderAt
func (m *MemoryStore) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if off < 0 {
		return 0, fmt.Errorf("negative address %d", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt
func (m *MemoryStore) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("write of %d bytes at %d outside store of %d bytes", len(p), off, len(m.data))
	}
	return copy(m.data[off:], p), nil
}

// Bytes returns a copy of the store contents
func (m *MemoryStore) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}
