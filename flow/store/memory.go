package store

import (
	"context"
	"sync"
)

// MemoryHandle is an in-process Handle backed by a map, suitable for tests
// and single-process development workflows.
type MemoryHandle struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryHandle returns an empty MemoryHandle.
func NewMemoryHandle() *MemoryHandle {
	return &MemoryHandle{data: make(map[string]map[string][]byte)}
}

func (h *MemoryHandle) Get(_ context.Context, ns, key string) ([]byte, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	bucket, ok := h.data[ns]
	if !ok {
		return nil, false, nil
	}
	v, ok := bucket[key]
	return v, ok, nil
}

func (h *MemoryHandle) Set(_ context.Context, ns, key string, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	bucket, ok := h.data[ns]
	if !ok {
		bucket = make(map[string][]byte)
		h.data[ns] = bucket
	}
	bucket[key] = value
	return nil
}

func (h *MemoryHandle) Delete(_ context.Context, ns, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if bucket, ok := h.data[ns]; ok {
		delete(bucket, key)
	}
	return nil
}

func (h *MemoryHandle) Close() error { return nil }
