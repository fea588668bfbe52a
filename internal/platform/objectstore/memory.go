package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"onboard/pkg/platform/sentinel"
)

const memoryBase = "memory://documents"

// Memory keeps objects in process. It backs development runs and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

func (m *Memory) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return "", fmt.Errorf("read object %s: %w", key, err)
	}
	if size >= 0 && n != size {
		return "", fmt.Errorf("object %s: read %d bytes, expected %d", key, n, size)
	}
	m.mu.Lock()
	m.objects[key] = memoryObject{data: buf.Bytes(), contentType: contentType}
	m.mu.Unlock()
	return m.URL(key), nil
}

func (m *Memory) PresignGet(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return m.URL(key) + "?signed=1", nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) URL(key string) string {
	return memoryBase + "/" + key
}

func (m *Memory) KeyFromURL(raw string) (string, bool) {
	return keyFromURL(memoryBase, raw)
}

// Get returns the stored bytes of key.
func (m *Memory) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.data, obj.contentType, ok
}

func (m *Memory) Health(context.Context) error {
	return nil
}
