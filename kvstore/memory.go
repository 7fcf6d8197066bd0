// Package kvstore provides concrete storeadapter.Adapter backends: an
// in-process Memory adapter and a spf13/afero-backed Afero adapter.
package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jsayol/firebase-js-sdk/storeadapter"
)

// Memory is a pure-Go, process-local storeadapter.Adapter over a sorted
// slice of keys, binary-searched and updated in place under a lock (a batch
// applies all of its operations under one lock acquisition), grounded on the
// sorted-slice layout gazette's in-memory KeyValues collection uses for its
// watched mirror.
type Memory struct {
	mu     sync.RWMutex
	keys   []string
	values [][]byte
}

// NewMemory returns an empty Memory adapter.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) search(key string) (int, bool) {
	var i = sort.Search(len(m.keys), func(i int) bool { return m.keys[i] >= key })
	return i, i < len(m.keys) && m.keys[i] == key
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.search(key); ok {
		return append([]byte(nil), m.values[i]...), true, nil
	}
	return nil, false, nil
}

func (m *Memory) GetAll(_ context.Context, prefix string) ([]storeadapter.KV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var start, _ = m.search(prefix)
	var out []storeadapter.KV
	for i := start; i < len(m.keys) && strings.HasPrefix(m.keys[i], prefix); i++ {
		out = append(out, storeadapter.KV{Key: m.keys[i], Value: append([]byte(nil), m.values[i]...)})
	}
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value)
	return nil
}

func (m *Memory) setLocked(key string, value []byte) {
	var i, ok = m.search(key)
	if value == nil {
		if ok {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			m.values = append(m.values[:i], m.values[i+1:]...)
		}
		return
	}
	if ok {
		m.values[i] = value
		return
	}
	m.keys = append(m.keys, "")
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = key
	m.values = append(m.values, nil)
	copy(m.values[i+1:], m.values[i:])
	m.values[i] = value
}

func (m *Memory) Remove(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.setLocked(k, nil)
	}
	return nil
}

func (m *Memory) RemovePrefixed(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var start, _ = m.search(prefix)
	var end = start
	for end < len(m.keys) && strings.HasPrefix(m.keys[end], prefix) {
		end++
	}
	m.keys = append(m.keys[:start], m.keys[end:]...)
	m.values = append(m.values[:start], m.values[end:]...)
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = nil
	m.values = nil
	return nil
}

func (m *Memory) Keys(ctx context.Context, prefix string) ([]string, error) {
	var all, err = m.GetAll(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out = make([]string, len(all))
	for i, kv := range all {
		out[i] = kv.Key
	}
	return out, nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys), nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) WriteBatch() storeadapter.Batch {
	return &memoryBatch{store: m}
}

type memoryOp struct {
	kind   int // 0 = set, 1 = remove, 2 = removePrefixed
	key    string
	value  []byte
}

type memoryBatch struct {
	store *Memory
	ops   []memoryOp
}

func (b *memoryBatch) Set(key string, value []byte) {
	b.ops = append(b.ops, memoryOp{kind: 0, key: key, value: value})
}

func (b *memoryBatch) Remove(key string) {
	b.ops = append(b.ops, memoryOp{kind: 1, key: key})
}

func (b *memoryBatch) RemovePrefixed(prefix string) {
	b.ops = append(b.ops, memoryOp{kind: 2, key: prefix})
}

func (b *memoryBatch) Run(context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		switch op.kind {
		case 0:
			b.store.setLocked(op.key, op.value)
		case 1:
			b.store.setLocked(op.key, nil)
		case 2:
			var start, _ = b.store.search(op.key)
			var end = start
			for end < len(b.store.keys) && strings.HasPrefix(b.store.keys[end], op.key) {
				end++
			}
			b.store.keys = append(b.store.keys[:start], b.store.keys[end:]...)
			b.store.values = append(b.store.values[:start], b.store.values[end:]...)
		}
	}
	return nil
}

func (b *memoryBatch) EstimatedSize() int64 {
	var n int64
	for _, op := range b.ops {
		n += int64(len(op.key)) + int64(len(op.value))
	}
	return n
}
