package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/devops-bizzibees/activepieces/natsclient"
)

// MockKVStore is an in-memory stand-in for natsclient.KVStore.
// Revisions are bucket-wide and monotonically increasing, and the natsclient
// error sentinels are returned so callers can use IsKVNotFoundError and
// IsKVConflictError unchanged. Thread-safe for concurrent use.
type MockKVStore struct {
	mu       sync.RWMutex
	data     map[string]*natsclient.KVEntry
	revision uint64

	// FailWith, when set, is returned from every operation.
	FailWith error

	// Call counts for verification
	GetCalls int
}

// NewMockKVStore creates a new mock KV store.
func NewMockKVStore() *MockKVStore {
	return &MockKVStore{
		data: make(map[string]*natsclient.KVEntry),
	}
}

func (kv *MockKVStore) store(key string, value []byte) uint64 {
	kv.revision++
	stored := make([]byte, len(value))
	copy(stored, value)
	kv.data[key] = &natsclient.KVEntry{Key: key, Value: stored, Revision: kv.revision}
	return kv.revision
}

// Get retrieves a value with its revision.
func (kv *MockKVStore) Get(_ context.Context, key string) (*natsclient.KVEntry, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.GetCalls++
	if kv.FailWith != nil {
		return nil, kv.FailWith
	}

	entry, ok := kv.data[key]
	if !ok {
		return nil, natsclient.ErrKVKeyNotFound
	}
	// Return a copy to prevent races on the returned slice
	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	return &natsclient.KVEntry{Key: key, Value: value, Revision: entry.Revision}, nil
}

// Put stores a value unconditionally.
func (kv *MockKVStore) Put(_ context.Context, key string, value []byte) (uint64, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.FailWith != nil {
		return 0, kv.FailWith
	}
	return kv.store(key, value), nil
}

// Create stores a value only when the key is absent.
func (kv *MockKVStore) Create(_ context.Context, key string, value []byte) (uint64, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.FailWith != nil {
		return 0, kv.FailWith
	}
	if _, ok := kv.data[key]; ok {
		return 0, natsclient.ErrKVKeyExists
	}
	return kv.store(key, value), nil
}

// Update stores a value when revision matches the current one.
func (kv *MockKVStore) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.FailWith != nil {
		return 0, kv.FailWith
	}
	entry, ok := kv.data[key]
	if !ok || entry.Revision != revision {
		return 0, natsclient.ErrKVRevisionMismatch
	}
	return kv.store(key, value), nil
}

// Delete removes a key.
func (kv *MockKVStore) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.FailWith != nil {
		return kv.FailWith
	}
	if _, ok := kv.data[key]; !ok {
		return natsclient.ErrKVKeyNotFound
	}
	delete(kv.data, key)
	return nil
}

// Keys returns all keys in sorted order.
func (kv *MockKVStore) Keys(_ context.Context) ([]string, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	if kv.FailWith != nil {
		return nil, kv.FailWith
	}
	keys := make([]string, 0, len(kv.data))
	for k := range kv.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored keys.
func (kv *MockKVStore) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.data)
}

// Raw returns the stored bytes for key, failing loudly when absent.
func (kv *MockKVStore) Raw(key string) []byte {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	entry, ok := kv.data[key]
	if !ok {
		panic(fmt.Sprintf("testutil: key %q not stored", key))
	}
	return entry.Value
}
