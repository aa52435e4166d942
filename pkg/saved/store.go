package saved

import (
	"slices"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Store holds encoded values by key. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value stored under key and whether it exists.
	Get(key string) ([]byte, bool, error)
	// Set stores value under key.
	Set(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Keys returns every stored key in sorted order.
	Keys() ([]string, error)
}

// MemoryStore is a Store kept in memory.
type MemoryStore struct {
	entries cmap.ConcurrentMap[string, []byte]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: cmap.New[[]byte]()}
}

// Get returns a copy of the value stored under key.
func (m *MemoryStore) Get(key string) ([]byte, bool, error) {
	v, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Set stores a copy of value under key.
func (m *MemoryStore) Set(key string, value []byte) error {
	m.entries.Set(key, slices.Clone(value))
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(key string) error {
	m.entries.Remove(key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() ([]string, error) {
	keys := m.entries.Keys()
	slices.Sort(keys)
	return keys, nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	return m.entries.Count()
}
