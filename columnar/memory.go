package columnar

import (
	"fmt"
	"maps"
	"slices"
)

type memorySource struct {
	arrays map[string]Array
}

// NewMemorySource serves arrays held in memory.
func NewMemorySource(arrays map[string]Array) Source {
	return &memorySource{arrays: arrays}
}

func (m *memorySource) Keys() []string {
	return slices.Sorted(maps.Keys(m.arrays))
}

func (m *memorySource) Read(key string) (Array, error) {
	a, found := m.arrays[key]
	if !found {
		return Array{}, fmt.Errorf("%w: %s", ErrNoKey, key)
	}
	return a, nil
}

func (m *memorySource) Close() error {
	return nil
}
