package store

import (
	"context"
	"fmt"
	"sync"
)

// Mem is an in-memory Store used in tests.
//
// FailReads and FailWrites make the next matching operation fail with an
// ErrStorage-wrapped error so callers' degradation paths can be exercised.
type Mem struct {
	mu   sync.Mutex
	data map[string]string

	// FailReads makes Get and ListKeys fail while set.
	FailReads bool

	// FailWrites makes Set, Remove and RemoveMany fail while set.
	FailWrites bool
}

// NewMem creates an empty in-memory store.
func NewMem() *Mem {
	return &Mem{data: make(map[string]string)}
}

// Get implements Store.Get.
func (m *Mem) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailReads {
		return "", false, fmt.Errorf("%w: injected read failure", ErrStorage)
	}

	value, ok := m.data[key]
	return value, ok, nil
}

// Set implements Store.Set.
func (m *Mem) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return fmt.Errorf("%w: injected write failure", ErrStorage)
	}

	m.data[key] = value
	return nil
}

// Remove implements Store.Remove.
func (m *Mem) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return fmt.Errorf("%w: injected write failure", ErrStorage)
	}

	delete(m.data, key)
	return nil
}

// ListKeys implements Store.ListKeys.
func (m *Mem) ListKeys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailReads {
		return nil, fmt.Errorf("%w: injected read failure", ErrStorage)
	}

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys, nil
}

// RemoveMany implements Store.RemoveMany.
func (m *Mem) RemoveMany(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return fmt.Errorf("%w: injected write failure", ErrStorage)
	}

	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Len returns the number of stored keys.
func (m *Mem) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
