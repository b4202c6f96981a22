package cache

import "sync"

type entry[T any] struct {
	value T
	err   error
}

// Memo remembers the outcome of a load per key, errors included.
// The zero value is not usable; create one with New.
type Memo[T any] struct {
	mu    sync.Mutex
	items map[string]entry[T]
}

// New creates an empty Memo.
func New[T any]() *Memo[T] {
	return &Memo[T]{
		items: make(map[string]entry[T]),
	}
}

// Do returns the remembered outcome for key, calling load on the first use.
// A nil Memo calls load every time.
func (m *Memo[T]) Do(key string, load func() (T, error)) (T, error) {
	if m == nil {
		return load()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.items[key]; ok {
		return cached.value, cached.err
	}

	value, err := load()
	m.items[key] = entry[T]{value: value, err: err}

	return value, err
}

// Len returns the number of remembered keys.
func (m *Memo[T]) Len() int {
	if m == nil {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.items)
}
