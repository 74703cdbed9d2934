package rewrite

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Memo implements the memoization layer of spec §4.3: it guarantees at
// most one concurrent rewrite per dependency-fingerprint Key, and
// caches completed results for the lifetime of the process (never
// persisted between runs, per spec §4.3 point 3).
//
// Correctness hinges on registering the pending computation *before*
// awaiting any I/O (spec step 2); golang.org/x/sync/singleflight.Group
// does exactly that internally — a second caller with the same key
// inside Do joins the first caller's in-flight call rather than
// starting its own, which is the building block this type wraps with a
// permanent result cache on top (singleflight alone forgets a key the
// instant its one in-flight caller returns).
type Memo[V any] struct {
	inflight singleflight.Group
	mu       sync.Mutex
	done     map[any]V
}

// NewMemo returns an empty memoization table.
func NewMemo[V any]() *Memo[V] {
	return &Memo[V]{done: make(map[any]V)}
}

// Do returns the memoized result for key, computing it with fn if this
// is the first call (or the first concurrent call) to observe key.
// Concurrent calls with an equal key observe exactly one invocation of
// fn between them.
func (m *Memo[V]) Do(key Key, fn func() (V, error)) (V, error) {
	m.mu.Lock()
	if v, ok := m.done[key]; ok {
		m.mu.Unlock()
		return v, nil
	}
	m.mu.Unlock()

	// singleflight keys on a string; keys here are small comparable
	// structs (FullKey/OIDKey/PathKey/NameKey, or a filter-supplied
	// equivalent), so %#v round-trips uniquely for the life of one run.
	skey := fmt.Sprintf("%#v", key)
	result, err, _ := m.inflight.Do(skey, func() (any, error) {
		m.mu.Lock()
		if v, ok := m.done[key]; ok {
			m.mu.Unlock()
			return v, nil
		}
		m.mu.Unlock()

		v, err := fn()
		if err != nil {
			return v, err
		}
		m.mu.Lock()
		m.done[key] = v
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Len reports the number of completed, distinct computations — useful
// in tests asserting "the filter was invoked at most once per key"
// (spec §8).
func (m *Memo[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.done)
}
