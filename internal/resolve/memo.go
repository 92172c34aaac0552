package resolve

import (
	"context"
	"sync"

	"github.com/hybris-tools/tsls/internal/typesystem/access"
)

// Memo caches one computed value together with the modification stamp it was computed at.
// A stored value is returned while the tracker still reports that stamp; otherwise it is
// recomputed and replaced.
type Memo[V any] struct {
	mu    sync.Mutex
	stamp uint64
	valid bool
	value V
}

// Get returns the cached value or computes a new one. The lock is not held while compute
// runs. Failed or cancelled computations are never stored.
func (m *Memo[V]) Get(ctx context.Context, tracker *access.Tracker, compute func(context.Context) (V, error)) (V, error) {
	// sampled before compute reads the model so a concurrent rebuild can only make the
	// entry look older than it is
	stamp := tracker.Count()

	m.mu.Lock()
	if m.valid && m.stamp == stamp {
		v := m.value
		m.mu.Unlock()
		return v, nil
	}
	m.mu.Unlock()

	v, err := compute(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		var zero V
		return zero, err
	}

	m.mu.Lock()
	if !m.valid || m.stamp <= stamp {
		m.value = v
		m.stamp = stamp
		m.valid = true
	}
	m.mu.Unlock()
	return v, nil
}

// Stamp returns the stamp of the cached value and whether a value is cached
func (m *Memo[V]) Stamp() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stamp, m.valid
}

// Reset drops the cached value
func (m *Memo[V]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	m.value = zero
	m.valid = false
}
