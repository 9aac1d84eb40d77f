// Package fifomu provides a mutex whose waiters are granted the lock
// strictly in the order they asked for it. sync.Mutex makes no fairness
// guarantee under contention, which matters when the protected resource
// is a remote session and callers expect to be served in arrival order.
package fifomu

import (
	"context"
	"sync"
)

type Mutex struct {
	mu      sync.Mutex
	locked  bool
	waiters []chan struct{}
}

// Lock blocks until the lock is acquired or ctx is done. A waiter that
// gives up leaves the queue without disturbing the order of the others.
func (m *Mutex) Lock(ctx context.Context) error {
	m.mu.Lock()
	if !m.locked && len(m.waiters) == 0 {
		m.locked = true
		m.mu.Unlock()
		return nil
	}

	grant := make(chan struct{})
	m.waiters = append(m.waiters, grant)
	m.mu.Unlock()

	select {
	case <-grant:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		for i, w := range m.waiters {
			if w == grant {
				m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
				m.mu.Unlock()
				return ctx.Err()
			}
		}
		m.mu.Unlock()
		// the grant raced with cancellation, pass the lock along
		m.Unlock()
		return ctx.Err()
	}
}

// Unlock hands the lock to the oldest waiter, if any.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.locked {
		panic("fifomu: unlock of an unlocked mutex")
	}
	if len(m.waiters) > 0 {
		grant := m.waiters[0]
		m.waiters = m.waiters[1:]
		// ownership transfers directly, locked stays true
		close(grant)
		return
	}
	m.locked = false
}
