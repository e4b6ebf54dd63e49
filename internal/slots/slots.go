// Package slots bounds the number of scans a server runs at the same time.
// Each scan holds one slot from start to finish; further scans wait for a
// slot until their context ends.
package slots

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Stats is a point-in-time view of a Limiter.
type Stats struct {
	Capacity  int    `json:"capacity"`
	Active    int    `json:"active"`
	Available int    `json:"available"`
	Oldest    string `json:"oldest,omitempty"`
	Closed    bool   `json:"closed"`
}

// Limiter hands out a fixed number of scan slots keyed by scan ID.
type Limiter struct {
	capacity  int
	semaphore chan struct{}
	active    map[string]time.Time
	mu        sync.RWMutex
	closed    bool
}

// New creates a limiter with capacity slots. A capacity below one is
// treated as one.
func New(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = 1
	}

	return &Limiter{
		capacity:  capacity,
		semaphore: make(chan struct{}, capacity),
		active:    make(map[string]time.Time),
	}
}

// Acquire blocks until a slot is free for id or ctx ends.
func (l *Limiter) Acquire(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.RLock()
	closed := l.closed
	_, dup := l.active[id]
	l.mu.RUnlock()
	if closed {
		return fmt.Errorf("slot limiter is closed")
	}
	if dup {
		return fmt.Errorf("scan %s already holds a slot", id)
	}

	select {
	case l.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		<-l.semaphore
		return fmt.Errorf("slot limiter is closed")
	}
	l.active[id] = time.Now()
	return nil
}

// Release frees the slot held by id. Releasing an unknown id is a no-op.
func (l *Limiter) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.active[id]; !ok {
		return
	}
	delete(l.active, id)

	select {
	case <-l.semaphore:
	default:
	}
}

// Active returns the number of slots in use.
func (l *Limiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.active)
}

// Available returns the number of free slots.
func (l *Limiter) Available() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.capacity - len(l.active)
}

// Stats returns a snapshot of the limiter.
func (l *Limiter) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{
		Capacity:  l.capacity,
		Active:    len(l.active),
		Available: l.capacity - len(l.active),
		Closed:    l.closed,
	}

	var oldest time.Time
	for _, started := range l.active {
		if oldest.IsZero() || started.Before(oldest) {
			oldest = started
		}
	}
	if !oldest.IsZero() {
		s.Oldest = time.Since(oldest).Round(time.Millisecond).String()
	}
	return s
}

// Close rejects further acquisitions and forgets active holders.
func (l *Limiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.active = make(map[string]time.Time)

	for {
		select {
		case <-l.semaphore:
		default:
			return nil
		}
	}
}
