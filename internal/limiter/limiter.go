// Package limiter bounds concurrent work per key inside one process.
package limiter

import (
	"context"
	"strings"
	"sync"
)

// Slots hands out at most max concurrent slots per key.
type Slots struct {
	max int
	mu  sync.Mutex
	sem map[string]chan struct{}
}

// New creates a limiter allowing max holders per key.
func New(max int) *Slots {
	if max <= 0 {
		max = 2
	}
	return &Slots{max: max, sem: map[string]chan struct{}{}}
}

func (s *Slots) channel(key string) chan struct{} {
	key = strings.ToLower(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.sem[key]
	if !ok {
		ch = make(chan struct{}, s.max)
		s.sem[key] = ch
	}
	return ch
}

// Allow tries to reserve a slot for key without waiting.
// Returns a release function and true if allowed; otherwise a no-op and false.
func (s *Slots) Allow(key string) (func(), bool) {
	ch := s.channel(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return func() {}, false
	}
}

// Acquire waits for a slot for key until ctx ends.
func (s *Slots) Acquire(ctx context.Context, key string) (func(), error) {
	ch := s.channel(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
