package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/tswhison/ticker/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between
// refreshes. Concurrent calls wait until the interval has elapsed since
// the last refresh, or return early if the context is canceled.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) FetchAll(ctx context.Context, symbols []string) (map[string]provider.Quote, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	qs, err := m.P.FetchAll(ctx, symbols)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return qs, err
}
