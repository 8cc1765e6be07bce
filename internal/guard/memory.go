package guard

import (
	"context"
	"sync"
	"time"
)

type windowState struct {
	failures    int
	windowStart time.Time
}

// MemoryGuard is a fixed-window failure counter held in process memory.
// Good for a single instance; multi-instance deployments use RedisGuard so
// all replicas share lockout state.
type MemoryGuard struct {
	mu     sync.Mutex
	state  map[string]*windowState
	max    int
	window time.Duration
	now    func() time.Time
}

// NewMemoryGuard returns a guard that blocks a key after max failures
// within the window.
func NewMemoryGuard(max int, window time.Duration) *MemoryGuard {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &MemoryGuard{
		state:  make(map[string]*windowState),
		max:    max,
		window: window,
		now:    time.Now,
	}
}

func (g *MemoryGuard) CheckAllowed(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.state[key]
	if !ok {
		return true, nil
	}
	if g.now().Sub(st.windowStart) >= g.window {
		delete(g.state, key)
		return true, nil
	}
	return st.failures < g.max, nil
}

func (g *MemoryGuard) ReportFailure(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	st, ok := g.state[key]
	if !ok || now.Sub(st.windowStart) >= g.window {
		g.state[key] = &windowState{failures: 1, windowStart: now}
		return nil
	}
	st.failures++
	return nil
}

func (g *MemoryGuard) ReportSuccess(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.state, key)
	return nil
}
