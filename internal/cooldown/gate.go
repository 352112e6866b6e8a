// ABOUTME: In-memory per-user cooldown gate backed by token-bucket limiters
// ABOUTME: Denies requests arriving within the cooldown window of the last allowed one

package cooldown

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultWindow is the cooldown applied when none is configured.
const DefaultWindow = 2 * time.Second

// userLimiter pairs a token bucket with the last time the user was seen,
// so stale entries can be swept.
type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Gate is a per-user cooldown limiter. Each user gets a token bucket with
// burst 1 refilling once per window: a request inside the window is denied
// without consuming anything, so a burst of requests all fail rather than
// every other one. The first request for an unknown user always passes.
//
// Gate is safe for concurrent use. State lives only in process memory and
// is owned by whichever component constructed the Gate; independent
// instances do not share state.
type Gate struct {
	mu     sync.Mutex
	users  map[int64]*userLimiter
	window time.Duration
	done   chan struct{}
	closed bool
}

// New creates a cooldown gate with the given window. A non-positive window
// falls back to DefaultWindow. A background goroutine sweeps entries idle
// for several windows.
func New(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	g := &Gate{
		users:  make(map[int64]*userLimiter),
		window: window,
		done:   make(chan struct{}),
	}
	go g.sweep()
	return g
}

// Window returns the configured cooldown window.
func (g *Gate) Window() time.Duration {
	return g.window
}

// Allow reports whether the user may act at the given instant. When it
// returns true the user's cooldown timestamp advances; when it returns
// false nothing is recorded, so the window is measured from the last
// allowed action, not the last attempt.
func (g *Gate) Allow(userID int64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	ul, ok := g.users[userID]
	if !ok {
		ul = &userLimiter{
			limiter: rate.NewLimiter(rate.Every(g.window), 1),
		}
		g.users[userID] = ul
	}
	ul.lastSeen = now

	return ul.limiter.AllowN(now, 1)
}

// sweep periodically drops limiters for users not seen recently. Entries
// older than ten windows carry a full token anyway, so dropping them does
// not change behavior.
func (g *Gate) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.runSweep(time.Now())
		case <-g.done:
			return
		}
	}
}

// runSweep removes entries idle for at least ten windows. Split out from
// sweep so tests can drive it with a fixed clock.
func (g *Gate) runSweep(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := 10 * g.window
	for id, ul := range g.users {
		if now.Sub(ul.lastSeen) >= cutoff {
			delete(g.users, id)
		}
	}
}

// Close stops the background sweeper. Safe to call multiple times.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		close(g.done)
		g.closed = true
	}
}
