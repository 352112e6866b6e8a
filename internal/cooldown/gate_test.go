// ABOUTME: Tests for the per-user cooldown gate
// ABOUTME: Covers window math, burst denial, user isolation, and sweeping

package cooldown

import (
	"sync"
	"testing"
	"time"
)

func TestAllow_FirstRequestPasses(t *testing.T) {
	g := New(2 * time.Second)
	defer g.Close()

	if !g.Allow(1, time.Now()) {
		t.Error("first request for a new user should pass")
	}
}

func TestAllow_InsideWindowDenied(t *testing.T) {
	g := New(2 * time.Second)
	defer g.Close()

	base := time.Now()
	if !g.Allow(1, base) {
		t.Fatal("first request should pass")
	}
	if g.Allow(1, base.Add(1*time.Second)) {
		t.Error("request at 0.5*window should be denied")
	}
	if !g.Allow(1, base.Add(3*time.Second)) {
		t.Error("request at 1.5*window should pass")
	}
}

func TestAllow_BurstAllDenied(t *testing.T) {
	// A denied request must not advance the cooldown, so every request in
	// a burst inside the window fails, not just every other one.
	g := New(2 * time.Second)
	defer g.Close()

	base := time.Now()
	if !g.Allow(7, base) {
		t.Fatal("first request should pass")
	}
	for i := 1; i <= 5; i++ {
		at := base.Add(time.Duration(i) * 300 * time.Millisecond)
		if g.Allow(7, at) {
			t.Errorf("burst request %d inside window was allowed", i)
		}
	}
	if !g.Allow(7, base.Add(2100*time.Millisecond)) {
		t.Error("request just past the window should pass")
	}
}

func TestAllow_UsersIndependent(t *testing.T) {
	g := New(2 * time.Second)
	defer g.Close()

	base := time.Now()
	if !g.Allow(1, base) {
		t.Fatal("user 1 first request should pass")
	}
	if !g.Allow(2, base) {
		t.Error("user 2 should not be affected by user 1's cooldown")
	}
}

func TestAllow_Concurrent(t *testing.T) {
	g := New(2 * time.Second)
	defer g.Close()

	const workers = 16
	base := time.Now()

	var wg sync.WaitGroup
	allowed := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- g.Allow(42, base)
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Errorf("exactly one concurrent request at the same instant should pass, got %d", count)
	}
}

func TestRunSweep_DropsIdleUsers(t *testing.T) {
	g := New(2 * time.Second)
	defer g.Close()

	base := time.Now()
	g.Allow(1, base)
	g.Allow(2, base.Add(25*time.Second))

	g.runSweep(base.Add(30 * time.Second))

	g.mu.Lock()
	_, hasOld := g.users[1]
	_, hasRecent := g.users[2]
	g.mu.Unlock()

	if hasOld {
		t.Error("idle user should have been swept")
	}
	if !hasRecent {
		t.Error("recently seen user should not have been swept")
	}
}

func TestNew_DefaultWindow(t *testing.T) {
	g := New(0)
	defer g.Close()

	if g.Window() != DefaultWindow {
		t.Errorf("Window() = %v, want %v", g.Window(), DefaultWindow)
	}
}
