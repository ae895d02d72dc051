package scraper

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// BackoffState is the per-target throttle state machine.
type BackoffState int

const (
	StateNormal BackoffState = iota
	StateThrottled
	StateCooling
)

func (s BackoffState) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateThrottled:
		return "throttled"
	case StateCooling:
		return "cooling"
	default:
		return "unknown"
	}
}

// GovernorConfig tunes the shared request budget.
type GovernorConfig struct {
	MaxInFlight    int64         // concurrency ceiling per target
	BaseBackoff    time.Duration // first throttle interval
	MaxBackoff     time.Duration // backoff ceiling
	RecoveryStreak int           // consecutive successes before Cooling decays to Normal
}

func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		MaxInFlight:    3,
		BaseBackoff:    5 * time.Second,
		MaxBackoff:     5 * time.Minute,
		RecoveryStreak: 10,
	}
}

// Governor tracks a shared request budget and backoff state per upstream
// target. Callers acquire a permit before each request and report the
// outcome afterwards. The governor delays callers but never fails them:
// the worst case is a long wait.
type Governor struct {
	cfg     GovernorConfig
	mu      sync.Mutex
	targets map[string]*targetState
}

type targetState struct {
	sem          *semaphore.Weighted
	state        BackoffState
	interval     time.Duration
	blockedUntil time.Time
	streak       int
}

func NewGovernor(cfg GovernorConfig) *Governor {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	return &Governor{
		cfg:     cfg,
		targets: make(map[string]*targetState),
	}
}

// Admit returns how long the caller must wait before issuing a request
// against target. Zero means the request may proceed now.
func (g *Governor) Admit(target string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.target(target)
	now := time.Now()

	if t.blockedUntil.After(now) {
		return t.blockedUntil.Sub(now)
	}

	// The cooldown window has elapsed; start probing again.
	if t.state == StateThrottled {
		t.state = StateCooling
		t.streak = 0
	}

	return 0
}

// Acquire waits out any backoff delay for target, then takes an in-flight
// permit. It only returns an error when ctx is cancelled.
func (g *Governor) Acquire(ctx context.Context, target string) error {
	for {
		wait := g.Admit(target)
		if wait <= 0 {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	g.mu.Lock()
	sem := g.target(target).sem
	g.mu.Unlock()

	return sem.Acquire(ctx, 1)
}

// Release returns an in-flight permit for target.
func (g *Governor) Release(target string) {
	g.mu.Lock()
	sem := g.target(target).sem
	g.mu.Unlock()

	sem.Release(1)
}

// ReportThrottle records a 429/503-class response for target. Each
// consecutive throttle event doubles the cooldown interval up to the cap,
// with randomized jitter so concurrent workers do not retry in lockstep.
func (g *Governor) ReportThrottle(target string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.target(target)

	switch t.state {
	case StateThrottled:
		t.interval = min(t.interval*2, g.cfg.MaxBackoff)
	default:
		t.interval = g.cfg.BaseBackoff
	}

	t.state = StateThrottled
	t.streak = 0
	t.blockedUntil = time.Now().Add(withJitter(t.interval))

	slog.Warn("Upstream throttled", "target", target, "state", t.state.String(), "cooldown", t.interval.String())
}

// ReportSuccess records a successful request. A sustained run of successes
// decays a Cooling target back to Normal and resets its backoff interval.
func (g *Governor) ReportSuccess(target string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.target(target)
	if t.state != StateCooling {
		return
	}

	t.streak++
	if t.streak >= g.cfg.RecoveryStreak {
		t.state = StateNormal
		t.interval = 0
		t.streak = 0
		slog.Debug("Upstream recovered", "target", target)
	}
}

// State reports the current backoff state for target.
func (g *Governor) State(target string) BackoffState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.target(target).state
}

// target returns the state for a target, creating it on first use.
// Caller must hold g.mu.
func (g *Governor) target(name string) *targetState {
	t, ok := g.targets[name]
	if !ok {
		t = &targetState{sem: semaphore.NewWeighted(g.cfg.MaxInFlight)}
		g.targets[name] = t
	}
	return t
}

// withJitter spreads d by up to ±20%.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	spread := int64(d) / 5
	return d + time.Duration(rand.Int63n(2*spread+1)-spread)
}
