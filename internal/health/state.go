package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/podpulse/podpulse/internal/xerrors"
)

// Reason prefixes on probe failures. Handlers map any failure to 503;
// the reason text distinguishes a time gate from an explicit toggle.
const (
	ReasonUnhealthy  = "unhealthy"
	ReasonNotReady   = "not ready"
	ReasonStartingUp = "starting up"
)

// State is the process-wide probe state: two toggleable flags and the
// start time. Both flags begin true; a restart is the only reset.
//
// Flag reads and flips are atomic. Concurrent toggles are
// last-writer-wins: each call fully applies its own negation, but the
// net state under racing callers depends on interleaving. That is an
// accepted property of the demo, not something to serialize away.
type State struct {
	live      atomic.Bool
	ready     atomic.Bool
	startedAt time.Time
	now       func() time.Time
}

// NewState returns a State anchored at the current time.
func NewState() *State {
	return NewStateAt(time.Now(), time.Now)
}

// NewStateAt anchors the state at startedAt and reads the clock through
// now. Tests inject both to make time gating deterministic.
func NewStateAt(startedAt time.Time, now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	s := &State{startedAt: startedAt, now: now}
	s.live.Store(true)
	s.ready.Store(true)
	return s
}

func (s *State) Live() bool  { return s.live.Load() }
func (s *State) Ready() bool { return s.ready.Load() }

// ToggleLive negates the live flag and returns the new value.
func (s *State) ToggleLive() bool { return toggle(&s.live) }

// ToggleReady negates the ready flag and returns the new value.
func (s *State) ToggleReady() bool { return toggle(&s.ready) }

// toggle applies a full negation of the value observed at call time.
func toggle(b *atomic.Bool) bool {
	for {
		old := b.Load()
		if b.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (s *State) StartedAt() time.Time { return s.startedAt }

func (s *State) Uptime() time.Duration { return s.now().Sub(s.startedAt) }

// LivenessProbe fails whenever the live flag is off. It never looks at
// the clock: liveness is unaffected by startup windows.
func (s *State) LivenessProbe() Func {
	return func(context.Context) error {
		if !s.live.Load() {
			return xerrors.New(ReasonUnhealthy + ": liveness toggled off")
		}
		return nil
	}
}

// ReadinessProbe fails during the startup delay window regardless of
// the ready flag, then reflects the flag.
func (s *State) ReadinessProbe(delay time.Duration) Func {
	return func(context.Context) error {
		if remaining := delay - s.Uptime(); remaining > 0 {
			return xerrors.Newf("%s: %.1fs remaining", ReasonStartingUp, remaining.Seconds())
		}
		if !s.ready.Load() {
			return xerrors.New(ReasonNotReady + ": readiness toggled off")
		}
		return nil
	}
}

// StartupProbe fails until the grace window has elapsed, then passes
// for the rest of the process lifetime. The flags never factor in.
func (s *State) StartupProbe(grace time.Duration) Func {
	return func(context.Context) error {
		if remaining := grace - s.Uptime(); remaining > 0 {
			return xerrors.Newf("%s: %.1fs remaining", ReasonStartingUp, remaining.Seconds())
		}
		return nil
	}
}
