// Package bridge holds the shared meter state and the HTTP surface the
// show-control system consumes: current readings, the derived 2-minute Leq,
// the start/stop/restart/shutdown state machine, and the subscription
// keepalive.
package bridge

import (
	"sync"
	"time"

	"github.com/jensen-user/rew-bridge/internal/leq"
	"github.com/jensen-user/rew-bridge/internal/rew"
)

// State is the single shared record of what the bridge currently believes
// about REW and the running measurement. All access goes through methods;
// the mutex also guards the owned sample window.
//
// rewRunning and measurementActive are deliberately independent: the
// keepalive loop flips only rewRunning when REW stops answering, and the
// next telemetry push or explicit command corrects measurementActive. The
// distinction between "bridge lost REW" and "measurement was stopped" is
// operator-visible and worth keeping.
type State struct {
	mu sync.Mutex

	splASlow  float64
	hasSPL    bool
	leq15m    float64
	hasLeq15m bool
	leq1m     float64
	leq10m    float64
	elapsed   float64

	lastUpdate        time.Time
	rewRunning        bool
	measurementActive bool

	window *leq.Window

	now func() time.Time
}

// NewState builds the process-lifetime state record around the given sample
// window, which it owns from then on.
func NewState(window *leq.Window) *State {
	if window == nil {
		window = leq.NewWindow(leq.DefaultCapacity)
	}
	return &State{window: window, now: time.Now}
}

// Snapshot is a point-in-time copy of the state for response rendering.
type Snapshot struct {
	SPLASlow          float64
	HasSPL            bool
	Leq2m             float64
	HasLeq2m          bool
	Leq15m            float64
	HasLeq15m         bool
	Leq1m             float64
	Leq10m            float64
	Elapsed           float64
	LastUpdate        time.Time
	RewRunning        bool
	MeasurementActive bool
	BufferSamples     int
}

// ApplyUpdate records one telemetry push. Readings are overwritten
// unconditionally, the raw SPL enters the sample window, and receiving
// telemetry at all marks the measurement active regardless of the last
// command the bridge itself issued. The update timestamp only advances.
func (s *State) ApplyUpdate(u rew.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.splASlow = u.SPL
	s.hasSPL = true
	if u.IsRollingLeq && u.RollingLeqMinutes == 15 {
		s.leq15m = u.Leq
		s.hasLeq15m = true
	}
	s.leq1m = u.Leq1m
	s.leq10m = u.Leq10m
	s.elapsed = u.ElapsedTime

	if now := s.now(); now.After(s.lastUpdate) {
		s.lastUpdate = now
	}
	s.measurementActive = true
	s.window.Push(u.SPL)
}

// Snapshot returns a copy of the current state, with the 2-minute Leq
// computed under the same lock so readings and metric are consistent.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SPLASlow:          s.splASlow,
		HasSPL:            s.hasSPL,
		Leq15m:            s.leq15m,
		HasLeq15m:         s.hasLeq15m,
		Leq1m:             s.leq1m,
		Leq10m:            s.leq10m,
		Elapsed:           s.elapsed,
		LastUpdate:        s.lastUpdate,
		RewRunning:        s.rewRunning,
		MeasurementActive: s.measurementActive,
		BufferSamples:     s.window.Len(),
	}
	snap.Leq2m, snap.HasLeq2m = s.window.Value()
	return snap
}

// SetRunning records whether the REW process is believed alive and reachable.
func (s *State) SetRunning(v bool) {
	s.mu.Lock()
	s.rewRunning = v
	s.mu.Unlock()
}

// Running reports the current process-liveness belief.
func (s *State) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewRunning
}

// SetActive records whether a measurement run is logically started.
func (s *State) SetActive(v bool) {
	s.mu.Lock()
	s.measurementActive = v
	s.mu.Unlock()
}

// Active reports whether a measurement run is logically started.
func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.measurementActive
}

// ClearWindow empties the sample window, e.g. when a new run starts.
func (s *State) ClearWindow() {
	s.mu.Lock()
	s.window.Clear()
	s.mu.Unlock()
}
