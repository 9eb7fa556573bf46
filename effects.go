package main

import "sync"

// StatusKind identifies a timed status effect
type StatusKind int

const (
	StatusRoot   StatusKind = 0 // movement locked
	StatusSlow   StatusKind = 1
	StatusHaste  StatusKind = 2
	StatusResist StatusKind = 3

	statusKindCount = 4
)

const (
	SlowFactor   = 0.5 // movement multiplier under slow
	HasteFactor  = 1.5 // movement multiplier under haste
	ResistFactor = 0.5 // damage multiplier under resist
)

// StatusSet tracks timed status effects on one entity. Durations are in
// game ticks, decremented by the session loop; the crit engine applies and
// clears entries from its own call sites, so every access takes the mutex.
type StatusSet struct {
	mu    sync.Mutex
	ticks [statusKindCount]int
}

// Apply sets a status for the given number of ticks. A shorter reapply
// never truncates a longer remaining duration.
func (s *StatusSet) Apply(kind StatusKind, duration int) {
	if kind < 0 || kind >= statusKindCount || duration <= 0 {
		return
	}
	s.mu.Lock()
	if duration > s.ticks[kind] {
		s.ticks[kind] = duration
	}
	s.mu.Unlock()
}

// Clear removes a status immediately
func (s *StatusSet) Clear(kind StatusKind) {
	if kind < 0 || kind >= statusKindCount {
		return
	}
	s.mu.Lock()
	s.ticks[kind] = 0
	s.mu.Unlock()
}

// ClearAll removes every status
func (s *StatusSet) ClearAll() {
	s.mu.Lock()
	for i := range s.ticks {
		s.ticks[i] = 0
	}
	s.mu.Unlock()
}

// Has reports whether a status is active
func (s *StatusSet) Has(kind StatusKind) bool {
	if kind < 0 || kind >= statusKindCount {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks[kind] > 0
}

// Tick decrements all active durations by one tick
func (s *StatusSet) Tick() {
	s.mu.Lock()
	for i := range s.ticks {
		if s.ticks[i] > 0 {
			s.ticks[i]--
		}
	}
	s.mu.Unlock()
}

// SpeedFactor returns the movement multiplier from active statuses.
// Root wins over everything; haste and slow cancel out.
func (s *StatusSet) SpeedFactor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticks[StatusRoot] > 0 {
		return 0
	}
	f := 1.0
	if s.ticks[StatusSlow] > 0 {
		f *= SlowFactor
	}
	if s.ticks[StatusHaste] > 0 {
		f *= HasteFactor
	}
	return f
}

// DamageFactor returns the incoming-damage multiplier from active statuses
func (s *StatusSet) DamageFactor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticks[StatusResist] > 0 {
		return ResistFactor
	}
	return 1.0
}
