package main

import (
	"math/rand"
	"sync"
	"sync/atomic"
)

const (
	CritRollMax          = 250 // trigger roll is uniform over 1..CritRollMax
	CritCountdownStart   = 4   // countdown steps for a standard elite
	BossRestartCountdown = 3   // countdown steps for a ravager re-entry

	// CritStepTicks is one second's worth of ticks per countdown step
	CritStepTicks = TickRate

	CritEliteMultiplier  = 4.0
	CritNormalMultiplier = 2.0

	BossEnrageThreshold   = 50000  // tiers 1-5
	BossEnrageThresholdT6 = 100000 // tier 6
)

// critThresholds maps tier (1-6) to the trigger threshold out of CritRollMax
var critThresholds = [6]int{5, 7, 10, 13, 20, 20}

func critThreshold(tier int) int {
	if tier < 1 || tier > 6 {
		return 20
	}
	return critThresholds[tier-1]
}

func bossEnrageThreshold(tier int) int {
	if tier >= 6 {
		return BossEnrageThresholdT6
	}
	return BossEnrageThreshold
}

// Actor is the mob-side view the crit engine needs
type Actor interface {
	ActorID() string
	ActorTier() int
	IsElite() bool
	IsBoss() bool
	CurrentHealth() int
	Valid() bool
	WeaponRange() (min, max int, ok bool)
	Pos() (x, y float64)
	Status() *StatusSet
}

// Combatant is the target-side view the crit engine needs
type Combatant interface {
	CombatantID() string
	Pos() (x, y float64)
	ApplyRawDamage(dmg int) bool
	Launch(vx, vy, vz float64)
	Status() *StatusSet
	Competing() bool
}

// Arena supplies spatial queries and telegraph fan-out. The session game
// implements it; tests supply fakes.
type Arena interface {
	CombatantsWithin(x, y, radius float64) []Combatant
	AnnounceCrit(ev CritEvent)
}

// CritEventKind tags telegraph events emitted by the engine
type CritEventKind int

const (
	CritEventTrigger   CritEventKind = 0 // lifecycle started
	CritEventWarn      CritEventKind = 1 // countdown stepped down, still > 0
	CritEventPulse     CritEventKind = 2 // cosmetic flare on a charged mob
	CritEventWhirlwind CritEventKind = 3 // explosion resolved
)

// CritEvent is the telegraph feedback a lifecycle emits
type CritEvent struct {
	Kind      CritEventKind
	ActorID   string
	Tier      int
	Boss      bool
	Countdown int
	Damage    int
	Targets   []string
}

// critPhase is the tagged variant for a lifecycle's progression: either
// still counting down or already charged. Non-elites are created charged,
// so a non-elite with a live countdown is unrepresentable.
type critPhase int

const (
	phaseCountdown critPhase = 0
	phaseCharged   critPhase = 1
)

// CritState is one actor's ongoing crit lifecycle. Identity fields are a
// snapshot taken at trigger time; phase fields mutate under the manager's
// lock. The immobilized flag is atomic because the one-time movement-lock
// side effect can race between the scheduler tick and a consumption call.
type CritState struct {
	actor       Actor
	id          string
	tier        int
	elite       bool
	boss        bool
	bossRestart bool
	phase       critPhase
	remaining   int // countdown steps left, phaseCountdown only
	ticksLeft   int // ticks until the next step-down
	immobilized atomic.Bool
}

// AttackResult is returned by ResolveAttackDamage for caller-side feedback
type AttackResult struct {
	Damage      float64
	WasCritical bool
	Multiplier  float64
}

// CritStats is a monitoring snapshot
type CritStats struct {
	Active          int
	Charged         int
	TotalTriggered  int64
	TotalExplosions int64
}

// CritManager owns the registry of active crit lifecycles for one session.
// The session game loop drives Advance once per tick; trigger and
// consumption calls arrive from attack handling and may interleave freely.
type CritManager struct {
	arena Arena

	mu      sync.RWMutex
	states  map[string]*CritState
	pending []Actor // boss restarts to materialize on the next pass

	rngMu sync.Mutex
	rng   *rand.Rand

	down            atomic.Bool
	totalTriggered  atomic.Int64
	totalExplosions atomic.Int64
}

// NewCritManager creates a manager bound to an arena. The seed fixes the
// trigger/damage rolls, which tests rely on.
func NewCritManager(arena Arena, seed int64) *CritManager {
	return &CritManager{
		arena:  arena,
		states: make(map[string]*CritState),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (cm *CritManager) roll(n int) int {
	cm.rngMu.Lock()
	defer cm.rngMu.Unlock()
	return cm.rng.Intn(n)
}

// TryTrigger rolls for a crit lifecycle on an attack attempt. Returns true
// if a lifecycle was created. A no-op when the actor already has one, is
// invalid, or the manager is shut down.
func (cm *CritManager) TryTrigger(actor Actor) bool {
	if actor == nil || !actor.Valid() || cm.down.Load() {
		return false
	}

	id := actor.ActorID()
	cm.mu.RLock()
	_, exists := cm.states[id]
	cm.mu.RUnlock()
	if exists {
		return false
	}

	rolled := 1 + cm.roll(CritRollMax)
	if rolled > critThreshold(actor.ActorTier()) {
		return false
	}

	st := newCritState(actor, false)

	cm.mu.Lock()
	if cm.down.Load() {
		cm.mu.Unlock()
		return false
	}
	if _, exists := cm.states[id]; exists {
		cm.mu.Unlock()
		return false
	}
	cm.states[id] = st
	cm.mu.Unlock()

	cm.totalTriggered.Add(1)
	if st.phase == phaseCountdown {
		cm.beginCountdown(st)
	}
	cm.arena.AnnounceCrit(CritEvent{
		Kind:      CritEventTrigger,
		ActorID:   id,
		Tier:      st.tier,
		Boss:      st.boss,
		Countdown: st.remaining,
	})
	return true
}

// newCritState snapshots the actor and picks its initial path: elites get
// the countdown machine, everything else starts charged.
func newCritState(actor Actor, bossRestart bool) *CritState {
	st := &CritState{
		actor:       actor,
		id:          actor.ActorID(),
		tier:        actor.ActorTier(),
		elite:       actor.IsElite(),
		boss:        actor.IsBoss(),
		bossRestart: bossRestart,
	}
	switch {
	case bossRestart:
		st.phase = phaseCountdown
		st.remaining = BossRestartCountdown
		st.ticksLeft = CritStepTicks
	case st.elite:
		st.phase = phaseCountdown
		st.remaining = CritCountdownStart
		st.ticksLeft = CritStepTicks
	default:
		st.phase = phaseCharged
	}
	return st
}

// beginCountdown applies the one-time entry effects of the countdown
// machine. A normal elite roots itself in place for the telegraph; a
// ravager instead roots nearby players, shrugs off damage, and speeds up
// or slows down depending on how hurt it is.
func (cm *CritManager) beginCountdown(st *CritState) {
	if !st.immobilized.CompareAndSwap(false, true) {
		return
	}
	defer func() { recover() }() // a failed status call must not stall the lifecycle

	lockTicks := (st.remaining + 1) * CritStepTicks
	if !st.boss {
		st.actor.Status().Apply(StatusRoot, lockTicks)
		return
	}

	x, y := st.actor.Pos()
	for _, c := range cm.arena.CombatantsWithin(x, y, WhirlwindRadius) {
		if c.Competing() {
			c.Status().Apply(StatusRoot, lockTicks)
		}
	}
	st.actor.Status().Apply(StatusResist, lockTicks)
	if st.actor.CurrentHealth() < bossEnrageThreshold(st.tier) {
		st.actor.Status().Apply(StatusHaste, lockTicks)
	} else {
		st.actor.Status().Apply(StatusSlow, lockTicks)
	}
}

// ResolveAttackDamage applies a charged crit to a landed attack. When the
// actor has no charged lifecycle this is not an error: the original damage
// passes through untouched. Consumption removes the registry entry first,
// so a lifecycle grants exactly one boosted attack and can never also
// explode.
func (cm *CritManager) ResolveAttackDamage(actor Actor, target Combatant, baseDamage float64) AttackResult {
	miss := AttackResult{Damage: baseDamage, WasCritical: false, Multiplier: 1.0}
	if actor == nil || target == nil {
		return miss
	}

	id := actor.ActorID()
	cm.mu.Lock()
	st, ok := cm.states[id]
	if !ok || st.phase != phaseCharged {
		cm.mu.Unlock()
		return miss
	}
	delete(cm.states, id)
	cm.mu.Unlock()

	cm.cleanup(st)

	mult := CritNormalMultiplier
	if st.elite {
		mult = CritEliteMultiplier
	}
	return AttackResult{
		Damage:      baseDamage * mult,
		WasCritical: true,
		Multiplier:  mult,
	}
}

// Advance runs one scheduler pass: materialize queued boss restarts, purge
// lifecycles whose actor no longer resolves, step every countdown, and
// fire whirlwinds for countdowns that completed this tick.
func (cm *CritManager) Advance(tick uint64) {
	if cm.down.Load() {
		return
	}

	var started []*CritState
	var purged []*CritState
	var exploded []*CritState
	var events []CritEvent

	cm.mu.Lock()
	if len(cm.pending) > 0 {
		for _, actor := range cm.pending {
			if !actor.Valid() {
				continue
			}
			if _, exists := cm.states[actor.ActorID()]; exists {
				continue
			}
			st := newCritState(actor, true)
			cm.states[st.id] = st
			started = append(started, st)
		}
		cm.pending = cm.pending[:0]
	}

	for id, st := range cm.states {
		if !st.actor.Valid() {
			delete(cm.states, id)
			purged = append(purged, st)
			continue
		}

		if st.phase == phaseCharged {
			// No countdown work; periodic cosmetic flare only
			if tick%CritStepTicks == 0 {
				events = append(events, CritEvent{
					Kind:    CritEventPulse,
					ActorID: id,
					Tier:    st.tier,
				})
			}
			continue
		}

		st.ticksLeft--
		if st.ticksLeft > 0 {
			continue
		}
		st.remaining--
		st.ticksLeft = CritStepTicks
		if st.remaining > 0 {
			events = append(events, CritEvent{
				Kind:      CritEventWarn,
				ActorID:   id,
				Tier:      st.tier,
				Boss:      st.boss,
				Countdown: st.remaining,
			})
			continue
		}
		// Charged: the countdown machine self-consumes via the whirlwind.
		// Removing the entry here makes the explosion the sole terminal
		// path for this lifecycle.
		st.phase = phaseCharged
		delete(cm.states, id)
		exploded = append(exploded, st)
	}
	cm.mu.Unlock()

	for _, st := range started {
		cm.beginCountdown(st)
		events = append(events, CritEvent{
			Kind:      CritEventTrigger,
			ActorID:   st.id,
			Tier:      st.tier,
			Boss:      st.boss,
			Countdown: st.remaining,
		})
	}
	for _, st := range purged {
		cm.cleanup(st)
	}
	for _, ev := range events {
		cm.arena.AnnounceCrit(ev)
	}
	for _, st := range exploded {
		cm.resolveWhirlwind(st)
	}
}

// cleanup unwinds the one-time side effects a lifecycle applied
func (cm *CritManager) cleanup(st *CritState) {
	defer func() { recover() }()
	if !st.immobilized.Load() {
		return
	}
	if st.boss {
		x, y := st.actor.Pos()
		for _, c := range cm.arena.CombatantsWithin(x, y, WhirlwindRadius) {
			c.Status().Clear(StatusRoot)
		}
		s := st.actor.Status()
		s.Clear(StatusResist)
		s.Clear(StatusHaste)
		s.Clear(StatusSlow)
		return
	}
	st.actor.Status().Clear(StatusRoot)
}

// IsActive reports whether the actor has any crit lifecycle
func (cm *CritManager) IsActive(actorID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.states[actorID]
	return ok
}

// IsCharged reports whether the actor's next attack will crit
func (cm *CritManager) IsCharged(actorID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	st, ok := cm.states[actorID]
	return ok && st.phase == phaseCharged
}

// CountdownOf returns the remaining countdown steps, 0 when charged, or
// -1 when the actor has no lifecycle
func (cm *CritManager) CountdownOf(actorID string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	st, ok := cm.states[actorID]
	if !ok {
		return -1
	}
	if st.phase == phaseCharged {
		return 0
	}
	return st.remaining
}

// ForceClear cancels an actor's lifecycle, unwinding its side effects.
// Used on despawn/removal notifications.
func (cm *CritManager) ForceClear(actorID string) {
	cm.mu.Lock()
	st, ok := cm.states[actorID]
	if ok {
		delete(cm.states, actorID)
	}
	cm.mu.Unlock()
	if ok {
		cm.cleanup(st)
	}
}

// Stats returns a monitoring snapshot
func (cm *CritManager) Stats() CritStats {
	cm.mu.RLock()
	active := len(cm.states)
	charged := 0
	for _, st := range cm.states {
		if st.phase == phaseCharged {
			charged++
		}
	}
	cm.mu.RUnlock()
	return CritStats{
		Active:          active,
		Charged:         charged,
		TotalTriggered:  cm.totalTriggered.Load(),
		TotalExplosions: cm.totalExplosions.Load(),
	}
}

// Shutdown halts scheduler passes and force-cleans every remaining entry
func (cm *CritManager) Shutdown() {
	cm.down.Store(true)
	cm.mu.Lock()
	remaining := make([]*CritState, 0, len(cm.states))
	for _, st := range cm.states {
		remaining = append(remaining, st)
	}
	cm.states = make(map[string]*CritState)
	cm.pending = nil
	cm.mu.Unlock()
	for _, st := range remaining {
		cm.cleanup(st)
	}
}
