package main

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeActor drives the crit engine without a full game behind it
type fakeActor struct {
	id    string
	tier  int
	elite bool
	boss  bool
	hp    int
	alive bool
	wmin  int
	wmax  int
	armed bool
	x, y  float64
	fx    StatusSet
}

func (a *fakeActor) ActorID() string          { return a.id }
func (a *fakeActor) ActorTier() int           { return a.tier }
func (a *fakeActor) IsElite() bool            { return a.elite }
func (a *fakeActor) IsBoss() bool             { return a.boss }
func (a *fakeActor) CurrentHealth() int       { return a.hp }
func (a *fakeActor) Valid() bool              { return a.alive }
func (a *fakeActor) Pos() (float64, float64)  { return a.x, a.y }
func (a *fakeActor) Status() *StatusSet       { return &a.fx }
func (a *fakeActor) WeaponRange() (int, int, bool) {
	return a.wmin, a.wmax, a.armed
}

// fakeCombatant records the damage and knockback it receives
type fakeCombatant struct {
	id        string
	x, y      float64
	competing bool
	rawHits   []int
	launches  [][3]float64
	fx        StatusSet
}

func (c *fakeCombatant) CombatantID() string     { return c.id }
func (c *fakeCombatant) Pos() (float64, float64) { return c.x, c.y }
func (c *fakeCombatant) Competing() bool         { return c.competing }
func (c *fakeCombatant) Status() *StatusSet      { return &c.fx }
func (c *fakeCombatant) ApplyRawDamage(dmg int) bool {
	c.rawHits = append(c.rawHits, dmg)
	return false
}
func (c *fakeCombatant) Launch(vx, vy, vz float64) {
	c.launches = append(c.launches, [3]float64{vx, vy, vz})
}

// fakeArena supplies a fixed combatant set and records telegraph events
type fakeArena struct {
	mu         sync.Mutex
	combatants []Combatant
	events     []CritEvent
}

func (a *fakeArena) CombatantsWithin(x, y, radius float64) []Combatant {
	r2 := radius * radius
	var out []Combatant
	for _, c := range a.combatants {
		cx, cy := c.Pos()
		if DistanceSq(cx, cy, x, y) <= r2 {
			out = append(out, c)
		}
	}
	return out
}

func (a *fakeArena) AnnounceCrit(ev CritEvent) {
	a.mu.Lock()
	a.events = append(a.events, ev)
	a.mu.Unlock()
}

func (a *fakeArena) eventsOf(kind CritEventKind) []CritEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []CritEvent
	for _, ev := range a.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func newEliteActor(id string, tier int) *fakeActor {
	return &fakeActor{id: id, tier: tier, elite: true, hp: 1000, alive: true, wmin: 20, wmax: 20, armed: true}
}

func newGruntActor(id string, tier int) *fakeActor {
	return &fakeActor{id: id, tier: tier, hp: 100, alive: true, wmin: 5, wmax: 9, armed: true}
}

// triggerOrDie retries until the roll lands. Failure after this many
// attempts means the evaluator is broken, not unlucky.
func triggerOrDie(t *testing.T, cm *CritManager, actor Actor) {
	t.Helper()
	for i := 0; i < 100000; i++ {
		if cm.TryTrigger(actor) {
			return
		}
	}
	t.Fatal("trigger never succeeded")
}

func TestCritThresholdTable(t *testing.T) {
	want := map[int]int{1: 5, 2: 7, 3: 10, 4: 13, 5: 20, 6: 20}
	for tier, th := range want {
		if got := critThreshold(tier); got != th {
			t.Errorf("tier %d: expected threshold %d, got %d", tier, th, got)
		}
	}
	// Out-of-range tiers fall back to 20
	if critThreshold(0) != 20 || critThreshold(7) != 20 || critThreshold(-3) != 20 {
		t.Error("out-of-range tier should use threshold 20")
	}
}

func TestCritTriggerRates(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 42)

	const trials = 20000
	count := func(tier int) int {
		n := 0
		for i := 0; i < trials; i++ {
			a := newGruntActor(fmt.Sprintf("t%d-%d", tier, i), tier)
			if cm.TryTrigger(a) {
				n++
			}
		}
		return n
	}

	// Tier 1: 5/250 = 2%. Expected 400 of 20000, allow a wide window.
	n1 := count(1)
	if n1 < 280 || n1 > 520 {
		t.Errorf("tier 1 trigger count %d outside expected ~400", n1)
	}
	// Tier 6: 20/250 = 8%. Expected 1600 of 20000.
	n6 := count(6)
	if n6 < 1380 || n6 > 1820 {
		t.Errorf("tier 6 trigger count %d outside expected ~1600", n6)
	}
	if n6 <= n1 {
		t.Errorf("tier 6 should trigger more often than tier 1 (%d vs %d)", n6, n1)
	}
}

func TestCritDuplicateGuard(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 7)
	actor := newGruntActor("g1", 6)

	triggerOrDie(t, cm, actor)
	for i := 0; i < 200; i++ {
		if cm.TryTrigger(actor) {
			t.Fatal("second trigger succeeded while lifecycle active")
		}
	}
	if s := cm.Stats(); s.Active != 1 || s.TotalTriggered != 1 {
		t.Errorf("expected 1 active / 1 triggered, got %d / %d", s.Active, s.TotalTriggered)
	}
}

func TestCritInstantCharge(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 7)
	actor := newGruntActor("g1", 2)

	triggerOrDie(t, cm, actor)

	if !cm.IsActive("g1") || !cm.IsCharged("g1") {
		t.Fatal("non-elite should be charged immediately")
	}
	if cd := cm.CountdownOf("g1"); cd != 0 {
		t.Errorf("expected countdown 0, got %d", cd)
	}
	if actor.fx.Has(StatusRoot) {
		t.Error("instant-charge path must not immobilize the actor")
	}

	// The scheduler does no countdown work for charged entries
	for tick := uint64(1); tick <= 200; tick++ {
		cm.Advance(tick)
	}
	if !cm.IsCharged("g1") {
		t.Error("charged non-elite should persist until consumed")
	}
	if len(arena.eventsOf(CritEventWhirlwind)) != 0 {
		t.Error("non-elite must never self-explode")
	}
	// Cosmetic flares fire once per step interval on charged entries
	if pulses := arena.eventsOf(CritEventPulse); len(pulses) != 200/CritStepTicks {
		t.Errorf("expected %d pulse events, got %d", 200/CritStepTicks, len(pulses))
	}
}

func TestCritEliteCountdownProgression(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 7)
	actor := newEliteActor("e1", 3)

	triggerOrDie(t, cm, actor)

	if cd := cm.CountdownOf("e1"); cd != CritCountdownStart {
		t.Fatalf("expected countdown %d, got %d", CritCountdownStart, cd)
	}
	if !actor.fx.Has(StatusRoot) {
		t.Error("elite should be rooted for the telegraph")
	}

	seen := []int{cm.CountdownOf("e1")}
	tick := uint64(0)
	for step := 0; step < CritCountdownStart; step++ {
		for i := 0; i < CritStepTicks; i++ {
			tick++
			cm.Advance(tick)
		}
		seen = append(seen, cm.CountdownOf("e1"))
	}

	// 4 -> 3 -> 2 -> 1 -> gone (-1): each interval steps down exactly once
	want := []int{4, 3, 2, 1, -1}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("countdown sequence %v, want %v", seen, want)
		}
	}

	warns := arena.eventsOf(CritEventWarn)
	if len(warns) != 3 {
		t.Errorf("expected 3 warn events, got %d", len(warns))
	}
	if booms := arena.eventsOf(CritEventWhirlwind); len(booms) != 1 {
		t.Fatalf("expected exactly 1 whirlwind, got %d", len(booms))
	}
	if cm.IsActive("e1") {
		t.Error("lifecycle should be removed after explosion")
	}
	if actor.fx.Has(StatusRoot) {
		t.Error("root should be cleared after explosion")
	}
	if s := cm.Stats(); s.TotalExplosions != 1 {
		t.Errorf("expected 1 total explosion, got %d", s.TotalExplosions)
	}
}

func TestCritConsumptionNonElite(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 7)
	actor := newGruntActor("g1", 2)
	target := &fakeCombatant{id: "p1", competing: true}

	triggerOrDie(t, cm, actor)

	res := cm.ResolveAttackDamage(actor, target, 10)
	if !res.WasCritical || res.Multiplier != CritNormalMultiplier || res.Damage != 20 {
		t.Errorf("expected 20/true/2.0, got %v/%v/%v", res.Damage, res.WasCritical, res.Multiplier)
	}
	if cm.IsActive("g1") {
		t.Error("consumption should remove the lifecycle")
	}

	// Second attack without re-trigger passes through untouched
	res = cm.ResolveAttackDamage(actor, target, 10)
	if res.WasCritical || res.Damage != 10 || res.Multiplier != 1.0 {
		t.Errorf("expected passthrough, got %v/%v/%v", res.Damage, res.WasCritical, res.Multiplier)
	}
}

func TestCritConsumptionEliteMultiplier(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 7)
	actor := newEliteActor("e1", 4)
	target := &fakeCombatant{id: "p1", competing: true}

	// Put the elite directly into the charged phase: the countdown machine
	// normally self-consumes, so the consumption race is set up by hand.
	st := newCritState(actor, false)
	st.phase = phaseCharged
	cm.states[actor.id] = st

	res := cm.ResolveAttackDamage(actor, target, 10)
	if !res.WasCritical || res.Multiplier != CritEliteMultiplier || res.Damage != 40 {
		t.Errorf("expected 40/true/4.0, got %v/%v/%v", res.Damage, res.WasCritical, res.Multiplier)
	}
	if cm.IsActive("e1") {
		t.Error("consumption should remove the lifecycle")
	}
}

func TestCritNoConsumptionDuringCountdown(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 7)
	actor := newEliteActor("e1", 3)
	target := &fakeCombatant{id: "p1", competing: true}

	triggerOrDie(t, cm, actor)

	res := cm.ResolveAttackDamage(actor, target, 15)
	if res.WasCritical || res.Damage != 15 {
		t.Errorf("counting-down elite must not boost attacks, got %v/%v", res.Damage, res.WasCritical)
	}
	if !cm.IsActive("e1") {
		t.Error("passthrough must not remove the lifecycle")
	}
}

func TestCritNilInputs(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 7)

	if cm.TryTrigger(nil) {
		t.Error("nil actor should not trigger")
	}
	res := cm.ResolveAttackDamage(nil, nil, 25)
	if res.WasCritical || res.Damage != 25 {
		t.Error("nil inputs should pass damage through")
	}
	if cm.CountdownOf("nope") != -1 {
		t.Error("unknown actor should report countdown -1")
	}
}

func TestCritInvalidActorPurge(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 7)
	actor := newEliteActor("e1", 3)

	triggerOrDie(t, cm, actor)
	if !actor.fx.Has(StatusRoot) {
		t.Fatal("elite should be rooted")
	}

	// Actor despawns mid-countdown
	actor.alive = false
	cm.Advance(1)

	if cm.IsActive("e1") {
		t.Error("lifecycle should be purged when actor no longer resolves")
	}
	if len(arena.eventsOf(CritEventWhirlwind)) != 0 {
		t.Error("purge must not fire an explosion")
	}
	if actor.fx.Has(StatusRoot) {
		t.Error("purge should unwind the root")
	}
}

func TestCritForceClear(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 7)
	actor := newEliteActor("e1", 3)

	triggerOrDie(t, cm, actor)
	cm.ForceClear("e1")

	if cm.IsActive("e1") {
		t.Error("ForceClear should remove the lifecycle")
	}
	if actor.fx.Has(StatusRoot) {
		t.Error("ForceClear should unwind the root")
	}
	// Clearing an unknown actor is a no-op
	cm.ForceClear("nope")
}

func TestCritStatsSnapshot(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 7)
	grunt := newGruntActor("g1", 6)
	elite := newEliteActor("e1", 3)

	triggerOrDie(t, cm, grunt)
	triggerOrDie(t, cm, elite)

	s := cm.Stats()
	if s.Active != 2 {
		t.Errorf("expected 2 active, got %d", s.Active)
	}
	if s.Charged != 1 {
		t.Errorf("expected 1 charged, got %d", s.Charged)
	}
	if s.TotalTriggered != 2 {
		t.Errorf("expected 2 triggered, got %d", s.TotalTriggered)
	}
}

func TestCritShutdown(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 7)
	elite := newEliteActor("e1", 3)
	grunt := newGruntActor("g1", 6)

	triggerOrDie(t, cm, elite)
	triggerOrDie(t, cm, grunt)

	cm.Shutdown()

	if s := cm.Stats(); s.Active != 0 {
		t.Errorf("expected empty registry after shutdown, got %d", s.Active)
	}
	if elite.fx.Has(StatusRoot) {
		t.Error("shutdown should unwind side effects")
	}
	if cm.TryTrigger(newGruntActor("g2", 6)) {
		t.Error("trigger after shutdown should fail")
	}
	cm.Advance(1) // must be a no-op, not a panic
}

func TestCritConcurrentTriggerSingleEntry(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 99)
	actor := newGruntActor("g1", 6)

	var wg sync.WaitGroup
	var wins atomic.Int64
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 2000; j++ {
				if cm.TryTrigger(actor) {
					wins.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly 1 winning trigger, got %d", wins.Load())
	}
	if s := cm.Stats(); s.Active != 1 {
		t.Errorf("expected 1 registry entry, got %d", s.Active)
	}
}

func TestCritConcurrentConsumeSingleWinner(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 99)
	actor := newGruntActor("g1", 6)
	target := &fakeCombatant{id: "p1", competing: true}

	triggerOrDie(t, cm, actor)

	var wg sync.WaitGroup
	var crits atomic.Int64
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := cm.ResolveAttackDamage(actor, target, 10); res.WasCritical {
				crits.Add(1)
			}
		}()
	}
	wg.Wait()

	if crits.Load() != 1 {
		t.Errorf("a charged state grants exactly one boosted attack, got %d", crits.Load())
	}
}
