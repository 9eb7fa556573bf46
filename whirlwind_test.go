package main

import (
	"math"
	"testing"
)

// explode triggers the actor's lifecycle and runs the full countdown
func explode(t *testing.T, cm *CritManager, actor *fakeActor) {
	t.Helper()
	triggerOrDie(t, cm, actor)
	steps := CritCountdownStart * CritStepTicks
	for tick := uint64(1); tick <= uint64(steps); tick++ {
		cm.Advance(tick)
	}
	if cm.IsActive(actor.id) {
		t.Fatal("countdown did not complete")
	}
}

func TestWhirlwindDamageFormula(t *testing.T) {
	cm := NewCritManager(&fakeArena{}, 7)

	// Weapon roll tripled when that clears the floor
	armed := &fakeActor{id: "a", tier: 2, wmin: 20, wmax: 20, armed: true, alive: true}
	if dmg := cm.whirlwindDamage(armed); dmg != 60 {
		t.Errorf("expected 60, got %d", dmg)
	}

	// Weak weapon is floored at the minimum
	weak := &fakeActor{id: "b", tier: 1, wmin: 5, wmax: 5, armed: true, alive: true}
	if dmg := cm.whirlwindDamage(weak); dmg != WhirlwindMinDamage {
		t.Errorf("expected floor %d, got %d", WhirlwindMinDamage, dmg)
	}

	// Unarmed falls back to 30 + tier*15
	for tier := 1; tier <= 6; tier++ {
		bare := &fakeActor{id: "c", tier: tier, alive: true}
		want := (30 + tier*15) * 3
		if dmg := cm.whirlwindDamage(bare); dmg != want {
			t.Errorf("tier %d unarmed: expected %d, got %d", tier, want, dmg)
		}
	}

	// Ranged weapon rolls stay inside the configured range
	ranged := &fakeActor{id: "d", tier: 3, wmin: 10, wmax: 30, armed: true, alive: true}
	for i := 0; i < 200; i++ {
		dmg := cm.whirlwindDamage(ranged)
		if dmg < WhirlwindMinDamage || dmg > 90 {
			t.Fatalf("damage %d outside [30, 90]", dmg)
		}
	}
}

func TestWhirlwindTargetEligibility(t *testing.T) {
	inRange := &fakeCombatant{id: "in", x: 54, y: 50, competing: true}
	observer := &fakeCombatant{id: "obs", x: 48, y: 50, competing: false}
	tooFar := &fakeCombatant{id: "far", x: 80, y: 80, competing: true}
	arena := &fakeArena{combatants: []Combatant{inRange, observer, tooFar}}
	cm := NewCritManager(arena, 7)

	actor := newEliteActor("e1", 2) // weapon 20/20: damage 60
	actor.x, actor.y = 50, 50
	explode(t, cm, actor)

	if len(inRange.rawHits) != 1 || inRange.rawHits[0] != 60 {
		t.Errorf("in-range combatant should take 60 raw damage, got %v", inRange.rawHits)
	}
	if len(observer.rawHits) != 0 {
		t.Error("observer must not be hit")
	}
	if len(tooFar.rawHits) != 0 {
		t.Error("out-of-range combatant must not be hit")
	}

	booms := arena.eventsOf(CritEventWhirlwind)
	if len(booms) != 1 {
		t.Fatalf("expected 1 whirlwind event, got %d", len(booms))
	}
	if len(booms[0].Targets) != 1 || booms[0].Targets[0] != "in" {
		t.Errorf("expected targets [in], got %v", booms[0].Targets)
	}
	if booms[0].Damage != 60 {
		t.Errorf("expected announced damage 60, got %d", booms[0].Damage)
	}
}

func TestWhirlwindKnockbackPushesOutward(t *testing.T) {
	target := &fakeCombatant{id: "p1", x: 54, y: 50, competing: true}
	arena := &fakeArena{combatants: []Combatant{target}}
	cm := NewCritManager(arena, 7)

	actor := newEliteActor("e1", 2)
	actor.x, actor.y = 50, 50
	explode(t, cm, actor)

	if len(target.launches) != 1 {
		t.Fatalf("expected 1 launch, got %d", len(target.launches))
	}
	l := target.launches[0]
	// Target sits due east of the actor: push is +x only
	if math.Abs(l[0]-KnockbackStrength) > 1e-9 || math.Abs(l[1]) > 1e-9 {
		t.Errorf("expected push (+%v, 0), got (%v, %v)", KnockbackStrength, l[0], l[1])
	}
	if l[2] < KnockbackMinLift {
		t.Errorf("vertical component %v below minimum %v", l[2], KnockbackMinLift)
	}
}

func TestWhirlwindBossPullsInward(t *testing.T) {
	target := &fakeCombatant{id: "p1", x: 54, y: 50, competing: true}
	arena := &fakeArena{combatants: []Combatant{target}}
	cm := NewCritManager(arena, 7)

	boss := newEliteActor("b1", 5)
	boss.boss = true
	boss.hp = 60000 // above the tier-5 threshold: no restart afterwards
	boss.x, boss.y = 50, 50
	explode(t, cm, boss)

	if len(target.launches) != 1 {
		t.Fatalf("expected 1 launch, got %d", len(target.launches))
	}
	l := target.launches[0]
	if l[0] >= 0 {
		t.Errorf("boss should pull the target inward, got vx=%v", l[0])
	}
	if l[2] < KnockbackMinLift {
		t.Errorf("vertical component %v below minimum %v", l[2], KnockbackMinLift)
	}

	// Healthy boss does not restart
	cm.Advance(uint64(CritCountdownStart*CritStepTicks + 1))
	if cm.IsActive("b1") {
		t.Error("boss above threshold must not restart")
	}
}

func TestWhirlwindStackedTargetStillLaunched(t *testing.T) {
	target := &fakeCombatant{id: "p1", x: 50, y: 50, competing: true}
	arena := &fakeArena{combatants: []Combatant{target}}
	cm := NewCritManager(arena, 7)

	actor := newEliteActor("e1", 2)
	actor.x, actor.y = 50, 50 // zero distance to target
	explode(t, cm, actor)

	if len(target.launches) != 1 {
		t.Fatalf("expected 1 launch, got %d", len(target.launches))
	}
	l := target.launches[0]
	mag := math.Sqrt(l[0]*l[0] + l[1]*l[1])
	if math.Abs(mag-KnockbackStrength) > 1e-9 {
		t.Errorf("stacked target should still get a full-strength push, got %v", mag)
	}
}

func TestBossCountdownStatusRouting(t *testing.T) {
	near := &fakeCombatant{id: "p1", x: 52, y: 50, competing: true}
	observer := &fakeCombatant{id: "p2", x: 53, y: 50, competing: false}
	arena := &fakeArena{combatants: []Combatant{near, observer}}
	cm := NewCritManager(arena, 7)

	boss := newEliteActor("b1", 5)
	boss.boss = true
	boss.hp = 40000 // below the tier-5 threshold
	boss.x, boss.y = 50, 50

	triggerOrDie(t, cm, boss)

	if boss.fx.Has(StatusRoot) {
		t.Error("boss must not root itself")
	}
	if !near.fx.Has(StatusRoot) {
		t.Error("nearby combatant should be rooted during the boss countdown")
	}
	if observer.fx.Has(StatusRoot) {
		t.Error("observer must not be rooted")
	}
	if !boss.fx.Has(StatusResist) {
		t.Error("boss should shrug off damage during the countdown")
	}
	if !boss.fx.Has(StatusHaste) || boss.fx.Has(StatusSlow) {
		t.Error("hurt boss should be hasted, not slowed")
	}
}

func TestBossCountdownSlowWhenHealthy(t *testing.T) {
	arena := &fakeArena{}
	cm := NewCritManager(arena, 7)

	boss := newEliteActor("b1", 6)
	boss.boss = true
	boss.hp = 150000 // above the tier-6 threshold of 100000
	triggerOrDie(t, cm, boss)

	if !boss.fx.Has(StatusSlow) || boss.fx.Has(StatusHaste) {
		t.Error("healthy boss should be slowed, not hasted")
	}
}

func TestBossRestartAfterExplosion(t *testing.T) {
	target := &fakeCombatant{id: "p1", x: 52, y: 50, competing: true}
	arena := &fakeArena{combatants: []Combatant{target}}
	cm := NewCritManager(arena, 7)

	boss := newEliteActor("b1", 5)
	boss.boss = true
	boss.hp = 40000
	boss.x, boss.y = 50, 50
	explode(t, cm, boss)

	// The re-entry starts on the next scheduler pass, never the same one
	if cm.IsActive("b1") {
		t.Fatal("restart must not materialize inside the explosion pass")
	}
	cm.Advance(uint64(CritCountdownStart*CritStepTicks + 1))

	if !cm.IsActive("b1") {
		t.Fatal("hurt boss should restart its countdown")
	}
	if cd := cm.CountdownOf("b1"); cd != BossRestartCountdown {
		t.Errorf("restart countdown should be %d, got %d", BossRestartCountdown, cd)
	}

	// The loop terminates once the boss dies
	steps := BossRestartCountdown * CritStepTicks
	for tick := uint64(0); tick < uint64(steps); tick++ {
		cm.Advance(1000 + tick)
	}
	boss.alive = false
	cm.Advance(5000)
	if cm.IsActive("b1") {
		t.Error("dead boss should not keep restarting")
	}
}

func TestWhirlwindSkipsDeadActor(t *testing.T) {
	target := &fakeCombatant{id: "p1", x: 52, y: 50, competing: true}
	arena := &fakeArena{combatants: []Combatant{target}}
	cm := NewCritManager(arena, 7)

	actor := newEliteActor("e1", 3)
	actor.x, actor.y = 50, 50
	triggerOrDie(t, cm, actor)

	// Let the countdown run down to its final tick, then kill the actor.
	// The scheduler purges it before the explosion can fire.
	steps := CritCountdownStart * CritStepTicks
	for tick := uint64(1); tick < uint64(steps); tick++ {
		cm.Advance(tick)
	}
	actor.alive = false
	cm.Advance(uint64(steps))

	if len(target.rawHits) != 0 {
		t.Error("dead actor must not explode")
	}
	if cm.IsActive("e1") {
		t.Error("lifecycle should be gone")
	}
}
