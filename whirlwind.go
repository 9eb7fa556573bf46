package main

import (
	"log"
	"math"
)

const (
	WhirlwindRadius    = 7.0 // world units around the exploding mob
	WhirlwindMinDamage = 30
	KnockbackStrength  = 3.0
	KnockbackMinLift   = 0.8 // minimum vertical launch, units/s
)

// whirlwindDamage computes the explosion's base damage: a weapon roll
// tripled, floored at the minimum. Unarmed mobs fall back to a tier value.
func (cm *CritManager) whirlwindDamage(actor Actor) int {
	min, max, ok := actor.WeaponRange()
	var weaponRoll int
	if !ok {
		weaponRoll = 30 + actor.ActorTier()*15
	} else if max <= min {
		weaponRoll = min
	} else {
		weaponRoll = min + cm.roll(max-min+1)
	}
	dmg := weaponRoll * 3
	if dmg < WhirlwindMinDamage {
		dmg = WhirlwindMinDamage
	}
	return dmg
}

// resolveWhirlwind fires the area explosion for a completed countdown.
// The state was already removed from the registry by the caller, so a
// concurrent consumption call cannot double-spend this lifecycle. Damage
// is applied raw so the explosion is deterministically lethal; a ravager
// pulls its victims inward instead of throwing them out.
func (cm *CritManager) resolveWhirlwind(st *CritState) {
	actor := st.actor
	if !actor.Valid() {
		// Actor died on the final tick — unwind and walk away
		cm.cleanup(st)
		return
	}

	x, y := actor.Pos()
	dmg := cm.whirlwindDamage(actor)

	var hit []string
	for _, t := range cm.arena.CombatantsWithin(x, y, WhirlwindRadius) {
		if !t.Competing() {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("whirlwind: target resolution failed: %v", r)
				}
			}()
			t.ApplyRawDamage(dmg)

			tx, ty := t.Pos()
			dx := tx - x
			dy := ty - y
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist < 1e-6 {
				dx, dy, dist = 1, 0, 1 // target stacked on the mob
			}
			kx := dx / dist * KnockbackStrength
			ky := dy / dist * KnockbackStrength
			if st.boss {
				kx, ky = -kx, -ky
			}
			t.Launch(kx, ky, KnockbackMinLift)

			hit = append(hit, t.CombatantID())
		}()
	}

	cm.cleanup(st)
	cm.totalExplosions.Add(1)
	log.Printf("whirlwind: %s (tier %d) hit %d targets for %d", st.id, st.tier, len(hit), dmg)
	cm.arena.AnnounceCrit(CritEvent{
		Kind:    CritEventWhirlwind,
		ActorID: st.id,
		Tier:    st.tier,
		Boss:    st.boss,
		Damage:  dmg,
		Targets: hit,
	})

	// A badly hurt ravager spins right back up, one step shorter. The
	// re-entry starts on the next scheduler pass, never inside this one.
	if st.boss && actor.Valid() && actor.CurrentHealth() < bossEnrageThreshold(st.tier) {
		cm.mu.Lock()
		if !cm.down.Load() {
			cm.pending = append(cm.pending, actor)
		}
		cm.mu.Unlock()
	}
}
