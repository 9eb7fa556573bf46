package main

import (
	"math"
	"math/rand"
)

// MobKind classifies a mob archetype
type MobKind int

const (
	MobGrunt   MobKind = 0 // common melee chaser
	MobElite   MobKind = 1 // armed, can wind up a whirlwind
	MobRavager MobKind = 2 // boss: huge HP pool, pulls instead of pushes
)

const (
	MobRadius         = 0.6
	MobReach          = 1.6  // melee range (center to center)
	MobDetectRange    = 40.0 // start chasing when this close
	MobDetectRangeSq  = MobDetectRange * MobDetectRange
	MobAttackCooldown = 1.2 // seconds between melee swings
	MobWanderDrift    = 1.0 // max radians/s the wander heading changes

	GruntSpeed   = 3.0
	EliteSpeed   = 2.6
	RavagerSpeed = 2.2
)

// Mob is an AI-controlled enemy
type Mob struct {
	ID          string
	Kind        MobKind
	Tier        int // 1-6, scales HP, damage and crit thresholds
	X, Y        float64
	VX, VY      float64
	HP          int
	MaxHP       int
	Alive       bool
	AttackCD    float64
	WeaponMin   int // 0/0 means unarmed
	WeaponMax   int
	WanderAngle float64
	Effects     StatusSet
}

// mobMaxHP returns the HP pool for a kind/tier combination. Ravagers
// carry pools large enough that the enrage thresholds (50k / 100k)
// sit inside their health bar.
func mobMaxHP(kind MobKind, tier int) int {
	switch kind {
	case MobElite:
		return 400 + tier*200
	case MobRavager:
		return tier * 30000
	default:
		return 80 + tier*40
	}
}

// mobWeapon returns the equipped weapon damage range. Grunts carry tier
// blades; elites carry heavier arms; the ravager fights bare-handed and
// has no weapon data at all.
func mobWeapon(kind MobKind, tier int) (min, max int) {
	switch kind {
	case MobElite:
		return 10 + 5*tier, 20 + 10*tier
	case MobRavager:
		return 0, 0
	default:
		return 4 + 2*tier, 8 + 4*tier
	}
}

func mobSpeed(kind MobKind) float64 {
	switch kind {
	case MobElite:
		return EliteSpeed
	case MobRavager:
		return RavagerSpeed
	default:
		return GruntSpeed
	}
}

// NewMob spawns a mob of the given kind and tier at a random arena edge
func NewMob(kind MobKind, tier int) *Mob {
	if tier < 1 {
		tier = 1
	} else if tier > 6 {
		tier = 6
	}
	hp := mobMaxHP(kind, tier)
	wmin, wmax := mobWeapon(kind, tier)
	m := &Mob{
		ID:        GenerateID(4),
		Kind:      kind,
		Tier:      tier,
		HP:        hp,
		MaxHP:     hp,
		Alive:     true,
		WeaponMin: wmin,
		WeaponMax: wmax,
	}

	// Pick a random edge: 0=left, 1=right, 2=top, 3=bottom
	edge := int(randFloat() * 4)
	switch edge {
	case 0:
		m.X = 0
		m.Y = randFloat() * WorldHeight
	case 1:
		m.X = WorldWidth
		m.Y = randFloat() * WorldHeight
	case 2:
		m.X = randFloat() * WorldWidth
		m.Y = 0
	default:
		m.X = randFloat() * WorldWidth
		m.Y = WorldHeight
	}
	m.WanderAngle = math.Atan2(WorldHeight/2-m.Y, WorldWidth/2-m.X)
	return m
}

// Update moves the mob toward the nearest competing player. Returns the
// player to swing at this tick, or nil.
func (m *Mob) Update(dt float64, players map[string]*Player) *Player {
	if !m.Alive {
		return nil
	}

	if m.AttackCD > 0 {
		m.AttackCD -= dt
	}
	m.Effects.Tick()

	// Nearest competing player within detect range
	var target *Player
	bestDist := math.MaxFloat64
	for _, p := range players {
		if !p.Competing() {
			continue
		}
		d2 := DistanceSq(m.X, m.Y, p.X, p.Y)
		if d2 < MobDetectRangeSq && d2 < bestDist {
			bestDist = d2
			target = p
		}
	}

	speed := mobSpeed(m.Kind) * m.Effects.SpeedFactor()

	if target != nil {
		dist := math.Sqrt(bestDist)
		if dist > MobReach && speed > 0 {
			m.VX = (target.X - m.X) / dist * speed
			m.VY = (target.Y - m.Y) / dist * speed
		} else {
			m.VX = 0
			m.VY = 0
		}
	} else {
		// Wander: drift the heading gently
		m.WanderAngle += (randFloat()*2 - 1) * MobWanderDrift * dt
		m.VX = math.Cos(m.WanderAngle) * speed * 0.5
		m.VY = math.Sin(m.WanderAngle) * speed * 0.5
	}

	m.X = Clamp(m.X+m.VX*dt, 0, WorldWidth)
	m.Y = Clamp(m.Y+m.VY*dt, 0, WorldHeight)

	if target != nil && bestDist <= MobReach*MobReach && m.AttackCD <= 0 {
		m.AttackCD = MobAttackCooldown
		return target
	}
	return nil
}

// MeleeDamage rolls the mob's swing damage from its weapon range, or a
// tier-based fist value when unarmed.
func (m *Mob) MeleeDamage(rng *rand.Rand) int {
	min, max, ok := m.WeaponRange()
	if !ok {
		return 10 + m.Tier*5
	}
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}

// TakeDamage applies mitigated damage and returns true if the mob died
func (m *Mob) TakeDamage(dmg int) bool {
	if !m.Alive {
		return false
	}
	dmg = int(float64(dmg) * m.Effects.DamageFactor())
	if dmg < 1 {
		dmg = 1
	}
	m.HP -= dmg
	if m.HP <= 0 {
		m.HP = 0
		m.Alive = false
		m.Effects.ClearAll()
		return true
	}
	return false
}

// ActorID implements Actor
func (m *Mob) ActorID() string { return m.ID }

// ActorTier implements Actor
func (m *Mob) ActorTier() int { return m.Tier }

// IsElite implements Actor. Ravagers count as elite: they take the
// countdown path, not the instant charge.
func (m *Mob) IsElite() bool { return m.Kind != MobGrunt }

// IsBoss implements Actor
func (m *Mob) IsBoss() bool { return m.Kind == MobRavager }

// CurrentHealth implements Actor
func (m *Mob) CurrentHealth() int { return m.HP }

// Valid implements Actor: a dead or despawned mob no longer resolves
func (m *Mob) Valid() bool { return m.Alive }

// WeaponRange implements Actor. ok is false when the mob is unarmed.
func (m *Mob) WeaponRange() (int, int, bool) {
	if m.WeaponMin <= 0 && m.WeaponMax <= 0 {
		return 0, 0, false
	}
	return m.WeaponMin, m.WeaponMax, true
}

// Pos implements Actor
func (m *Mob) Pos() (float64, float64) { return m.X, m.Y }

// Status implements Actor
func (m *Mob) Status() *StatusSet { return &m.Effects }

// ToState converts to protocol state
func (m *Mob) ToState() MobState {
	return MobState{
		ID:    m.ID,
		Kind:  int(m.Kind),
		Tier:  m.Tier,
		X:     round1(m.X),
		Y:     round1(m.Y),
		HP:    m.HP,
		MaxHP: m.MaxHP,
		Alive: m.Alive,
	}
}
