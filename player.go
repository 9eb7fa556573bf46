package main

import "math"

const (
	WorldWidth  = 240.0 // arena size in world units
	WorldHeight = 240.0

	PlayerRadius     = 0.5
	PlayerMaxHP      = 200
	PlayerAccel      = 40.0 // units/s²
	PlayerMaxSpeed   = 8.0  // units/s
	PlayerFriction   = 0.85 // velocity multiplier per tick
	FireCooldown     = 0.4  // seconds between shots
	ShotRange        = 12.0 // hitscan reach
	ShotDamageMin    = 10
	ShotDamageMax    = 18
	RespawnTime      = 5.0 // seconds before respawn
	SpawnProtectTime = 3.0 // seconds of post-spawn invulnerability
	GravityZ         = 25.0
)

// Player represents a player in the arena
type Player struct {
	ID         string
	Name       string
	X, Y, Z    float64 // Z is height above ground, used for knock-up
	VX, VY     float64
	VZ         float64
	HP         int
	MaxHP      int
	Kills      int
	Deaths     int
	CritDeaths int // deaths to boosted attacks or whirlwinds
	Alive      bool
	Spectator  bool
	FireCD     float64 // fire cooldown remaining
	RespawnT   float64 // respawn timer remaining
	ProtectT   float64 // spawn protection remaining
	TargetX    float64 // movement target (pointer world coords)
	TargetY    float64
	AimX       float64 // aim point for shots
	AimY       float64
	Firing     bool
	Effects    StatusSet
}

// NewPlayer creates a new player near the arena center
func NewPlayer(id, name string) *Player {
	return &Player{
		ID:       id,
		Name:     name,
		X:        WorldWidth/2 + (randFloat()-0.5)*20,
		Y:        WorldHeight/2 + (randFloat()-0.5)*20,
		HP:       PlayerMaxHP,
		MaxHP:    PlayerMaxHP,
		Alive:    true,
		ProtectT: SpawnProtectTime,
	}
}

// Update moves the player one tick (dt in seconds)
func (p *Player) Update(dt float64) {
	if p.Spectator {
		return
	}
	if !p.Alive {
		p.RespawnT -= dt
		if p.RespawnT <= 0 {
			p.Respawn()
		}
		return
	}

	if p.ProtectT > 0 {
		p.ProtectT -= dt
	}

	p.Effects.Tick()

	// Steer toward movement target
	dx := p.TargetX - p.X
	dy := p.TargetY - p.Y
	dist := math.Sqrt(dx*dx + dy*dy)
	speedCap := PlayerMaxSpeed * p.Effects.SpeedFactor()
	if dist > PlayerRadius && speedCap > 0 {
		accel := PlayerAccel * dt
		p.VX += dx / dist * accel
		p.VY += dy / dist * accel
	}

	p.VX *= PlayerFriction
	p.VY *= PlayerFriction

	speed := math.Sqrt(p.VX*p.VX + p.VY*p.VY)
	if speedCap >= 0 && speed > speedCap {
		// Knockback may exceed the cap; bleed it off instead of clamping hard
		over := speed - speedCap
		if over > 2.0 {
			scale := (speedCap + 2.0) / speed
			p.VX *= scale
			p.VY *= scale
		}
	}

	p.X = Clamp(p.X+p.VX*dt, 0, WorldWidth)
	p.Y = Clamp(p.Y+p.VY*dt, 0, WorldHeight)

	// Vertical motion from knock-up: integrate position before gravity so
	// even the minimum lift clears the ground for at least one tick
	if p.Z > 0 || p.VZ > 0 {
		p.Z += p.VZ * dt
		p.VZ -= GravityZ * dt
		if p.Z <= 0 {
			p.Z = 0
			p.VZ = 0
		}
	}

	if p.FireCD > 0 {
		p.FireCD -= dt
	}
}

// CanFire returns true if the player wants to and may shoot this tick
func (p *Player) CanFire() bool {
	return p.Alive && !p.Spectator && p.Firing && p.FireCD <= 0
}

// TakeDamage applies mitigated damage and returns true if the player died
func (p *Player) TakeDamage(dmg int) bool {
	if !p.Alive || p.ProtectT > 0 {
		return false
	}
	dmg = int(float64(dmg) * p.Effects.DamageFactor())
	if dmg < 1 {
		dmg = 1
	}
	return p.apply(dmg)
}

// ApplyRawDamage applies damage that bypasses status mitigation. Spawn
// protection is the one veto kept: a freshly spawned player cannot be
// deleted by a whirlwind they had no part in.
func (p *Player) ApplyRawDamage(dmg int) bool {
	if !p.Alive || p.ProtectT > 0 {
		return false
	}
	return p.apply(dmg)
}

func (p *Player) apply(dmg int) bool {
	p.HP -= dmg
	if p.HP <= 0 {
		p.HP = 0
		p.Alive = false
		p.Deaths++
		p.RespawnT = RespawnTime
		p.Effects.ClearAll()
		return true
	}
	return false
}

// Launch adds a knockback impulse, including a vertical component
func (p *Player) Launch(vx, vy, vz float64) {
	if !p.Alive {
		return
	}
	p.VX += vx
	p.VY += vy
	p.VZ += vz
}

// Respawn revives the player at a fresh position
func (p *Player) Respawn() {
	p.X = WorldWidth/2 + (randFloat()-0.5)*20
	p.Y = WorldHeight/2 + (randFloat()-0.5)*20
	p.Z = 0
	p.VX = 0
	p.VY = 0
	p.VZ = 0
	p.HP = p.MaxHP
	p.Alive = true
	p.RespawnT = 0
	p.ProtectT = SpawnProtectTime
	p.Effects.ClearAll()
}

// CombatantID implements Combatant
func (p *Player) CombatantID() string { return p.ID }

// Pos implements Combatant
func (p *Player) Pos() (float64, float64) { return p.X, p.Y }

// Status implements Combatant
func (p *Player) Status() *StatusSet { return &p.Effects }

// Competing reports whether the player is an eligible combat target.
// Spectators and the dead are observers, not combatants.
func (p *Player) Competing() bool {
	return p.Alive && !p.Spectator
}

// ToState converts to protocol state
func (p *Player) ToState() PlayerState {
	return PlayerState{
		ID:      p.ID,
		Name:    p.Name,
		X:       round1(p.X),
		Y:       round1(p.Y),
		Z:       round1(p.Z),
		HP:      p.HP,
		MaxHP:   p.MaxHP,
		Kills:   p.Kills,
		Deaths:  p.Deaths,
		Alive:   p.Alive,
		Rooted:  p.Effects.Has(StatusRoot),
		Protect: p.ProtectT > 0,
	}
}
