package main

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	TickRate       = 20 // game ticks per second
	BroadcastRate  = 10 // state broadcasts per second
	TickDuration   = time.Second / TickRate
	BroadcastEvery = TickRate / BroadcastRate
)

const maxPlayersPerSession = 16

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Game holds the state for one arena session. It implements Arena for its
// crit manager; those callbacks only ever run from code paths that already
// hold the game lock, so they read state without taking it again.
type Game struct {
	mu         sync.RWMutex
	players    map[string]*Player
	mobs       map[string]*Mob
	clients    map[string]Broadcaster // playerID -> client
	crits      *CritManager
	wave       WaveState
	grid       SpatialGrid
	playerList []*Player // rebuilt each tick, indexed by grid refs
	mobList    []*Mob
	rng        *rand.Rand
	tick       uint64
	running    bool
	stop       chan struct{}
	sessionID  string
	analytics  *Analytics
}

// NewGame creates a new Game
func NewGame(sessionID string, analytics *Analytics) *Game {
	g := &Game{
		players:   make(map[string]*Player),
		mobs:      make(map[string]*Mob),
		clients:   make(map[string]Broadcaster),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		stop:      make(chan struct{}),
		sessionID: sessionID,
		analytics: analytics,
	}
	g.crits = NewCritManager(g, time.Now().UnixNano())
	return g
}

// Run starts the game loop
func (g *Game) Run() {
	g.mu.Lock()
	g.running = true
	g.mu.Unlock()

	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.update()
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the game loop and force-cleans the crit registry
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		g.running = false
		close(g.stop)
		g.crits.Shutdown()
	}
}

// AddPlayer adds a new player to the game. Returns nil when full.
func (g *Game) AddPlayer(name string, spectate bool) *Player {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.players) >= maxPlayersPerSession {
		return nil
	}

	player := NewPlayer(GenerateID(4), name)
	player.Spectator = spectate
	g.players[player.ID] = player
	return player
}

// RunSummary is the per-session result handed back when a player leaves
type RunSummary struct {
	Kills      int
	Deaths     int
	CritDeaths int
	Wave       int
}

// RemovePlayer removes a player and returns their run summary
func (g *Game) RemovePlayer(id string) RunSummary {
	g.mu.Lock()
	defer g.mu.Unlock()
	var sum RunSummary
	if p, ok := g.players[id]; ok {
		sum = RunSummary{
			Kills:      p.Kills,
			Deaths:     p.Deaths,
			CritDeaths: p.CritDeaths,
			Wave:       g.wave.Number,
		}
	}
	delete(g.players, id)
	delete(g.clients, id)
	return sum
}

// SetClient associates a broadcaster with a player
func (g *Game) SetClient(playerID string, client Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[playerID] = client
}

// HandleInput processes input from a player
func (g *Game) HandleInput(playerID string, input ClientInput) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[playerID]
	if !ok {
		return
	}
	p.TargetX = Clamp(input.MX, 0, WorldWidth)
	p.TargetY = Clamp(input.MY, 0, WorldHeight)
	p.AimX = Clamp(input.AX, 0, WorldWidth)
	p.AimY = Clamp(input.AY, 0, WorldHeight)
	p.Firing = input.Fire
}

// PlayerCount returns the number of players
func (g *Game) PlayerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.players)
}

// Wave returns the current wave number
func (g *Game) Wave() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.wave.Number
}

// CritStats returns the crit engine's monitoring snapshot
func (g *Game) CritStats() CritStats {
	return g.crits.Stats()
}

// update runs one game tick
func (g *Game) update() {
	g.mu.Lock()
	defer g.mu.Unlock()

	dt := 1.0 / float64(TickRate)
	g.tick++

	g.rebuildGrid()

	for _, p := range g.players {
		p.Update(dt)
		if p.CanFire() {
			p.FireCD = FireCooldown
			g.playerShoot(p)
		}
	}

	g.updateWave(dt)

	for _, m := range g.mobs {
		if target := m.Update(dt, g.players); target != nil {
			g.mobAttack(m, target)
		}
	}

	g.crits.Advance(g.tick)

	// Reap dead mobs; forceClear is the despawn notification to the
	// crit engine (its own validity purge is the catch-all).
	for id, m := range g.mobs {
		if !m.Alive {
			g.crits.ForceClear(id)
			delete(g.mobs, id)
		}
	}

	if g.tick%BroadcastEvery == 0 {
		g.broadcastState()
	}
}

// rebuildGrid refreshes the broad-phase index for this tick
func (g *Game) rebuildGrid() {
	g.grid.Clear()
	g.playerList = g.playerList[:0]
	g.mobList = g.mobList[:0]
	for _, p := range g.players {
		g.grid.Insert(p.X, p.Y, EntityRef{Kind: 'p', Idx: len(g.playerList)})
		g.playerList = append(g.playerList, p)
	}
	for _, m := range g.mobs {
		g.grid.Insert(m.X, m.Y, EntityRef{Kind: 'm', Idx: len(g.mobList)})
		g.mobList = append(g.mobList, m)
	}
}

// playerShoot resolves a hitscan shot at the player's aim point
func (g *Game) playerShoot(p *Player) {
	if DistanceSq(p.X, p.Y, p.AimX, p.AimY) > ShotRange*ShotRange {
		return
	}

	var best *Mob
	bestD2 := (MobRadius + 0.6) * (MobRadius + 0.6)
	for _, ref := range g.grid.Query(p.AimX, p.AimY, MobRadius+0.6) {
		if ref.Kind != 'm' {
			continue
		}
		m := g.mobList[ref.Idx]
		if !m.Alive {
			continue
		}
		d2 := DistanceSq(m.X, m.Y, p.AimX, p.AimY)
		if d2 < bestD2 {
			bestD2 = d2
			best = m
		}
	}
	if best == nil {
		return
	}

	dmg := ShotDamageMin + g.rng.Intn(ShotDamageMax-ShotDamageMin+1)
	if best.TakeDamage(dmg) {
		g.onMobKilled(p, best)
	}
}

// onMobKilled credits the kill and announces it
func (g *Game) onMobKilled(p *Player, m *Mob) {
	p.Kills++
	g.broadcastMsg(Envelope{T: MsgMobKill, Data: MobKillMsg{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		MobID:      m.ID,
		MobKind:    int(m.Kind),
		MobTier:    m.Tier,
	}})
	if g.analytics != nil {
		g.analytics.Record(EvtMobKill, 0, g.sessionID, "")
	}
}

// mobAttack resolves a landed mob swing: consume any charged crit first,
// then roll for the next lifecycle on this attack attempt.
func (g *Game) mobAttack(m *Mob, target *Player) {
	base := float64(m.MeleeDamage(g.rng))
	res := g.crits.ResolveAttackDamage(m, target, base)
	if target.TakeDamage(int(res.Damage)) {
		if res.WasCritical {
			target.CritDeaths++
		}
		g.onPlayerDeath(target, m.ID, int(m.Kind), res.WasCritical)
	}
	g.crits.TryTrigger(m)
}

// onPlayerDeath notifies the victim and records the event
func (g *Game) onPlayerDeath(p *Player, mobID string, mobKind int, crit bool) {
	if client, ok := g.clients[p.ID]; ok {
		client.SendJSON(Envelope{T: MsgDeath, Data: DeathMsg{
			MobID:   mobID,
			MobKind: mobKind,
			Crit:    crit,
		}})
	}
	if g.analytics != nil {
		g.analytics.Record(EvtPlayerDeath, 0, g.sessionID, "")
	}
}

// CombatantsWithin implements Arena: all players inside the radius.
// Eligibility (alive, not spectating) is the caller's concern via
// Combatant.Competing.
func (g *Game) CombatantsWithin(x, y, radius float64) []Combatant {
	var out []Combatant
	r2 := radius * radius
	for _, ref := range g.grid.Query(x, y, radius) {
		if ref.Kind != 'p' {
			continue
		}
		p := g.playerList[ref.Idx]
		if DistanceSq(p.X, p.Y, x, y) <= r2 {
			out = append(out, p)
		}
	}
	return out
}

// AnnounceCrit implements Arena: fan telegraph events out to clients
func (g *Game) AnnounceCrit(ev CritEvent) {
	names := [...]string{"trigger", "warn", "pulse", "boom"}
	kind := "trigger"
	if int(ev.Kind) < len(names) {
		kind = names[ev.Kind]
	}
	g.broadcastMsg(Envelope{T: MsgCrit, Data: CritTelegraphMsg{
		Event:     kind,
		MobID:     ev.ActorID,
		Tier:      ev.Tier,
		Boss:      ev.Boss,
		Countdown: ev.Countdown,
		Damage:    ev.Damage,
		Targets:   ev.Targets,
	}})

	switch ev.Kind {
	case CritEventTrigger:
		if g.analytics != nil {
			g.analytics.Record(EvtCritTrigger, 0, g.sessionID, "")
		}
	case CritEventWhirlwind:
		if g.analytics != nil {
			data := fmt.Sprintf(`{"tier":%d,"damage":%d,"targets":%d}`, ev.Tier, ev.Damage, len(ev.Targets))
			g.analytics.Record(EvtWhirlwind, 0, g.sessionID, data)
		}
		// Blast victims that did not survive get their death notice here
		mobKind := MobElite
		if ev.Boss {
			mobKind = MobRavager
		}
		for _, id := range ev.Targets {
			p, ok := g.players[id]
			if !ok || p.Alive {
				continue
			}
			p.CritDeaths++
			g.onPlayerDeath(p, ev.ActorID, int(mobKind), true)
		}
	}
}

// broadcastState sends the current game state to all clients
func (g *Game) broadcastState() {
	state := GameState{
		Players: make([]PlayerState, 0, len(g.players)),
		Mobs:    make([]MobState, 0, len(g.mobs)),
		Wave:    g.wave.Number,
		Tick:    g.tick,
	}

	for _, p := range g.players {
		state.Players = append(state.Players, p.ToState())
	}
	for _, m := range g.mobs {
		ms := m.ToState()
		ms.Countdown = g.crits.CountdownOf(m.ID)
		ms.Charged = g.crits.IsCharged(m.ID)
		state.Mobs = append(state.Mobs, ms)
	}

	data, err := msgpack.Marshal(state)
	if err != nil {
		log.Printf("state marshal error: %v", err)
		return
	}

	for _, client := range g.clients {
		client.SendBinary(data)
	}
}

// broadcastMsg sends a JSON message to all clients in the session
func (g *Game) broadcastMsg(msg Envelope) {
	for _, client := range g.clients {
		client.SendJSON(msg)
	}
}
