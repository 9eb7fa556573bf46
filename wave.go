package main

const (
	WaveBreakTime  = 5.0 // seconds between clearing a wave and the next one
	FirstWaveDelay = 3.0
	BossWaveEvery  = 5 // every Nth wave is a ravager wave
	EliteWaveFrom  = 3 // elites start appearing at this wave
)

// WaveState tracks wave-survival progression for one session
type WaveState struct {
	Number int
	BreakT float64 // intermission remaining; >0 means no wave is live
}

// waveTier returns the mob tier for a wave: climbs one tier every three
// waves, capped at 6.
func waveTier(wave int) int {
	tier := 1 + (wave-1)/3
	if tier > 6 {
		tier = 6
	}
	return tier
}

// updateWave advances the spawner. Called under the game lock.
func (g *Game) updateWave(dt float64) {
	if g.aliveMobCount() > 0 {
		return
	}
	if g.wave.BreakT > 0 {
		g.wave.BreakT -= dt
		if g.wave.BreakT <= 0 {
			g.spawnWave()
		}
		return
	}
	// Wave just cleared (or game just started)
	g.wave.BreakT = WaveBreakTime
	if g.wave.Number == 0 {
		g.wave.BreakT = FirstWaveDelay
	}
}

func (g *Game) aliveMobCount() int {
	n := 0
	for _, m := range g.mobs {
		if m.Alive {
			n++
		}
	}
	return n
}

// spawnWave populates the next wave: mostly grunts, elites sprinkled in
// from wave 3, and a lone ravager flanked by grunts on boss waves.
func (g *Game) spawnWave() {
	g.wave.Number++
	wave := g.wave.Number
	tier := waveTier(wave)

	boss := wave%BossWaveEvery == 0
	spawned := 0
	if boss {
		g.addMob(NewMob(MobRavager, tier))
		spawned++
		for i := 0; i < 3; i++ {
			g.addMob(NewMob(MobGrunt, tier))
			spawned++
		}
	} else {
		count := 4 + wave
		if count > 16 {
			count = 16
		}
		for i := 0; i < count; i++ {
			kind := MobGrunt
			if wave >= EliteWaveFrom && i%4 == 3 {
				kind = MobElite
			}
			g.addMob(NewMob(kind, tier))
			spawned++
		}
	}

	if g.analytics != nil {
		g.analytics.Record(EvtWaveStart, 0, g.sessionID, "")
	}
	g.broadcastMsg(Envelope{T: MsgWave, Data: WaveMsg{Wave: wave, Mobs: spawned, Boss: boss}})
}

func (g *Game) addMob(m *Mob) {
	g.mobs[m.ID] = m
}
