package main

import (
	"sync"
	"time"
)

const maxSessions = 100

// SessionIdleTimeout is how long an empty session survives before the
// janitor stops it. A variable so tests can shrink it.
var SessionIdleTimeout = 2 * time.Minute

// Session represents one arena that players can join
type Session struct {
	ID      string
	Name    string
	Game    *Game
	emptyAt time.Time // when the session last became empty
}

// SessionManager handles creation and lookup of sessions
type SessionManager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	analytics *Analytics
}

// NewSessionManager creates a new SessionManager
func NewSessionManager(analytics *Analytics) *SessionManager {
	sm := &SessionManager{
		sessions:  make(map[string]*Session),
		analytics: analytics,
	}
	go sm.janitor()
	return sm
}

// CreateSession creates a new arena session. Returns nil if limit reached.
func (sm *SessionManager) CreateSession(name string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= maxSessions {
		return nil
	}

	id := GenerateUUID()
	game := NewGame(id, sm.analytics)
	sess := &Session{
		ID:      id,
		Name:    name,
		Game:    game,
		emptyAt: time.Now(),
	}
	sm.sessions[id] = sess
	go game.Run()
	return sess
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// RemovePlayer removes a player from a session and returns their run
// summary. Empty sessions are torn down.
func (sm *SessionManager) RemovePlayer(sessionID, playerID string) RunSummary {
	sm.mu.RLock()
	sess, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()
	if !ok {
		return RunSummary{}
	}
	sum := sess.Game.RemovePlayer(playerID)

	if sess.Game.PlayerCount() == 0 {
		sess.Game.Stop()
		sm.mu.Lock()
		delete(sm.sessions, sessionID)
		sm.mu.Unlock()
	}
	return sum
}

// ListSessions returns info about all active sessions
func (sm *SessionManager) ListSessions() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	list := make([]SessionInfo, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		list = append(list, SessionInfo{
			ID:      sess.ID,
			Name:    sess.Name,
			Players: sess.Game.PlayerCount(),
			Wave:    sess.Game.Wave(),
		})
	}
	return list
}

// SessionCount returns the number of live sessions
func (sm *SessionManager) SessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// TotalCritStats sums crit engine snapshots across all sessions
func (sm *SessionManager) TotalCritStats() CritStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	var total CritStats
	for _, sess := range sm.sessions {
		s := sess.Game.CritStats()
		total.Active += s.Active
		total.Charged += s.Charged
		total.TotalTriggered += s.TotalTriggered
		total.TotalExplosions += s.TotalExplosions
	}
	return total
}

// janitor stops sessions that never got (or lost) their players
func (sm *SessionManager) janitor() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		sm.mu.Lock()
		for id, sess := range sm.sessions {
			if sess.Game.PlayerCount() > 0 {
				sess.emptyAt = now
				continue
			}
			if now.Sub(sess.emptyAt) > SessionIdleTimeout {
				sess.Game.Stop()
				delete(sm.sessions, id)
			}
		}
		sm.mu.Unlock()
	}
}
