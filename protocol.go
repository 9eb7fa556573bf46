package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoin     = "join"
	MsgLeave    = "leave"
	MsgInput    = "input"
	MsgCreate   = "create" // create session
	MsgList     = "list"   // list sessions
	MsgCheck    = "check"  // check if session exists
	MsgRegister = "register"
	MsgLogin    = "login"
	MsgAuth     = "auth" // token re-auth
	MsgProfile  = "profile"
	MsgBoard    = "leaderboard"
)

// Server -> Client message types
const (
	MsgState    = "state"
	MsgWelcome  = "welcome"
	MsgJoined   = "joined"
	MsgCreated  = "created"
	MsgSessions = "sessions"
	MsgChecked  = "checked"
	MsgDeath    = "death"
	MsgMobKill  = "mobkill"
	MsgWave     = "wave"
	MsgCrit     = "crit" // crit telegraph: trigger/warn/pulse/boom
	MsgAuthOK   = "authok"
	MsgProfileR = "profile"
	MsgBoardR   = "leaderboard"
	MsgError    = "error"
)

// Envelope wraps all outgoing JSON messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// ClientInput is sent by the client at 20Hz
type ClientInput struct {
	MX   float64 `json:"mx"` // movement target X (world coords)
	MY   float64 `json:"my"` // movement target Y
	AX   float64 `json:"ax"` // aim point X
	AY   float64 `json:"ay"` // aim point Y
	Fire bool    `json:"fire"`
}

// JoinMsg is sent when a player wants to join a session
type JoinMsg struct {
	Name      string `json:"name"`
	SessionID string `json:"sid"`
	Spectate  bool   `json:"spec,omitempty"`
}

// CreateMsg is sent when a player wants to create a session
type CreateMsg struct {
	Name        string `json:"name"`
	SessionName string `json:"sname"`
}

// CheckMsg asks whether a session exists
type CheckMsg struct {
	SID string `json:"sid"`
}

// CheckedMsg is the response to a session check
type CheckedMsg struct {
	SID     string `json:"sid"`
	Exists  bool   `json:"exists"`
	Name    string `json:"name,omitempty"`
	Players int    `json:"players,omitempty"`
}

// PlayerState is broadcast per player each state tick
type PlayerState struct {
	ID      string  `json:"id" msgpack:"id"`
	Name    string  `json:"n" msgpack:"n"`
	X       float64 `json:"x" msgpack:"x"`
	Y       float64 `json:"y" msgpack:"y"`
	Z       float64 `json:"z" msgpack:"z"`
	HP      int     `json:"hp" msgpack:"hp"`
	MaxHP   int     `json:"mhp" msgpack:"mhp"`
	Kills   int     `json:"k" msgpack:"k"`
	Deaths  int     `json:"d" msgpack:"d"`
	Alive   bool    `json:"a" msgpack:"a"`
	Rooted  bool    `json:"rt" msgpack:"rt"`
	Protect bool    `json:"pr" msgpack:"pr"`
}

// MobState is broadcast per mob. Countdown carries the crit telegraph:
// -1 no lifecycle, 4..1 counting, 0 charged.
type MobState struct {
	ID        string  `json:"id" msgpack:"id"`
	Kind      int     `json:"kd" msgpack:"kd"`
	Tier      int     `json:"tr" msgpack:"tr"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	HP        int     `json:"hp" msgpack:"hp"`
	MaxHP     int     `json:"mhp" msgpack:"mhp"`
	Alive     bool    `json:"a" msgpack:"a"`
	Countdown int     `json:"cd" msgpack:"cd"`
	Charged   bool    `json:"ch" msgpack:"ch"`
}

// GameState is the full state broadcast, msgpack-encoded on the wire
type GameState struct {
	Players []PlayerState `json:"p" msgpack:"p"`
	Mobs    []MobState    `json:"m" msgpack:"m"`
	Wave    int           `json:"w" msgpack:"w"`
	Tick    uint64        `json:"tick" msgpack:"tick"`
}

// WelcomeMsg is sent to a player when they join
type WelcomeMsg struct {
	ID       string `json:"id"`
	Spectate bool   `json:"spec,omitempty"`
}

// DeathMsg notifies a player they died
type DeathMsg struct {
	MobID   string `json:"mid"`
	MobKind int    `json:"kd"`
	Crit    bool   `json:"crit,omitempty"` // killed by a boosted attack or whirlwind
}

// MobKillMsg is broadcast when a player kills a mob
type MobKillMsg struct {
	PlayerID   string `json:"pid"`
	PlayerName string `json:"pn"`
	MobID      string `json:"mid"`
	MobKind    int    `json:"kd"`
	MobTier    int    `json:"tr"`
}

// WaveMsg announces a new wave
type WaveMsg struct {
	Wave int  `json:"w"`
	Mobs int  `json:"m"`
	Boss bool `json:"boss,omitempty"`
}

// CritTelegraphMsg carries crit lifecycle feedback to clients
type CritTelegraphMsg struct {
	Event     string   `json:"ev"` // "trigger", "warn", "pulse", "boom"
	MobID     string   `json:"mid"`
	Tier      int      `json:"tr,omitempty"`
	Boss      bool     `json:"boss,omitempty"`
	Countdown int      `json:"cd,omitempty"`
	Damage    int      `json:"dmg,omitempty"`
	Targets   []string `json:"hit,omitempty"`
}

// SessionInfo is used in the session list
type SessionInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Players int    `json:"players"`
	Wave    int    `json:"wave"`
}

// ErrorMsg sends an error to the client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

// LoginMsg authenticates by password
type LoginMsg struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

// AuthMsg authenticates by token
type AuthMsg struct {
	Token string `json:"tok"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	PlayerID int64  `json:"pid"`
	Username string `json:"u"`
	Token    string `json:"tok"`
}

// ProfileMsg returns the caller's lifetime stats
type ProfileMsg struct {
	Username   string  `json:"u"`
	Level      int     `json:"lvl"`
	XP         int     `json:"xp"`
	Kills      int     `json:"k"`
	Deaths     int     `json:"d"`
	CritDeaths int     `json:"cd"`
	BestWave   int     `json:"bw"`
	Playtime   float64 `json:"pt"`
}

// BoardMsg requests a leaderboard ordering
type BoardMsg struct {
	OrderBy string `json:"by"`
}

// BoardRowsMsg returns leaderboard rows
type BoardRowsMsg struct {
	Rows []LeaderboardEntry `json:"rows"`
}
