package main

import (
	"database/sql"
	"log"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// PlayerRow represents a player record in the database
type PlayerRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// StatsRow represents player stats
type StatsRow struct {
	PlayerID   int64
	Kills      int
	Deaths     int
	CritDeaths int
	BestWave   int
	Runs       int
	Playtime   float64 // seconds
	XP         int
	Level      int
}

// RunRow represents one completed arena run
type RunRow struct {
	ID         int64
	PlayerID   int64
	Kills      int
	Deaths     int
	CritDeaths int
	Wave       int
	Duration   float64
	XPEarned   int
	CreatedAt  time.Time
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stats (
		player_id INTEGER PRIMARY KEY REFERENCES players(id),
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		crit_deaths INTEGER NOT NULL DEFAULT 0,
		best_wave INTEGER NOT NULL DEFAULT 0,
		runs INTEGER NOT NULL DEFAULT 0,
		playtime REAL NOT NULL DEFAULT 0,
		xp INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		player_id INTEGER NOT NULL REFERENCES players(id),
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		crit_deaths INTEGER NOT NULL DEFAULT 0,
		wave INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		xp_earned INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		player_id INTEGER,
		session_id TEXT,
		data TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_player ON runs(player_id);
	CREATE INDEX IF NOT EXISTS idx_players_username ON players(username);
	CREATE INDEX IF NOT EXISTS idx_analytics_type ON analytics_events(event_type);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// CreatePlayer creates a new player account (returns player ID)
func (db *DB) CreatePlayer(username, passHash string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO players (username, pass_hash) VALUES (?, ?)",
		username, passHash,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	// Create stats row
	_, err = db.conn.Exec("INSERT INTO stats (player_id) VALUES (?)", id)
	return id, err
}

// GetPlayerByUsername returns a player by username
func (db *DB) GetPlayerByUsername(username string) (*PlayerRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM players WHERE username = ?",
		username,
	)
	p := &PlayerRow{}
	err := row.Scan(&p.ID, &p.Username, &p.PassHash, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetPlayerByID returns a player by ID
func (db *DB) GetPlayerByID(id int64) (*PlayerRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM players WHERE id = ?",
		id,
	)
	p := &PlayerRow{}
	err := row.Scan(&p.ID, &p.Username, &p.PassHash, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM players WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// GetStats returns player stats
func (db *DB) GetStats(playerID int64) (*StatsRow, error) {
	row := db.conn.QueryRow(
		"SELECT player_id, kills, deaths, crit_deaths, best_wave, runs, playtime, xp, level FROM stats WHERE player_id = ?",
		playerID,
	)
	s := &StatsRow{}
	err := row.Scan(&s.PlayerID, &s.Kills, &s.Deaths, &s.CritDeaths, &s.BestWave, &s.Runs, &s.Playtime, &s.XP, &s.Level)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// XPForLevel returns the total XP required to reach a given level.
// Level 1 requires 0 XP, level 2 requires 100, etc.
// Formula: sum of 100 * i^1.5 for i in 1..level-1
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	total := 0.0
	for i := 1; i < level; i++ {
		total += 100.0 * math.Pow(float64(i), 1.5)
	}
	return int(total)
}

// XPToNextLevel returns XP needed from current level to reach the next level
func XPToNextLevel(level int) int {
	return XPForLevel(level+1) - XPForLevel(level)
}

// CalculateLevel returns the level for a given total XP amount
func CalculateLevel(totalXP int) int {
	level := 1
	for {
		needed := XPForLevel(level + 1)
		if totalXP < needed {
			return level
		}
		level++
		if level > 100 { // cap at 100
			return 100
		}
	}
}

// UpdateStatsAfterRun updates player stats when an arena run ends.
// Returns (newXP, newLevel) for client notification.
func (db *DB) UpdateStatsAfterRun(playerID int64, kills, deaths, critDeaths, wave int, duration float64, xpEarned int) (int, int, error) {
	_, err := db.conn.Exec(`
		UPDATE stats SET
			kills = kills + ?,
			deaths = deaths + ?,
			crit_deaths = crit_deaths + ?,
			best_wave = MAX(best_wave, ?),
			runs = runs + 1,
			playtime = playtime + ?,
			xp = xp + ?
		WHERE player_id = ?`,
		kills, deaths, critDeaths, wave, duration, xpEarned, playerID,
	)
	if err != nil {
		return 0, 0, err
	}

	_, err = db.conn.Exec(
		`INSERT INTO runs (player_id, kills, deaths, crit_deaths, wave, duration, xp_earned)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		playerID, kills, deaths, critDeaths, wave, duration, xpEarned,
	)
	if err != nil {
		return 0, 0, err
	}

	// Read back total XP and calculate proper level
	var totalXP int
	err = db.conn.QueryRow("SELECT xp FROM stats WHERE player_id = ?", playerID).Scan(&totalXP)
	if err != nil {
		return 0, 0, err
	}
	newLevel := CalculateLevel(totalXP)

	_, err = db.conn.Exec("UPDATE stats SET level = ? WHERE player_id = ?", newLevel, playerID)
	return totalXP, newLevel, err
}

// GetLeaderboard returns top players sorted by the given field
func (db *DB) GetLeaderboard(orderBy string, limit int) ([]LeaderboardEntry, error) {
	// Whitelist valid order columns
	validCols := map[string]string{
		"kills": "s.kills", "wave": "s.best_wave", "level": "s.level",
		"xp": "s.xp",
		"kd": "CASE WHEN s.deaths > 0 THEN CAST(s.kills AS REAL)/s.deaths ELSE s.kills END",
	}
	col, ok := validCols[orderBy]
	if !ok {
		col = "s.best_wave"
	}

	query := `SELECT p.username, s.level, s.xp, s.kills, s.deaths, s.crit_deaths, s.best_wave
		FROM stats s JOIN players p ON p.id = s.player_id
		ORDER BY ` + col + ` DESC LIMIT ?`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Level, &e.XP, &e.Kills, &e.Deaths, &e.CritDeaths, &e.BestWave); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}

// LeaderboardEntry represents one row in the leaderboard
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	Username   string `json:"username"`
	Level      int    `json:"level"`
	XP         int    `json:"xp"`
	Kills      int    `json:"kills"`
	Deaths     int    `json:"deaths"`
	CritDeaths int    `json:"crit_deaths"`
	BestWave   int    `json:"best_wave"`
}

// GetRunHistory returns recent runs for a player
func (db *DB) GetRunHistory(playerID int64, limit int) ([]RunRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, player_id, kills, deaths, crit_deaths, wave, duration, xp_earned, created_at
		FROM runs
		WHERE player_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.PlayerID, &r.Kills, &r.Deaths, &r.CritDeaths, &r.Wave, &r.Duration, &r.XPEarned, &r.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// GetSetting returns a persisted server setting, or "" if absent
func (db *DB) GetSetting(key string) string {
	var value string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

// SetSetting persists a server setting
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}
