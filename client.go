package main

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
	maxNameLen        = 16
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	playerID   string
	sessionID  string
	remoteAddr string
	joinedAt   time.Time
	msgCount   int
	msgResetAt time.Time
	// Auth state
	authPlayerID int64  // 0 = unauthenticated/guest
	authUsername string // "" = unauthenticated
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgList:
		c.handleList()
	case MsgCreate:
		c.handleCreate(env.D)
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgInput:
		c.handleInput(env.D)
	case MsgLeave:
		c.handleLeave()
	case MsgCheck:
		c.handleCheck(env.D)
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	case MsgProfile:
		c.handleProfile()
	case MsgBoard:
		c.handleLeaderboard(env.D)
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

func (c *Client) handleList() {
	c.SendJSON(Envelope{T: MsgSessions, Data: c.hub.sessions.ListSessions()})
}

func (c *Client) handleCreate(data json.RawMessage) {
	var msg CreateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	sname := strings.TrimSpace(msg.SessionName)
	if sname == "" {
		sname = "arena"
	}
	if len(sname) > maxNameLen {
		sname = sname[:maxNameLen]
	}
	sess := c.hub.sessions.CreateSession(sname)
	if sess == nil {
		c.sendError("session limit reached")
		return
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: map[string]string{"sid": sess.ID}})
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if c.sessionID != "" {
		c.sendError("already in a session")
		return
	}

	sess := c.hub.sessions.GetSession(msg.SessionID)
	if sess == nil {
		c.sendError("session not found")
		return
	}

	name := strings.TrimSpace(msg.Name)
	if name == "" {
		name = "pilot"
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	if c.authUsername != "" {
		name = c.authUsername
	}

	player := sess.Game.AddPlayer(name, msg.Spectate)
	if player == nil {
		c.sendError("session full")
		return
	}

	c.playerID = player.ID
	c.sessionID = sess.ID
	c.joinedAt = time.Now()
	sess.Game.SetClient(player.ID, c)

	c.SendJSON(Envelope{T: MsgJoined, Data: map[string]string{"sid": sess.ID}})
	c.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{ID: player.ID, Spectate: msg.Spectate}})

	if c.hub.analytics != nil {
		c.hub.analytics.Record(EvtSessionJoin, c.authPlayerID, sess.ID, "")
	}
}

func (c *Client) handleInput(data json.RawMessage) {
	if c.sessionID == "" || c.playerID == "" {
		return
	}
	var input ClientInput
	if err := json.Unmarshal(data, &input); err != nil {
		return
	}
	sess := c.hub.sessions.GetSession(c.sessionID)
	if sess == nil {
		return
	}
	sess.Game.HandleInput(c.playerID, input)
}

func (c *Client) handleLeave() {
	c.leaveSession()
}

// leaveSession detaches from the current session and persists the run
func (c *Client) leaveSession() {
	if c.sessionID == "" {
		return
	}
	sum := c.hub.sessions.RemovePlayer(c.sessionID, c.playerID)
	c.persistRun(sum)
	c.sessionID = ""
	c.playerID = ""
}

// persistRun writes an authenticated player's session results to the DB
func (c *Client) persistRun(sum RunSummary) {
	if c.hub.db == nil || c.authPlayerID == 0 {
		return
	}
	duration := time.Since(c.joinedAt).Seconds()
	xp := 20 + sum.Kills*5 + sum.Wave*10
	if _, _, err := c.hub.db.UpdateStatsAfterRun(c.authPlayerID, sum.Kills, sum.Deaths, sum.CritDeaths, sum.Wave, duration, xp); err != nil {
		log.Printf("persist run: %v", err)
	}
}

func (c *Client) handleCheck(data json.RawMessage) {
	var msg CheckMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	sess := c.hub.sessions.GetSession(msg.SID)
	resp := CheckedMsg{SID: msg.SID, Exists: sess != nil}
	if sess != nil {
		resp.Name = sess.Name
		resp.Players = sess.Game.PlayerCount()
	}
	c.SendJSON(Envelope{T: MsgChecked, Data: resp})
}

func (c *Client) handleRegister(data json.RawMessage) {
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.finishAuth(id, strings.TrimSpace(msg.Username), token)
}

func (c *Client) handleLogin(data json.RawMessage) {
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.finishAuth(id, msg.Username, token)
}

func (c *Client) handleAuth(data json.RawMessage) {
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.VerifyToken(msg.Token)
	if err != nil {
		c.sendError("invalid token")
		return
	}
	c.finishAuth(id, username, msg.Token)
}

func (c *Client) finishAuth(id int64, username, token string) {
	c.authPlayerID = id
	c.authUsername = username
	c.hub.SetOnline(id, c)
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{PlayerID: id, Username: username, Token: token}})
	if c.hub.analytics != nil {
		c.hub.analytics.Record(EvtLogin, id, "", "")
	}
}

func (c *Client) handleProfile() {
	if c.hub.db == nil || c.authPlayerID == 0 {
		c.sendError("not logged in")
		return
	}
	stats, err := c.hub.db.GetStats(c.authPlayerID)
	if err != nil || stats == nil {
		c.sendError("profile unavailable")
		return
	}
	c.SendJSON(Envelope{T: MsgProfileR, Data: ProfileMsg{
		Username:   c.authUsername,
		Level:      stats.Level,
		XP:         stats.XP,
		Kills:      stats.Kills,
		Deaths:     stats.Deaths,
		CritDeaths: stats.CritDeaths,
		BestWave:   stats.BestWave,
		Playtime:   stats.Playtime,
	}})
}

func (c *Client) handleLeaderboard(data json.RawMessage) {
	if c.hub.db == nil {
		c.sendError("leaderboard unavailable")
		return
	}
	var msg BoardMsg
	json.Unmarshal(data, &msg) // empty ordering falls through to default
	rows, err := c.hub.db.GetLeaderboard(msg.OrderBy, 20)
	if err != nil {
		c.sendError("leaderboard unavailable")
		return
	}
	c.SendJSON(Envelope{T: MsgBoardR, Data: BoardRowsMsg{Rows: rows}})
}
