// Package ws is the websocket transport: it authenticates connections,
// decodes client commands into registry and session calls, and delivers
// session events back out without ever blocking the game layer.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/duraknet/durak/internal/auth"
	"github.com/duraknet/durak/internal/cache"
	"github.com/duraknet/durak/internal/game"
	"github.com/duraknet/durak/internal/lobby"
	"github.com/duraknet/durak/internal/models"
)

// Msg is the wire envelope in both directions.
type Msg struct {
	T string                 `json:"t"`
	M map[string]interface{} `json:"m,omitempty"`
}

// event is the outbound form of a session event.
type event struct {
	T       string                 `json:"t"`
	State   *game.StateView        `json:"state,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

const sendBuffer = 64

type client struct {
	playerID uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
}

// Hub owns all live connections, one per player. A reconnecting player
// replaces their previous connection.
type Hub struct {
	jwtSecret      []byte
	allowedOrigins []string

	Registry *lobby.Registry

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
}

// NewHub creates the hub and the session registry wired to it.
func NewHub(jwtSecret []byte, allowedOrigins []string) *Hub {
	h := &Hub{
		jwtSecret:      jwtSecret,
		allowedOrigins: allowedOrigins,
		clients:        make(map[uuid.UUID]*client),
	}
	h.Registry = lobby.NewRegistry(h.Notify)
	return h
}

// Notify implements game.NotifyFunc. Delivery is non-blocking: a client that
// cannot keep up loses intermediate state pushes, and the next one catches
// them up because every push carries the full view.
func (h *Hub) Notify(playerID uuid.UUID, ev game.SessionEvent) {
	data, err := json.Marshal(event{T: string(ev.Type), State: ev.State, Payload: ev.Payload})
	if err != nil {
		logrus.WithError(err).Error("marshal session event")
		return
	}

	h.mu.RLock()
	c := h.clients[playerID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// identify resolves the connecting player from the token query parameter,
// falling back to a fresh guest identity.
func (h *Hub) identify(r *http.Request) (uuid.UUID, string) {
	name := r.URL.Query().Get("name")
	if token := r.URL.Query().Get("token"); token != "" {
		if userID, err := auth.VerifyToken(h.jwtSecret, token); err == nil {
			return userID, name
		}
		logrus.Debug("rejected token on handshake, continuing as guest")
	}
	return uuid.New(), name
}

// ServeWS upgrades the connection and runs its read loop until the client
// goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.allowedOrigins,
	})
	if err != nil {
		logrus.WithError(err).Debug("websocket accept failed")
		return
	}

	playerID, name := h.identify(r)
	c := &client{playerID: playerID, conn: conn, send: make(chan []byte, sendBuffer)}
	log := logrus.WithField("player", playerID)

	h.mu.Lock()
	if old := h.clients[playerID]; old != nil {
		// Ends the old read loop; its handler unwinds on its own. The send
		// channel is never closed so concurrent notifies stay safe.
		_ = old.conn.Close(websocket.StatusPolicyViolation, "superseded")
	}
	h.clients[playerID] = c
	h.mu.Unlock()
	log.Info("client connected")

	go c.writeLoop(r.Context())

	h.sendTo(c, Msg{T: "hello", M: map[string]interface{}{"playerId": playerID.String()}})
	h.readLoop(r.Context(), c, name, log)

	h.mu.Lock()
	if h.clients[playerID] == c {
		delete(h.clients, playerID)
	}
	h.mu.Unlock()

	if s := h.Registry.Lookup(playerID); s != nil {
		s.HandleDisconnect(playerID)
	}
	log.Info("client disconnected")
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *client) writeLoop(ctx context.Context) {
	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, c *client, name string, log *logrus.Entry) {
	player := &models.Player{
		ID:        c.playerID,
		User:      &models.User{ID: c.playerID, Username: name},
		Conn:      c.conn,
		Connected: true,
	}

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var m Msg
		if err := json.Unmarshal(data, &m); err != nil {
			h.sendError(c, "BAD_MESSAGE")
			continue
		}
		h.dispatch(c, player, m, log)
	}
}

func (h *Hub) dispatch(c *client, player *models.Player, m Msg, log *logrus.Entry) {
	switch m.T {
	case "create_session":
		s, err := h.Registry.Create(player)
		if err != nil {
			h.sendError(c, errCode(err))
			return
		}
		h.sendTo(c, Msg{T: "session_created", M: map[string]interface{}{"sessionId": s.ID.String()}})

	case "join_session":
		sessionID, ok := parseUUID(m.M, "sessionId")
		if !ok {
			h.sendError(c, "BAD_SESSION_ID")
			return
		}
		s, err := h.Registry.Join(player, sessionID)
		if err != nil {
			h.sendError(c, errCode(err))
			return
		}
		h.sendTo(c, Msg{T: "session_joined", M: map[string]interface{}{"sessionId": s.ID.String()}})

	case "list_sessions":
		ids := h.Registry.List()
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = id.String()
		}
		h.sendTo(c, Msg{T: "sessions", M: map[string]interface{}{"sessionIds": out}})

	case "delete_session":
		s := h.Registry.Lookup(c.playerID)
		if s == nil {
			h.sendError(c, "NOT_IN_SESSION")
			return
		}
		if err := h.Registry.Delete(s.ID, c.playerID); err != nil {
			h.sendError(c, errCode(err))
			return
		}
		h.sendTo(c, Msg{T: "session_deleted", M: map[string]interface{}{"sessionId": s.ID.String()}})

	case "start_game":
		s := h.Registry.Lookup(c.playerID)
		if s == nil {
			h.sendError(c, "NOT_IN_SESSION")
			return
		}
		if c.playerID != s.OwnerID {
			h.sendError(c, "NOT_OWNER")
			return
		}
		if !s.Start() {
			h.sendError(c, "CANNOT_START")
		}

	case "action":
		s := h.Registry.Lookup(c.playerID)
		if s == nil {
			h.sendError(c, "NOT_IN_SESSION")
			return
		}
		token, _ := m.M["token"].(string)
		if !s.SubmitAction(c.playerID, token) {
			h.sendError(c, "ILLEGAL_ACTION")
		}

	case "chat":
		s := h.Registry.Lookup(c.playerID)
		if s == nil {
			h.sendError(c, "NOT_IN_SESSION")
			return
		}
		text, _ := m.M["text"].(string)
		if text != "" {
			s.BroadcastChat(c.playerID, text)
		}

	case "history":
		s := h.Registry.Lookup(c.playerID)
		if s == nil {
			h.sendError(c, "NOT_IN_SESSION")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		records, err := cache.GameActionHistory(ctx, s.ID)
		if err != nil {
			h.sendError(c, "NO_HISTORY")
			return
		}
		h.sendTo(c, Msg{T: "history", M: map[string]interface{}{"records": records}})

	case "state":
		s := h.Registry.Lookup(c.playerID)
		if s == nil {
			h.sendError(c, "NOT_IN_SESSION")
			return
		}
		view := s.State(c.playerID)
		data, err := json.Marshal(event{T: string(game.EventState), State: &view})
		if err != nil {
			return
		}
		select {
		case c.send <- data:
		default:
		}

	default:
		log.WithField("type", m.T).Debug("unknown message type")
		h.sendError(c, "UNKNOWN_TYPE")
	}
}

func (h *Hub) sendTo(c *client, m Msg) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) sendError(c *client, code string) {
	h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": code}})
}

func parseUUID(m map[string]interface{}, key string) (uuid.UUID, bool) {
	raw, _ := m[key].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func errCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, lobby.ErrAlreadyInSession):
		return "ALREADY_IN_SESSION"
	case errors.Is(err, lobby.ErrSessionNotFound):
		return "NO_SESSION"
	case errors.Is(err, lobby.ErrSessionFull):
		return "SESSION_FULL"
	case errors.Is(err, lobby.ErrNotOwner):
		return "NOT_OWNER"
	default:
		return "INTERNAL"
	}
}
