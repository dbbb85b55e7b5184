// Package game wraps one engine.GameState in a Session that serializes
// concurrent player actions and fans resulting state snapshots out to both
// participants.
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/duraknet/durak/engine"
	"github.com/duraknet/durak/internal/cache"
	"github.com/duraknet/durak/internal/database"
	"github.com/duraknet/durak/internal/models"
)

// SessionEventType labels the events delivered through NotifyFn.
type SessionEventType string

const (
	EventState        SessionEventType = "state"         // Private: the receiver's state projection.
	EventPlayerJoined SessionEventType = "player_joined" // Public: a second participant arrived.
	EventGameStart    SessionEventType = "game_start"    // Public: engine created, cards dealt.
	EventGameEnd      SessionEventType = "game_end"      // Public: terminal state reached.
	EventChat         SessionEventType = "chat"          // Public: pre-game lobby chat line.
)

// SessionEvent is the envelope handed to the transport for delivery.
type SessionEvent struct {
	Type    SessionEventType       `json:"type"`
	State   *StateView             `json:"state,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// NotifyFunc delivers an event to one participant. Implementations must be
// fire-and-forget: they may not block and their failures are their own.
type NotifyFunc func(playerID uuid.UUID, ev SessionEvent)

// OnGameEndFunc runs after a game reaches its terminal state.
type OnGameEndFunc func(sessionID uuid.UUID, winnerID uuid.UUID)

// Session owns exactly one game between at most two participants. All engine
// access is serialized through Mu: two actions racing in from either player
// are applied in arrival order at the lock, and the loser observes the
// winner's committed state, never a half-applied table.
type Session struct {
	ID      uuid.UUID
	OwnerID uuid.UUID

	Players []*models.Player

	// Engine is created exactly once, by Start, and never replaced.
	Engine         *engine.GameState
	PlayerToEngine map[uuid.UUID]uint8
	EngineToPlayer [engine.MaxPlayers]uuid.UUID

	Mu sync.Mutex

	NotifyFn  NotifyFunc
	OnGameEnd OnGameEndFunc

	actionIndex int
	log         *logrus.Entry
}

// NewSession creates an empty session owned by ownerID.
func NewSession(ownerID uuid.UUID) *Session {
	id, _ := uuid.NewRandom()
	return &Session{
		ID:             id,
		OwnerID:        ownerID,
		PlayerToEngine: make(map[uuid.UUID]uint8),
		log:            logrus.WithField("session", id),
	}
}

// AddPlayer seats a participant. It fails once two are seated or when the
// ID is already present; a returning player reclaims their seat instead.
func (s *Session) AddPlayer(p *models.Player) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	for i, existing := range s.Players {
		if existing.ID == p.ID {
			// Reconnect: refresh the connection, keep the seat.
			s.Players[i].Conn = p.Conn
			s.Players[i].Connected = true
			s.Players[i].User = p.User
			s.log.WithField("player", p.ID).Info("player reconnected")
			if s.Engine != nil {
				s.notifyPlayer(p.ID, SessionEvent{Type: EventState, State: s.viewPtr(p.ID)})
			}
			return true
		}
	}

	if len(s.Players) >= engine.MaxPlayers {
		return false
	}
	s.Players = append(s.Players, p)
	s.log.WithField("player", p.ID).Info("player joined")
	s.logAction(p.ID, "player_join", nil)

	for _, other := range s.Players {
		if other.ID != p.ID {
			s.notifyPlayer(other.ID, SessionEvent{
				Type:    EventPlayerJoined,
				Payload: map[string]interface{}{"playerId": p.ID.String(), "username": username(p)},
			})
		}
	}
	return true
}

// Start creates the engine and deals. It fails without exactly two seated
// participants, or when a game is already running: the engine is created
// exactly once per session.
func (s *Session) Start() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.Engine != nil || len(s.Players) != engine.MaxPlayers {
		return false
	}

	for i, p := range s.Players {
		s.PlayerToEngine[p.ID] = uint8(i)
		s.EngineToPlayer[i] = p.ID
	}

	g := engine.NewGame(uint64(time.Now().UnixNano()))
	g.Deal()
	s.Engine = &g

	s.log.WithField("trump", g.Trump.String()).Info("game started")
	s.logAction(uuid.Nil, "game_start", map[string]interface{}{"trump": g.Trump.String()})

	for _, p := range s.Players {
		s.notifyPlayer(p.ID, SessionEvent{Type: EventGameStart, State: s.viewPtr(p.ID)})
	}
	return true
}

// SubmitAction applies one action token for a participant. It returns false
// for non-members, before the game starts, and for any action the engine
// rejects; in every failure case the engine state is untouched. On success
// both participants are notified of the committed state before the lock is
// released, so no later action can interleave with the fan-out.
func (s *Session) SubmitAction(playerID uuid.UUID, token string) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.Engine == nil {
		return false
	}
	idx, member := s.PlayerToEngine[playerID]
	if !member {
		return false
	}

	if err := s.applyEngineAction(idx, token); err != nil {
		s.log.WithFields(logrus.Fields{"player": playerID, "token": token}).
			WithError(err).Debug("action rejected")
		return false
	}

	s.logAction(playerID, "action", map[string]interface{}{"token": token})
	s.notifyAll()

	if s.Engine.IsGameOver() {
		s.finishGame()
	}
	return true
}

// applyEngineAction delegates to the engine behind a snapshot guard: a panic
// inside the engine would be a fault in its own invariants, so it is logged,
// the pre-action state is restored and the action reports failure instead of
// taking the whole session down. The caller must hold the lock.
func (s *Session) applyEngineAction(idx uint8, token string) (err error) {
	snap := s.Engine.Save()
	defer func() {
		if r := recover(); r != nil {
			s.Engine.Restore(snap)
			s.log.WithField("panic", r).Error("engine fault, state restored")
			err = fmt.Errorf("engine fault: %v", r)
		}
	}()
	return s.Engine.ApplyAction(idx, token)
}

// BroadcastChat relays a lobby chat line from one member to every other
// member. Chat is only for the pre-game lobby; during a game the transport
// routes everything as actions.
func (s *Session) BroadcastChat(fromID uuid.UUID, text string) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	sender, member := s.memberByID(fromID)
	if !member {
		return
	}
	from := username(sender)
	for _, p := range s.Players {
		if p.ID != fromID {
			s.notifyPlayer(p.ID, SessionEvent{
				Type:    EventChat,
				Payload: map[string]interface{}{"from": from, "text": text},
			})
		}
	}
}

// HandleDisconnect marks a participant as gone but keeps their seat; the
// other participant sees the updated connection flag in the next state push.
func (s *Session) HandleDisconnect(playerID uuid.UUID) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	p, member := s.memberByID(playerID)
	if !member || !p.Connected {
		return
	}
	p.Connected = false
	p.Conn = nil
	s.log.WithField("player", playerID).Info("player disconnected")
	s.logAction(playerID, "player_disconnect", nil)

	if s.Engine != nil {
		s.notifyAll()
	}
}

// State returns the projection for one participant. The zero StateView is
// returned before the game starts.
func (s *Session) State(playerID uuid.UUID) StateView {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.buildStateView(playerID)
}

// Members returns the current participant IDs.
func (s *Session) Members() []uuid.UUID {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	ids := make([]uuid.UUID, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.ID
	}
	return ids
}

// memberByID finds a seated player. Caller must hold the lock.
func (s *Session) memberByID(playerID uuid.UUID) (*models.Player, bool) {
	for _, p := range s.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return nil, false
}

func username(p *models.Player) string {
	if p.User != nil {
		return p.User.Username
	}
	return ""
}

// viewPtr builds a state projection on the heap for embedding in an event.
// Caller must hold the lock.
func (s *Session) viewPtr(playerID uuid.UUID) *StateView {
	view := s.buildStateView(playerID)
	return &view
}

// notifyAll fans the committed state out to every participant. Each
// projection is computed independently; delivery is fire-and-forget, so a
// failing or slow recipient never affects the other. Caller must hold the
// lock.
func (s *Session) notifyAll() {
	for _, p := range s.Players {
		s.notifyPlayer(p.ID, SessionEvent{Type: EventState, State: s.viewPtr(p.ID)})
	}
}

// notifyPlayer delivers one event through the transport callback. Caller
// must hold the lock.
func (s *Session) notifyPlayer(playerID uuid.UUID, ev SessionEvent) {
	if s.NotifyFn == nil {
		return
	}
	s.NotifyFn(playerID, ev)
}

// finishGame records the outcome and schedules persistence plus the end
// callback. Caller must hold the lock.
func (s *Session) finishGame() {
	winnerIdx := s.Engine.Winner
	var winnerID, loserID uuid.UUID
	if winnerIdx >= 0 && int(winnerIdx) < len(s.Players) {
		winnerID = s.EngineToPlayer[winnerIdx]
		loserID = s.EngineToPlayer[s.Engine.OpponentOf(uint8(winnerIdx))]
	}
	s.log.WithField("winner", winnerID).Info("game over")
	s.logAction(uuid.Nil, "game_end", map[string]interface{}{"winner": winnerID.String()})

	for _, p := range s.Players {
		s.notifyPlayer(p.ID, SessionEvent{
			Type:    EventGameEnd,
			State:   s.viewPtr(p.ID),
			Payload: map[string]interface{}{"winner": winnerID.String()},
		})
	}

	finalState := map[string]interface{}{
		"winner":   winnerID.String(),
		"loser":    loserID.String(),
		"discards": int(s.Engine.DiscardLen),
	}
	sessionID := s.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if database.DB != nil {
			if err := database.StoreGameResult(ctx, sessionID, winnerID, loserID, finalState); err != nil {
				logrus.WithError(err).WithField("session", sessionID).Error("failed to persist game result")
			}
		}
	}()

	// The callback reaches back into the registry; run it outside the
	// session lock to keep the lock order one-way.
	if s.OnGameEnd != nil {
		go s.OnGameEnd(sessionID, winnerID)
	}
}

// logAction publishes one history record to Redis asynchronously. Caller
// must hold the lock.
func (s *Session) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	s.actionIndex++
	rec := cache.GameActionRecord{
		SessionID:   s.ID,
		ActionIndex: s.actionIndex,
		ActorID:     actorID,
		ActionType:  actionType,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	go func(rec cache.GameActionRecord) {
		if cache.Rdb == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			logrus.WithError(err).WithField("session", rec.SessionID).Warn("failed to publish action record")
		}
	}(rec)
}
