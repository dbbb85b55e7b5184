// Package lobby tracks every live game session and which session each player
// currently occupies. A player is in at most one session at a time.
package lobby

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/duraknet/durak/internal/game"
	"github.com/duraknet/durak/internal/models"
)

var (
	ErrAlreadyInSession = errors.New("player already in a session")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionFull      = errors.New("session is full")
	ErrNotOwner         = errors.New("only the session owner may do that")
)

// Registry is the in-memory index of live sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*game.Session
	byPlayer map[uuid.UUID]uuid.UUID

	notify game.NotifyFunc
}

// NewRegistry creates an empty registry. Sessions created through it deliver
// their events via notify.
func NewRegistry(notify game.NotifyFunc) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*game.Session),
		byPlayer: make(map[uuid.UUID]uuid.UUID),
		notify:   notify,
	}
}

// Create opens a new session with the given player as owner and first member.
func (r *Registry) Create(owner *models.Player) (*game.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.byPlayer[owner.ID]; busy {
		return nil, ErrAlreadyInSession
	}

	s := game.NewSession(owner.ID)
	s.NotifyFn = r.notify
	s.OnGameEnd = r.onGameEnd
	s.AddPlayer(owner)

	r.sessions[s.ID] = s
	r.byPlayer[owner.ID] = s.ID
	logrus.WithFields(logrus.Fields{"session": s.ID, "owner": owner.ID}).Info("session created")
	return s, nil
}

// Join seats a player in an existing session.
func (r *Registry) Join(p *models.Player, sessionID uuid.UUID) (*game.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if current, busy := r.byPlayer[p.ID]; busy {
		// Rejoining the same session is a reconnect, not a conflict.
		if current != sessionID {
			return nil, ErrAlreadyInSession
		}
	}
	if !s.AddPlayer(p) {
		return nil, ErrSessionFull
	}
	r.byPlayer[p.ID] = sessionID
	return s, nil
}

// Lookup returns the session a player currently occupies, or nil.
func (r *Registry) Lookup(playerID uuid.UUID) *game.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID, ok := r.byPlayer[playerID]
	if !ok {
		return nil
	}
	return r.sessions[sessionID]
}

// Get returns a session by ID.
func (r *Registry) Get(sessionID uuid.UUID) (*game.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// List returns the IDs of all live sessions.
func (r *Registry) List() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Delete removes a session and frees all its members. requestedBy must be
// the owner; uuid.Nil bypasses the check for registry-internal cleanup.
func (r *Registry) Delete(sessionID uuid.UUID, requestedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(sessionID, requestedBy)
}

func (r *Registry) deleteLocked(sessionID uuid.UUID, requestedBy uuid.UUID) error {
	s, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if requestedBy != uuid.Nil && requestedBy != s.OwnerID {
		return ErrNotOwner
	}
	for _, memberID := range s.Members() {
		delete(r.byPlayer, memberID)
	}
	delete(r.sessions, sessionID)
	logrus.WithField("session", sessionID).Info("session removed")
	return nil
}

// onGameEnd retires a session once its game has finished. Sessions invoke
// this on a fresh goroutine, so taking the registry lock here is safe.
func (r *Registry) onGameEnd(sessionID uuid.UUID, winnerID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.deleteLocked(sessionID, uuid.Nil); err != nil {
		logrus.WithError(err).WithField("session", sessionID).Warn("cleanup after game end")
	}
}
