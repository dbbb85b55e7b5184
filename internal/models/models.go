// Package models holds the shared service-layer types.
package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// User is an account identity. Guests get a random ID and no stored record.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Player is one connected participant. Conn is nil while disconnected; the
// session keeps the seat so the player can reconnect into a running game.
type Player struct {
	ID        uuid.UUID
	User      *User
	Conn      *websocket.Conn
	Connected bool
}
