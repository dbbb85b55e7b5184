package game

import (
	"github.com/duraknet/durak/engine"
	"github.com/google/uuid"
)

// ViewCard is a card as delivered to clients.
type ViewCard struct {
	Rank  string `json:"rank"`
	Suit  string `json:"suit"`
	Value int    `json:"value"`
	Label string `json:"label"` // textual form, e.g. "10♥"
}

// ViewSlot is one table slot; Defend is nil while the slot is uncovered.
type ViewSlot struct {
	Attack ViewCard  `json:"attack"`
	Defend *ViewCard `json:"defend,omitempty"`
}

// ViewPlayer is public per-player information.
type ViewPlayer struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	HandSize  int       `json:"handSize"`
	Connected bool      `json:"connected"`
	Role      string    `json:"role"`
}

// StateView is the game as one participant sees it: their own hand in full,
// the opponent only as a count, everything on the table and the trump public.
type StateView struct {
	SessionID      uuid.UUID    `json:"sessionId"`
	Hand           []ViewCard   `json:"hand"`
	Table          []ViewSlot   `json:"table"`
	Trump          ViewCard     `json:"trump"`
	DeckSize       int          `json:"deckSize"`
	DiscardSize    int          `json:"discardSize"`
	IsMyTurn       bool         `json:"isMyTurn"`
	AllowedActions []string     `json:"allowedActions"`
	Players        []ViewPlayer `json:"players"`
	GameOver       bool         `json:"gameOver"`
	WinnerID       uuid.UUID    `json:"winnerId,omitempty"`
}

// viewCard converts an engine card for client delivery.
func viewCard(c engine.Card) ViewCard {
	return ViewCard{
		Rank:  engine.RankName(c.Rank()),
		Suit:  engine.SuitGlyph(c.Suit()),
		Value: int(c.Value()),
		Label: c.String(),
	}
}

// buildStateView projects the engine state for one participant, enriched
// with session metadata. The caller must hold the session lock.
func (s *Session) buildStateView(forPlayer uuid.UUID) StateView {
	view := StateView{SessionID: s.ID}
	if s.Engine == nil {
		return view
	}

	idx, member := s.PlayerToEngine[forPlayer]
	var ev engine.PlayerView
	if member {
		ev = s.Engine.PlayerView(idx)
	}

	view.Trump = viewCard(ev.Trump)
	view.DeckSize = ev.DeckSize
	view.DiscardSize = ev.DiscardSize
	view.IsMyTurn = ev.IsMyTurn
	view.AllowedActions = ev.AllowedActions
	view.GameOver = ev.GameOver

	view.Hand = make([]ViewCard, len(ev.Hand))
	for i, c := range ev.Hand {
		view.Hand[i] = viewCard(c)
	}
	view.Table = make([]ViewSlot, len(ev.Table))
	for i, slot := range ev.Table {
		view.Table[i] = ViewSlot{Attack: viewCard(slot.Attack)}
		if slot.Covered {
			defend := viewCard(slot.Defend)
			view.Table[i].Defend = &defend
		}
	}

	if ev.GameOver && ev.Winner >= 0 && int(ev.Winner) < len(s.EngineToPlayer) {
		view.WinnerID = s.EngineToPlayer[ev.Winner]
	}

	view.Players = make([]ViewPlayer, len(s.Players))
	for i, p := range s.Players {
		vp := ViewPlayer{
			ID:        p.ID,
			Connected: p.Connected,
		}
		if p.User != nil {
			vp.Username = p.User.Username
		}
		if engineIdx, ok := s.PlayerToEngine[p.ID]; ok {
			vp.HandSize = int(s.Engine.Players[engineIdx].HandLen)
			vp.Role = s.Engine.RoleOf(engineIdx).String()
		}
		view.Players[i] = vp
	}
	return view
}
