// Package engine implements the rules of two-player Durak ("Fool").
//
// The package is a flat-value state machine with no external dependencies:
// the service layer wraps it in a session that serializes actions and fans
// state snapshots out to the participants. All mutation goes through
// ApplyAction; everything else is a read-only query.
package engine

const (
	NumSuits   = 4
	NumRanks   = 9
	DeckSize   = NumSuits * NumRanks // 36
	MaxPlayers = 2
	HandTarget = 6 // hands are refilled to this size after every round
	MaxSlots   = 6 // attack slots per round
)

// PlayerState holds one player's hand in draw order. Hand indices are the
// action tokens clients use to play a card, so order is never compacted
// except when a card leaves the hand.
type PlayerState struct {
	Hand    [DeckSize]Card
	HandLen uint8
}

// Slot is one attack/defend pairing on the table. Covered is the explicit
// "defend side present" flag; Defend is meaningful only while Covered.
type Slot struct {
	Attack  Card
	Defend  Card
	Covered bool
}

// GameState holds the complete, self-contained state of a Durak game.
// It is a flat value type (no pointers, no slices) so that snapshots are
// plain struct copies.
type GameState struct {
	Players    [MaxPlayers]PlayerState
	Deck       [DeckSize]Card
	DeckLen    uint8
	Discards   [DeckSize]Card
	DiscardLen uint8
	Table      [MaxSlots]Slot
	TableLen   uint8
	Trump      Card
	Attacker   uint8
	Defender   uint8
	Flags      uint16
	RNG        uint64
	Winner     int8 // index of the player whose hand emptied first; -1 while running
}

const (
	FlagGameStarted uint16 = 1 << 0
	FlagGameOver    uint16 = 1 << 1
)

// IsStarted reports whether Deal has been run.
func (g *GameState) IsStarted() bool { return g.Flags&FlagGameStarted != 0 }

// IsGameOver reports whether the game reached its terminal state.
func (g *GameState) IsGameOver() bool { return g.Flags&FlagGameOver != 0 }

// ---------------------------------------------------------------------------
// xorshift64 RNG — inline, no interface
// ---------------------------------------------------------------------------

func (g *GameState) nextRand() uint64 {
	x := g.RNG
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	g.RNG = x
	return x
}

// randN returns a random number in [0, n).
func (g *GameState) randN(n uint64) uint64 {
	return g.nextRand() % n
}

// ---------------------------------------------------------------------------
// NewGame and Deal
// ---------------------------------------------------------------------------

// NewGame initializes a GameState with the given seed. The deck is built in
// canonical order (suit-major, rank-ascending) but not yet shuffled or dealt.
func NewGame(seed uint64) GameState {
	var g GameState
	g.RNG = seed
	if g.RNG == 0 {
		g.RNG = 1 // xorshift can't start at 0
	}
	g.Winner = -1
	g.Trump = EmptyCard

	idx := 0
	for suit := uint8(0); suit < NumSuits; suit++ {
		for rank := uint8(0); rank < NumRanks; rank++ {
			g.Deck[idx] = NewCard(suit, rank)
			idx++
		}
	}
	g.DeckLen = DeckSize

	return g
}

// Deal shuffles the deck, designates the trump and deals six cards to each
// player in participant order. Player 0 opens as attacker.
//
// Cards are drawn from the top of the deck (the highest index); the trump is
// the bottom card, so it stays visible for the whole game and is drawn last.
func (g *GameState) Deal() {
	// Fisher-Yates shuffle.
	for i := int(g.DeckLen) - 1; i > 0; i-- {
		j := int(g.randN(uint64(i + 1)))
		g.Deck[i], g.Deck[j] = g.Deck[j], g.Deck[i]
	}

	g.Trump = g.Deck[0]

	for p := uint8(0); p < MaxPlayers; p++ {
		g.refill(p)
	}

	g.Attacker = 0
	g.Defender = 1
	g.Flags |= FlagGameStarted
}

// drawOne pops the top of the deck into player p's hand. Returns false when
// the deck is exhausted.
func (g *GameState) drawOne(p uint8) bool {
	if g.DeckLen == 0 {
		return false
	}
	g.DeckLen--
	card := g.Deck[g.DeckLen]
	g.Players[p].Hand[g.Players[p].HandLen] = card
	g.Players[p].HandLen++
	return true
}

// refill draws until player p holds HandTarget cards or the deck runs out.
func (g *GameState) refill(p uint8) {
	for g.Players[p].HandLen < HandTarget {
		if !g.drawOne(p) {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Query methods
// ---------------------------------------------------------------------------

// RoleOf resolves the per-round role of a player index.
func (g *GameState) RoleOf(player uint8) Role {
	if player >= MaxPlayers {
		return RoleBystander
	}
	switch player {
	case g.Attacker:
		return RoleAttacker
	case g.Defender:
		return RoleDefender
	}
	return RoleBystander
}

// OpponentOf returns the other player's index.
func (g *GameState) OpponentOf(player uint8) uint8 { return 1 - player }

// UncoveredCount returns the number of table slots still awaiting a defend
// card.
func (g *GameState) UncoveredCount() uint8 {
	n := uint8(0)
	for i := uint8(0); i < g.TableLen; i++ {
		if !g.Table[i].Covered {
			n++
		}
	}
	return n
}

// TopUncovered returns the index of the most recently appended slot without
// a defend card, or false when every slot is covered (or the table is empty).
func (g *GameState) TopUncovered() (uint8, bool) {
	for i := g.TableLen; i > 0; i-- {
		if !g.Table[i-1].Covered {
			return i - 1, true
		}
	}
	return 0, false
}

// rankOnTable reports whether any card on the table (attack or defend side)
// carries the given rank. This is the throw-in legality check.
func (g *GameState) rankOnTable(rank uint8) bool {
	for i := uint8(0); i < g.TableLen; i++ {
		if g.Table[i].Attack.Rank() == rank {
			return true
		}
		if g.Table[i].Covered && g.Table[i].Defend.Rank() == rank {
			return true
		}
	}
	return false
}

// CardsOnTable returns the total number of cards on the table, counting both
// sides of covered slots.
func (g *GameState) CardsOnTable() uint8 {
	n := g.TableLen
	for i := uint8(0); i < g.TableLen; i++ {
		if g.Table[i].Covered {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Snapshot Undo (Save / Restore)
// ---------------------------------------------------------------------------

// Snapshot is a complete value-copy of GameState. Saving and restoring are
// plain struct copies, no heap allocation.
type Snapshot GameState

// Save returns a snapshot of the current game state.
func (g *GameState) Save() Snapshot { return Snapshot(*g) }

// Restore replaces the game state with the given snapshot.
func (g *GameState) Restore(s Snapshot) { *g = GameState(s) }
