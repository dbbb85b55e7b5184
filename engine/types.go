package engine

// Suit constants — packed into the upper 4 bits of Card.
const (
	SuitSpades   uint8 = 0
	SuitClubs    uint8 = 1
	SuitDiamonds uint8 = 2
	SuitHearts   uint8 = 3
)

// Rank constants — packed into the lower 4 bits of Card.
// Comparison value is rank + 6 (Six is worth 6, Ace is worth 14).
const (
	RankSix   uint8 = 0
	RankSeven uint8 = 1
	RankEight uint8 = 2
	RankNine  uint8 = 3
	RankTen   uint8 = 4
	RankJack  uint8 = 5
	RankQueen uint8 = 6
	RankKing  uint8 = 7
	RankAce   uint8 = 8
)

// Card is a packed uint8: upper 4 bits = suit, lower 4 bits = rank.
type Card uint8

// EmptyCard represents the absence of a card.
const EmptyCard Card = 0xFF

// NewCard constructs a Card from suit and rank.
func NewCard(suit, rank uint8) Card {
	return Card((suit << 4) | (rank & 0x0F))
}

// Suit returns the suit bits (upper 4).
func (c Card) Suit() uint8 { return uint8(c) >> 4 }

// Rank returns the rank bits (lower 4).
func (c Card) Rank() uint8 { return uint8(c) & 0x0F }

// Value returns the comparison value of the card: rank index + 6.
func (c Card) Value() uint8 {
	if c == EmptyCard {
		return 0
	}
	return c.Rank() + 6
}

var suitGlyphs = [NumSuits]string{"♠", "♣", "♦", "♥"}
var rankNames = [NumRanks]string{"6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// String renders the card in its textual form: rank followed by suit glyph,
// e.g. "10♥" or "A♠".
func (c Card) String() string {
	if c == EmptyCard || c.Suit() >= NumSuits || c.Rank() >= NumRanks {
		return "??"
	}
	return rankNames[c.Rank()] + suitGlyphs[c.Suit()]
}

// SuitGlyph returns the glyph for a suit constant.
func SuitGlyph(suit uint8) string {
	if suit >= NumSuits {
		return "?"
	}
	return suitGlyphs[suit]
}

// RankName returns the textual form for a rank constant.
func RankName(rank uint8) string {
	if rank >= NumRanks {
		return "?"
	}
	return rankNames[rank]
}

// Action tokens. Card plays are decimal hand indices; these two are the only
// non-numeric tokens the engine accepts.
const (
	TokenPass = "pass"
	TokenTake = "take"
)

// Role is the per-round role of a player, resolved once per action.
type Role uint8

const (
	RoleBystander Role = iota
	RoleAttacker
	RoleDefender
)

func (r Role) String() string {
	switch r {
	case RoleAttacker:
		return "attacker"
	case RoleDefender:
		return "defender"
	default:
		return "bystander"
	}
}
