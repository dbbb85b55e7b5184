package engine

// PlayerView is a read-only projection of the game for one player. It never
// exposes the opponent's hand or the order of the remaining deck; the trump
// is public for the whole game.
type PlayerView struct {
	Hand           []Card
	Table          []Slot
	Trump          Card
	DeckSize       int
	DiscardSize    int
	OpponentHand   int
	IsMyTurn       bool
	AllowedActions []string
	GameOver       bool
	Winner         int8
}

// PlayerView builds the projection for the given player index. It is pure:
// calling it any number of times leaves the state untouched.
func (g *GameState) PlayerView(player uint8) PlayerView {
	v := PlayerView{
		Trump:       g.Trump,
		DeckSize:    int(g.DeckLen),
		DiscardSize: int(g.DiscardLen),
		IsMyTurn:    g.RoleOf(player) == RoleAttacker,
		GameOver:    g.IsGameOver(),
		Winner:      g.Winner,
	}
	if player >= MaxPlayers {
		return v
	}

	v.Hand = make([]Card, g.Players[player].HandLen)
	copy(v.Hand, g.Players[player].Hand[:g.Players[player].HandLen])

	v.Table = make([]Slot, g.TableLen)
	copy(v.Table, g.Table[:g.TableLen])

	v.OpponentHand = int(g.Players[g.OpponentOf(player)].HandLen)
	v.AllowedActions = g.AllowedActions(player)
	return v
}
