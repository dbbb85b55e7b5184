package engine

import "strconv"

// CanBeat reports whether defense beats attack under the given trump:
// same suit and strictly higher value, or a trump against a non-trump.
func CanBeat(attack, defense, trump Card) bool {
	if defense.Suit() == attack.Suit() {
		return defense.Value() > attack.Value()
	}
	return defense.Suit() == trump.Suit() && attack.Suit() != trump.Suit()
}

// canAttackWith reports whether the attacker may open or throw in with the
// card at hand index idx. The same predicate backs both ApplyAction and
// AllowedActions so the two can never drift apart.
//
// A throw-in must match a rank already on the table, and a new attack is
// only allowed while the defender could conceivably cover it: the table is
// capped at MaxSlots and the number of uncovered slots must stay below the
// defender's hand size.
func (g *GameState) canAttackWith(idx uint8) bool {
	if idx >= g.Players[g.Attacker].HandLen {
		return false
	}
	if g.TableLen >= MaxSlots {
		return false
	}
	if g.UncoveredCount() >= g.Players[g.Defender].HandLen {
		return false
	}
	if g.TableLen == 0 {
		return true
	}
	return g.rankOnTable(g.Players[g.Attacker].Hand[idx].Rank())
}

// canDefendWith reports whether the defender may cover the top uncovered
// slot with the card at hand index idx.
func (g *GameState) canDefendWith(idx uint8) bool {
	if idx >= g.Players[g.Defender].HandLen {
		return false
	}
	slot, ok := g.TopUncovered()
	if !ok {
		return false
	}
	return CanBeat(g.Table[slot].Attack, g.Players[g.Defender].Hand[idx], g.Trump)
}

// AllowedActions returns the ordered list of tokens the given player could
// submit right now: playable hand indices first, then "pass" or "take" where
// legal. It never mutates state and is computed by the exact predicates
// ApplyAction enforces.
func (g *GameState) AllowedActions(player uint8) []string {
	if !g.IsStarted() || g.IsGameOver() {
		return nil
	}

	var actions []string
	switch g.RoleOf(player) {
	case RoleAttacker:
		for i := uint8(0); i < g.Players[g.Attacker].HandLen; i++ {
			if g.canAttackWith(i) {
				actions = append(actions, strconv.Itoa(int(i)))
			}
		}
		if g.TableLen > 0 {
			actions = append(actions, TokenPass)
		}
	case RoleDefender:
		if g.TableLen == 0 {
			return nil
		}
		for i := uint8(0); i < g.Players[g.Defender].HandLen; i++ {
			if g.canDefendWith(i) {
				actions = append(actions, strconv.Itoa(int(i)))
			}
		}
		actions = append(actions, TokenTake)
	}
	return actions
}
