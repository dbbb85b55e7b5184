package engine

import (
	"fmt"
	"strconv"
)

// ApplyAction applies the given action token for the given player. It returns
// an error if the action is illegal; on error the state is left untouched.
//
// Dispatch is by role: the current attacker submits attack actions ("pass" or
// a hand index to play), the current defender submits defense actions ("take"
// or a hand index to cover with). Anyone else is rejected uniformly.
func (g *GameState) ApplyAction(player uint8, token string) error {
	if !g.IsStarted() {
		return fmt.Errorf("game has not started")
	}
	if g.IsGameOver() {
		return fmt.Errorf("game is already over")
	}

	switch g.RoleOf(player) {
	case RoleAttacker:
		return g.applyAttack(token)
	case RoleDefender:
		return g.applyDefense(token)
	default:
		return fmt.Errorf("player %d is neither attacker nor defender", player)
	}
}

// parseIndex parses a decimal non-negative hand index token.
func parseIndex(token string) (uint8, error) {
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 || n >= DeckSize {
		return 0, fmt.Errorf("malformed action token %q", token)
	}
	return uint8(n), nil
}

// applyAttack handles "pass" and attack card plays for the current attacker.
func (g *GameState) applyAttack(token string) error {
	if token == TokenPass {
		if g.TableLen == 0 {
			return fmt.Errorf("cannot pass before attacking")
		}
		// Settles unconditionally, even with undefended slots on the table.
		g.settleRound(false)
		return nil
	}

	idx, err := parseIndex(token)
	if err != nil {
		return err
	}
	if !g.canAttackWith(idx) {
		return fmt.Errorf("card %d is not a legal attack", idx)
	}

	card := g.Players[g.Attacker].Hand[idx]
	g.Table[g.TableLen] = Slot{Attack: card, Defend: EmptyCard}
	g.TableLen++
	g.removeFromHand(g.Attacker, idx)
	return nil
}

// applyDefense handles "take" and covering plays for the current defender.
func (g *GameState) applyDefense(token string) error {
	if g.TableLen == 0 {
		return fmt.Errorf("no attack to respond to")
	}

	if token == TokenTake {
		g.settleRound(true)
		return nil
	}

	idx, err := parseIndex(token)
	if err != nil {
		return err
	}
	if !g.canDefendWith(idx) {
		return fmt.Errorf("card %d cannot beat the attack", idx)
	}

	slot, _ := g.TopUncovered()
	card := g.Players[g.Defender].Hand[idx]
	g.Table[slot].Defend = card
	g.Table[slot].Covered = true
	g.removeFromHand(g.Defender, idx)

	// All slots covered — the round resolves on its own.
	if _, open := g.TopUncovered(); !open && g.TableLen > 0 {
		g.settleRound(false)
	}
	return nil
}

// removeFromHand deletes hand[idx] preserving draw order for the remaining
// cards, since hand indices double as action tokens.
func (g *GameState) removeFromHand(p, idx uint8) {
	h := &g.Players[p]
	for i := idx; i+1 < h.HandLen; i++ {
		h.Hand[i] = h.Hand[i+1]
	}
	h.HandLen--
	h.Hand[h.HandLen] = EmptyCard
}

// settleRound clears the table, swaps roles, refills both hands and checks
// for the end of the game. When defenderTook is set the table cards move
// into the defender's hand; otherwise they are discarded for good.
//
// Roles swap regardless of who "won" the round; the refill order is the
// post-swap attacker first, then the post-swap defender.
func (g *GameState) settleRound(defenderTook bool) {
	for i := uint8(0); i < g.TableLen; i++ {
		slot := g.Table[i]
		if defenderTook {
			g.addToHand(g.Defender, slot.Attack)
			if slot.Covered {
				g.addToHand(g.Defender, slot.Defend)
			}
		} else {
			g.Discards[g.DiscardLen] = slot.Attack
			g.DiscardLen++
			if slot.Covered {
				g.Discards[g.DiscardLen] = slot.Defend
				g.DiscardLen++
			}
		}
		g.Table[i] = Slot{Attack: EmptyCard, Defend: EmptyCard}
	}
	g.TableLen = 0

	g.Attacker, g.Defender = g.Defender, g.Attacker

	g.refill(g.Attacker)
	g.refill(g.Defender)

	g.checkGameEnd()
}

// addToHand appends a card to player p's hand.
func (g *GameState) addToHand(p uint8, card Card) {
	g.Players[p].Hand[g.Players[p].HandLen] = card
	g.Players[p].HandLen++
}

// checkGameEnd marks the game over when a hand is empty after refill. The
// player who emptied their hand is the winner; with both hands empty the
// lower participant index wins (deck is exhausted by then).
func (g *GameState) checkGameEnd() {
	if g.IsGameOver() {
		return
	}
	for p := uint8(0); p < MaxPlayers; p++ {
		if g.Players[p].HandLen == 0 {
			g.Flags |= FlagGameOver
			g.Winner = int8(p)
			return
		}
	}
}
