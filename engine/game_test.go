package engine

import (
	"math/rand"
	"testing"
)

// TestNewGameDeck verifies NewGame builds 36 unique cards in canonical order.
func TestNewGameDeck(t *testing.T) {
	g := NewGame(42)

	if g.DeckLen != DeckSize {
		t.Fatalf("DeckLen = %d, want %d", g.DeckLen, DeckSize)
	}

	seen := make(map[Card]bool)
	idx := 0
	for suit := uint8(0); suit < NumSuits; suit++ {
		for rank := uint8(0); rank < NumRanks; rank++ {
			c := g.Deck[idx]
			if c.Suit() != suit || c.Rank() != rank {
				t.Errorf("Deck[%d] = %s, want suit=%d rank=%d", idx, c, suit, rank)
			}
			if seen[c] {
				t.Errorf("duplicate card at index %d: %s", idx, c)
			}
			seen[c] = true
			idx++
		}
	}
	if len(seen) != DeckSize {
		t.Errorf("got %d unique cards, want %d", len(seen), DeckSize)
	}
}

// TestNewGameSeedZero verifies that seed 0 is corrected to 1.
func TestNewGameSeedZero(t *testing.T) {
	g := NewGame(0)
	if g.RNG != 1 {
		t.Errorf("RNG = %d, want 1 for seed=0", g.RNG)
	}
}

// TestDealCardCounts verifies the initial deal: 6 cards each, 24 left in the
// deck, trump designated, player 0 attacking.
func TestDealCardCounts(t *testing.T) {
	g := NewGame(42)
	g.Deal()

	for p := uint8(0); p < MaxPlayers; p++ {
		if g.Players[p].HandLen != HandTarget {
			t.Errorf("player %d HandLen = %d, want %d", p, g.Players[p].HandLen, HandTarget)
		}
	}
	if g.DeckLen != DeckSize-2*HandTarget {
		t.Errorf("DeckLen = %d, want %d", g.DeckLen, DeckSize-2*HandTarget)
	}
	if g.Trump == EmptyCard {
		t.Error("Trump not designated after Deal")
	}
	if g.Trump != g.Deck[0] {
		t.Errorf("Trump = %s, want bottom of deck %s", g.Trump, g.Deck[0])
	}
	if g.Attacker != 0 || g.Defender != 1 {
		t.Errorf("roles = (%d, %d), want (0, 1)", g.Attacker, g.Defender)
	}
	if !g.IsStarted() || g.IsGameOver() {
		t.Errorf("Flags = %#x after Deal", g.Flags)
	}
}

// TestDealDeterministic verifies that the same seed produces identical deals.
func TestDealDeterministic(t *testing.T) {
	g1 := NewGame(99)
	g1.Deal()
	g2 := NewGame(99)
	g2.Deal()

	if g1 != g2 {
		t.Error("identical seeds produced different states")
	}

	g3 := NewGame(100)
	g3.Deal()
	if g1 == g3 {
		t.Error("different seeds produced identical states")
	}
}

// TestSaveRestore verifies the snapshot round-trip.
func TestSaveRestore(t *testing.T) {
	g := NewGame(7)
	g.Deal()
	snap := g.Save()

	if err := g.ApplyAction(g.Attacker, "0"); err != nil {
		t.Fatalf("ApplyAction: %v", err)
	}
	if GameState(snap) == g {
		t.Fatal("state did not change after a legal action")
	}

	g.Restore(snap)
	if GameState(snap) != g {
		t.Error("Restore did not return to the saved state")
	}
}

// cardConservation returns the multiset count of every card reachable in the
// state: deck, hands, table (both sides) and discards.
func cardConservation(g *GameState) map[Card]int {
	counts := make(map[Card]int)
	for i := uint8(0); i < g.DeckLen; i++ {
		counts[g.Deck[i]]++
	}
	for p := uint8(0); p < MaxPlayers; p++ {
		for i := uint8(0); i < g.Players[p].HandLen; i++ {
			counts[g.Players[p].Hand[i]]++
		}
	}
	for i := uint8(0); i < g.TableLen; i++ {
		counts[g.Table[i].Attack]++
		if g.Table[i].Covered {
			counts[g.Table[i].Defend]++
		}
	}
	for i := uint8(0); i < g.DiscardLen; i++ {
		counts[g.Discards[i]]++
	}
	return counts
}

func checkConservation(t *testing.T, g *GameState, step int) {
	t.Helper()
	counts := cardConservation(g)
	if len(counts) != DeckSize {
		t.Fatalf("step %d: %d distinct cards accounted for, want %d", step, len(counts), DeckSize)
	}
	for c, n := range counts {
		if n != 1 {
			t.Fatalf("step %d: card %s appears %d times", step, c, n)
		}
	}
}

// TestRandomPlayoutConservation drives full games with random legal actions
// and asserts that no card is ever duplicated or lost.
func TestRandomPlayoutConservation(t *testing.T) {
	for seed := uint64(1); seed <= 25; seed++ {
		g := NewGame(seed)
		g.Deal()
		checkConservation(t, &g, 0)

		rng := rand.New(rand.NewSource(int64(seed)))
		for step := 1; step <= 2000 && !g.IsGameOver(); step++ {
			// The attacker acts unless only the defender has moves.
			actor := g.Attacker
			actions := g.AllowedActions(actor)
			if rng.Intn(2) == 0 || len(actions) == 0 {
				if def := g.AllowedActions(g.Defender); len(def) > 0 {
					actor, actions = g.Defender, def
				}
			}
			if len(actions) == 0 {
				t.Fatalf("seed %d step %d: no legal actions for either player", seed, step)
			}
			token := actions[rng.Intn(len(actions))]
			if err := g.ApplyAction(actor, token); err != nil {
				t.Fatalf("seed %d step %d: allowed action %q rejected: %v", seed, step, token, err)
			}
			checkConservation(t, &g, step)
		}

		if !g.IsGameOver() {
			t.Errorf("seed %d: game did not terminate", seed)
			continue
		}
		if g.Winner < 0 || g.Winner >= MaxPlayers {
			t.Errorf("seed %d: Winner = %d out of range", seed, g.Winner)
		}
		if g.Players[g.Winner].HandLen != 0 {
			t.Errorf("seed %d: winner %d still holds %d cards", seed, g.Winner, g.Players[g.Winner].HandLen)
		}
	}
}
