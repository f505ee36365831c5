package holdem

import (
	"strings"
	"testing"

	"holdem-kit/card"
)

func TestStartHand_UsesForcedDealerAndDeckOverride(t *testing.T) {
	forcedDealer := uint16(0)
	prefix := []card.Card{
		card.CardSpadeA, card.CardSpadeK, card.CardSpadeQ,
		card.CardSpadeJ, card.CardSpadeT, card.CardSpade9,
	}
	deck := deckWithPrefix(prefix)

	g, err := NewGame(Config{
		MaxPlayers:        3,
		MinPlayers:        2,
		SmallBlind:        50,
		BigBlind:          100,
		Seed:              1,
		ForcedDealerChair: &forcedDealer,
		DeckOverride:      deck,
	})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}

	for chair, id := range []uint64{10001, 10002, 10003} {
		if err := g.SitDown(uint16(chair), id, 1000, false); err != nil {
			t.Fatalf("SitDown seat%d err: %v", chair, err)
		}
	}

	if err := g.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	snap := g.Snapshot()
	if snap.DealerChair != forcedDealer {
		t.Fatalf("expected forced dealer %d, got %d", forcedDealer, snap.DealerChair)
	}

	holeByChair := make(map[uint16][]card.Card, len(snap.Players))
	for _, ps := range snap.Players {
		holeByChair[ps.Chair] = ps.HandCards
	}

	// 从 SB（庄家下家）开始逐张轮发
	assertHoleCards(t, holeByChair[1], []card.Card{card.CardSpadeA, card.CardSpadeJ})
	assertHoleCards(t, holeByChair[2], []card.Card{card.CardSpadeK, card.CardSpadeT})
	assertHoleCards(t, holeByChair[0], []card.Card{card.CardSpadeQ, card.CardSpade9})
}

func TestStartHand_ForcedDealerMustBeActive(t *testing.T) {
	forcedDealer := uint16(2)
	g, err := NewGame(Config{
		MaxPlayers:        3,
		MinPlayers:        2,
		SmallBlind:        50,
		BigBlind:          100,
		ForcedDealerChair: &forcedDealer,
	})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}

	if err := g.SitDown(0, 10001, 1000, false); err != nil {
		t.Fatalf("SitDown seat0 err: %v", err)
	}
	if err := g.SitDown(1, 10002, 1000, false); err != nil {
		t.Fatalf("SitDown seat1 err: %v", err)
	}

	err = g.StartHand()
	if err == nil {
		t.Fatalf("expected StartHand error when forced dealer seat is inactive")
	}
	if !strings.Contains(err.Error(), "forced dealer chair") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewGame_RejectsDuplicateDeckOverrideCards(t *testing.T) {
	deck := card.NewDeck()
	deck[1] = deck[0]

	_, err := NewGame(Config{
		MaxPlayers:   2,
		MinPlayers:   2,
		SmallBlind:   50,
		BigBlind:     100,
		DeckOverride: deck,
	})
	if err == nil {
		t.Fatalf("expected duplicate deck override validation error")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// 同一 seed + 同一动作序列必须产生完全一致的结算
func TestStartHand_SameSeedSameOutcome(t *testing.T) {
	run := func() Snapshot {
		g, err := NewGame(Config{
			MaxPlayers: 4,
			MinPlayers: 2,
			SmallBlind: 50,
			BigBlind:   100,
			Seed:       99,
		})
		if err != nil {
			t.Fatalf("NewGame err: %v", err)
		}
		for chair, id := range []uint64{1, 2, 3} {
			if err := g.SitDown(uint16(chair), id, 2000, false); err != nil {
				t.Fatal(err)
			}
		}
		if err := g.StartHand(); err != nil {
			t.Fatalf("StartHand err: %v", err)
		}
		for i := 0; i < 32; i++ {
			snap := g.Snapshot()
			if snap.Ended {
				break
			}
			acts, _, err := g.LegalActions(snap.ActionChair)
			if err != nil {
				t.Fatalf("LegalActions err: %v", err)
			}
			action := PlayerActionTypeCall
			for _, a := range acts {
				if a == PlayerActionTypeCheck {
					action = PlayerActionTypeCheck
					break
				}
			}
			if _, err := g.Act(snap.ActionChair, action, snap.CurBet); err != nil {
				t.Fatalf("Act err: %v", err)
			}
		}
		return g.Snapshot()
	}

	a, b := run(), run()
	if a.DealerChair != b.DealerChair {
		t.Fatalf("dealer differs: %d vs %d", a.DealerChair, b.DealerChair)
	}
	if len(a.CommunityCards) != len(b.CommunityCards) {
		t.Fatalf("board length differs: %d vs %d", len(a.CommunityCards), len(b.CommunityCards))
	}
	for i := range a.CommunityCards {
		if a.CommunityCards[i] != b.CommunityCards[i] {
			t.Fatalf("board card %d differs: %v vs %v", i, a.CommunityCards[i], b.CommunityCards[i])
		}
	}
	for i := range a.Players {
		if a.Players[i].Stack != b.Players[i].Stack {
			t.Fatalf("chair %d stack differs: %d vs %d", a.Players[i].Chair, a.Players[i].Stack, b.Players[i].Stack)
		}
	}
}

func deckWithPrefix(prefix []card.Card) []card.Card {
	full := card.NewDeck()
	out := make([]card.Card, 0, len(full))
	out = append(out, prefix...)
	seen := make(map[card.Card]struct{}, len(prefix))
	for _, c := range prefix {
		seen[c] = struct{}{}
	}
	for _, c := range full {
		if _, ok := seen[c]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

func assertHoleCards(t *testing.T, got []card.Card, want []card.Card) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("unexpected hole card length: got=%d want=%d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected hole card at %d: got=%v want=%v", i, got[i], want[i])
		}
	}
}
