package holdem

import "testing"

// 3 人开局时，即便有人弃牌导致 activeCount 变成 2，Flop 首行动位仍应按
// 多人桌规则从 small blind 开始顺时针找第一个可行动玩家。
func TestStreetProgression_FlopFirstActionAfterBBFolds(t *testing.T) {
	g, err := NewGame(Config{
		MaxPlayers: 3,
		MinPlayers: 3,
		SmallBlind: 50,
		BigBlind:   100,
		Seed:       1,
	})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}

	for chair, id := range []uint64{10001, 10002, 10003} {
		if err := g.SitDown(uint16(chair), id, 1000, false); err != nil {
			t.Fatal(err)
		}
	}

	if err := g.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}
	snap := g.Snapshot()
	if snap.Phase != PhaseTypePreflop {
		t.Fatalf("expected preflop, got %v", snap.Phase)
	}

	// Preflop：Dealer Call / SB Call / BB Fold
	for i := 0; i < 3; i++ {
		snap = g.Snapshot()
		switch snap.ActionChair {
		case snap.BigBlindChair:
			if _, err := g.Act(snap.ActionChair, PlayerActionTypeFold, 0); err != nil {
				t.Fatalf("bb fold err: %v", err)
			}
		default:
			if _, err := g.Act(snap.ActionChair, PlayerActionTypeCall, snap.CurBet); err != nil {
				t.Fatalf("chair %d call err: %v", snap.ActionChair, err)
			}
		}
	}

	// 进入 Flop：首行动位应是 Small Blind（如果 SB 未弃牌）
	snap = g.Snapshot()
	if snap.Phase != PhaseTypeFlop {
		t.Fatalf("expected flop, got %v", snap.Phase)
	}
	if len(snap.CommunityCards) != 3 {
		t.Fatalf("expected 3 community cards on flop, got %d", len(snap.CommunityCards))
	}
	if snap.ActionChair != snap.SmallBlindChair {
		t.Fatalf("expected flop action chair=SB(%d), got %d (dealer=%d bb=%d)",
			snap.SmallBlindChair, snap.ActionChair, snap.DealerChair, snap.BigBlindChair)
	}
}

// Turn 和 River 各只发一张牌，且全员 check 后必须推进到下一条街。
func TestStreetProgression_CheckdownToRiver(t *testing.T) {
	g, err := NewGame(Config{
		MaxPlayers: 3,
		MinPlayers: 2,
		SmallBlind: 50,
		BigBlind:   100,
		Seed:       7,
	})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	if err := g.SitDown(0, 20001, 5000, false); err != nil {
		t.Fatal(err)
	}
	if err := g.SitDown(1, 20002, 5000, false); err != nil {
		t.Fatal(err)
	}

	if err := g.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	wantBoard := map[Phase]int{
		PhaseTypeFlop: 3,
		PhaseTypeTurn: 4,
	}

	var settle *SettlementResult
	for i := 0; i < 32 && settle == nil; i++ {
		snap := g.Snapshot()
		if want, ok := wantBoard[snap.Phase]; ok && len(snap.CommunityCards) != want {
			t.Fatalf("phase %s: expected %d community cards, got %d",
				PhaseTypeDictionary[snap.Phase], want, len(snap.CommunityCards))
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
		settle, err = g.Act(snap.ActionChair, action, snap.CurBet)
		if err != nil {
			t.Fatalf("Act err: %v", err)
		}
	}

	if settle == nil {
		t.Fatalf("hand did not finish within the action cap")
	}
	final := g.Snapshot()
	if len(final.CommunityCards) != 5 {
		t.Fatalf("expected 5 community cards at showdown, got %d", len(final.CommunityCards))
	}
}
