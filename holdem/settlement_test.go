package holdem

import (
	"testing"

	"holdem-kit/card"
	"holdem-kit/eval"
)

func mustParseCards(t *testing.T, strs ...string) []card.Card {
	t.Helper()
	out := make([]card.Card, 0, len(strs))
	for _, s := range strs {
		c, err := card.Parse(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		out = append(out, c)
	}
	return out
}

func checkdown(t *testing.T, g *Game) *SettlementResult {
	t.Helper()
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
		settle, err := g.Act(snap.ActionChair, action, snap.CurBet)
		if err != nil {
			t.Fatalf("Act err: %v", err)
		}
		if settle != nil {
			return settle
		}
	}
	t.Fatalf("hand did not reach settlement")
	return nil
}

// 双方打出同一手公共牌，平分底池且分类一致
func TestSettlement_BoardPlaysSplitPot(t *testing.T) {
	forcedDealer := uint16(0)
	// 发牌顺序：SB(0) BB(1) SB(0) BB(1)，之后 5 张公共牌
	prefix := mustParseCards(t,
		"2s", "2h", "3h", "3s",
		"As", "Kd", "Qh", "Jc", "9d",
	)
	g, err := NewGame(Config{
		MaxPlayers:        2,
		MinPlayers:        2,
		SmallBlind:        50,
		BigBlind:          100,
		ForcedDealerChair: &forcedDealer,
		DeckOverride:      deckWithPrefix(prefix),
	})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	if err := g.SitDown(0, 1, 1000, false); err != nil {
		t.Fatal(err)
	}
	if err := g.SitDown(1, 2, 1000, false); err != nil {
		t.Fatal(err)
	}
	if err := g.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	settle := checkdown(t, g)
	if len(settle.PlayerResults) != 2 {
		t.Fatalf("expected 2 showdown results, got %d", len(settle.PlayerResults))
	}
	for _, pr := range settle.PlayerResults {
		if pr.Category != eval.HighCard {
			t.Fatalf("chair %d: expected high card, got %s", pr.Chair, pr.Category)
		}
		if !pr.IsWinner || pr.WinAmount != 100 {
			t.Fatalf("chair %d: expected split win of 100, got winner=%v amount=%d",
				pr.Chair, pr.IsWinner, pr.WinAmount)
		}
	}
	for _, ch := range []uint16{0, 1} {
		if got := g.Player(ch).Stack(); got != 1000 {
			t.Fatalf("chair %d: expected stack restored to 1000, got %d", ch, got)
		}
	}
}

// 明确的胜负：一方成同花，另一方只有一对
func TestSettlement_FlushBeatsPair(t *testing.T) {
	forcedDealer := uint16(0)
	prefix := mustParseCards(t,
		"Ah", "Ac", "Kh", "9d", // SB: Ah Kh, BB: Ac 9d
		"2h", "7h", "Qh", "Js", "3c",
	)
	g, err := NewGame(Config{
		MaxPlayers:        2,
		MinPlayers:        2,
		SmallBlind:        50,
		BigBlind:          100,
		ForcedDealerChair: &forcedDealer,
		DeckOverride:      deckWithPrefix(prefix),
	})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	if err := g.SitDown(0, 1, 1000, false); err != nil {
		t.Fatal(err)
	}
	if err := g.SitDown(1, 2, 1000, false); err != nil {
		t.Fatal(err)
	}
	if err := g.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	settle := checkdown(t, g)

	byChair := make(map[uint16]ShowdownPlayerResult, 2)
	for _, pr := range settle.PlayerResults {
		byChair[pr.Chair] = pr
	}
	if got := byChair[0].Category; got != eval.Flush {
		t.Fatalf("chair 0: expected flush, got %s", got)
	}
	if !byChair[0].IsWinner || byChair[0].WinAmount != 200 {
		t.Fatalf("chair 0: expected full pot 200, got winner=%v amount=%d",
			byChair[0].IsWinner, byChair[0].WinAmount)
	}
	if byChair[1].IsWinner {
		t.Fatalf("chair 1 should not win")
	}
	if got := g.Player(0).Stack(); got != 1100 {
		t.Fatalf("chair 0: expected stack 1100, got %d", got)
	}
	if got := g.Player(1).Stack(); got != 900 {
		t.Fatalf("chair 1: expected stack 900, got %d", got)
	}
}

// 短码 all-in 形成边池：主池归短码（最佳牌），边池归另一个未弃牌玩家
func TestSettlement_SidePotShortStackWinsMainOnly(t *testing.T) {
	forcedDealer := uint16(0)
	// chair1=SB chair2=BB chair0=dealer（三人桌：SB 是庄家下家）
	// 发牌顺序 SB(1) BB(2) D(0) SB BB D
	prefix := mustParseCards(t,
		"Ah", "Kd", "7c", "Ad", "Kc", "2s", // 1: AhAd, 2: KdKc, 0: 7c2s
		"3h", "8d", "Qc", "Js", "4h",
	)
	g, err := NewGame(Config{
		MaxPlayers:        3,
		MinPlayers:        3,
		SmallBlind:        50,
		BigBlind:          100,
		ForcedDealerChair: &forcedDealer,
		DeckOverride:      deckWithPrefix(prefix),
	})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	// chair1 是短码
	if err := g.SitDown(0, 1, 2000, false); err != nil {
		t.Fatal(err)
	}
	if err := g.SitDown(1, 2, 300, false); err != nil {
		t.Fatal(err)
	}
	if err := g.SitDown(2, 3, 2000, false); err != nil {
		t.Fatal(err)
	}
	if err := g.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	// Preflop：D raise 600 / SB(短码) all-in 300 / BB call 600
	if _, err := g.Act(0, PlayerActionTypeRaise, 600); err != nil {
		t.Fatalf("dealer raise err: %v", err)
	}
	if _, err := g.Act(1, PlayerActionTypeAllin, 300); err != nil {
		t.Fatalf("sb all-in err: %v", err)
	}
	if _, err := g.Act(2, PlayerActionTypeCall, 600); err != nil {
		t.Fatalf("bb call err: %v", err)
	}

	// Flop 之后：D fold，BB 与短码摊牌
	settle := (*SettlementResult)(nil)
	for settle == nil {
		snap := g.Snapshot()
		if snap.Ended {
			settle = g.lastSettlement
			break
		}
		var err error
		if snap.ActionChair == 0 {
			settle, err = g.Act(0, PlayerActionTypeFold, 0)
		} else {
			settle, err = g.Act(snap.ActionChair, PlayerActionTypeCheck, snap.CurBet)
		}
		if err != nil {
			t.Fatalf("Act err: %v", err)
		}
	}

	byChair := make(map[uint16]ShowdownPlayerResult, 2)
	for _, pr := range settle.PlayerResults {
		byChair[pr.Chair] = pr
	}

	// 主池 900（300×3），AA 的短码赢
	main := byChair[1]
	if main.Category != eval.OnePair || !main.IsWinner {
		t.Fatalf("chair 1: expected winning pair of aces, got %s winner=%v", main.Category, main.IsWinner)
	}
	if main.WinAmount != 900 {
		t.Fatalf("chair 1: expected main pot 900, got %d", main.WinAmount)
	}

	// 边池 600（0 和 2 各 300 超出部分），只剩 chair2 未弃牌
	side := byChair[2]
	if !side.IsWinner || side.WinAmount != 600 {
		t.Fatalf("chair 2: expected side pot 600, got winner=%v amount=%d", side.IsWinner, side.WinAmount)
	}
}

// SB 短码在盲注即全押，庄家加注把 BB 赶走：BB 的死钱加上庄家补齐的部分
// 落在只有庄家有资格的边池里，结算后筹码总量必须不变
func TestSettlement_SingleEligibleSidePotConservesChips(t *testing.T) {
	forcedDealer := uint16(0)
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
	if err := g.SitDown(0, 1, 2000, false); err != nil {
		t.Fatal(err)
	}
	if err := g.SitDown(1, 2, 50, false); err != nil {
		t.Fatal(err)
	}
	if err := g.SitDown(2, 3, 2000, false); err != nil {
		t.Fatal(err)
	}
	if err := g.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	// 庄家加注到 500，BB 弃牌；SB 全押卡在 50
	if _, err := g.Act(0, PlayerActionTypeRaise, 500); err != nil {
		t.Fatalf("raise err: %v", err)
	}
	settle, err := g.Act(2, PlayerActionTypeFold, 0)
	if err != nil {
		t.Fatalf("fold err: %v", err)
	}
	if settle == nil {
		t.Fatalf("expected settlement after fold")
	}

	if settle.ExcessChair != 0 || settle.ExcessAmount != 400 {
		t.Fatalf("expected 400 uncalled chips back to chair 0, got chair=%d amount=%d",
			settle.ExcessChair, settle.ExcessAmount)
	}
	if len(settle.PotResults) != 2 {
		t.Fatalf("expected main pot + side pot, got %d pots", len(settle.PotResults))
	}
	if settle.PotResults[0].Amount != 150 {
		t.Fatalf("main pot = %d, want 150", settle.PotResults[0].Amount)
	}
	side := settle.PotResults[1]
	if side.Amount != 100 {
		t.Fatalf("side pot = %d, want 100", side.Amount)
	}
	if len(side.Winners) != 1 || side.Winners[0] != 0 {
		t.Fatalf("side pot winners = %v, want [0]", side.Winners)
	}

	var after int64
	for _, p := range g.Snapshot().Players {
		after += p.Stack
	}
	if after != 4050 {
		t.Fatalf("chips not conserved: after=%d want=4050", after)
	}
}
