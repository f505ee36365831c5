package replay

import (
	"fmt"
	"sort"
	"strings"

	"holdem-kit/card"
	"holdem-kit/eval"
	"holdem-kit/holdem"
)

func parsePhaseName(raw string) (holdem.Phase, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PREFLOP":
		return holdem.PhaseTypePreflop, nil
	case "FLOP":
		return holdem.PhaseTypeFlop, nil
	case "TURN":
		return holdem.PhaseTypeTurn, nil
	case "RIVER":
		return holdem.PhaseTypeRiver, nil
	default:
		return 0, fmt.Errorf("unsupported phase %q", raw)
	}
}

func phaseName(phase holdem.Phase) string {
	switch phase {
	case holdem.PhaseTypePreflop:
		return "PREFLOP"
	case holdem.PhaseTypeFlop:
		return "FLOP"
	case holdem.PhaseTypeTurn:
		return "TURN"
	case holdem.PhaseTypeRiver:
		return "RIVER"
	case holdem.PhaseTypeShowdown:
		return "SHOWDOWN"
	default:
		return "UNSPECIFIED"
	}
}

func parseActionName(raw string) (holdem.ActionType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CHECK":
		return holdem.PlayerActionTypeCheck, nil
	case "BET":
		return holdem.PlayerActionTypeBet, nil
	case "CALL":
		return holdem.PlayerActionTypeCall, nil
	case "RAISE":
		return holdem.PlayerActionTypeRaise, nil
	case "FOLD":
		return holdem.PlayerActionTypeFold, nil
	case "ALLIN", "ALL_IN":
		return holdem.PlayerActionTypeAllin, nil
	default:
		return 0, fmt.Errorf("unsupported action type %q", raw)
	}
}

func actionName(a holdem.ActionType) string {
	if name, ok := holdem.PlayerActionTypeDictionary[a]; ok {
		return name
	}
	return "UNKNOWN"
}

func cardCodes(cards []card.Card) []string {
	if len(cards) == 0 {
		return nil
	}
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Code())
	}
	return out
}

func heroHoleCards(snap holdem.Snapshot, heroChair uint16) []card.Card {
	for _, ps := range snap.Players {
		if ps.Chair == heroChair {
			return append([]card.Card{}, ps.HandCards...)
		}
	}
	return nil
}

func toTableSnapshot(snap holdem.Snapshot, ns normalizedSpec) *TableSnapshotEvent {
	out := &TableSnapshotEvent{
		MaxPlayers:      ns.table.MaxPlayers,
		SmallBlind:      ns.table.SB,
		BigBlind:        ns.table.BB,
		Ante:            ns.table.Ante,
		Phase:           phaseName(snap.Phase),
		Round:           snap.Round,
		DealerChair:     snap.DealerChair,
		SmallBlindChair: snap.SmallBlindChair,
		BigBlindChair:   snap.BigBlindChair,
		ActionChair:     snap.ActionChair,
		CurBet:          snap.CurBet,
		MinRaiseDelta:   snap.MinRaiseDelta,
		CommunityCards:  cardCodes(snap.CommunityCards),
		Pots:            potsToEvent(snap.Pots),
	}
	for _, ps := range snap.Players {
		meta := ns.seatByChair[ps.Chair]
		player := PlayerStateEvent{
			UserID:     meta.userID,
			Chair:      ps.Chair,
			Nickname:   meta.name,
			Stack:      ps.Stack,
			Bet:        ps.Bet,
			Folded:     ps.Folded,
			AllIn:      ps.AllIn,
			LastAction: actionName(ps.LastAction),
			HasCards:   len(ps.HandCards) > 0,
		}
		// 只下发 hero 自己的手牌
		if ps.Chair == ns.heroChair {
			player.HandCards = cardCodes(ps.HandCards)
		}
		out.Players = append(out.Players, player)
	}
	return out
}

func potsToEvent(pots []holdem.PotSnapshot) []PotEvent {
	if len(pots) == 0 {
		return nil
	}
	out := make([]PotEvent, 0, len(pots))
	for _, pot := range pots {
		eligible := append([]uint16{}, pot.EligiblePlayers...)
		sort.Slice(eligible, func(i, j int) bool { return eligible[i] < eligible[j] })
		out = append(out, PotEvent{
			Amount:         pot.Amount,
			EligibleChairs: eligible,
		})
	}
	return out
}

func buildShowdown(result *holdem.SettlementResult, snap holdem.Snapshot) *ShowdownEvent {
	showdown := &ShowdownEvent{
		ExcessRefund: toExcessRefund(result),
		NetResults:   buildNetResults(result, snap),
	}
	for _, pr := range result.PotResults {
		winners := make([]WinnerEvent, 0, len(pr.Winners))
		for i, chair := range pr.Winners {
			amount := int64(0)
			if i < len(pr.WinAmounts) {
				amount = pr.WinAmounts[i]
			}
			winners = append(winners, WinnerEvent{
				Chair:     chair,
				WinAmount: amount,
			})
		}
		showdown.PotResults = append(showdown.PotResults, PotResultEvent{
			PotAmount: pr.Amount,
			Winners:   winners,
		})
	}
	for _, pr := range result.PlayerResults {
		if pr.Category == 0 {
			continue
		}
		showdown.Hands = append(showdown.Hands, ShowdownHandEvent{
			Chair:     pr.Chair,
			HoleCards: cardCodes(pr.HandCards),
			Category:  pr.Category.String(),
			Kickers:   append([]int{}, pr.Kickers...),
		})
	}
	if len(showdown.Hands) == 0 && len(showdown.PotResults) == 0 && len(showdown.NetResults) == 0 && showdown.ExcessRefund == nil {
		return nil
	}
	return showdown
}

func buildWinByFold(result *holdem.SettlementResult) *WinByFoldEvent {
	var winnerChair uint16
	var winnerAmount int64
	var found bool
	for _, pr := range result.PlayerResults {
		if pr.IsWinner {
			winnerChair = pr.Chair
			winnerAmount = pr.WinAmount
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	potTotal := totalPotResultAmount(result)
	if potTotal == 0 {
		potTotal = winnerAmount
	}
	return &WinByFoldEvent{
		WinnerChair:  winnerChair,
		PotTotal:     potTotal,
		ExcessRefund: toExcessRefund(result),
	}
}

func buildStackDeltas(snap holdem.Snapshot, handStartStack map[uint16]int64) []StackDeltaEvent {
	out := make([]StackDeltaEvent, 0, len(snap.Players))
	for _, ps := range snap.Players {
		start, ok := handStartStack[ps.Chair]
		if !ok {
			start = ps.Stack
		}
		out = append(out, StackDeltaEvent{
			Chair:    ps.Chair,
			Delta:    ps.Stack - start,
			NewStack: ps.Stack,
		})
	}
	return out
}

func buildNetResults(result *holdem.SettlementResult, snap holdem.Snapshot) []NetResultEvent {
	perChair := make(map[uint16]holdem.ShowdownPlayerResult, len(result.PlayerResults))
	for _, pr := range result.PlayerResults {
		perChair[pr.Chair] = pr
	}
	out := make([]NetResultEvent, 0, len(snap.Players))
	for _, ps := range snap.Players {
		nr := NetResultEvent{Chair: ps.Chair}
		if pr, ok := perChair[ps.Chair]; ok {
			nr.WinAmount = pr.WinAmount
			nr.IsWinner = pr.IsWinner
		}
		out = append(out, nr)
	}
	return out
}

func toExcessRefund(result *holdem.SettlementResult) *ExcessRefundEvent {
	if result.ExcessAmount <= 0 || result.ExcessChair == holdem.InvalidChair {
		return nil
	}
	return &ExcessRefundEvent{
		Chair:  result.ExcessChair,
		Amount: result.ExcessAmount,
	}
}

func hasShowdownHands(result *holdem.SettlementResult) bool {
	for _, pr := range result.PlayerResults {
		if pr.Category > 0 {
			return true
		}
	}
	return false
}

func totalCollectedPotAmount(snap holdem.Snapshot) int64 {
	var total int64
	for _, pot := range snap.Pots {
		total += pot.Amount
	}
	return total
}

func totalPotResultAmount(result *holdem.SettlementResult) int64 {
	var total int64
	for _, pot := range result.PotResults {
		total += pot.Amount
	}
	return total
}

func potsChanged(before, after []holdem.PotSnapshot) bool {
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		if before[i].Amount != after[i].Amount {
			return true
		}
		if len(before[i].EligiblePlayers) != len(after[i].EligiblePlayers) {
			return true
		}
		a := append([]uint16{}, before[i].EligiblePlayers...)
		b := append([]uint16{}, after[i].EligiblePlayers...)
		sort.Slice(a, func(x, y int) bool { return a[x] < a[y] })
		sort.Slice(b, func(x, y int) bool { return b[x] < b[y] })
		for j := range a {
			if a[j] != b[j] {
				return true
			}
		}
	}
	return false
}

// evaluateHeroHand 只有公共牌齐 5 张且 hero 有手牌时才有结果
func evaluateHeroHand(snap holdem.Snapshot, chair uint16) (eval.Score, bool) {
	if len(snap.CommunityCards) != 5 {
		return eval.Score{}, false
	}
	var hole []card.Card
	for _, ps := range snap.Players {
		if ps.Chair == chair {
			hole = ps.HandCards
			break
		}
	}
	if len(hole) != 2 {
		return eval.Score{}, false
	}
	all := make([]card.Card, 0, 7)
	all = append(all, hole...)
	all = append(all, snap.CommunityCards...)
	score, err := eval.Evaluate(all)
	if err != nil {
		return eval.Score{}, false
	}
	return score, true
}
