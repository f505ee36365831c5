package replay

import (
	"fmt"

	"holdem-kit/card"
	"holdem-kit/holdem"
)

const defaultTableID = "replay_local"

// GenerateReplayTape 在隔离引擎里重演一手牌，产出事件磁带。
// 动作序列与引擎状态任何一处不一致都会以 *ReplayError 报告（含期望状态）。
func GenerateReplayTape(spec HandSpec) (*ReplayTape, error) {
	ns, err := normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	game, err := holdem.NewGame(holdem.Config{
		MaxPlayers:        int(ns.table.MaxPlayers),
		MinPlayers:        2,
		SmallBlind:        ns.table.SB,
		BigBlind:          ns.table.BB,
		Ante:              ns.table.Ante,
		Seed:              seedFromSpec(spec.RNG),
		ForcedDealerChair: &ns.dealerChair,
		DeckOverride:      ns.deck,
	})
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "engine_init_failed", Message: err.Error()}
	}

	for _, seat := range ns.seats {
		if err := game.SitDown(seat.chair, seat.userID, seat.stack, false); err != nil {
			return nil, &ReplayError{StepIndex: -1, Reason: "seat_init_failed", Message: err.Error()}
		}
	}

	builder := newTapeBuilder(defaultTableID, ns.heroChair)
	beforeStart := game.Snapshot()
	ns.handStartStack = make(map[uint16]int64, len(beforeStart.Players))
	for _, ps := range beforeStart.Players {
		ns.handStartStack[ps.Chair] = ps.Stack
	}
	builder.addSnapshot(toTableSnapshot(beforeStart, ns))

	if err := game.StartHand(); err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "start_hand_failed", Message: err.Error()}
	}
	afterStart := game.Snapshot()
	builder.addHandStart(&HandStartEvent{
		Round:            afterStart.Round,
		DealerChair:      afterStart.DealerChair,
		SmallBlindChair:  afterStart.SmallBlindChair,
		BigBlindChair:    afterStart.BigBlindChair,
		SmallBlindAmount: ns.table.SB,
		BigBlindAmount:   ns.table.BB,
	})
	if heroCards := heroHoleCards(afterStart, ns.heroChair); len(heroCards) == 2 {
		builder.addHoleCards(&HoleCardsEvent{Cards: cardCodes(heroCards)})
	}
	if afterStart.ActionChair != holdem.InvalidChair {
		prompt, err := buildActionPrompt(game, afterStart.ActionChair)
		if err != nil {
			return nil, &ReplayError{StepIndex: -1, Reason: "prompt_build_failed", Message: err.Error()}
		}
		builder.addActionPrompt(prompt)
	}

	for stepIdx, action := range ns.actions {
		before := game.Snapshot()
		if before.ActionChair == holdem.InvalidChair {
			return nil, &ReplayError{
				StepIndex: int32(stepIdx),
				Reason:    "no_action_expected",
				Message:   "hand is already complete; no further actions are allowed",
			}
		}
		if before.Phase != action.phase {
			return nil, &ReplayError{
				StepIndex: int32(stepIdx),
				Reason:    "phase_mismatch",
				Message:   fmt.Sprintf("expected phase %s, got %s", phaseName(before.Phase), phaseName(action.phase)),
				Expected: &ExpectedState{
					ActionChair: before.ActionChair,
					Phase:       phaseName(before.Phase),
				},
			}
		}
		if before.ActionChair != action.chair {
			expected := expectedStateForChair(game, before.ActionChair)
			expected.Phase = phaseName(before.Phase)
			return nil, &ReplayError{
				StepIndex: int32(stepIdx),
				Reason:    "out_of_turn",
				Message:   fmt.Sprintf("expected action chair %d, got %d", before.ActionChair, action.chair),
				Expected:  expected,
			}
		}
		if !isLegalAction(game, action.chair, action.action) {
			expected := expectedStateForChair(game, action.chair)
			expected.Phase = phaseName(before.Phase)
			return nil, &ReplayError{
				StepIndex: int32(stepIdx),
				Reason:    "illegal_action",
				Message:   fmt.Sprintf("action %s is not legal for chair %d", actionName(action.action), action.chair),
				Expected:  expected,
			}
		}

		result, err := game.Act(action.chair, action.action, action.amountTo)
		if err != nil {
			expected := expectedStateForChair(game, action.chair)
			expected.Phase = phaseName(before.Phase)
			return nil, &ReplayError{
				StepIndex: int32(stepIdx),
				Reason:    "action_apply_failed",
				Message:   err.Error(),
				Expected:  expected,
			}
		}

		after := game.Snapshot()
		builder.addActionResult(buildActionResult(before, after, action.chair, action.action, result))
		builder.addStreetTransitions(before, after)
		if potsChanged(before.Pots, after.Pots) {
			builder.addPotUpdate(&PotUpdateEvent{Pots: potsToEvent(after.Pots)})
		}

		if result != nil {
			builder.addHandEnd(result, after, ns.handStartStack)
			break
		}

		if after.ActionChair != holdem.InvalidChair {
			prompt, err := buildActionPrompt(game, after.ActionChair)
			if err != nil {
				return nil, &ReplayError{
					StepIndex: int32(stepIdx),
					Reason:    "prompt_build_failed",
					Message:   err.Error(),
				}
			}
			builder.addActionPrompt(prompt)
		}
	}

	return &ReplayTape{
		TapeVersion: 1,
		TableID:     builder.tableID,
		HeroChair:   ns.heroChair,
		Events:      builder.events,
	}, nil
}

func isLegalAction(g *holdem.Game, chair uint16, action holdem.ActionType) bool {
	actions, _, err := g.LegalActions(chair)
	if err != nil {
		return false
	}
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

func expectedStateForChair(g *holdem.Game, chair uint16) *ExpectedState {
	actions, minRaiseTo, err := g.LegalActions(chair)
	if err != nil {
		return &ExpectedState{ActionChair: chair}
	}
	snap := g.Snapshot()
	legal := make([]string, 0, len(actions))
	for _, a := range actions {
		legal = append(legal, actionName(a))
	}
	return &ExpectedState{
		ActionChair:  chair,
		LegalActions: legal,
		MinRaiseTo:   minRaiseTo,
		CallAmount:   callAmountFor(snap, chair),
	}
}

func callAmountFor(snap holdem.Snapshot, chair uint16) int64 {
	for _, ps := range snap.Players {
		if ps.Chair == chair {
			call := snap.CurBet - ps.Bet
			if call < 0 {
				call = 0
			}
			return call
		}
	}
	return 0
}

func buildActionPrompt(g *holdem.Game, chair uint16) (*ActionPromptEvent, error) {
	actions, minRaiseTo, err := g.LegalActions(chair)
	if err != nil {
		return nil, err
	}
	snap := g.Snapshot()
	legal := make([]string, 0, len(actions))
	for _, a := range actions {
		legal = append(legal, actionName(a))
	}
	return &ActionPromptEvent{
		Chair:        chair,
		LegalActions: legal,
		MinRaiseTo:   minRaiseTo,
		CallAmount:   callAmountFor(snap, chair),
	}, nil
}

func buildActionResult(before, after holdem.Snapshot, chair uint16, action holdem.ActionType, settlement *holdem.SettlementResult) *ActionResultEvent {
	var newStack int64
	var amount int64
	for _, ps := range after.Players {
		if ps.Chair == chair {
			newStack = ps.Stack
			amount = ps.Bet
			break
		}
	}

	potTotal := totalCollectedPotAmount(after)
	if settlement != nil {
		if prevCollected := totalCollectedPotAmount(before); prevCollected > potTotal {
			potTotal = prevCollected
		}
		if settledTotal := totalPotResultAmount(settlement); settledTotal > potTotal {
			potTotal = settledTotal
		}
	}

	return &ActionResultEvent{
		Chair:       chair,
		Action:      actionName(action),
		Amount:      amount,
		NewStack:    newStack,
		NewPotTotal: potTotal,
	}
}

type tapeBuilder struct {
	tableID string
	hero    uint16
	seq     uint64
	events  []ReplayEvent
}

func newTapeBuilder(tableID string, hero uint16) *tapeBuilder {
	return &tapeBuilder{
		tableID: tableID,
		hero:    hero,
		events:  make([]ReplayEvent, 0, 64),
	}
}

func (b *tapeBuilder) push(ev ReplayEvent) {
	b.seq++
	ev.Seq = b.seq
	b.events = append(b.events, ev)
}

func (b *tapeBuilder) addSnapshot(snapshot *TableSnapshotEvent) {
	b.push(ReplayEvent{Type: EventTypeSnapshot, Snapshot: snapshot})
}

func (b *tapeBuilder) addHandStart(start *HandStartEvent) {
	b.push(ReplayEvent{Type: EventTypeHandStart, HandStart: start})
}

func (b *tapeBuilder) addHoleCards(hole *HoleCardsEvent) {
	b.push(ReplayEvent{Type: EventTypeHoleCards, HoleCards: hole})
}

func (b *tapeBuilder) addActionPrompt(prompt *ActionPromptEvent) {
	b.push(ReplayEvent{Type: EventTypeActionPrompt, ActionPrompt: prompt})
}

func (b *tapeBuilder) addActionResult(result *ActionResultEvent) {
	b.push(ReplayEvent{Type: EventTypeActionResult, ActionResult: result})
}

func (b *tapeBuilder) addPotUpdate(update *PotUpdateEvent) {
	b.push(ReplayEvent{Type: EventTypePotUpdate, PotUpdate: update})
}

func (b *tapeBuilder) addDealBoard(phase holdem.Phase, cards []card.Card) {
	b.push(ReplayEvent{Type: EventTypeBoard, Board: &BoardEvent{
		Phase: phaseName(phase),
		Cards: cardCodes(cards),
	}})
}

func (b *tapeBuilder) addPhaseChange(phase holdem.Phase, board []card.Card, pots []holdem.PotSnapshot, snap holdem.Snapshot) {
	msg := &PhaseChangeEvent{
		Phase:          phaseName(phase),
		CommunityCards: cardCodes(board),
		Pots:           potsToEvent(pots),
	}
	if len(board) == 5 {
		if score, ok := evaluateHeroHand(snap, b.hero); ok {
			msg.HeroCategory = score.Category.String()
			msg.HeroKickers = append([]int{}, score.Kickers...)
		}
	}
	b.push(ReplayEvent{Type: EventTypePhaseChange, PhaseChange: msg})
}

func (b *tapeBuilder) addStreetTransitions(before, after holdem.Snapshot) {
	beforeCount := len(before.CommunityCards)
	afterCount := len(after.CommunityCards)

	if beforeCount < 3 && afterCount >= 3 {
		flop := append([]card.Card{}, after.CommunityCards[:3]...)
		b.addDealBoard(holdem.PhaseTypeFlop, flop)
		b.addPhaseChange(holdem.PhaseTypeFlop, flop, after.Pots, after)
	}
	if beforeCount < 4 && afterCount >= 4 {
		turnCard := append([]card.Card{}, after.CommunityCards[3:4]...)
		turnBoard := append([]card.Card{}, after.CommunityCards[:4]...)
		b.addDealBoard(holdem.PhaseTypeTurn, turnCard)
		b.addPhaseChange(holdem.PhaseTypeTurn, turnBoard, after.Pots, after)
	}
	if beforeCount < 5 && afterCount >= 5 {
		riverCard := append([]card.Card{}, after.CommunityCards[4:5]...)
		riverBoard := append([]card.Card{}, after.CommunityCards[:5]...)
		b.addDealBoard(holdem.PhaseTypeRiver, riverCard)
		b.addPhaseChange(holdem.PhaseTypeRiver, riverBoard, after.Pots, after)
	}
}

func (b *tapeBuilder) addHandEnd(result *holdem.SettlementResult, finalSnap holdem.Snapshot, handStartStack map[uint16]int64) {
	if hasShowdownHands(result) {
		b.addPhaseChange(holdem.PhaseTypeShowdown, finalSnap.CommunityCards, finalSnap.Pots, finalSnap)
		if showdown := buildShowdown(result, finalSnap); showdown != nil {
			b.push(ReplayEvent{Type: EventTypeShowdown, Showdown: showdown})
		}
	} else {
		if winByFold := buildWinByFold(result); winByFold != nil {
			b.push(ReplayEvent{Type: EventTypeWinByFold, WinByFold: winByFold})
		}
	}

	b.push(ReplayEvent{Type: EventTypeHandEnd, HandEnd: &HandEndEvent{
		Round:        finalSnap.Round,
		StackDeltas:  buildStackDeltas(finalSnap, handStartStack),
		ExcessRefund: toExcessRefund(result),
		NetResults:   buildNetResults(result, finalSnap),
	}})
}
