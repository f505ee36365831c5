// Package codec 定义网关与客户端之间的 JSON 线格式。
// 服务端下行统一走 ServerEnvelope，客户端上行统一走 ClientEnvelope。
package codec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"holdem-kit/card"
	"holdem-kit/eval"
	"holdem-kit/holdem"
)

// 下行事件类型
const (
	ServerTypeTableSnapshot = "tableSnapshot"
	ServerTypeSeatUpdate    = "seatUpdate"
	ServerTypeHandStart     = "handStart"
	ServerTypeDealHoleCards = "dealHoleCards"
	ServerTypeActionPrompt  = "actionPrompt"
	ServerTypeActionResult  = "actionResult"
	ServerTypeDealBoard     = "dealBoard"
	ServerTypePotUpdate     = "potUpdate"
	ServerTypePhaseChange   = "phaseChange"
	ServerTypeWinByFold     = "winByFold"
	ServerTypeShowdown      = "showdown"
	ServerTypeHandEnd       = "handEnd"
	ServerTypeError         = "error"
)

// 上行请求类型
const (
	ClientTypeQuickStart = "quickStart"
	ClientTypeSitDown    = "sitDown"
	ClientTypeStandUp    = "standUp"
	ClientTypeAction     = "action"
)

// ServerEnvelope 服务端下行帧。Type 决定哪个 payload 指针非空。
type ServerEnvelope struct {
	TableID    string `json:"tableId,omitempty"`
	ServerSeq  uint64 `json:"serverSeq"`
	ServerTsMs int64  `json:"serverTsMs"`
	Type       string `json:"type"`

	TableSnapshot *TableSnapshot `json:"tableSnapshot,omitempty"`
	SeatUpdate    *SeatUpdate    `json:"seatUpdate,omitempty"`
	HandStart     *HandStart     `json:"handStart,omitempty"`
	DealHoleCards *DealHoleCards `json:"dealHoleCards,omitempty"`
	ActionPrompt  *ActionPrompt  `json:"actionPrompt,omitempty"`
	ActionResult  *ActionResult  `json:"actionResult,omitempty"`
	DealBoard     *DealBoard     `json:"dealBoard,omitempty"`
	PotUpdate     *PotUpdate     `json:"potUpdate,omitempty"`
	PhaseChange   *PhaseChange   `json:"phaseChange,omitempty"`
	WinByFold     *WinByFold     `json:"winByFold,omitempty"`
	Showdown      *Showdown      `json:"showdown,omitempty"`
	HandEnd       *HandEnd       `json:"handEnd,omitempty"`
	Error         *ErrorNotice   `json:"error,omitempty"`
}

// ClientEnvelope 客户端上行帧。
type ClientEnvelope struct {
	ClientSeq uint64 `json:"clientSeq,omitempty"`
	Type      string `json:"type"`

	SitDown *SitDownRequest `json:"sitDown,omitempty"`
	Action  *ActionRequest  `json:"action,omitempty"`
}

type SitDownRequest struct {
	Chair uint16 `json:"chair"`
	BuyIn int64  `json:"buyIn"`
}

type ActionRequest struct {
	Action   string `json:"action"`
	AmountTo int64  `json:"amountTo"`
}

type TableConfigInfo struct {
	MaxPlayers uint16 `json:"maxPlayers"`
	SmallBlind int64  `json:"smallBlind"`
	BigBlind   int64  `json:"bigBlind"`
	Ante       int64  `json:"ante"`
	MinBuyIn   int64  `json:"minBuyIn"`
	MaxBuyIn   int64  `json:"maxBuyIn"`
}

type PlayerState struct {
	UserID     uint64   `json:"userId"`
	Nickname   string   `json:"nickname,omitempty"`
	Chair      uint16   `json:"chair"`
	Stack      int64    `json:"stack"`
	Bet        int64    `json:"bet"`
	Folded     bool     `json:"folded,omitempty"`
	AllIn      bool     `json:"allIn,omitempty"`
	LastAction string   `json:"lastAction,omitempty"`
	HasCards   bool     `json:"hasCards,omitempty"`
	HandCards  []string `json:"handCards,omitempty"`
}

type Pot struct {
	Amount         int64    `json:"amount"`
	EligibleChairs []uint16 `json:"eligibleChairs"`
}

type TableSnapshot struct {
	Config          TableConfigInfo `json:"config"`
	Phase           string          `json:"phase"`
	Round           uint32          `json:"round"`
	DealerChair     uint16          `json:"dealerChair"`
	SmallBlindChair uint16          `json:"smallBlindChair"`
	BigBlindChair   uint16          `json:"bigBlindChair"`
	ActionChair     uint16          `json:"actionChair"`
	CurBet          int64           `json:"curBet"`
	MinRaiseDelta   int64           `json:"minRaiseDelta"`
	CommunityCards  []string        `json:"communityCards,omitempty"`
	Pots            []Pot           `json:"pots,omitempty"`
	Players         []PlayerState   `json:"players"`
}

type SeatUpdate struct {
	Chair        uint16       `json:"chair"`
	PlayerJoined *PlayerState `json:"playerJoined,omitempty"`
	PlayerLeftID uint64       `json:"playerLeftUserId,omitempty"`
}

type HandStart struct {
	Round            uint32 `json:"round"`
	DealerChair      uint16 `json:"dealerChair"`
	SmallBlindChair  uint16 `json:"smallBlindChair"`
	BigBlindChair    uint16 `json:"bigBlindChair"`
	SmallBlindAmount int64  `json:"smallBlindAmount"`
	BigBlindAmount   int64  `json:"bigBlindAmount"`
}

type DealHoleCards struct {
	Cards []string `json:"cards"`
}

type ActionPrompt struct {
	Chair            uint16   `json:"chair"`
	LegalActions     []string `json:"legalActions"`
	MinRaiseTo       int64    `json:"minRaiseTo"`
	CallAmount       int64    `json:"callAmount"`
	TimeLimitSec     int32    `json:"timeLimitSec"`
	ActionDeadlineMs int64    `json:"actionDeadlineMs"`
}

type ActionResult struct {
	Chair       uint16 `json:"chair"`
	Action      string `json:"action"`
	Amount      int64  `json:"amount"`
	NewStack    int64  `json:"newStack"`
	NewPotTotal int64  `json:"newPotTotal"`
}

type DealBoard struct {
	Phase string   `json:"phase"`
	Cards []string `json:"cards"`
}

type PotUpdate struct {
	Pots []Pot `json:"pots"`
}

type PhaseChange struct {
	Phase          string   `json:"phase"`
	CommunityCards []string `json:"communityCards,omitempty"`
	Pots           []Pot    `json:"pots,omitempty"`
	MyHandCategory string   `json:"myHandCategory,omitempty"`
	MyHandKickers  []int    `json:"myHandKickers,omitempty"`
}

type Winner struct {
	Chair     uint16 `json:"chair"`
	WinAmount int64  `json:"winAmount"`
}

type PotResult struct {
	PotAmount int64    `json:"potAmount"`
	Winners   []Winner `json:"winners"`
}

type ShowdownHand struct {
	Chair     uint16   `json:"chair"`
	HoleCards []string `json:"holeCards"`
	Category  string   `json:"category"`
	Kickers   []int    `json:"kickers,omitempty"`
}

type ExcessRefund struct {
	Chair  uint16 `json:"chair"`
	Amount int64  `json:"amount"`
}

type NetResult struct {
	Chair     uint16 `json:"chair"`
	WinAmount int64  `json:"winAmount"`
	IsWinner  bool   `json:"isWinner,omitempty"`
}

type Showdown struct {
	PotResults   []PotResult    `json:"potResults,omitempty"`
	Hands        []ShowdownHand `json:"hands,omitempty"`
	ExcessRefund *ExcessRefund  `json:"excessRefund,omitempty"`
	NetResults   []NetResult    `json:"netResults,omitempty"`
}

type WinByFold struct {
	WinnerChair  uint16        `json:"winnerChair"`
	PotTotal     int64         `json:"potTotal"`
	ExcessRefund *ExcessRefund `json:"excessRefund,omitempty"`
}

type StackDelta struct {
	Chair    uint16 `json:"chair"`
	Delta    int64  `json:"delta"`
	NewStack int64  `json:"newStack"`
}

type HandEnd struct {
	Round        uint32        `json:"round"`
	StackDeltas  []StackDelta  `json:"stackDeltas"`
	ExcessRefund *ExcessRefund `json:"excessRefund,omitempty"`
	NetResults   []NetResult   `json:"netResults,omitempty"`
}

type ErrorNotice struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NewServerEnvelope 填公共头，payload 由调用方挂上。
func NewServerEnvelope(tableID string, seq uint64, eventType string) *ServerEnvelope {
	return &ServerEnvelope{
		TableID:    tableID,
		ServerSeq:  seq,
		ServerTsMs: time.Now().UnixMilli(),
		Type:       eventType,
	}
}

func EncodeServer(env *ServerEnvelope) ([]byte, error) {
	return json.Marshal(env)
}

func DecodeClient(data []byte) (*ClientEnvelope, error) {
	var env ClientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if strings.TrimSpace(env.Type) == "" {
		return nil, fmt.Errorf("missing message type")
	}
	return &env, nil
}

// PhaseName / ActionName 复用引擎字典，未知值给 UNSPECIFIED。
func PhaseName(p holdem.Phase) string {
	if name, ok := holdem.PhaseTypeDictionary[p]; ok {
		return name
	}
	return "UNSPECIFIED"
}

func ActionName(a holdem.ActionType) string {
	if name, ok := holdem.PlayerActionTypeDictionary[a]; ok {
		return name
	}
	return "UNSPECIFIED"
}

func ParseActionName(raw string) (holdem.ActionType, error) {
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
		return 0, fmt.Errorf("unsupported action %q", raw)
	}
}

func CardCodes(cards []card.Card) []string {
	if len(cards) == 0 {
		return nil
	}
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Code())
	}
	return out
}

func PotsToWire(pots []holdem.PotSnapshot) []Pot {
	if len(pots) == 0 {
		return nil
	}
	out := make([]Pot, 0, len(pots))
	for _, pot := range pots {
		eligible := append([]uint16{}, pot.EligiblePlayers...)
		sort.Slice(eligible, func(i, j int) bool { return eligible[i] < eligible[j] })
		out = append(out, Pot{
			Amount:         pot.Amount,
			EligibleChairs: eligible,
		})
	}
	return out
}

// BuildTableSnapshot 按观察者视角过滤手牌，只有 viewerID 自己的手牌下发。
func BuildTableSnapshot(
	snap holdem.Snapshot,
	cfg TableConfigInfo,
	viewerID uint64,
	nickname func(userID uint64) string,
) *TableSnapshot {
	out := &TableSnapshot{
		Config:          cfg,
		Phase:           PhaseName(snap.Phase),
		Round:           uint32(snap.Round),
		DealerChair:     snap.DealerChair,
		SmallBlindChair: snap.SmallBlindChair,
		BigBlindChair:   snap.BigBlindChair,
		ActionChair:     snap.ActionChair,
		CurBet:          snap.CurBet,
		MinRaiseDelta:   snap.MinRaiseDelta,
		CommunityCards:  CardCodes(snap.CommunityCards),
		Pots:            PotsToWire(snap.Pots),
	}
	for _, ps := range snap.Players {
		player := PlayerState{
			UserID:     ps.ID,
			Chair:      ps.Chair,
			Stack:      ps.Stack,
			Bet:        ps.Bet,
			Folded:     ps.Folded,
			AllIn:      ps.AllIn,
			LastAction: ActionName(ps.LastAction),
			HasCards:   len(ps.HandCards) > 0,
		}
		if nickname != nil {
			player.Nickname = nickname(ps.ID)
		}
		if ps.ID == viewerID {
			player.HandCards = CardCodes(ps.HandCards)
		}
		out.Players = append(out.Players, player)
	}
	return out
}

// EvaluateSeatHand 公共牌满 5 张且该座位有 2 张手牌时返回牌力。
func EvaluateSeatHand(snap holdem.Snapshot, chair uint16) (eval.Score, bool) {
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
