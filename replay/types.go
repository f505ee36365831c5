package replay

// HandSpec 描述一手可复现的牌局：桌面参数、座位、可选的牌面约束和动作序列。
type HandSpec struct {
	Variant     string       `json:"variant"`
	Table       TableSpec    `json:"table"`
	DealerChair uint16       `json:"dealer_chair"`
	Seats       []SeatSpec   `json:"seats"`
	Board       *BoardSpec   `json:"board,omitempty"`
	Deck        []string     `json:"deck,omitempty"`
	Actions     []ActionSpec `json:"actions"`
	RNG         *RNGSpec     `json:"rng,omitempty"`
}

type TableSpec struct {
	MaxPlayers uint16 `json:"max_players"`
	SB         int64  `json:"sb"`
	BB         int64  `json:"bb"`
	Ante       int64  `json:"ante"`
}

type SeatSpec struct {
	Chair  uint16   `json:"chair"`
	Name   string   `json:"name,omitempty"`
	UserID uint64   `json:"user_id,omitempty"`
	Stack  int64    `json:"stack"`
	IsHero bool     `json:"is_hero,omitempty"`
	Hole   []string `json:"hole,omitempty"`
}

type BoardSpec struct {
	Flop  []string `json:"flop,omitempty"`
	Turn  *string  `json:"turn,omitempty"`
	River *string  `json:"river,omitempty"`
}

type ActionSpec struct {
	Phase    string `json:"phase"`
	Chair    uint16 `json:"chair"`
	Type     string `json:"type"`
	AmountTo int64  `json:"amount_to"`
}

type RNGSpec struct {
	Seed int64 `json:"seed"`
}

// ReplayTape 回放产物：按 seq 递增的事件序列
type ReplayTape struct {
	TapeVersion int           `json:"tape_version"`
	TableID     string        `json:"table_id"`
	HeroChair   uint16        `json:"hero_chair"`
	Events      []ReplayEvent `json:"events"`
}

// ReplayEvent 每个事件只填 Type 对应的 payload 字段
type ReplayEvent struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`

	Snapshot     *TableSnapshotEvent `json:"snapshot,omitempty"`
	HandStart    *HandStartEvent     `json:"hand_start,omitempty"`
	HoleCards    *HoleCardsEvent     `json:"hole_cards,omitempty"`
	ActionPrompt *ActionPromptEvent  `json:"action_prompt,omitempty"`
	ActionResult *ActionResultEvent  `json:"action_result,omitempty"`
	Board        *BoardEvent         `json:"board,omitempty"`
	PhaseChange  *PhaseChangeEvent   `json:"phase_change,omitempty"`
	PotUpdate    *PotUpdateEvent     `json:"pot_update,omitempty"`
	Showdown     *ShowdownEvent      `json:"showdown,omitempty"`
	WinByFold    *WinByFoldEvent     `json:"win_by_fold,omitempty"`
	HandEnd      *HandEndEvent       `json:"hand_end,omitempty"`
}

const (
	EventTypeSnapshot     = "snapshot"
	EventTypeHandStart    = "handStart"
	EventTypeHoleCards    = "holeCards"
	EventTypeActionPrompt = "actionPrompt"
	EventTypeActionResult = "actionResult"
	EventTypeBoard        = "board"
	EventTypePhaseChange  = "phaseChange"
	EventTypePotUpdate    = "potUpdate"
	EventTypeShowdown     = "showdown"
	EventTypeWinByFold    = "winByFold"
	EventTypeHandEnd      = "handEnd"
)

type PlayerStateEvent struct {
	UserID     uint64   `json:"user_id"`
	Chair      uint16   `json:"chair"`
	Nickname   string   `json:"nickname,omitempty"`
	Stack      int64    `json:"stack"`
	Bet        int64    `json:"bet"`
	Folded     bool     `json:"folded,omitempty"`
	AllIn      bool     `json:"all_in,omitempty"`
	LastAction string   `json:"last_action,omitempty"`
	HasCards   bool     `json:"has_cards,omitempty"`
	HandCards  []string `json:"hand_cards,omitempty"`
}

type PotEvent struct {
	Amount         int64    `json:"amount"`
	EligibleChairs []uint16 `json:"eligible_chairs,omitempty"`
}

type TableSnapshotEvent struct {
	MaxPlayers      uint16             `json:"max_players"`
	SmallBlind      int64              `json:"small_blind"`
	BigBlind        int64              `json:"big_blind"`
	Ante            int64              `json:"ante,omitempty"`
	Phase           string             `json:"phase"`
	Round           uint16             `json:"round"`
	DealerChair     uint16             `json:"dealer_chair"`
	SmallBlindChair uint16             `json:"small_blind_chair"`
	BigBlindChair   uint16             `json:"big_blind_chair"`
	ActionChair     uint16             `json:"action_chair"`
	CurBet          int64              `json:"cur_bet"`
	MinRaiseDelta   int64              `json:"min_raise_delta"`
	CommunityCards  []string           `json:"community_cards,omitempty"`
	Pots            []PotEvent         `json:"pots,omitempty"`
	Players         []PlayerStateEvent `json:"players"`
}

type HandStartEvent struct {
	Round            uint16 `json:"round"`
	DealerChair      uint16 `json:"dealer_chair"`
	SmallBlindChair  uint16 `json:"small_blind_chair"`
	BigBlindChair    uint16 `json:"big_blind_chair"`
	SmallBlindAmount int64  `json:"small_blind_amount"`
	BigBlindAmount   int64  `json:"big_blind_amount"`
}

type HoleCardsEvent struct {
	Cards []string `json:"cards"`
}

type ActionPromptEvent struct {
	Chair        uint16   `json:"chair"`
	LegalActions []string `json:"legal_actions"`
	MinRaiseTo   int64    `json:"min_raise_to"`
	CallAmount   int64    `json:"call_amount"`
}

type ActionResultEvent struct {
	Chair       uint16 `json:"chair"`
	Action      string `json:"action"`
	Amount      int64  `json:"amount"`
	NewStack    int64  `json:"new_stack"`
	NewPotTotal int64  `json:"new_pot_total"`
}

type BoardEvent struct {
	Phase string   `json:"phase"`
	Cards []string `json:"cards"`
}

type PhaseChangeEvent struct {
	Phase          string     `json:"phase"`
	CommunityCards []string   `json:"community_cards,omitempty"`
	Pots           []PotEvent `json:"pots,omitempty"`
	HeroCategory   string     `json:"hero_category,omitempty"`
	HeroKickers    []int      `json:"hero_kickers,omitempty"`
}

type PotUpdateEvent struct {
	Pots []PotEvent `json:"pots"`
}

type WinnerEvent struct {
	Chair     uint16 `json:"chair"`
	WinAmount int64  `json:"win_amount"`
}

type PotResultEvent struct {
	PotAmount int64         `json:"pot_amount"`
	Winners   []WinnerEvent `json:"winners"`
}

type ShowdownHandEvent struct {
	Chair     uint16   `json:"chair"`
	HoleCards []string `json:"hole_cards"`
	Category  string   `json:"category"`
	Kickers   []int    `json:"kickers"`
}

type ExcessRefundEvent struct {
	Chair  uint16 `json:"chair"`
	Amount int64  `json:"amount"`
}

type NetResultEvent struct {
	Chair     uint16 `json:"chair"`
	WinAmount int64  `json:"win_amount"`
	IsWinner  bool   `json:"is_winner,omitempty"`
}

type ShowdownEvent struct {
	Hands        []ShowdownHandEvent `json:"hands,omitempty"`
	PotResults   []PotResultEvent    `json:"pot_results,omitempty"`
	NetResults   []NetResultEvent    `json:"net_results,omitempty"`
	ExcessRefund *ExcessRefundEvent  `json:"excess_refund,omitempty"`
}

type WinByFoldEvent struct {
	WinnerChair  uint16             `json:"winner_chair"`
	PotTotal     int64              `json:"pot_total"`
	ExcessRefund *ExcessRefundEvent `json:"excess_refund,omitempty"`
}

type StackDeltaEvent struct {
	Chair    uint16 `json:"chair"`
	Delta    int64  `json:"delta"`
	NewStack int64  `json:"new_stack"`
}

type HandEndEvent struct {
	Round        uint16             `json:"round"`
	StackDeltas  []StackDeltaEvent  `json:"stack_deltas"`
	ExcessRefund *ExcessRefundEvent `json:"excess_refund,omitempty"`
	NetResults   []NetResultEvent   `json:"net_results,omitempty"`
}
