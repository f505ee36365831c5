package eval

// Category 牌型等级，数值越大越强。
type Category byte

// 手牌常量定义
const (
	HighCard      Category = iota + 1 // 高牌
	OnePair                           // 一对
	TwoPair                           // 两对
	ThreeOfKind                       // 三条
	Straight                          // 顺子
	Flush                             // 同花
	FullHouse                         // 葫芦
	FourOfKind                        // 四条
	StraightFlush                     // 同花顺
	RoyalFlush                        // 皇家同花顺（按原始实现保留为独立最高档）
)

var categoryNames = map[Category]string{
	HighCard:      "HighCard",
	OnePair:       "OnePair",
	TwoPair:       "TwoPair",
	ThreeOfKind:   "ThreeOfKind",
	Straight:      "Straight",
	Flush:         "Flush",
	FullHouse:     "FullHouse",
	FourOfKind:    "FourOfKind",
	StraightFlush: "StraightFlush",
	RoyalFlush:    "RoyalFlush",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Unknown"
}

// Score 评牌结果：牌型 + 踢脚序列。
// 踢脚序列只在同牌型之间比大小；同一牌型的序列长度固定：
// 顺子/同花顺/皇家同花顺 1，四条/葫芦 2，三条/两对 3，一对 4，同花/高牌 5。
type Score struct {
	Category Category
	Kickers  []int
}

// Compare 返回 >0 表示 s 强于 o，<0 表示弱于，0 表示完全相等。
// 先比牌型，再按字典序比踢脚。
func (s Score) Compare(o Score) int {
	if s.Category != o.Category {
		if s.Category > o.Category {
			return 1
		}
		return -1
	}
	for i := 0; i < len(s.Kickers) && i < len(o.Kickers); i++ {
		if s.Kickers[i] != o.Kickers[i] {
			if s.Kickers[i] > o.Kickers[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// Beats 严格强于。
func (s Score) Beats(o Score) bool { return s.Compare(o) > 0 }

// Equal 牌力完全相等（平分彩池）。
func (s Score) Equal(o Score) bool { return s.Compare(o) == 0 }
