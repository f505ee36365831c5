package eval

import (
	"errors"
	"fmt"
	"sort"

	"holdem-kit/card"
)

// ErrInvalidHandSize Evaluate 只接受 5-7 张牌。
var ErrInvalidHandSize = errors.New("hand must contain 5 to 7 cards")

// Evaluate 评估 5-7 张牌能组成的最强 5 张牌型。
//
// 纯函数：不修改也不持有输入切片，可并发调用。
// 重复牌是调用方契约（牌堆保证不重复），这里不做检查。
func Evaluate(cards []card.Card) (Score, error) {
	switch {
	case len(cards) < 5 || len(cards) > 7:
		return Score{}, fmt.Errorf("%w: got %d", ErrInvalidHandSize, len(cards))
	case len(cards) == 5:
		return classifyFive(cards), nil
	default:
		return classifyBest(cards), nil
	}
}

type profileEntry struct {
	rank  int
	count int
}

// rankProfile 把点数计数表整理成 (count 降序, rank 降序) 的确定性序列。
func rankProfile(counts *[15]int) []profileEntry {
	profile := make([]profileEntry, 0, 7)
	for r := card.MaxRank; r >= card.MinRank; r-- {
		if counts[r] > 0 {
			profile = append(profile, profileEntry{rank: r, count: counts[r]})
		}
	}
	// rank 已按降序收集，稳定排序后同 count 仍保持 rank 降序
	sort.SliceStable(profile, func(i, j int) bool {
		return profile[i].count > profile[j].count
	})
	return profile
}

// classifyFive 对恰好 5 张牌定型。分支按牌型强度从高到低排列，
// 各牌型互斥，首个命中即为结果。
func classifyFive(cards []card.Card) Score {
	var counts [15]int
	mask := uint32(0)
	flush := true
	suit0 := cards[0].Suit()
	for _, c := range cards {
		counts[c.Rank()]++
		mask |= 1 << uint(c.Rank())
		if c.Suit() != suit0 {
			flush = false
		}
	}

	profile := rankProfile(&counts)

	straightHigh, isStraight := 0, false
	if len(profile) == 5 { // 有对子就不可能是顺子
		straightHigh, isStraight = detectStraight(mask)
	}

	switch {
	case flush && isStraight && straightHigh == card.MaxRank:
		return Score{Category: RoyalFlush, Kickers: []int{card.MaxRank}}

	case flush && isStraight:
		return Score{Category: StraightFlush, Kickers: []int{straightHigh}}

	case profile[0].count == 4:
		return Score{Category: FourOfKind, Kickers: []int{profile[0].rank, profile[1].rank}}

	case profile[0].count == 3 && profile[1].count == 2:
		return Score{Category: FullHouse, Kickers: []int{profile[0].rank, profile[1].rank}}

	case flush:
		return Score{Category: Flush, Kickers: profileRanks(profile)}

	case isStraight:
		return Score{Category: Straight, Kickers: []int{straightHigh}}

	case profile[0].count == 3:
		return Score{Category: ThreeOfKind, Kickers: profileRanks(profile)}

	case profile[0].count == 2 && profile[1].count == 2:
		return Score{Category: TwoPair, Kickers: profileRanks(profile)}

	case profile[0].count == 2:
		return Score{Category: OnePair, Kickers: profileRanks(profile)}

	default:
		return Score{Category: HighCard, Kickers: profileRanks(profile)}
	}
}

// profileRanks 序列化 profile 的点数列。profile 本身已经是
// (count 降序, rank 降序)，正好就是各牌型要求的踢脚顺序。
func profileRanks(profile []profileEntry) []int {
	out := make([]int, 0, len(profile))
	for _, e := range profile {
		out = append(out, e.rank)
	}
	return out
}

// classifyBest 6-7 张牌直接定型，不枚举 C(n,5) 子集。
// 维护三套视图：按点数计数、按花色的点数掩码、全量点数掩码，
// 然后按牌型强度自上而下短路判定。
func classifyBest(cards []card.Card) Score {
	var counts [15]int
	var suitMasks [4]uint32
	var suitCounts [4]int
	mask := uint32(0)
	for _, c := range cards {
		r, s := c.Rank(), c.Suit()
		counts[r]++
		suitMasks[s] |= 1 << uint(r)
		suitCounts[s]++
		mask |= 1 << uint(r)
	}

	// 同花顺/皇家同花顺：7 张牌最多只有一个花色凑满 5 张，
	// 命中即封顶，后面全部不用看。
	for s := range suitMasks {
		if suitCounts[s] < 5 {
			continue
		}
		if high, ok := detectStraight(suitMasks[s]); ok {
			if high == card.MaxRank {
				return Score{Category: RoyalFlush, Kickers: []int{card.MaxRank}}
			}
			return Score{Category: StraightFlush, Kickers: []int{high}}
		}
	}

	// 四条
	for r := card.MaxRank; r >= card.MinRank; r-- {
		if counts[r] == 4 {
			kickers := collectKickers(&counts, 1<<uint(r), 1)
			return Score{Category: FourOfKind, Kickers: []int{r, kickers[0]}}
		}
	}

	// 三条/对子点数表（降序），后面多个牌型共用
	var trips, pairs []int
	for r := card.MaxRank; r >= card.MinRank; r-- {
		if counts[r] >= 3 {
			trips = append(trips, r)
		}
		if counts[r] >= 2 {
			pairs = append(pairs, r)
		}
	}

	// 葫芦：主三条取最大，副对子优先取第二组三条，否则取最大的不同对子
	if len(trips) > 0 {
		second := 0
		if len(trips) > 1 {
			second = trips[1]
		} else {
			for _, p := range pairs {
				if p != trips[0] {
					second = p
					break
				}
			}
		}
		if second != 0 {
			return Score{Category: FullHouse, Kickers: []int{trips[0], second}}
		}
	}

	// 同花：各合格花色取最大 5 张，按字典序留最大的
	var bestFlush []int
	for s := range suitMasks {
		if suitCounts[s] < 5 {
			continue
		}
		top := topRanks(suitMasks[s], 5)
		if bestFlush == nil || lexGreater(top, bestFlush) {
			bestFlush = top
		}
	}
	if bestFlush != nil {
		return Score{Category: Flush, Kickers: bestFlush}
	}

	// 顺子：全量掩码
	if high, ok := detectStraight(mask); ok {
		return Score{Category: Straight, Kickers: []int{high}}
	}

	// 三条
	if len(trips) > 0 {
		kickers := collectKickers(&counts, 1<<uint(trips[0]), 2)
		return Score{Category: ThreeOfKind, Kickers: append([]int{trips[0]}, kickers...)}
	}

	// 两对：取最大两对，第三对只能当踢脚
	if len(pairs) >= 2 {
		excluded := uint32(1<<uint(pairs[0]) | 1<<uint(pairs[1]))
		kickers := collectKickers(&counts, excluded, 1)
		return Score{Category: TwoPair, Kickers: []int{pairs[0], pairs[1], kickers[0]}}
	}

	// 一对
	if len(pairs) == 1 {
		kickers := collectKickers(&counts, 1<<uint(pairs[0]), 3)
		return Score{Category: OnePair, Kickers: append([]int{pairs[0]}, kickers...)}
	}

	// 高牌
	return Score{Category: HighCard, Kickers: collectKickers(&counts, 0, 5)}
}

// collectKickers 按点数降序收集 need 个踢脚。
// 每个点数最多贡献自身剩余张数（count 感知），excluded 掩码里的点数跳过。
func collectKickers(counts *[15]int, excluded uint32, need int) []int {
	out := make([]int, 0, need)
	for r := card.MaxRank; r >= card.MinRank && len(out) < need; r-- {
		if excluded&(1<<uint(r)) != 0 {
			continue
		}
		for n := counts[r]; n > 0 && len(out) < need; n-- {
			out = append(out, r)
		}
	}
	return out
}

// topRanks 掩码中最大的 n 个点数，降序。
func topRanks(mask uint32, n int) []int {
	out := make([]int, 0, n)
	for r := card.MaxRank; r >= card.MinRank && len(out) < n; r-- {
		if mask&(1<<uint(r)) != 0 {
			out = append(out, r)
		}
	}
	return out
}

func lexGreater(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
