package eval

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"holdem-kit/card"
)

func mustCards(t *testing.T, specs ...string) []card.Card {
	t.Helper()
	cards := make([]card.Card, 0, len(specs))
	for _, s := range specs {
		c, err := card.Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) err: %v", s, err)
		}
		cards = append(cards, c)
	}
	return cards
}

func mustEvaluate(t *testing.T, specs ...string) Score {
	t.Helper()
	score, err := Evaluate(mustCards(t, specs...))
	if err != nil {
		t.Fatalf("Evaluate(%v) err: %v", specs, err)
	}
	return score
}

func TestEvaluate_RejectsBadHandSize(t *testing.T) {
	deck := card.NewDeck()
	for _, n := range []int{0, 1, 4, 8} {
		if _, err := Evaluate(deck[:n]); !errors.Is(err, ErrInvalidHandSize) {
			t.Fatalf("size %d: expected ErrInvalidHandSize, got %v", n, err)
		}
	}
	for _, n := range []int{5, 6, 7} {
		if _, err := Evaluate(deck[:n]); err != nil {
			t.Fatalf("size %d: unexpected err: %v", n, err)
		}
	}
}

func TestEvaluate_FiveCardCategories(t *testing.T) {
	cases := []struct {
		name    string
		cards   []string
		want    Score
	}{
		{"royal flush", []string{"As", "Ks", "Qs", "Js", "Ts"},
			Score{RoyalFlush, []int{14}}},
		{"steel wheel", []string{"Ac", "5c", "4c", "3c", "2c"},
			Score{StraightFlush, []int{5}}},
		{"straight flush", []string{"9h", "8h", "7h", "6h", "5h"},
			Score{StraightFlush, []int{9}}},
		{"four of a kind", []string{"Ts", "Th", "Td", "Tc", "As"},
			Score{FourOfKind, []int{10, 14}}},
		{"full house", []string{"8s", "8h", "8d", "3c", "3s"},
			Score{FullHouse, []int{8, 3}}},
		{"flush", []string{"Kd", "Jd", "8d", "6d", "2d"},
			Score{Flush, []int{13, 11, 8, 6, 2}}},
		{"straight", []string{"9h", "8s", "7d", "6c", "5h"},
			Score{Straight, []int{9}}},
		{"wheel", []string{"Ah", "2s", "3d", "4c", "5h"},
			Score{Straight, []int{5}}},
		{"broadway", []string{"Ah", "Ks", "Qd", "Jc", "Th"},
			Score{Straight, []int{14}}},
		{"three of a kind", []string{"7s", "7h", "7d", "Kc", "2s"},
			Score{ThreeOfKind, []int{7, 13, 2}}},
		{"two pair", []string{"9s", "4h", "9d", "4c", "As"},
			Score{TwoPair, []int{9, 4, 14}}},
		{"one pair", []string{"6s", "6h", "Ad", "Tc", "3s"},
			Score{OnePair, []int{6, 14, 10, 3}}},
		{"high card", []string{"As", "Kh", "Qd", "Jc", "9s"},
			Score{HighCard, []int{14, 13, 12, 11, 9}}},
	}

	for _, tc := range cases {
		got := mustEvaluate(t, tc.cards...)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %v %v, want %v %v",
				tc.name, got.Category, got.Kickers, tc.want.Category, tc.want.Kickers)
		}
	}
}

func TestEvaluate_SevenCardCategories(t *testing.T) {
	cases := []struct {
		name  string
		cards []string
		want  Score
	}{
		// spec 场景：AAA KK + 杂牌 => 葫芦 (14,13)
		{"two trips make top full house", []string{"As", "Ah", "Ad", "Kc", "Ks", "Qh", "Jc"},
			Score{FullHouse, []int{14, 13}}},
		{"no pair no flush", []string{"As", "Kh", "Qd", "Jc", "9s", "2h", "3d"},
			Score{HighCard, []int{14, 13, 12, 11, 9}}},
		{"trips plus lone pair", []string{"8s", "8h", "8d", "3c", "3s", "Ah", "Kd"},
			Score{FullHouse, []int{8, 3}}},
		// 三对：只取最大两对，踢脚是剩余最大点数（这里是第三对的 Q）
		{"three pairs keep best kicker", []string{"As", "Ah", "Kd", "Kc", "Qs", "Qh", "2d"},
			Score{TwoPair, []int{14, 13, 12}}},
		{"three pairs with higher single", []string{"Ks", "Kh", "Qd", "Qc", "2s", "2h", "Ad"},
			Score{TwoPair, []int{13, 12, 14}}},
		{"quads with trips kicker", []string{"9s", "9h", "9d", "9c", "7s", "7h", "7d"},
			Score{FourOfKind, []int{9, 7}}},
		{"six card flush keeps top five", []string{"Ah", "Jh", "9h", "7h", "4h", "2h", "Ks"},
			Score{Flush, []int{14, 11, 9, 7, 4}}},
		{"seven card straight keeps high end", []string{"9h", "8s", "7d", "6c", "5h", "4s", "3d"},
			Score{Straight, []int{9}}},
		{"long suited run is straight flush", []string{"9h", "8h", "7h", "6h", "5h", "4h", "Ks"},
			Score{StraightFlush, []int{9}}},
		{"wheel straight flush", []string{"Ac", "2c", "3c", "4c", "5c", "Kd", "Qh"},
			Score{StraightFlush, []int{5}}},
		{"royal over lower straight flush", []string{"As", "Ks", "Qs", "Js", "Ts", "9s", "8s"},
			Score{RoyalFlush, []int{14}}},
		// 同花与顺子并存时同花赢（8-J 非同花顺）
		{"flush beats straight", []string{"Jh", "Th", "9h", "8c", "7h", "2h", "3s"},
			Score{Flush, []int{11, 10, 9, 7, 2}}},
		// 葫芦优先于同花
		{"full house beats flush", []string{"5h", "5d", "5c", "9h", "9d", "Kh", "2h"},
			Score{FullHouse, []int{5, 9}}},
		{"trips with two kickers", []string{"7s", "7h", "7d", "Kc", "2s", "5h", "Jd"},
			Score{ThreeOfKind, []int{7, 13, 11}}},
		{"one pair with three kickers", []string{"6s", "6h", "Ad", "Tc", "3s", "8h", "2d"},
			Score{OnePair, []int{6, 14, 10, 8}}},
	}

	for _, tc := range cases {
		got := mustEvaluate(t, tc.cards...)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %v %v, want %v %v",
				tc.name, got.Category, got.Kickers, tc.want.Category, tc.want.Kickers)
		}
	}
}

func TestEvaluate_OrderInsensitiveAndDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	deck := card.NewDeck()

	for i := 0; i < 200; i++ {
		hand := make([]card.Card, len(deck))
		copy(hand, deck)
		rng.Shuffle(len(hand), func(a, b int) { hand[a], hand[b] = hand[b], hand[a] })
		hand = hand[:5+rng.Intn(3)]

		base, err := Evaluate(hand)
		if err != nil {
			t.Fatalf("Evaluate err: %v", err)
		}
		for trial := 0; trial < 3; trial++ {
			shuffled := append([]card.Card{}, hand...)
			rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
			got, err := Evaluate(shuffled)
			if err != nil {
				t.Fatalf("Evaluate err: %v", err)
			}
			if !got.Equal(base) || got.Category != base.Category {
				t.Fatalf("hand %v: order changed result %v %v vs %v %v",
					hand, base.Category, base.Kickers, got.Category, got.Kickers)
			}
		}
	}
}

// 每个牌型的踢脚序列长度固定，这是跨牌比较的前提。
func TestEvaluate_KickerLengths(t *testing.T) {
	wantLen := map[Category]int{
		RoyalFlush:    1,
		StraightFlush: 1,
		FourOfKind:    2,
		FullHouse:     2,
		Flush:         5,
		Straight:      1,
		ThreeOfKind:   3,
		TwoPair:       3,
		OnePair:       4,
		HighCard:      5,
	}

	rng := rand.New(rand.NewSource(11))
	deck := card.NewDeck()
	seen := make(map[Category]bool)

	for i := 0; i < 5000; i++ {
		hand := make([]card.Card, len(deck))
		copy(hand, deck)
		rng.Shuffle(len(hand), func(a, b int) { hand[a], hand[b] = hand[b], hand[a] })
		hand = hand[:5+rng.Intn(3)]

		score, err := Evaluate(hand)
		if err != nil {
			t.Fatalf("Evaluate err: %v", err)
		}
		seen[score.Category] = true
		if len(score.Kickers) != wantLen[score.Category] {
			t.Fatalf("hand %v: %v kickers %v, want length %d",
				hand, score.Category, score.Kickers, wantLen[score.Category])
		}
	}

	// 随机 5000 手应当至少覆盖常见牌型
	for _, c := range []Category{HighCard, OnePair, TwoPair, ThreeOfKind, Straight, Flush} {
		if !seen[c] {
			t.Fatalf("random hands never produced %v; sampling broken?", c)
		}
	}
}
