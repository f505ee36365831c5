package eval

import (
	"math/rand"
	"reflect"
	"testing"

	"holdem-kit/card"
)

// bestByEnumeration 朴素参照实现：枚举全部 C(n,5) 子集取最大。
// 快路径（classifyBest）的唯一正确性标准就是与它逐手一致。
func bestByEnumeration(cards []card.Card) Score {
	n := len(cards)
	var best Score
	first := true
	sub := make([]card.Card, 5)

	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						sub[0], sub[1], sub[2], sub[3], sub[4] = cards[a], cards[b], cards[c], cards[d], cards[e]
						score := classifyFive(sub)
						if first || score.Beats(best) {
							best = score
							first = false
						}
					}
				}
			}
		}
	}
	return best
}

func TestClassifyBest_MatchesEnumerationOnRandomHands(t *testing.T) {
	iterations := 2000
	if testing.Short() {
		iterations = 200
	}

	rng := rand.New(rand.NewSource(42))
	deck := card.NewDeck()

	for i := 0; i < iterations; i++ {
		hand := make([]card.Card, len(deck))
		copy(hand, deck)
		rng.Shuffle(len(hand), func(a, b int) { hand[a], hand[b] = hand[b], hand[a] })
		hand = hand[:6+rng.Intn(2)]

		fast := classifyBest(hand)
		slow := bestByEnumeration(hand)
		if !reflect.DeepEqual(fast, slow) {
			t.Fatalf("hand %v: fast %v %v != enumerated %v %v",
				hand, fast.Category, fast.Kickers, slow.Category, slow.Kickers)
		}
	}
}

// 针对快路径分支的定向对照：每类至少一手，不依赖随机覆盖。
func TestClassifyBest_MatchesEnumerationOnCraftedHands(t *testing.T) {
	hands := [][]string{
		{"As", "Ks", "Qs", "Js", "Ts", "9s", "8s"},
		{"9h", "8h", "7h", "6h", "5h", "4h", "Ks"},
		{"Ac", "2c", "3c", "4c", "5c", "6d", "7h"},
		{"9s", "9h", "9d", "9c", "7s", "7h", "7d"},
		{"As", "Ah", "Ad", "Kc", "Ks", "Qh", "Jc"},
		{"8s", "8h", "8d", "3c", "3s", "2h", "2d"},
		{"Ah", "Jh", "9h", "7h", "4h", "2h", "Ks"},
		{"Jh", "Th", "9h", "8c", "7h", "2h", "3s"},
		{"9h", "8s", "7d", "6c", "5h", "4s", "3d"},
		{"Ah", "2s", "3d", "4c", "5h", "Kd", "Qc"},
		{"7s", "7h", "7d", "Kc", "2s", "5h", "Jd"},
		{"As", "Ah", "Kd", "Kc", "Qs", "Qh", "2d"},
		{"Ks", "Kh", "Qd", "Qc", "2s", "2h", "Ad"},
		{"6s", "6h", "Ad", "Tc", "3s", "8h", "2d"},
		{"As", "Kh", "Qd", "Jc", "9s", "2h", "3d"},
		// 6 张的路径
		{"As", "Ah", "Ad", "Kc", "Ks", "Qh"},
		{"9h", "8h", "7h", "6h", "5h", "Ks"},
		{"Ks", "Kh", "Qd", "Qc", "2s", "2h"},
	}

	for _, specs := range hands {
		hand := mustCards(t, specs...)
		fast := classifyBest(hand)
		slow := bestByEnumeration(hand)
		if !reflect.DeepEqual(fast, slow) {
			t.Fatalf("hand %v: fast %v %v != enumerated %v %v",
				specs, fast.Category, fast.Kickers, slow.Category, slow.Kickers)
		}
	}
}
