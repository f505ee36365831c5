package card

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrInsufficientCards 发牌数量超过剩余牌数（或请求数 < 1）。
var ErrInsufficientCards = errors.New("insufficient cards")

type CardList []Card

// NewDeck 标准 52 张牌堆，按花色、点数顺序排列。
func NewDeck() CardList {
	deck := make(CardList, 0, 52)
	for suit := Spade; suit <= Diamond; suit++ {
		for rank := MinRank; rank <= MaxRank; rank++ {
			c, err := New(rank, suit)
			if err != nil {
				panic(err) // unreachable: 枚举范围内必然合法
			}
			deck = append(deck, c)
		}
	}
	return deck
}

func (ds *CardList) Init(cards []Card) {
	*ds = make([]Card, len(cards))
	copy(*ds, cards)
}

// Count 获取总牌数
func (ds CardList) Count() int {
	return len(ds)
}

func (ds CardList) CardsBytes() []byte {
	return Cards2bytes(ds)
}

func (ds CardList) Shuffle() {
	rand.Shuffle(len(ds), func(i, j int) {
		ds[i], ds[j] = ds[j], ds[i]
	})
}

func (ds *CardList) Add(cards ...Card) {
	*ds = append(*ds, cards...)
}

// Draw 从牌堆顶部取 n 张。
func (ds *CardList) Draw(n int) ([]Card, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: draw count %d < 1", ErrInsufficientCards, n)
	}
	if n > ds.Count() {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientCards, n, ds.Count())
	}
	cards := make([]Card, n)
	copy(cards, (*ds)[:n])
	*ds = (*ds)[n:]
	return cards, nil
}
