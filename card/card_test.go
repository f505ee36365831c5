package card

import (
	"errors"
	"testing"
)

func TestNew_RejectsIllegalRankAndSuit(t *testing.T) {
	if _, err := New(1, Spade); !errors.Is(err, ErrInvalidRank) {
		t.Fatalf("expected ErrInvalidRank for rank 1, got %v", err)
	}
	if _, err := New(15, Heart); !errors.Is(err, ErrInvalidRank) {
		t.Fatalf("expected ErrInvalidRank for rank 15, got %v", err)
	}
	if _, err := New(10, Suit(4)); !errors.Is(err, ErrInvalidSuit) {
		t.Fatalf("expected ErrInvalidSuit for suit 4, got %v", err)
	}

	c, err := New(14, Spade)
	if err != nil {
		t.Fatalf("New(14, Spade) err: %v", err)
	}
	if c != CardSpadeA {
		t.Fatalf("expected CardSpadeA, got %v", c)
	}
}

func TestCard_RankSuitRoundTrip(t *testing.T) {
	for suit := Spade; suit <= Diamond; suit++ {
		for rank := MinRank; rank <= MaxRank; rank++ {
			c, err := New(rank, suit)
			if err != nil {
				t.Fatalf("New(%d, %v) err: %v", rank, suit, err)
			}
			if c.Rank() != rank {
				t.Fatalf("card %v: rank %d != %d", c, c.Rank(), rank)
			}
			if c.Suit() != suit {
				t.Fatalf("card %v: suit %v != %v", c, c.Suit(), suit)
			}
		}
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Card
	}{
		{"As", CardSpadeA},
		{"ah", CardHeartA},
		{"Td", CardDiamondT},
		{"10h", CardHeartT},
		{"2c", CardClub2},
		{"KS", CardSpadeK},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q) err: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := Parse("1s"); !errors.Is(err, ErrInvalidRank) {
		t.Fatalf("expected ErrInvalidRank, got %v", err)
	}
	if _, err := Parse("Ax"); !errors.Is(err, ErrInvalidSuit) {
		t.Fatalf("expected ErrInvalidSuit, got %v", err)
	}
	if _, err := Parse("A"); err == nil {
		t.Fatalf("expected error for too-short card string")
	}
}

func TestCard_UsableAsMapKey(t *testing.T) {
	seen := make(map[Card]bool)
	for _, c := range NewDeck() {
		if seen[c] {
			t.Fatalf("duplicate card in deck: %v", c)
		}
		seen[c] = true
	}
	if len(seen) != 52 {
		t.Fatalf("expected 52 distinct cards, got %d", len(seen))
	}
}

func TestCardList_Draw(t *testing.T) {
	deck := NewDeck()

	top := deck[0]
	drawn, err := deck.Draw(2)
	if err != nil {
		t.Fatalf("Draw(2) err: %v", err)
	}
	if len(drawn) != 2 || drawn[0] != top {
		t.Fatalf("Draw(2) returned wrong cards: %v", drawn)
	}
	if deck.Count() != 50 {
		t.Fatalf("expected 50 cards remaining, got %d", deck.Count())
	}

	if _, err := deck.Draw(0); !errors.Is(err, ErrInsufficientCards) {
		t.Fatalf("expected ErrInsufficientCards for n=0, got %v", err)
	}
	if _, err := deck.Draw(51); !errors.Is(err, ErrInsufficientCards) {
		t.Fatalf("expected ErrInsufficientCards for overdraw, got %v", err)
	}
}
