package holdem

import (
	"fmt"
	"time"

	"holdem-kit/card"
)

type Config struct {
	// Table
	MaxPlayers int
	MinPlayers int

	// Blinds / Ante
	SmallBlind int64
	BigBlind   int64
	Ante       int64

	// Optional: action timeout (0 disables internal timeout)
	ActionTimeout time.Duration
	AutoTimeout   time.Duration

	// RNG seed (0 => time-based)
	Seed int64

	// 回放用：固定庄家位（nil 表示按正常轮转/随机）
	ForcedDealerChair *uint16

	// 回放用：跳过洗牌，直接使用给定的 52 张牌序
	DeckOverride []card.Card
}

func (c Config) validate() error {
	if c.MaxPlayers <= 0 {
		return fmt.Errorf("MaxPlayers must be > 0")
	}
	if c.MinPlayers <= 0 {
		return fmt.Errorf("MinPlayers must be > 0")
	}
	if c.MinPlayers > c.MaxPlayers {
		return fmt.Errorf("MinPlayers must be <= MaxPlayers")
	}
	if c.SmallBlind < 0 || c.BigBlind <= 0 || c.SmallBlind > c.BigBlind {
		return fmt.Errorf("invalid blinds: sb=%d bb=%d", c.SmallBlind, c.BigBlind)
	}
	if c.Ante < 0 {
		return fmt.Errorf("Ante must be >= 0")
	}
	if c.AutoTimeout < 0 || c.ActionTimeout < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	if c.ForcedDealerChair != nil && int(*c.ForcedDealerChair) >= c.MaxPlayers {
		return fmt.Errorf("ForcedDealerChair %d out of range", *c.ForcedDealerChair)
	}
	if len(c.DeckOverride) > 0 {
		if len(c.DeckOverride) != 52 {
			return fmt.Errorf("DeckOverride must contain 52 cards, got %d", len(c.DeckOverride))
		}
		seen := make(map[card.Card]struct{}, len(c.DeckOverride))
		for _, cd := range c.DeckOverride {
			if _, ok := seen[cd]; ok {
				return fmt.Errorf("duplicate card %v in DeckOverride", cd)
			}
			seen[cd] = struct{}{}
		}
	}
	return nil
}
