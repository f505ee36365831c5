package card

import (
	"errors"
	"fmt"
	"strings"
)

// 点数合法区间：2..14，A 固定用 14 表示（比较时天然最大，
// 顺子检测自行处理 A 当 1 用的情况）。
const (
	MinRank = 2
	MaxRank = 14 // Ace
)

var (
	ErrInvalidRank = errors.New("invalid rank")
	ErrInvalidSuit = errors.New("invalid suit")
)

// Card 牌枚举
//
// 编码规则:
// - 高4位: 花色 (0:Spade, 1:Heart, 2:Club, 3:Diamond)
// - 低4位: 点数 (2..9, 10:T, 11:J, 12:Q, 13:K, 14:A)
type Card byte

// New 构造一张牌，点数或花色非法时返回错误。
func New(rank int, suit Suit) (Card, error) {
	if rank < MinRank || rank > MaxRank {
		return CardInvalid, fmt.Errorf("%w: %d (must be 2-14)", ErrInvalidRank, rank)
	}
	if suit > Diamond {
		return CardInvalid, fmt.Errorf("%w: %d", ErrInvalidSuit, byte(suit))
	}
	return Card(byte(suit)<<4 | byte(rank)), nil
}

func (c Card) String() string {
	if c == CardInvalid {
		return "Invalid"
	}
	if c == CardRear {
		return "Rear"
	}

	suit := Suit(c >> 4) // 高4位表示花色
	rank := c & 0x0F     // 低4位表示点数

	rankStr := ""
	switch rank {
	case 10:
		rankStr = "T"
	case 11:
		rankStr = "J"
	case 12:
		rankStr = "Q"
	case 13:
		rankStr = "K"
	case 14:
		rankStr = "A"
	default:
		rankStr = fmt.Sprintf("%d", rank)
	}

	return fmt.Sprintf("%s%s", suit, rankStr)
}

// Code 紧凑文本形式（"As" / "Td"），与 Parse 互逆
func (c Card) Code() string {
	if c == CardInvalid || c == CardRear {
		return "??"
	}
	rank := c & 0x0F
	rankStr := ""
	switch rank {
	case 10:
		rankStr = "T"
	case 11:
		rankStr = "J"
	case 12:
		rankStr = "Q"
	case 13:
		rankStr = "K"
	case 14:
		rankStr = "A"
	default:
		rankStr = fmt.Sprintf("%d", rank)
	}
	suitStr := ""
	switch c.Suit() {
	case Spade:
		suitStr = "s"
	case Heart:
		suitStr = "h"
	case Club:
		suitStr = "c"
	case Diamond:
		suitStr = "d"
	}
	return rankStr + suitStr
}

// Rank 获取牌面值 2-14 (A=14, K=13)
func (c Card) Rank() int {
	if c == CardInvalid || c == CardRear {
		return 0
	}
	return int(c & 0x0F)
}

// Suit 花色 (0:Spades, 1:Hearts, 2:Clubs, 3:Diamonds)
func (c Card) Suit() Suit {
	return Suit(c >> 4)
}

func (c Card) IsAce() bool {
	return c.Rank() == MaxRank
}

// Parse 将字符串 (如 "As", "Td", "10h") 转换为 Card 常量
func Parse(cardStr string) (Card, error) {
	if len(cardStr) < 2 {
		return 0, fmt.Errorf("invalid card string: %s", cardStr)
	}

	// 1. 解析花色 (取最后一个字符)
	suitChar := cardStr[len(cardStr)-1]
	var suit Suit

	switch suitChar {
	case 's', 'S':
		suit = Spade
	case 'h', 'H':
		suit = Heart
	case 'c', 'C':
		suit = Club
	case 'd', 'D':
		suit = Diamond
	default:
		return 0, fmt.Errorf("%w: %c", ErrInvalidSuit, suitChar)
	}

	// 2. 解析点数
	rankStr := cardStr[:len(cardStr)-1]
	var rank int

	switch strings.ToUpper(rankStr) {
	case "2", "3", "4", "5", "6", "7", "8", "9":
		rank = int(rankStr[0] - '0')
	case "T", "10":
		rank = 10
	case "J":
		rank = 11
	case "Q":
		rank = 12
	case "K":
		rank = 13
	case "A":
		rank = 14
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidRank, rankStr)
	}

	return New(rank, suit)
}
