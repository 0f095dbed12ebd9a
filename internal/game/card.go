package game

import (
	"fmt"
	"strconv"
	"strings"
)

// 牌面槽位约定：1~3 为庄家牌，4~6 为闲家牌
const (
	SlotCount       = 6
	bankerSlotFirst = 1
	bankerSlotLast  = 3
	playerSlotFirst = 4
	playerSlotLast  = 6
)

// 花色符号（与荷官端上报一致）
const (
	SuitHeart   = "r" // 红桃
	SuitSpade   = "h" // 黑桃
	SuitDiamond = "f" // 方块
	SuitClub    = "m" // 梅花
)

var suitNames = map[string]string{
	SuitHeart:   "红桃",
	SuitSpade:   "黑桃",
	SuitDiamond: "方块",
	SuitClub:    "梅花",
}

var rankNames = map[int]string{
	1: "A", 2: "2", 3: "3", 4: "4", 5: "5", 6: "6", 7: "7",
	8: "8", 9: "9", 10: "10", 11: "J", 12: "Q", 13: "K",
}

// Card 一张已解析的牌
type Card struct {
	Rank int    // 1=A .. 13=K
	Suit string // r/h/f/m
}

// Pip 计点值：10/J/Q/K 计 0
func (c Card) Pip() int {
	if c.Rank > 9 {
		return 0
	}
	return c.Rank
}

// Display 展示名，如 "红桃A"
func (c Card) Display() string {
	return suitNames[c.Suit] + rankNames[c.Rank]
}

// ImageToken 前端图片资源标识，如 "r1"
func (c Card) ImageToken() string {
	return c.Suit + strconv.Itoa(c.Rank)
}

var (
	ErrBadCardToken = fmt.Errorf("game: bad card token")
	ErrEmptyBoard   = fmt.Errorf("game: all slots empty")
)

// ParseCardToken 解析 "rank|suit" 形式的上报牌面。
// rank=0 表示空槽位，返回 (nil, nil)。
func ParseCardToken(token string) (*Card, error) {
	parts := strings.Split(strings.TrimSpace(token), "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: %q", ErrBadCardToken, token)
	}
	rank, err := strconv.Atoi(parts[0])
	if err != nil || rank < 0 || rank > 13 {
		return nil, fmt.Errorf("%w: rank %q", ErrBadCardToken, parts[0])
	}
	if rank == 0 {
		// 空槽位
		return nil, nil
	}
	suit := parts[1]
	if _, ok := suitNames[suit]; !ok {
		return nil, fmt.Errorf("%w: suit %q", ErrBadCardToken, suit)
	}
	return &Card{Rank: rank, Suit: suit}, nil
}
