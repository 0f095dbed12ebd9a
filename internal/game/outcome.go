package game

import (
	"fmt"
	"strings"
)

// Category 一局的大结果
type Category int

const (
	CategoryTie    Category = 0 // 和
	CategoryBanker Category = 1 // 庄赢
	CategoryPlayer Category = 2 // 闲赢
)

func (c Category) String() string {
	switch c {
	case CategoryBanker:
		return "banker"
	case CategoryPlayer:
		return "player"
	default:
		return "tie"
	}
}

// Hand 单方手牌计算结果
type Hand struct {
	Cards   []Card // 按槽位顺序，空槽位不占位
	Point   int    // 点数（mod 10）
	Pair    bool   // 前两张是否对子
	Display string // 展示串，如 "红桃A-黑桃K"
}

// Outcome 开牌计算结果。纯数据，无 I/O。
type Outcome struct {
	Banker Hand
	Player Hand

	Category Category

	// 幸运6：庄家牌计点和（未 mod 10），以及达成张数（2 或 3）
	LuckyTotal int
	LuckySize  int

	// 龙7 / 熊8
	Dragon7 bool // 庄三张牌合计 7 点
	Panda8  bool // 闲三张牌合计 8 点
}

// ComputeOutcome 由荷官上报的槽位牌面计算一局结果。
// placements 为槽位 1~6 到 "rank|suit" 的映射，rank=0 表示空槽位。
// 全空输入非法，由此处拒绝。
func ComputeOutcome(placements map[int]string) (*Outcome, error) {
	var banker, player []Card
	for slot := 1; slot <= SlotCount; slot++ {
		token, ok := placements[slot]
		if !ok {
			continue
		}
		card, err := ParseCardToken(token)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", slot, err)
		}
		if card == nil {
			continue
		}
		if slot <= bankerSlotLast {
			banker = append(banker, *card)
		} else {
			player = append(player, *card)
		}
	}
	if len(banker) == 0 && len(player) == 0 {
		return nil, ErrEmptyBoard
	}

	out := &Outcome{
		Banker: buildHand(banker),
		Player: buildHand(player),
	}

	// 幸运6统计的是庄家未取模的计点和
	for _, c := range banker {
		out.LuckyTotal += c.Pip()
	}
	out.LuckySize = 2
	if len(banker) == 3 {
		out.LuckySize = 3
	}

	switch {
	case out.Banker.Point == out.Player.Point:
		out.Category = CategoryTie
	case out.Banker.Point > out.Player.Point:
		out.Category = CategoryBanker
	default:
		out.Category = CategoryPlayer
	}

	out.Dragon7 = out.Banker.Point == 7 && len(banker) == 3
	out.Panda8 = out.Player.Point == 8 && len(player) == 3

	return out, nil
}

func buildHand(cards []Card) Hand {
	h := Hand{Cards: cards}

	sum := 0
	names := make([]string, 0, len(cards))
	for _, c := range cards {
		sum += c.Pip()
		names = append(names, c.Display())
	}
	h.Point = sum % 10
	h.Display = strings.Join(names, "-")

	// 对子只看前两张
	if len(cards) >= 2 && cards[0].Rank == cards[1].Rank {
		h.Pair = true
	}
	return h
}

// ImageTokens 返回一方手牌的图片资源标识列表
func ImageTokens(h Hand) []string {
	tokens := make([]string, 0, len(h.Cards))
	for _, c := range h.Cards {
		tokens = append(tokens, c.ImageToken())
	}
	return tokens
}
