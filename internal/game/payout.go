package game

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// 赔率表（不含本金）
var (
	oddsEven      = decimal.NewFromInt(1)
	oddsBanker    = decimal.RequireFromString("0.95") // 庄抽水5%
	oddsBankerSix = decimal.RequireFromString("0.5")  // 免佣庄6点赢半付
	oddsTie       = decimal.NewFromInt(8)
	oddsPair      = decimal.NewFromInt(11)
	oddsLucky2    = decimal.NewFromInt(12)
	oddsLucky3    = decimal.NewFromInt(20)
	oddsDragon7   = decimal.NewFromInt(40)
	oddsPanda8    = decimal.NewFromInt(25)
)

// 幸运6中奖点数
const luckyWinDigit = 6

// ErrUnknownWager 未知玩法：配置缺陷，结算侧按致命错误处理，不得默认判输
var ErrUnknownWager = fmt.Errorf("game: unknown wager type")

// PayoutResult 单笔注单的结算结果
type PayoutResult struct {
	// WinAmount 应入账金额：赢=本金×(1+赔率)，退回=本金，输=0
	WinAmount decimal.Decimal
	// Delta 相对本金的盈亏：赢为正，退回为 0，输为负本金
	Delta decimal.Decimal
	// Odds 实际适用赔率（退回/输为 0）
	Odds decimal.Decimal
	// Refund 是否为退回本金（和局时的庄/闲注）
	Refund bool
	Win    bool
}

// ResolvePayout 按玩法结算一笔注单。
// exempt 仅对庄注生效：免佣模式下庄 6 点赢半付，其余点数平赔。
func ResolvePayout(out *Outcome, wager WagerType, stake decimal.Decimal, exempt bool) (PayoutResult, error) {
	switch wager {
	case WagerBanker:
		if out.Category == CategoryTie {
			return refundResult(stake), nil
		}
		if out.Category != CategoryBanker {
			return loseResult(stake), nil
		}
		odds := oddsBanker
		if exempt {
			odds = oddsEven
			if out.Banker.Point == 6 {
				odds = oddsBankerSix
			}
		}
		return winResult(stake, odds), nil

	case WagerPlayer:
		if out.Category == CategoryTie {
			return refundResult(stake), nil
		}
		if out.Category != CategoryPlayer {
			return loseResult(stake), nil
		}
		return winResult(stake, oddsEven), nil

	case WagerTie:
		if out.Category == CategoryTie {
			return winResult(stake, oddsTie), nil
		}
		return loseResult(stake), nil

	case WagerBankerPair:
		if out.Banker.Pair {
			return winResult(stake, oddsPair), nil
		}
		return loseResult(stake), nil

	case WagerPlayerPair:
		if out.Player.Pair {
			return winResult(stake, oddsPair), nil
		}
		return loseResult(stake), nil

	case WagerLucky6:
		if out.LuckyTotal%10 != luckyWinDigit {
			return loseResult(stake), nil
		}
		if out.LuckySize == 3 {
			return winResult(stake, oddsLucky3), nil
		}
		return winResult(stake, oddsLucky2), nil

	case WagerDragon7:
		if out.Dragon7 {
			return winResult(stake, oddsDragon7), nil
		}
		return loseResult(stake), nil

	case WagerPanda8:
		if out.Panda8 {
			return winResult(stake, oddsPanda8), nil
		}
		return loseResult(stake), nil
	}

	return PayoutResult{}, fmt.Errorf("%w: %d", ErrUnknownWager, int(wager))
}

// WinningWagers 本局所有中奖玩法（推送端的闪烁高亮列表）
func WinningWagers(out *Outcome) []WagerType {
	var wins []WagerType
	for _, w := range AllWagerTypes() {
		r, err := ResolvePayout(out, w, decimal.NewFromInt(1), false)
		if err != nil {
			continue
		}
		if r.Win {
			wins = append(wins, w)
		}
	}
	return wins
}

func winResult(stake, odds decimal.Decimal) PayoutResult {
	win := stake.Mul(odds.Add(oddsEven)).Round(2)
	return PayoutResult{
		WinAmount: win,
		Delta:     win.Sub(stake),
		Odds:      odds,
		Win:       true,
	}
}

func refundResult(stake decimal.Decimal) PayoutResult {
	return PayoutResult{
		WinAmount: stake,
		Delta:     decimal.Zero,
		Odds:      decimal.Zero,
		Refund:    true,
	}
}

func loseResult(stake decimal.Decimal) PayoutResult {
	return PayoutResult{
		WinAmount: decimal.Zero,
		Delta:     stake.Neg(),
		Odds:      decimal.Zero,
	}
}
