package state

import "fmt"

// RoundState 局结算状态
const (
	RoundReceived       = "received"         // 已接收开牌
	RoundOutcomeDone    = "outcome_computed" // 已计算结果
	RoundPayoutApplied  = "payout_applied"   // 已派彩
	RoundWalletNotified = "wallet_notified"  // 已通知钱包
	RoundClosed         = "closed"           // 已关闭
	RoundVoided         = "voided"           // 已作废
)

// RoundEvent 局结算事件
const (
	EvtOutcomeComputed = "outcome_computed"
	EvtPayoutApplied   = "payout_applied"
	EvtWalletNotified  = "wallet_notified"
	EvtRoundClosed     = "round_closed"
	EvtRoundVoided     = "round_voided"
)

// NextRoundState 根据当前状态与事件计算下一个状态，非法转换报错。
// 作废可从任意未关闭状态进入。
func NextRoundState(cur, evt string) (string, error) {
	if evt == EvtRoundVoided {
		if cur == RoundClosed || cur == RoundVoided {
			return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
		}
		return RoundVoided, nil
	}

	switch cur {
	case RoundReceived:
		if evt == EvtOutcomeComputed {
			return RoundOutcomeDone, nil
		}
	case RoundOutcomeDone:
		if evt == EvtPayoutApplied {
			return RoundPayoutApplied, nil
		}
	case RoundPayoutApplied:
		if evt == EvtWalletNotified {
			return RoundWalletNotified, nil
		}
	case RoundWalletNotified:
		if evt == EvtRoundClosed {
			return RoundClosed, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}

// TableState 台桌运行状态
const (
	TableBetting   = "betting"   // 下注中（倒计时内）
	TableDealing   = "dealing"   // 发牌中（已封盘）
	TableShuffling = "shuffling" // 洗牌中
)

// TableEvent 台桌事件
const (
	EvtBettingOpen  = "betting_open"
	EvtBettingClose = "betting_close"
	EvtShuffleStart = "shuffle_start"
	EvtShuffleDone  = "shuffle_done"
)

// NextTableState 台桌状态流转：下注 -> 发牌 -> (洗牌 ->) 下注
func NextTableState(cur, evt string) (string, error) {
	switch cur {
	case TableBetting:
		if evt == EvtBettingClose {
			return TableDealing, nil
		}
	case TableDealing:
		if evt == EvtBettingOpen {
			return TableBetting, nil
		}
		if evt == EvtShuffleStart {
			return TableShuffling, nil
		}
	case TableShuffling:
		if evt == EvtShuffleDone {
			return TableDealing, nil
		}
		if evt == EvtBettingOpen {
			return TableBetting, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}
