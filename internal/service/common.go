package service

import (
	"errors"
	"strconv"

	"bjl-server/common"
	"bjl-server/internal/state"
)

// 服务层公共错误
var (
	ErrBadRequest        = errors.New("bad request")
	ErrRoundNotFound     = errors.New("round not found")
	ErrDuplicateRound    = errors.New("round result already submitted")
	ErrRoundVoided       = errors.New("round already voided")
	ErrInvalidRoundState = errors.New("operation not allowed in current round state")
	ErrTableNotFound     = errors.New("table not found")
	ErrTableDisabled     = errors.New("table disabled")
)

// 对账任务类型（路由到 queue Handler）
const (
	TaskRoundSettle    = "round_settle"    // 派彩结算
	TaskWalletSettle   = "wallet_settle"   // 钱包结算通知
	TaskWalletDebit    = "wallet_debit"    // 钱包扣款通知
	TaskWalletVoid     = "wallet_void"     // 钱包作废冲正通知
	TaskRoundRebate    = "round_rebate"    // 洗码费累计
	TaskTableCountdown = "table_countdown" // 下注倒计时滴答
)

// 局结算状态：数值码 <-> 字符串。落库双写，读取按数值码判断。
var roundStateByCode = map[int8]string{
	1: state.RoundReceived,
	2: state.RoundOutcomeDone,
	3: state.RoundPayoutApplied,
	4: state.RoundWalletNotified,
	5: state.RoundClosed,
	6: state.RoundVoided,
}

var roundCodeByState = map[string]int8{
	state.RoundReceived:       1,
	state.RoundOutcomeDone:    2,
	state.RoundPayoutApplied:  3,
	state.RoundWalletNotified: 4,
	state.RoundClosed:         5,
	state.RoundVoided:         6,
}

func roundCodeToState(code int8) string {
	if s, ok := roundStateByCode[code]; ok {
		return s
	}
	return "unknown"
}

func roundStateToCode(s string) int8 {
	return roundCodeByState[s]
}

// placementsFromSlots 将按席位顺序的 token 列表转为槽位映射（1~6）
func placementsFromSlots(tokens []string) map[int]string {
	out := make(map[int]string, len(tokens))
	for i, tok := range tokens {
		out[i+1] = tok
	}
	return out
}

// encodeCardList 牌面槽位落库格式：{"1":"10|r","2":"6|m",...}
func encodeCardList(placements map[int]string) string {
	m := make(map[string]string, len(placements))
	for slot, tok := range placements {
		m[strconv.Itoa(slot)] = tok
	}
	s, _ := common.JsonMarshalToStringSorted(m)
	return s
}

// decodeCardList 解析落库的牌面槽位 JSON
func decodeCardList(s string) (map[int]string, error) {
	var m map[string]string
	if err := common.JsonUnmarshalFromString(s, &m); err != nil {
		return nil, err
	}
	out := make(map[int]string, len(m))
	for k, v := range m {
		slot, err := strconv.Atoi(k)
		if err != nil {
			return nil, err
		}
		out[slot] = v
	}
	return out, nil
}

func toJSON(v any) string {
	s, _ := common.JsonMarshalToString(v)
	return s
}
