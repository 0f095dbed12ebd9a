package wallet

import "fmt"

// 对账用途
const (
	PurposeBet    = "BET"    // 下注扣款通知
	PurposeSettle = "SETTLE" // 结算通知
	PurposeVoid   = "VOID"   // 作废冲正通知
)

// CorrelationID 生成钱包对账关联ID。
// 纯函数：同一逻辑交易在重投递下生成相同ID，外部钱包据此识别重复投递。
// 形如：BJL_SETTLE_T1_S2_R5_U1001
func CorrelationID(purpose string, tableID int64, shoe, round int, userID int64) string {
	return fmt.Sprintf("BJL_%s_T%d_S%d_R%d_U%d", purpose, tableID, shoe, round, userID)
}

// BetCorrelationID 下注扣款关联ID（按注单细分）
// 形如：BJL_BET_T1_S2_R5_U1001_B{bill_no}
func BetCorrelationID(tableID int64, shoe, round int, userID int64, billNo string) string {
	return CorrelationID(PurposeBet, tableID, shoe, round, userID) + "_B" + billNo
}
