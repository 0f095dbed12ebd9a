package constant

// 账变类型常量定义（与 wallet_ledger.biz_type 对应）
const (
	BalanceChangeBet    = 1 // 下注扣款
	BalanceChangePayout = 2 // 结算派彩
	BalanceChangeRefund = 3 // 退回本金（和局）
	BalanceChangeRebate = 4 // 洗码费
	BalanceChangeVoid   = 5 // 作废冲正
)

// 账变类型描述映射
var BalanceChangeTypeDesc = map[int]string{
	BalanceChangeBet:    "下注扣款",
	BalanceChangePayout: "结算派彩",
	BalanceChangeRefund: "和局退回",
	BalanceChangeRebate: "洗码费",
	BalanceChangeVoid:   "作废冲正",
}

// BalanceChangeTypeName 账本 biz_type_str 双写用的英文短名
var BalanceChangeTypeName = map[int]string{
	BalanceChangeBet:    "bet",
	BalanceChangePayout: "payout",
	BalanceChangeRefund: "refund",
	BalanceChangeRebate: "rebate",
	BalanceChangeVoid:   "void",
}

// GetBalanceChangeTypeDesc 获取账变类型描述
func GetBalanceChangeTypeDesc(changeType int) string {
	if desc, exists := BalanceChangeTypeDesc[changeType]; exists {
		return desc
	}
	return "未知类型"
}

// IsValidBalanceChangeType 验证账变类型是否有效
func IsValidBalanceChangeType(changeType int) bool {
	_, exists := BalanceChangeTypeDesc[changeType]
	return exists
}

// 常用账变类型分组
var (
	// 收入类型
	IncomeTypes = []int{BalanceChangePayout, BalanceChangeRefund, BalanceChangeRebate}

	// 支出类型（作废冲正可正可负，不归组）
	ExpenseTypes = []int{BalanceChangeBet}
)

// IsIncomeType 判断是否为收入类型
func IsIncomeType(changeType int) bool {
	for _, t := range IncomeTypes {
		if t == changeType {
			return true
		}
	}
	return false
}

// IsExpenseType 判断是否为支出类型
func IsExpenseType(changeType int) bool {
	for _, t := range ExpenseTypes {
		if t == changeType {
			return true
		}
	}
	return false
}
