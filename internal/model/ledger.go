package model

import (
	"context"
	"time"

	"bjl-server/common/constant"

	"github.com/jmoiron/sqlx"
)

// 账本业务类型（编码定义见 common/constant）
const (
	LedgerBizBet    = constant.BalanceChangeBet
	LedgerBizPayout = constant.BalanceChangePayout
	LedgerBizRefund = constant.BalanceChangeRefund
	LedgerBizRebate = constant.BalanceChangeRebate
	LedgerBizVoid   = constant.BalanceChangeVoid
)

// LedgerEntry 对应 wallet_ledger 表（追加式账本，只插不改）
// 余额守恒：同一用户全部 delta 之和恒等于当前余额与初始余额之差
// biz_type 数值码与字符串双写，便于直观查询
type LedgerEntry struct {
	ID            int64   `db:"id"`
	UserID        int64   `db:"user_id"`
	BizType       int     `db:"biz_type"`
	BizTypeStr    string  `db:"biz_type_str"`
	DeltaAmount   float64 `db:"delta_amount"`   // 本次变动（有符号）
	BeforeAmount  float64 `db:"before_amount"`  // 变动前余额
	AfterAmount   float64 `db:"after_amount"`   // 变动后余额
	Currency      string  `db:"currency"`
	BillNo        string  `db:"bill_no"`        // 关联注单号（可空）
	RoundID       int64   `db:"round_id"`       // 关联局ID（可空）
	CorrelationID string  `db:"correlation_id"` // 钱包对账关联ID
	Remark        string  `db:"remark"`
	TraceID       string  `db:"trace_id"`
	CreatedAt     int64   `db:"created_at"`
}

// Insert 新增一条账本记录（biz_type 数值码与字符串双写）
func (l *LedgerEntry) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	str := l.BizTypeStr
	if str == "" {
		str = constant.BalanceChangeTypeName[l.BizType]
	}

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := `INSERT INTO wallet_ledger (user_id, biz_type, biz_type_str, delta_amount, before_amount, after_amount,
		currency, bill_no, round_id, correlation_id, remark, trace_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []interface{}{l.UserID, l.BizType, str, l.DeltaAmount, l.BeforeAmount, l.AfterAmount,
		l.Currency, l.BillNo, l.RoundID, l.CorrelationID, l.Remark, l.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// CountLedgerByBill 统计某注单某业务类型的账本条数（结算幂等校验用）
func CountLedgerByBill(ctx context.Context, exec sqlx.ExtContext, billNo string, bizType int) (int, error) {
	sqlStr := "SELECT COUNT(1) FROM wallet_ledger WHERE bill_no = ? AND biz_type = ?"
	var cnt int
	if err := sqlx.GetContext(ctx, exec, &cnt, sqlStr, billNo, bizType); err != nil {
		return 0, err
	}
	return cnt, nil
}
