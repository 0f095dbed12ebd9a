package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// SettlementLog 结算日志表（防止重复结算）
// round_id 上有唯一索引，第二次结算写入会撞唯一键
type SettlementLog struct {
	ID          int64   `db:"id"`           // 自增ID
	RoundID     int64   `db:"round_id"`     // 局ID
	RoundNo     string  `db:"round_no"`     // 对外局号 T{table}-S{shoe}-R{round}
	CardList    string  `db:"card_list"`    // 牌面信息
	Category    string  `db:"category"`     // 大结果: banker|player|tie
	TotalBets   int     `db:"total_bets"`   // 结算注单总数
	TotalPayout float64 `db:"total_payout"` // 总派彩金额
	Operator    string  `db:"operator"`     // 操作人
	TraceID     string  `db:"trace_id"`     // 链路追踪ID
	CreatedAt   int64   `db:"created_at"`   // 创建时间（13位毫秒时间戳）
}

// CreateSettlementLog 创建结算日志（利用唯一索引防止重复结算）
// 如果返回唯一键冲突错误，说明该局已经结算过
func CreateSettlementLog(ctx context.Context, exec sqlx.ExtContext, log *SettlementLog) error {
	now := time.Now().UnixMilli()
	log.CreatedAt = now

	sqlStr := `INSERT INTO settlement_log (round_id, round_no, card_list, category, total_bets, total_payout, operator, trace_id, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := exec.ExecContext(ctx, sqlStr,
		log.RoundID, log.RoundNo, log.CardList, log.Category, log.TotalBets, log.TotalPayout, log.Operator, log.TraceID, log.CreatedAt)
	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	log.ID = id

	return nil
}

// UpdateSettlementStats 回填结算统计（注单数与总派彩）
func UpdateSettlementStats(ctx context.Context, exec sqlx.ExtContext, roundID int64, totalBets int, totalPayout float64) error {
	sqlStr := "UPDATE settlement_log SET total_bets = ?, total_payout = ? WHERE round_id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, totalBets, totalPayout, roundID)
	return err
}

// GetSettlementLog 查询结算日志
func GetSettlementLog(ctx context.Context, db *sqlx.DB, roundID int64) (*SettlementLog, error) {
	sqlStr := `SELECT id, round_id, round_no, card_list, category, total_bets, total_payout, operator, trace_id, created_at
	           FROM settlement_log WHERE round_id = ? LIMIT 1`

	var log SettlementLog
	if err := db.GetContext(ctx, &log, sqlStr, roundID); err != nil {
		return nil, err
	}

	return &log, nil
}
