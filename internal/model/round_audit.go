package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// RoundAudit 对应 round_audit 表（结算状态机审计）
// prev_state/next_state 使用字符串快照，便于直观查询
type RoundAudit struct {
	ID int64 `db:"id"`
	// 局ID
	RoundID int64 `db:"round_id"`
	// 台桌ID
	TableID int64 `db:"table_id"`
	// 事件（outcome_computed / payout_applied / wallet_notified / round_closed / round_voided）
	Event     string `db:"event"`
	PrevState string `db:"prev_state"`
	NextState string `db:"next_state"`
	Operator  string `db:"operator"`
	Source    string `db:"source"`
	Payload   string `db:"payload"`
	TraceID   string `db:"trace_id"`
	CreatedAt int64  `db:"created_at"`
}

// Insert
func (a *RoundAudit) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	sqlStr := "INSERT INTO round_audit (round_id, table_id, event, prev_state, next_state, operator, source, payload, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{a.RoundID, a.TableID, a.Event, a.PrevState, a.NextState, a.Operator, a.Source, a.Payload, a.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}
