package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// ReconDeadLetter 对应 recon_dead_letter 表
// 重试耗尽或致命失败的对账任务落库于此，等待人工处理，绝不静默丢弃。
type ReconDeadLetter struct {
	ID        int64  `db:"id"`
	TaskKind  string `db:"task_kind"`  // 任务类型: settle / wallet_notify / rebate / ...
	TaskKey   string `db:"task_key"`   // 任务业务键（局号/关联ID）
	Payload   string `db:"payload"`    // 任务载荷(JSON字符串)
	Attempts  int    `db:"attempts"`   // 已尝试次数
	LastError string `db:"last_error"` // 最后一次错误
	Reason    string `db:"reason"`     // exhausted=重试耗尽 fatal=致命错误
	TraceID   string `db:"trace_id"`
	CreatedAt int64  `db:"created_at"`
}

// Insert 落一条死信记录
func (d *ReconDeadLetter) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	d.CreatedAt = now

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := `INSERT INTO recon_dead_letter (task_kind, task_key, payload, attempts, last_error, reason, trace_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := exec.ExecContext(ctx, sqlStr,
		d.TaskKind, d.TaskKey, d.Payload, d.Attempts, d.LastError, d.Reason, d.TraceID, now)
	return err
}
