package model

import (
	"context"
	"time"

	"bjl-server/common"

	"github.com/jmoiron/sqlx"
)

// outbox 状态与重试上限
const (
	OutboxPending = int8(1)
	OutboxSent    = int8(2)
	OutboxDead    = int8(3)

	outboxMaxRetry = 10
)

// Outbox 对应 outbox 表（事务消息表）
// 与业务写在同一事务中落库，由调度器异步投递到 MQ
type Outbox struct {
	ID         int64  `db:"id"`
	Topic      string `db:"topic"`
	BizKey     string `db:"biz_key"`     // 业务键（去重/幂等用）
	Payload    string `db:"payload"`     // 消息体(JSON字符串)
	Status     int8   `db:"status"`      // 1=待发送 2=已发送 3=永久失败
	RetryCount int    `db:"retry_count"` // 投递重试次数
	LastError  string `db:"last_error"`
	CreatedAt  int64  `db:"created_at"`
	UpdatedAt  int64  `db:"updated_at"`
}

// Insert 落一条待发送消息
func (o *Outbox) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := "INSERT INTO outbox (topic, biz_key, payload, status, retry_count, last_error, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{o.Topic, o.BizKey, o.Payload, OutboxPending, 0, "", now, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// OutboxRow 调度器扫描用的轻量投影
type OutboxRow struct {
	ID      int64  `db:"id"`
	Topic   string `db:"topic"`
	BizKey  string `db:"biz_key"`
	Payload string `db:"payload"`
}

// ListOutboxPending 按插入顺序取待发送消息，重试耗尽的不再扫出
func ListOutboxPending(ctx context.Context, exec sqlx.ExtContext, limit int) ([]OutboxRow, error) {
	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := "SELECT id, topic, biz_key, payload FROM outbox WHERE status = ? AND retry_count < ? ORDER BY id ASC LIMIT ?"
	args := []interface{}{OutboxPending, outboxMaxRetry, limit}

	var list []OutboxRow
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, args...); err != nil {
		return nil, err
	}
	return list, nil
}

// MarkOutboxSent 标记投递成功
func MarkOutboxSent(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	sqlStr := "UPDATE outbox SET status = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, OutboxSent, time.Now().UnixMilli(), id)
	return err
}

// MarkOutboxFailed 记录失败并累加重试；本次为最后一次机会时直接转永久失败
func MarkOutboxFailed(ctx context.Context, exec sqlx.ExtContext, id int64, lastError string) error {
	sqlStr := "UPDATE outbox SET status = CASE WHEN retry_count >= ? THEN ? ELSE ? END, last_error = ?, retry_count = retry_count + 1, updated_at = ? WHERE id = ?"
	args := []interface{}{outboxMaxRetry - 1, OutboxDead, OutboxPending, lastError, time.Now().UnixMilli(), id}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// CreateOutbox 序列化 payload 并落一条待发送的事务消息
func CreateOutbox(ctx context.Context, exec sqlx.ExtContext, topic, bizKey string, payload any) error {
	b, err := common.JsonMarshal(payload)
	if err != nil {
		return err
	}
	o := &Outbox{Topic: topic, BizKey: bizKey, Payload: string(b)}
	return o.Insert(ctx, exec)
}
