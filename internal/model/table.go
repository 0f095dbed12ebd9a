package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// GameTable 对应 game_tables 表（台桌）
// run_state: betting / dealing / shuffling（字符串快照，与状态机一致）
type GameTable struct {
	ID           int64  `db:"id"`            // 台桌ID(主键)
	Title        string `db:"title"`         // 台桌名称
	GameType     int    `db:"game_type"`     // 游戏类型
	RunState     string `db:"run_state"`     // 运行状态
	ShoeNumber   int    `db:"shoe_number"`   // 当前靴号
	RoundNumber  int    `db:"round_number"`  // 靴内当前局号
	CountdownSec int    `db:"countdown_sec"` // 下注倒计时时长（秒）
	Status       int8   `db:"status"`        // 1=启用 2=停用
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

const tableColumns = "id, title, game_type, run_state, shoe_number, round_number, countdown_sec, status, created_at, updated_at"

// GetTable 按ID查询台桌（不加锁）
func GetTable(ctx context.Context, db *sqlx.DB, id int64) (*GameTable, error) {
	sqlStr := "SELECT " + tableColumns + " FROM game_tables WHERE id = ? LIMIT 1"
	var t GameTable
	if err := db.GetContext(ctx, &t, sqlStr, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTableForUpdate 按ID加锁查询（FOR UPDATE），必须在事务中调用。
// 靴号/局号推进与运行状态翻转都在这把行锁之内。
func GetTableForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*GameTable, error) {
	sqlStr := "SELECT " + tableColumns + " FROM game_tables WHERE id = ? FOR UPDATE"
	var t GameTable
	if err := sqlx.GetContext(ctx, exec, &t, sqlStr, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTableRunState 更新运行状态
func UpdateTableRunState(ctx context.Context, exec sqlx.ExtContext, id int64, runState string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE game_tables SET run_state = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, runState, now, id)
	return err
}

// AdvanceTableRound 推进靴号/局号计数
func AdvanceTableRound(ctx context.Context, exec sqlx.ExtContext, id int64, shoe, round int) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE game_tables SET shoe_number = ?, round_number = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, shoe, round, now, id)
	return err
}
