package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Round 对应 rounds 表（一局一行）
// 同一 (table_id, shoe_number, round_number) 至多存在一条未作废记录。
// 结算状态采用"数值码+冗余字符串"双写
// status: 1=received 2=outcome_computed 3=payout_applied 4=wallet_notified 5=closed 6=voided
// category: 0=tie 1=banker 2=player
type Round struct {
	ID           int64  `db:"id"`
	TableID      int64  `db:"table_id"`      // 台桌ID
	ShoeNumber   int    `db:"shoe_number"`   // 靴号
	RoundNumber  int    `db:"round_number"`  // 靴内局号
	GameType     int    `db:"game_type"`     // 游戏类型
	CardList     string `db:"card_list"`     // 牌面槽位原始数据(JSON)
	BankerPoint  int    `db:"banker_point"`  // 庄点数
	PlayerPoint  int    `db:"player_point"`  // 闲点数
	BankerPair   int8   `db:"banker_pair"`   // 庄对: 0/1
	PlayerPair   int8   `db:"player_pair"`   // 闲对: 0/1
	LuckyTotal   int    `db:"lucky_total"`   // 幸运6计点和（未取模）
	LuckySize    int    `db:"lucky_size"`    // 幸运6达成张数: 2/3
	Dragon7      int8   `db:"dragon7"`       // 龙7: 0/1
	Panda8       int8   `db:"panda8"`        // 熊8: 0/1
	Category     int8   `db:"category"`      // 大结果
	CategoryStr  string `db:"category_str"`  // 大结果冗余字符串
	Status       int8   `db:"status"`        // 结算状态码
	StatusStr    string `db:"status_str"`    // 结算状态冗余字符串
	IsSettled    int8   `db:"is_settled"`    // 是否已派彩: 0/1（防重复结算）
	TraceID      string `db:"trace_id"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

const roundColumns = `id, table_id, shoe_number, round_number, game_type, card_list,
	banker_point, player_point, banker_pair, player_pair, lucky_total, lucky_size,
	dragon7, panda8, category, category_str, status, status_str, is_settled,
	trace_id, created_at, updated_at`

// RoundNo 对外局号，形如 T3-S2-R15
func (r *Round) RoundNo() string {
	return RoundNo(r.TableID, r.ShoeNumber, r.RoundNumber)
}

// RoundNo 由三元组拼接对外局号
func RoundNo(tableID int64, shoe, round int) string {
	return fmt.Sprintf("T%d-S%d-R%d", tableID, shoe, round)
}

// Insert 插入一局
func (r *Round) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	r.CreatedAt = now
	r.UpdatedAt = now

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := `INSERT INTO rounds (table_id, shoe_number, round_number, game_type, card_list,
		banker_point, player_point, banker_pair, player_pair, lucky_total, lucky_size,
		dragon7, panda8, category, category_str, status, status_str, is_settled,
		trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := exec.ExecContext(ctx, sqlStr,
		r.TableID, r.ShoeNumber, r.RoundNumber, r.GameType, r.CardList,
		r.BankerPoint, r.PlayerPoint, r.BankerPair, r.PlayerPair, r.LuckyTotal, r.LuckySize,
		r.Dragon7, r.Panda8, r.Category, r.CategoryStr, r.Status, r.StatusStr, r.IsSettled,
		r.TraceID, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	r.ID = id
	return nil
}

// GetActiveRound 查询未作废的一局（用于重复提交检查），在事务中加锁
func GetActiveRound(ctx context.Context, exec sqlx.ExtContext, tableID int64, shoe, round int) (*Round, error) {
	sqlStr := "SELECT " + roundColumns + ` FROM rounds
		WHERE table_id = ? AND shoe_number = ? AND round_number = ? AND status != 6
		LIMIT 1 FOR UPDATE`

	var r Round
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, tableID, shoe, round); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, err
	}
	return &r, nil
}

// GetRoundByID 按主键查询（不加锁）
func GetRoundByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*Round, error) {
	sqlStr := "SELECT " + roundColumns + " FROM rounds WHERE id = ?"
	var r Round
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, id); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRoundStatusForUpdate 在事务中按主键加锁并返回 (status, is_settled)
func GetRoundStatusForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (int8, int8, error) {
	sqlStr := "SELECT status, is_settled FROM rounds WHERE id = ? FOR UPDATE"

	type result struct {
		Status    int8 `db:"status"`
		IsSettled int8 `db:"is_settled"`
	}

	var r result
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, id); err != nil {
		return 0, 0, err
	}
	return r.Status, r.IsSettled, nil
}

// UpdateRoundStatus 更新结算状态（数值码+字符串双写）
func UpdateRoundStatus(ctx context.Context, exec sqlx.ExtContext, id int64, status int8, statusStr string) error {
	now := time.Now().UnixMilli()

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := "UPDATE rounds SET status = ?, status_str = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, status, statusStr, now, id)
	return err
}

// UpdateRoundOutcome 将开牌计算结果写入已开局的行（received -> outcome_computed）
func UpdateRoundOutcome(ctx context.Context, exec sqlx.ExtContext, r *Round) error {
	now := time.Now().UnixMilli()
	r.UpdatedAt = now

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := `UPDATE rounds SET card_list = ?, banker_point = ?, player_point = ?,
		banker_pair = ?, player_pair = ?, lucky_total = ?, lucky_size = ?,
		dragon7 = ?, panda8 = ?, category = ?, category_str = ?,
		status = ?, status_str = ?, trace_id = ?, updated_at = ?
		WHERE id = ?`
	_, err := exec.ExecContext(ctx, sqlStr,
		r.CardList, r.BankerPoint, r.PlayerPoint,
		r.BankerPair, r.PlayerPair, r.LuckyTotal, r.LuckySize,
		r.Dragon7, r.Panda8, r.Category, r.CategoryStr,
		r.Status, r.StatusStr, r.TraceID, r.UpdatedAt, r.ID)
	return err
}

// MarkRoundSettled 标记已派彩（is_settled=1 且状态推进到 payout_applied）
func MarkRoundSettled(ctx context.Context, exec sqlx.ExtContext, id int64, status int8, statusStr string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE rounds SET is_settled = 1, status = ?, status_str = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, status, statusStr, now, id)
	return err
}

// RoundOutcomeSnapshot 推送端所需的最小字段集合
type RoundOutcomeSnapshot struct {
	ID          int64  `db:"id"`
	TableID     int64  `db:"table_id"`
	ShoeNumber  int    `db:"shoe_number"`
	RoundNumber int    `db:"round_number"`
	BankerPoint int    `db:"banker_point"`
	PlayerPoint int    `db:"player_point"`
	CategoryStr string `db:"category_str"`
	CardList    string `db:"card_list"`
	StatusStr   string `db:"status_str"`
}

// GetLatestRoundByTable 查询台桌最近一局（无锁读取）
func GetLatestRoundByTable(ctx context.Context, db *sqlx.DB, tableID int64) (*RoundOutcomeSnapshot, error) {
	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := `SELECT id, table_id, shoe_number, round_number, banker_point, player_point,
		category_str, card_list, status_str
		FROM rounds WHERE table_id = ? AND status != 6 ORDER BY id DESC LIMIT 1`
	var rs RoundOutcomeSnapshot
	if err := db.GetContext(ctx, &rs, sqlStr, tableID); err != nil {
		return nil, err
	}
	return &rs, nil
}
