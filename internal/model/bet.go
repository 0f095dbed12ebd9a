package model

import (
	"context"
	"time"

	"bjl-server/common"

	goqu "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

// Bet 对应 bets 表（一注一行）
// 说明：金额为非负；状态采用数值枚举（从1开始）
// bet_status: 1=创建 2=成功 3=失败
// settle_status: 1=待结算 2=已结算 3=已作废
// is_exempt: 0=标准 1=免佣（仅对庄注生效）
type Bet struct {
	BillNo         string  `db:"bill_no"`          // 注单号(主键)
	RoundID        int64   `db:"round_id"`         // 局ID（rounds 主键）
	TableID        int64   `db:"table_id"`         // 台桌ID
	GameType       int     `db:"game_type"`        // 游戏类型
	UserID         int64   `db:"user_id"`          // 用户ID（内部ID）
	PlatformID     int8    `db:"platform_id"`      // 平台ID
	PlatformUserID string  `db:"platform_user_id"` // 平台用户ID
	UserName       string  `db:"user_name"`        // 用户名
	WagerType      int     `db:"wager_type"`       // 玩法编码
	BetAmount      float64 `db:"bet_amount"`       // 下注金额(非负)
	IsExempt       int8    `db:"is_exempt"`        // 免佣标记
	BetStatus      int8    `db:"bet_status"`       // 下注状态
	BetTime        int64   `db:"bet_time"`         // 下注时间（毫秒戳由调用方维护）
	SettleStatus   int8    `db:"settle_status"`    // 结算状态
	WinAmount      float64 `db:"win_amount"`       // 派彩金额（赢=本金+奖金，退回=本金，输=0）
	DeltaAmount    float64 `db:"delta_amount"`     // 盈亏（赢为正，退回为0，输为负本金）
	BetOdds        float64 `db:"bet_odds"`         // 实际适用赔率
	Currency       string  `db:"currency"`         // 币种
	IdempotencyKey string  `db:"idempotency_key"`  // 幂等键
	TraceID        string  `db:"trace_id"`         // 链路追踪ID
	CreatedAt      int64   `db:"created_at"`       // 创建时间
	UpdatedAt      int64   `db:"updated_at"`       // 更新时间
}

// Bet settle_status 枚举
const (
	BetSettlePending int8 = 1
	BetSettleDone    int8 = 2
	BetSettleVoided  int8 = 3
)

// Insert 插入一条 Bet 记录
func (b *Bet) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	bt := b.BetTime
	if bt == 0 {
		bt = now
	}

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := `INSERT INTO bets (bill_no, round_id, table_id, game_type, user_id, platform_id, platform_user_id, user_name,
		wager_type, bet_amount, is_exempt, bet_status, bet_time, settle_status, win_amount, delta_amount, bet_odds, currency,
		idempotency_key, trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := exec.ExecContext(ctx, sqlStr, b.BillNo, b.RoundID, b.TableID, b.GameType, b.UserID, b.PlatformID, b.PlatformUserID, b.UserName,
		b.WagerType, b.BetAmount, b.IsExempt, b.BetStatus, bt, b.SettleStatus, b.WinAmount, b.DeltaAmount, b.BetOdds, b.Currency,
		b.IdempotencyKey, b.TraceID, now, now)
	return err
}

// ListBetsByRoundForUpdate 按局查询待结算注单（FOR UPDATE），需要在事务中调用。
// 只取 settle_status=1 的行，已结算/已作废的注单天然跳过，保证重投递下的幂等。
func ListBetsByRoundForUpdate(ctx context.Context, exec sqlx.ExtContext, roundID int64) ([]Bet, error) {
	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := `SELECT bill_no, round_id, table_id, user_id, platform_id, platform_user_id, user_name,
		wager_type, bet_amount, is_exempt, bet_time, settle_status, currency, trace_id
		FROM bets WHERE round_id = ? AND settle_status = 1 AND bet_status = 2 FOR UPDATE`

	var list []Bet
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, roundID); err != nil {
		return nil, err
	}
	return list, nil
}

// ListSettledBetsByRoundForUpdate 按局查询已结算注单（作废冲正路径用）
func ListSettledBetsByRoundForUpdate(ctx context.Context, exec sqlx.ExtContext, roundID int64) ([]Bet, error) {
	sqlStr := `SELECT bill_no, round_id, table_id, user_id, platform_id, platform_user_id, user_name,
		wager_type, bet_amount, is_exempt, bet_time, settle_status, win_amount, delta_amount, currency, trace_id
		FROM bets WHERE round_id = ? AND settle_status = 2 FOR UPDATE`

	var list []Bet
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, roundID); err != nil {
		return nil, err
	}
	return list, nil
}

// ListSettledBetsByRound 按局查询已结算注单（无锁读取，通知/洗码路径用）
func ListSettledBetsByRound(ctx context.Context, exec sqlx.ExtContext, roundID int64) ([]Bet, error) {
	sqlStr := `SELECT bill_no, round_id, table_id, user_id, platform_id, platform_user_id, user_name,
		wager_type, bet_amount, is_exempt, bet_time, settle_status, win_amount, delta_amount, currency, trace_id
		FROM bets WHERE round_id = ? AND settle_status = 2`

	var list []Bet
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, roundID); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateBetSettlement 写入派彩结果并推进结算状态。
// WHERE 带 settle_status=1 条件：已结算的行不会被二次改写。
func UpdateBetSettlement(ctx context.Context, exec sqlx.ExtContext, billNo string, winAmount, deltaAmount, odds float64, settleStatus int8) (int64, error) {
	now := time.Now().UnixMilli()

	sqlStr := `UPDATE bets SET win_amount = ?, delta_amount = ?, bet_odds = ?, settle_status = ?, updated_at = ?
		WHERE bill_no = ? AND settle_status = 1`
	result, err := exec.ExecContext(ctx, sqlStr, winAmount, deltaAmount, odds, settleStatus, now, billNo)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// MarkBetVoided 注单作废
func MarkBetVoided(ctx context.Context, exec sqlx.ExtContext, billNo string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE bets SET settle_status = ?, updated_at = ? WHERE bill_no = ?"
	_, err := exec.ExecContext(ctx, sqlStr, BetSettleVoided, now, billNo)
	return err
}

// BetRecord 投注记录（用于查询接口）
type BetRecord struct {
	BillNo       string  `db:"bill_no" json:"bill_no"`             // 注单号
	RoundID      int64   `db:"round_id" json:"round_id"`           // 局ID
	TableID      int64   `db:"table_id" json:"table_id"`           // 台桌ID
	WagerType    int     `db:"wager_type" json:"wager_type"`       // 玩法编码
	BetAmount    float64 `db:"bet_amount" json:"bet_amount"`       // 投注金额
	IsExempt     int8    `db:"is_exempt" json:"is_exempt"`         // 免佣标记
	BetStatus    int8    `db:"bet_status" json:"bet_status"`       // 下注状态
	SettleStatus int8    `db:"settle_status" json:"settle_status"` // 结算状态
	WinAmount    float64 `db:"win_amount" json:"win_amount"`       // 派彩金额
	DeltaAmount  float64 `db:"delta_amount" json:"delta_amount"`   // 盈亏
	BetOdds      float64 `db:"bet_odds" json:"bet_odds"`           // 赔率
	BetTime      int64   `db:"bet_time" json:"bet_time"`           // 投注时间（毫秒时间戳）
	CreatedAt    int64   `db:"created_at" json:"created_at"`       // 创建时间（毫秒时间戳）
	UpdatedAt    int64   `db:"updated_at" json:"updated_at"`       // 更新时间（毫秒时间戳）
}

// ListUserBets 查询用户的投注记录（按平台用户ID查询）
// roundID 为 0 则查询所有局。查询条件动态，走 goqu 构造。
func ListUserBets(ctx context.Context, db *sqlx.DB, platformID int8, platformUserID string, roundID int64, limit int) ([]BetRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100 // 最多返回 100 条
	}

	ex := []exp.Expression{
		goqu.C("platform_id").Eq(platformID),
		goqu.C("platform_user_id").Eq(platformUserID),
	}
	if roundID != 0 {
		ex = append(ex, goqu.C("round_id").Eq(roundID))
	}

	var records []BetRecord
	err := common.SelectAllCtx(ctx, &records, common.QueryArg{
		Db:     db,
		Table:  "bets",
		Fields: common.EnumFields(BetRecord{}),
		Ex:     ex,
		Order:  []exp.OrderedExpression{goqu.C("bet_time").Desc()},
		Limit:  uint(limit),
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}
