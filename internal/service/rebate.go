package service

import (
	"context"

	"bjl-server/common"
	"bjl-server/common/logger"
	"bjl-server/internal/config"
	"bjl-server/internal/game"
	infmysql "bjl-server/internal/infra/mysql"
	"bjl-server/internal/model"
	"bjl-server/internal/queue"

	decimal "github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 默认洗码费比例（输家非免佣注单按本金计提）
var defaultRebateRate = decimal.RequireFromString("0.008")

// rebateRate 读取配置的洗码费比例，非法或缺省时退默认值
func rebateRate() decimal.Decimal {
	cfg := config.Get()
	if cfg == nil || cfg.Game.RebateRate == "" {
		return defaultRebateRate
	}
	rate, err := decimal.NewFromString(cfg.Game.RebateRate)
	if err != nil || rate.IsNegative() {
		logger.Warn("invalid rebate_rate config, fallback to default",
			zap.String("rebate_rate", cfg.Game.RebateRate))
		return defaultRebateRate
	}
	return rate
}

// HandleRoundRebate 洗码费计提任务：
// 一局结算后，对输家（非免佣、非和注）按本金比例累计洗码费。
// 幂等靠账本（同一注单 rebate 类型只允许一条）。
func HandleRoundRebate(ctx context.Context, task *queue.Task) (queue.Result, error) {
	var p settlePayload
	if err := common.JsonUnmarshal(task.Payload, &p); err != nil {
		return queue.Fatal, err
	}

	rate := rebateRate()
	if rate.IsZero() {
		return queue.Done, nil
	}

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return queue.Retry, err
	}
	defer func() { _ = tx.Rollback() }()

	round, err := model.GetRoundByID(ctx, tx, p.RoundID)
	if err != nil {
		return queue.Retry, err
	}

	bets, err := model.ListSettledBetsByRound(ctx, tx, round.ID)
	if err != nil {
		return queue.Retry, err
	}

	granted := 0
	for _, b := range bets {
		// 只对输家计提；和注与免佣注单不参与
		if b.DeltaAmount >= 0 || b.IsExempt == 1 || game.WagerType(b.WagerType) == game.WagerTie {
			continue
		}

		cnt, err := model.CountLedgerByBill(ctx, tx, b.BillNo, model.LedgerBizRebate)
		if err != nil {
			return queue.Retry, err
		}
		if cnt > 0 {
			continue
		}

		user, err := model.GetCustomerForUpdate(ctx, tx, b.UserID)
		if err != nil {
			return queue.Retry, err
		}

		stake := decimal.NewFromFloat(b.BetAmount)
		amount := stake.Mul(rate).Round(2)
		if amount.IsZero() {
			continue
		}

		if err := model.AddCustomerRebate(ctx, tx, b.UserID, amount.InexactFloat64()); err != nil {
			return queue.Retry, err
		}

		before := decimal.NewFromFloat(user.RebateBalance)
		entry := &model.LedgerEntry{
			UserID:        b.UserID,
			BizType:       model.LedgerBizRebate,
			DeltaAmount:   amount.InexactFloat64(),
			BeforeAmount:  before.InexactFloat64(),
			AfterAmount:   before.Add(amount).Round(2).InexactFloat64(),
			Currency:      b.Currency,
			BillNo:        b.BillNo,
			RoundID:       round.ID,
			CorrelationID: round.RoundNo(),
			Remark:        "rebate accrual",
			TraceID:       task.TraceID,
		}
		if err := entry.Insert(ctx, tx); err != nil {
			return queue.Retry, err
		}
		granted++
	}

	if err := tx.Commit(); err != nil {
		return queue.Retry, err
	}

	if granted > 0 {
		logger.Info("rebate granted",
			zap.String("round_no", round.RoundNo()),
			zap.Int("bets", granted),
			zap.String("rate", rate.String()),
			zap.String("trace_id", task.TraceID))
	}
	return queue.Done, nil
}
