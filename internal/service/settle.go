package service

import (
	"context"
	"time"

	"bjl-server/common"
	"bjl-server/common/logger"
	"bjl-server/internal/game"
	infmysql "bjl-server/internal/infra/mysql"
	infrds "bjl-server/internal/infra/redis"
	"bjl-server/internal/model"
	"bjl-server/internal/queue"
	"bjl-server/internal/state"

	decimal "github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 用户派彩缓存 TTL：覆盖推送端的展示窗口即可
const payoutCacheTTL = 10 * time.Second

// settlePayload 派彩任务载荷
type settlePayload struct {
	RoundID int64 `json:"round_id"`
}

// Settler 派彩结算执行器（队列 Handler）。
// 同一局的重投递靠三层幂等吸收：is_settled 标记、settlement_log 唯一键、
// 注单更新的 settle_status=1 条件。
type Settler struct {
	q *queue.Queue
}

func NewSettler(q *queue.Queue) *Settler { return &Settler{q: q} }

// HandleRoundSettle 结算一局：派彩入账、账本、结算日志，全部在一个事务内。
// 成功后投递钱包通知与洗码任务。
func (s *Settler) HandleRoundSettle(ctx context.Context, task *queue.Task) (queue.Result, error) {
	var p settlePayload
	if err := common.JsonUnmarshal(task.Payload, &p); err != nil {
		return queue.Fatal, err
	}

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return queue.Retry, err
	}
	defer func() { _ = tx.Rollback() }()

	// 锁行并检查结算状态
	statusCode, isSettled, err := model.GetRoundStatusForUpdate(ctx, tx, p.RoundID)
	if err != nil {
		return queue.Retry, err
	}
	if isSettled == 1 {
		logger.Info("round already settled, skip",
			zap.Int64("round_id", p.RoundID),
			zap.String("trace_id", task.TraceID))
		return queue.Done, nil
	}
	switch roundCodeToState(statusCode) {
	case state.RoundVoided:
		// 局被作废，派彩任务自然终止
		return queue.Done, nil
	case state.RoundOutcomeDone:
		// 正常路径
	default:
		logger.Error("round in unexpected state for settlement",
			zap.Int64("round_id", p.RoundID),
			zap.String("status", roundCodeToState(statusCode)),
			zap.String("trace_id", task.TraceID))
		return queue.Fatal, ErrInvalidRoundState
	}

	round, err := model.GetRoundByID(ctx, tx, p.RoundID)
	if err != nil {
		return queue.Retry, err
	}
	roundNo := round.RoundNo()

	// 结算日志唯一键：第二层防重复结算
	slog := &model.SettlementLog{
		RoundID:  round.ID,
		RoundNo:  roundNo,
		CardList: round.CardList,
		Category: round.CategoryStr,
		Operator: "system",
		TraceID:  task.TraceID,
	}
	if err := model.CreateSettlementLog(ctx, tx, slog); err != nil {
		if model.IsDuplicateKeyError(err) {
			logger.Info("settlement log exists, skip",
				zap.Int64("round_id", p.RoundID),
				zap.String("trace_id", task.TraceID))
			return queue.Done, nil
		}
		return queue.Retry, err
	}

	// 从落库牌面重建结果，派彩与开牌计算共用同一套纯函数
	placements, err := decodeCardList(round.CardList)
	if err != nil {
		return queue.Fatal, err
	}
	out, err := game.ComputeOutcome(placements)
	if err != nil {
		return queue.Fatal, err
	}

	bets, err := model.ListBetsByRoundForUpdate(ctx, tx, round.ID)
	if err != nil {
		return queue.Retry, err
	}
	logger.Info("settling round",
		zap.String("round_no", roundNo),
		zap.Int("bets", len(bets)),
		zap.String("trace_id", task.TraceID))

	// 第一步：逐注结算，写入派彩结果
	type settledBet struct {
		bet model.Bet
		res game.PayoutResult
	}
	settled := make([]settledBet, 0, len(bets))
	totalPayout := decimal.Zero

	for i := range bets {
		b := bets[i]
		stake := decimal.NewFromFloat(b.BetAmount)
		res, err := game.ResolvePayout(out, game.WagerType(b.WagerType), stake, b.IsExempt == 1)
		if err != nil {
			// 未知玩法属配置缺陷：整局结算终止并落死信，绝不默认判输
			logger.Error("unknown wager type in settlement",
				zap.String("bill_no", b.BillNo),
				zap.Int("wager_type", b.WagerType),
				zap.String("trace_id", task.TraceID))
			return queue.Fatal, err
		}

		affected, err := model.UpdateBetSettlement(ctx, tx, b.BillNo,
			res.WinAmount.InexactFloat64(), res.Delta.InexactFloat64(),
			res.Odds.InexactFloat64(), model.BetSettleDone)
		if err != nil {
			return queue.Retry, err
		}
		if affected == 0 {
			// 并发下已被结算，跳过入账
			continue
		}
		settled = append(settled, settledBet{bet: b, res: res})
		totalPayout = totalPayout.Add(res.WinAmount)
	}

	// 第二步：按用户分组入账，同一用户只加一次行锁
	byUser := make(map[int64][]settledBet)
	for _, sb := range settled {
		if sb.res.WinAmount.IsPositive() {
			byUser[sb.bet.UserID] = append(byUser[sb.bet.UserID], sb)
		}
	}

	for userID, list := range byUser {
		user, err := model.GetCustomerForUpdate(ctx, tx, userID)
		if err != nil {
			return queue.Retry, err
		}

		balance := decimal.NewFromFloat(user.Balance)
		for _, sb := range list {
			before := balance
			balance = balance.Add(sb.res.WinAmount).Round(2)

			bizType := model.LedgerBizPayout
			remark := "settle payout"
			if sb.res.Refund {
				bizType = model.LedgerBizRefund
				remark = "tie refund"
			}
			entry := &model.LedgerEntry{
				UserID:        userID,
				BizType:       bizType,
				DeltaAmount:   sb.res.WinAmount.InexactFloat64(),
				BeforeAmount:  before.InexactFloat64(),
				AfterAmount:   balance.InexactFloat64(),
				Currency:      sb.bet.Currency,
				BillNo:        sb.bet.BillNo,
				RoundID:       round.ID,
				CorrelationID: roundNo,
				Remark:        remark,
				TraceID:       task.TraceID,
			}
			if err := entry.Insert(ctx, tx); err != nil {
				return queue.Retry, err
			}
		}

		if err := model.UpdateCustomerBalance(ctx, tx, userID, balance.InexactFloat64()); err != nil {
			return queue.Retry, err
		}
	}

	// 第三步：回填统计、标记已派彩、审计
	if err := model.UpdateSettlementStats(ctx, tx, round.ID, len(settled), totalPayout.InexactFloat64()); err != nil {
		return queue.Retry, err
	}
	if err := model.MarkRoundSettled(ctx, tx, round.ID,
		roundStateToCode(state.RoundPayoutApplied), state.RoundPayoutApplied); err != nil {
		return queue.Retry, err
	}
	aud := &model.RoundAudit{
		RoundID:   round.ID,
		TableID:   round.TableID,
		Event:     state.EvtPayoutApplied,
		PrevState: state.RoundOutcomeDone,
		NextState: state.RoundPayoutApplied,
		Operator:  "system",
		Source:    "queue",
		Payload: toJSON(map[string]any{
			"total_bets":   len(settled),
			"total_payout": totalPayout.InexactFloat64(),
		}),
		TraceID: task.TraceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return queue.Retry, err
	}

	if err := tx.Commit(); err != nil {
		return queue.Retry, err
	}

	// 推送端派彩缓存（降级容错）
	if r := infrds.Client(); r != nil {
		deltaByUser := make(map[int64]decimal.Decimal)
		winByUser := make(map[int64]decimal.Decimal)
		for _, sb := range settled {
			deltaByUser[sb.bet.UserID] = deltaByUser[sb.bet.UserID].Add(sb.res.Delta)
			winByUser[sb.bet.UserID] = winByUser[sb.bet.UserID].Add(sb.res.WinAmount)
		}
		for userID := range deltaByUser {
			val := map[string]any{
				"round_no":   roundNo,
				"user_id":    userID,
				"win_amount": winByUser[userID].StringFixed(2),
				"delta":      deltaByUser[userID].StringFixed(2),
			}
			if b, e := common.JsonMarshal(val); e == nil {
				_ = r.Set(ctx, infrds.UserPayoutKey(round.TableID, userID), b, payoutCacheTTL).Err()
			}
		}
	}

	// 后续异步任务：钱包结算通知、洗码费
	payload, _ := common.JsonMarshal(settlePayload{RoundID: round.ID})
	s.q.Enqueue(&queue.Task{Kind: TaskWalletSettle, Key: roundNo, Payload: payload, TraceID: task.TraceID})
	s.q.Enqueue(&queue.Task{Kind: TaskRoundRebate, Key: roundNo, Payload: payload, TraceID: task.TraceID})

	logger.Info("round settled",
		zap.String("round_no", roundNo),
		zap.Int("total_bets", len(settled)),
		zap.String("total_payout", totalPayout.StringFixed(2)),
		zap.String("trace_id", task.TraceID))
	return queue.Done, nil
}
