package service

import (
	"context"
	"time"

	"bjl-server/common"
	"bjl-server/common/logger"
	infmysql "bjl-server/internal/infra/mysql"
	"bjl-server/internal/metrics"
	"bjl-server/internal/model"
	"bjl-server/internal/queue"
	"bjl-server/internal/state"
	"bjl-server/internal/wallet"

	decimal "github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// debitPayload 钱包扣款通知任务载荷
type debitPayload struct {
	BillNo        string `json:"bill_no"`
	RoundNo       string `json:"round_no"`
	TableID       int64  `json:"table_id"`
	UserName      string `json:"user_name"`
	CorrelationID string `json:"correlation_id"`
	Amount        string `json:"amount"` // 负数=扣款
}

// Reconciler 钱包对账执行器：扣款/结算通知的队列 Handler 集合。
// 重试与死信策略由队列统一承担，这里只负责单次执行与结果分类。
type Reconciler struct {
	client *wallet.Client
}

func NewReconciler(client *wallet.Client) *Reconciler {
	return &Reconciler{client: client}
}

// HandleWalletDebit 下注扣款通知
func (rc *Reconciler) HandleWalletDebit(ctx context.Context, task *queue.Task) (queue.Result, error) {
	var p debitPayload
	if err := common.JsonUnmarshal(task.Payload, &p); err != nil {
		return queue.Fatal, err
	}

	resp, err := rc.client.Debit(&wallet.DebitRequest{
		UserName:              p.UserName,
		TransactionID:         p.CorrelationID,
		ExternalTransactionID: p.BillNo,
		Amount:                p.Amount,
		RoundID:               p.RoundNo,
		TableID:               p.TableID,
		Timestamp:             time.Now().UnixMilli(),
	})

	res := wallet.Classify(resp, err)
	metrics.RecordWalletNotify(wallet.PurposeBet, resultLabel(res))

	// 重复交易说明上一次投递已经生效
	if res == queue.Fatal && resp != nil && resp.ErrorCode == "DUPLICATE_TRANSACTION" {
		logger.Info("wallet debit already applied",
			zap.String("bill_no", p.BillNo),
			zap.String("trace_id", task.TraceID))
		return queue.Done, nil
	}
	if res != queue.Done {
		logger.Warn("wallet debit notify failed",
			zap.String("bill_no", p.BillNo),
			zap.Int("attempts", task.Attempts),
			zap.Error(err),
			zap.String("trace_id", task.TraceID))
	}
	return res, err
}

// HandleWalletSettle 结算通知：按用户聚合一局的注单后逐个通知。
// 单用户瞬时失败时整个任务 Retry，已成功的用户在重投时靠钱包侧
// DUPLICATE_TRANSACTION 吸收。全部送达后推进局状态到 closed。
func (rc *Reconciler) HandleWalletSettle(ctx context.Context, task *queue.Task) (queue.Result, error) {
	var p settlePayload
	if err := common.JsonUnmarshal(task.Payload, &p); err != nil {
		return queue.Fatal, err
	}

	db := infmysql.SQLX()
	round, err := model.GetRoundByID(ctx, db, p.RoundID)
	if err != nil {
		return queue.Retry, err
	}
	roundNo := round.RoundNo()

	switch roundCodeToState(round.Status) {
	case state.RoundWalletNotified, state.RoundClosed:
		return queue.Done, nil
	case state.RoundVoided:
		return queue.Done, nil
	case state.RoundPayoutApplied:
		// 正常路径
	default:
		return queue.Fatal, ErrInvalidRoundState
	}

	bets, err := model.ListSettledBetsByRound(ctx, db, round.ID)
	if err != nil {
		return queue.Retry, err
	}

	// 按用户聚合
	type userSummary struct {
		userName  string
		betAmount decimal.Decimal
		winAmount decimal.Decimal
		delta     decimal.Decimal
		betTime   int64
	}
	byUser := make(map[int64]*userSummary)
	for _, b := range bets {
		us, ok := byUser[b.UserID]
		if !ok {
			us = &userSummary{userName: b.UserName, betTime: b.BetTime}
			byUser[b.UserID] = us
		}
		us.betAmount = us.betAmount.Add(decimal.NewFromFloat(b.BetAmount))
		us.winAmount = us.winAmount.Add(decimal.NewFromFloat(b.WinAmount))
		us.delta = us.delta.Add(decimal.NewFromFloat(b.DeltaAmount))
		if b.BetTime > 0 && b.BetTime < us.betTime {
			us.betTime = b.BetTime
		}
	}

	settledTime := time.Now().UnixMilli()
	for userID, us := range byUser {
		resultType := "WIN"
		if us.delta.IsNegative() {
			resultType = "LOSE"
		}
		resp, err := rc.client.Settle(&wallet.SettleRequest{
			UserName:              us.userName,
			TransactionID:         wallet.CorrelationID(wallet.PurposeSettle, round.TableID, round.ShoeNumber, round.RoundNumber, userID),
			RoundID:               roundNo,
			ExternalTransactionID: roundNo,
			BetAmount:             us.betAmount.StringFixed(2),
			WinAmount:             us.winAmount.StringFixed(2),
			WinLossDelta:          us.delta.StringFixed(2),
			ResultType:            resultType,
			BetTime:               us.betTime,
			SettledTime:           settledTime,
		})

		res := wallet.Classify(resp, err)
		metrics.RecordWalletNotify(wallet.PurposeSettle, resultLabel(res))

		switch res {
		case queue.Done:
			continue
		case queue.Fatal:
			if resp != nil && resp.ErrorCode == "DUPLICATE_TRANSACTION" {
				continue
			}
			logger.Error("wallet settle notify terminal failure",
				zap.String("round_no", roundNo),
				zap.Int64("user_id", userID),
				zap.String("error_code", respErrorCode(resp)),
				zap.Error(err),
				zap.String("trace_id", task.TraceID))
			return queue.Fatal, err
		default:
			logger.Warn("wallet settle notify failed",
				zap.String("round_no", roundNo),
				zap.Int64("user_id", userID),
				zap.Int("attempts", task.Attempts),
				zap.Error(err),
				zap.String("trace_id", task.TraceID))
			return queue.Retry, err
		}
	}

	// 全部送达：wallet_notified -> closed
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return queue.Retry, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := model.UpdateRoundStatus(ctx, tx, round.ID,
		roundStateToCode(state.RoundWalletNotified), state.RoundWalletNotified); err != nil {
		return queue.Retry, err
	}
	if err := model.UpdateRoundStatus(ctx, tx, round.ID,
		roundStateToCode(state.RoundClosed), state.RoundClosed); err != nil {
		return queue.Retry, err
	}
	aud := &model.RoundAudit{
		RoundID:   round.ID,
		TableID:   round.TableID,
		Event:     state.EvtRoundClosed,
		PrevState: state.RoundPayoutApplied,
		NextState: state.RoundClosed,
		Operator:  "system",
		Source:    "queue",
		Payload:   toJSON(map[string]any{"notified_users": len(byUser)}),
		TraceID:   task.TraceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return queue.Retry, err
	}
	if err := tx.Commit(); err != nil {
		return queue.Retry, err
	}

	logger.Info("round closed",
		zap.String("round_no", roundNo),
		zap.Int("notified_users", len(byUser)),
		zap.String("trace_id", task.TraceID))
	return queue.Done, nil
}

// voidPayload 作废冲正通知任务载荷。作废时净额已算好，任务自包含，
// 执行时不回查数据库。
type voidPayload struct {
	RoundID     int64           `json:"round_id"`
	RoundNo     string          `json:"round_no"`
	TableID     int64           `json:"table_id"`
	ShoeNumber  int             `json:"shoe_number"`
	RoundNumber int             `json:"round_number"`
	Reason      string          `json:"reason"`
	Users       []voidUserEntry `json:"users"`
}

type voidUserEntry struct {
	UserID    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
	BetAmount string `json:"bet_amount"`
	Adjust    string `json:"adjust"` // 余额净调整（已结算的赢家可为负）
	BetTime   int64  `json:"bet_time"`
}

// HandleWalletVoid 作废冲正通知：逐用户上报净调整额。
// 关联ID用 VOID 用途生成，重投递靠钱包侧 DUPLICATE_TRANSACTION 吸收。
func (rc *Reconciler) HandleWalletVoid(ctx context.Context, task *queue.Task) (queue.Result, error) {
	var p voidPayload
	if err := common.JsonUnmarshal(task.Payload, &p); err != nil {
		return queue.Fatal, err
	}

	settledTime := time.Now().UnixMilli()
	for _, u := range p.Users {
		resp, err := rc.client.Settle(&wallet.SettleRequest{
			UserName:              u.UserName,
			TransactionID:         wallet.CorrelationID(wallet.PurposeVoid, p.TableID, p.ShoeNumber, p.RoundNumber, u.UserID),
			RoundID:               p.RoundNo,
			ExternalTransactionID: p.RoundNo,
			BetAmount:             u.BetAmount,
			WinAmount:             "0.00",
			WinLossDelta:          u.Adjust,
			ResultType:            "VOID",
			BetTime:               u.BetTime,
			SettledTime:           settledTime,
		})

		res := wallet.Classify(resp, err)
		metrics.RecordWalletNotify(wallet.PurposeVoid, resultLabel(res))

		switch res {
		case queue.Done:
			continue
		case queue.Fatal:
			if resp != nil && resp.ErrorCode == "DUPLICATE_TRANSACTION" {
				continue
			}
			logger.Error("wallet void notify terminal failure",
				zap.String("round_no", p.RoundNo),
				zap.Int64("user_id", u.UserID),
				zap.String("error_code", respErrorCode(resp)),
				zap.Error(err),
				zap.String("trace_id", task.TraceID))
			return queue.Fatal, err
		default:
			logger.Warn("wallet void notify failed",
				zap.String("round_no", p.RoundNo),
				zap.Int64("user_id", u.UserID),
				zap.Int("attempts", task.Attempts),
				zap.Error(err),
				zap.String("trace_id", task.TraceID))
			return queue.Retry, err
		}
	}

	logger.Info("round void reported to wallet",
		zap.String("round_no", p.RoundNo),
		zap.Int("notified_users", len(p.Users)),
		zap.String("trace_id", task.TraceID))
	return queue.Done, nil
}

func respErrorCode(resp *wallet.Response) string {
	if resp == nil {
		return ""
	}
	return resp.ErrorCode
}

func resultLabel(res queue.Result) string {
	switch res {
	case queue.Done:
		return "done"
	case queue.Retry:
		return "retry"
	default:
		return "fatal"
	}
}

// NewDeadLetterSink 死信落库回调：任务重试耗尽或致命失败时写入 recon_dead_letter，
// 绝不静默丢弃。落库失败只能高等级日志兜底。
func NewDeadLetterSink() queue.DeadLetterFunc {
	return func(ctx context.Context, task *queue.Task, reason string, lastErr error) {
		metrics.RecordDeadLetter(task.Kind, reason)

		lastErrMsg := ""
		if lastErr != nil {
			lastErrMsg = lastErr.Error()
		}
		dl := &model.ReconDeadLetter{
			TaskKind:  task.Kind,
			TaskKey:   task.Key,
			Payload:   string(task.Payload),
			Attempts:  task.Attempts,
			LastError: lastErrMsg,
			Reason:    reason,
			TraceID:   task.TraceID,
		}
		if err := dl.Insert(ctx, infmysql.SQLX()); err != nil {
			logger.Error("dead letter persist failed, task dropped from queue",
				zap.String("kind", task.Kind),
				zap.String("key", task.Key),
				zap.String("reason", reason),
				zap.String("last_error", lastErrMsg),
				zap.Error(err),
				zap.String("trace_id", task.TraceID))
			return
		}
		logger.Error("task moved to dead letter",
			zap.String("kind", task.Kind),
			zap.String("key", task.Key),
			zap.String("reason", reason),
			zap.Int("attempts", task.Attempts),
			zap.String("last_error", lastErrMsg),
			zap.String("trace_id", task.TraceID))
	}
}

// instrumented 为 Handler 包一层任务指标
func instrumented(kind string, h queue.Handler) queue.Handler {
	return func(ctx context.Context, task *queue.Task) (queue.Result, error) {
		started := time.Now()
		res, err := h(ctx, task)
		metrics.RecordReconTask(kind, resultLabel(res), started)
		return res, err
	}
}

// RegisterHandlers 注册全部队列任务处理器
func RegisterHandlers(q *queue.Queue, settler *Settler, tables TableService, rc *Reconciler) {
	q.Register(TaskRoundSettle, instrumented(TaskRoundSettle, settler.HandleRoundSettle))
	q.Register(TaskWalletSettle, instrumented(TaskWalletSettle, rc.HandleWalletSettle))
	q.Register(TaskWalletDebit, instrumented(TaskWalletDebit, rc.HandleWalletDebit))
	q.Register(TaskWalletVoid, instrumented(TaskWalletVoid, rc.HandleWalletVoid))
	q.Register(TaskRoundRebate, instrumented(TaskRoundRebate, HandleRoundRebate))
	q.Register(TaskTableCountdown, instrumented(TaskTableCountdown, tables.HandleCountdown))
}
