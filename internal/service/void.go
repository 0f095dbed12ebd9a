package service

import (
	"context"
	"database/sql"

	"bjl-server/common"
	"bjl-server/common/logger"
	infmysql "bjl-server/internal/infra/mysql"
	"bjl-server/internal/model"
	"bjl-server/internal/queue"
	"bjl-server/internal/state"

	decimal "github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VoidInput 作废局入参
type VoidInput struct {
	TableID     int64
	ShoeNumber  int
	RoundNumber int
	Reason      string
	Operator    string
	TraceID     string
}

// VoidOutput 作废结果
type VoidOutput struct {
	RoundID      int64  `json:"round_id"`
	RoundNo      string `json:"round_no"`
	VoidedBets   int    `json:"voided_bets"`
	RefundAmount string `json:"refund_amount"` // 余额净调整（可为负：已派彩的赢家被收回奖金）
}

type VoidService interface {
	VoidRound(ctx context.Context, in VoidInput) (*VoidOutput, error)
}

type voidService struct {
	q *queue.Queue
}

func NewVoidService(q *queue.Queue) VoidService { return &voidService{q: q} }

// VoidRound 作废一局并冲正：
// 未结算注单退回本金；已结算注单按"退本金、收回派彩"净额调整。
// 已关闭的局不可作废。
func (s *voidService) VoidRound(ctx context.Context, in VoidInput) (*VoidOutput, error) {
	if in.TableID <= 0 || in.ShoeNumber <= 0 || in.RoundNumber <= 0 {
		return nil, ErrBadRequest
	}

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	round, err := model.GetActiveRound(ctx, tx, in.TableID, in.ShoeNumber, in.RoundNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	roundNo := round.RoundNo()
	prevState := roundCodeToState(round.Status)

	nextState, err := state.NextRoundState(prevState, state.EvtRoundVoided)
	if err != nil {
		return nil, ErrInvalidRoundState
	}

	// 待结算注单：退回本金
	pending, err := model.ListBetsByRoundForUpdate(ctx, tx, round.ID)
	if err != nil {
		return nil, err
	}
	// 已结算注单：净额 = 本金 - 已派彩
	done, err := model.ListSettledBetsByRoundForUpdate(ctx, tx, round.ID)
	if err != nil {
		return nil, err
	}

	type adjustment struct {
		bet   model.Bet
		delta decimal.Decimal
	}
	byUser := make(map[int64][]adjustment)
	for _, b := range pending {
		byUser[b.UserID] = append(byUser[b.UserID], adjustment{
			bet:   b,
			delta: decimal.NewFromFloat(b.BetAmount),
		})
	}
	for _, b := range done {
		stake := decimal.NewFromFloat(b.BetAmount)
		win := decimal.NewFromFloat(b.WinAmount)
		byUser[b.UserID] = append(byUser[b.UserID], adjustment{
			bet:   b,
			delta: stake.Sub(win),
		})
	}

	totalAdjust := decimal.Zero
	voidedBets := 0
	notify := make([]voidUserEntry, 0, len(byUser))
	for userID, adjusts := range byUser {
		user, err := model.GetCustomerForUpdate(ctx, tx, userID)
		if err != nil {
			return nil, err
		}

		userAdjust := decimal.Zero
		userStake := decimal.Zero
		betTime := adjusts[0].bet.BetTime
		balance := decimal.NewFromFloat(user.Balance)
		for _, a := range adjusts {
			before := balance
			balance = balance.Add(a.delta).Round(2)

			entry := &model.LedgerEntry{
				UserID:        userID,
				BizType:       model.LedgerBizVoid,
				DeltaAmount:   a.delta.InexactFloat64(),
				BeforeAmount:  before.InexactFloat64(),
				AfterAmount:   balance.InexactFloat64(),
				Currency:      a.bet.Currency,
				BillNo:        a.bet.BillNo,
				RoundID:       round.ID,
				CorrelationID: roundNo,
				Remark:        "round voided: " + in.Reason,
				TraceID:       in.TraceID,
			}
			if err := entry.Insert(ctx, tx); err != nil {
				return nil, err
			}
			if err := model.MarkBetVoided(ctx, tx, a.bet.BillNo); err != nil {
				return nil, err
			}
			totalAdjust = totalAdjust.Add(a.delta)
			userAdjust = userAdjust.Add(a.delta)
			userStake = userStake.Add(decimal.NewFromFloat(a.bet.BetAmount))
			if a.bet.BetTime > 0 && a.bet.BetTime < betTime {
				betTime = a.bet.BetTime
			}
			voidedBets++
		}

		if err := model.UpdateCustomerBalance(ctx, tx, userID, balance.InexactFloat64()); err != nil {
			return nil, err
		}
		notify = append(notify, voidUserEntry{
			UserID:    userID,
			UserName:  adjusts[0].bet.UserName,
			BetAmount: userStake.StringFixed(2),
			Adjust:    userAdjust.StringFixed(2),
			BetTime:   betTime,
		})
	}

	if err := model.UpdateRoundStatus(ctx, tx, round.ID, roundStateToCode(nextState), nextState); err != nil {
		return nil, err
	}

	if err := model.CreateOutbox(ctx, tx, "round_voided", roundNo, map[string]any{
		"event":    "round_voided",
		"round_id": round.ID,
		"round_no": roundNo,
		"table_id": in.TableID,
		"reason":   in.Reason,
	}); err != nil {
		return nil, err
	}

	operator := in.Operator
	if operator == "" {
		operator = "admin"
	}
	aud := &model.RoundAudit{
		RoundID:   round.ID,
		TableID:   in.TableID,
		Event:     state.EvtRoundVoided,
		PrevState: prevState,
		NextState: nextState,
		Operator:  operator,
		Source:    "api",
		Payload: toJSON(map[string]any{
			"reason":      in.Reason,
			"voided_bets": voidedBets,
			"net_adjust":  totalAdjust.StringFixed(2),
		}),
		TraceID: in.TraceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// 外部钱包冲正通知（有资金调整才通知）
	if len(notify) > 0 {
		payload, _ := common.JsonMarshal(voidPayload{
			RoundID:     round.ID,
			RoundNo:     roundNo,
			TableID:     in.TableID,
			ShoeNumber:  in.ShoeNumber,
			RoundNumber: in.RoundNumber,
			Reason:      in.Reason,
			Users:       notify,
		})
		s.q.Enqueue(&queue.Task{
			Kind:    TaskWalletVoid,
			Key:     roundNo,
			Payload: payload,
			TraceID: in.TraceID,
		})
	}

	logger.Warn("round voided",
		zap.String("round_no", roundNo),
		zap.String("prev_state", prevState),
		zap.Int("voided_bets", voidedBets),
		zap.String("net_adjust", totalAdjust.StringFixed(2)),
		zap.String("reason", in.Reason),
		zap.String("trace_id", in.TraceID))

	return &VoidOutput{
		RoundID:      round.ID,
		RoundNo:      roundNo,
		VoidedBets:   voidedBets,
		RefundAmount: totalAdjust.StringFixed(2),
	}, nil
}
