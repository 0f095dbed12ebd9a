package service

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"bjl-server/common"
	"bjl-server/common/constant"
	"bjl-server/common/logger"
	"bjl-server/internal/config"
	infmysql "bjl-server/internal/infra/mysql"
	infrds "bjl-server/internal/infra/redis"
	"bjl-server/internal/model"
	"bjl-server/internal/queue"
	"bjl-server/internal/state"

	"go.uber.org/zap"
)

// 倒计时缓存 TTL：值按秒滴答刷新，留 2 秒冗余防止任务抖动闪断
const countdownCacheTTL = 3 * time.Second

// StartBettingInput 开局入参
type StartBettingInput struct {
	TableID      int64
	CountdownSec int // 0 时使用台桌配置，再退配置文件默认值
	Operator     string
	TraceID      string
}

// StartBettingOutput 开局结果
type StartBettingOutput struct {
	RoundID      int64  `json:"round_id"`
	RoundNo      string `json:"round_no"`
	ShoeNumber   int    `json:"shoe_number"`
	RoundNumber  int    `json:"round_number"`
	CountdownSec int    `json:"countdown_sec"`
}

type TableService interface {
	// StartBetting 开新局并进入下注倒计时
	StartBetting(ctx context.Context, in StartBettingInput) (*StartBettingOutput, error)
	// StartShuffle 进入洗牌：换靴，靴号+1，局号清零
	StartShuffle(ctx context.Context, tableID int64, operator, traceID string) error
	// HandleCountdown 倒计时滴答任务：刷新缓存并在归零时封盘
	HandleCountdown(ctx context.Context, task *queue.Task) (queue.Result, error)
}

type tableService struct {
	q *queue.Queue
}

func NewTableService(q *queue.Queue) TableService { return &tableService{q: q} }

// countdownPayload 倒计时任务载荷
type countdownPayload struct {
	TableID   int64 `json:"table_id"`
	Remaining int   `json:"remaining"`
}

func (s *tableService) StartBetting(ctx context.Context, in StartBettingInput) (*StartBettingOutput, error) {
	if in.TableID <= 0 {
		return nil, ErrBadRequest
	}

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	table, err := model.GetTableForUpdate(ctx, tx, in.TableID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTableNotFound
		}
		return nil, err
	}
	if table.Status != constant.StatusNormal {
		return nil, ErrTableDisabled
	}

	next, err := state.NextTableState(table.RunState, state.EvtBettingOpen)
	if err != nil {
		return nil, err
	}

	shoe := table.ShoeNumber
	if shoe == 0 {
		shoe = 1
	}
	roundNumber := table.RoundNumber + 1
	roundNo := model.RoundNo(in.TableID, shoe, roundNumber)

	countdown := in.CountdownSec
	if countdown <= 0 {
		countdown = table.CountdownSec
	}
	if countdown <= 0 {
		if cfg := config.Get(); cfg != nil && cfg.Game.CountdownSec > 0 {
			countdown = cfg.Game.CountdownSec
		} else {
			countdown = 30
		}
	}

	// 新局占位：received 状态，注单挂在这一行上
	round := &model.Round{
		TableID:     in.TableID,
		ShoeNumber:  shoe,
		RoundNumber: roundNumber,
		GameType:    table.GameType,
		CardList:    "{}",
		Status:      roundStateToCode(state.RoundReceived),
		StatusStr:   state.RoundReceived,
		TraceID:     in.TraceID,
	}
	if err := round.Insert(ctx, tx); err != nil {
		if model.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateRound
		}
		return nil, err
	}

	if err := model.AdvanceTableRound(ctx, tx, in.TableID, shoe, roundNumber); err != nil {
		return nil, err
	}
	if err := model.UpdateTableRunState(ctx, tx, in.TableID, next); err != nil {
		return nil, err
	}

	if err := model.CreateOutbox(ctx, tx, "betting_open", roundNo, map[string]any{
		"event":         "betting_open",
		"round_id":      round.ID,
		"round_no":      roundNo,
		"table_id":      in.TableID,
		"countdown_sec": countdown,
	}); err != nil {
		return nil, err
	}

	operator := in.Operator
	if operator == "" {
		operator = "system"
	}
	aud := &model.RoundAudit{
		RoundID:   round.ID,
		TableID:   in.TableID,
		Event:     state.EvtBettingOpen,
		PrevState: table.RunState,
		NextState: next,
		Operator:  operator,
		Source:    "api",
		Payload:   toJSON(map[string]any{"countdown_sec": countdown}),
		TraceID:   in.TraceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// 倒计时初值立即可见，随后由滴答任务逐秒刷新
	if r := infrds.Client(); r != nil {
		_ = r.Set(ctx, infrds.CountdownKey(in.TableID), strconv.Itoa(countdown), countdownCacheTTL).Err()
	}
	payload, _ := common.JsonMarshal(countdownPayload{TableID: in.TableID, Remaining: countdown - 1})
	s.q.EnqueueDelayed(&queue.Task{
		Kind:    TaskTableCountdown,
		Key:     roundNo,
		Payload: payload,
		TraceID: in.TraceID,
	}, time.Second)

	logger.Info("betting opened",
		zap.String("round_no", roundNo),
		zap.Int("countdown_sec", countdown),
		zap.String("trace_id", in.TraceID))

	return &StartBettingOutput{
		RoundID:      round.ID,
		RoundNo:      roundNo,
		ShoeNumber:   shoe,
		RoundNumber:  roundNumber,
		CountdownSec: countdown,
	}, nil
}

func (s *tableService) StartShuffle(ctx context.Context, tableID int64, operator, traceID string) error {
	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	table, err := model.GetTableForUpdate(ctx, tx, tableID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrTableNotFound
		}
		return err
	}

	if _, err := state.NextTableState(table.RunState, state.EvtShuffleStart); err != nil {
		return err
	}

	// 换靴：靴号+1，局号清零
	if err := model.AdvanceTableRound(ctx, tx, tableID, table.ShoeNumber+1, 0); err != nil {
		return err
	}
	if err := model.UpdateTableRunState(ctx, tx, tableID, state.TableShuffling); err != nil {
		return err
	}

	if operator == "" {
		operator = "system"
	}
	aud := &model.RoundAudit{
		TableID:   tableID,
		Event:     state.EvtShuffleStart,
		PrevState: table.RunState,
		NextState: state.TableShuffling,
		Operator:  operator,
		Source:    "api",
		TraceID:   traceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logger.Info("shuffle started",
		zap.Int64("table_id", tableID),
		zap.Int("new_shoe", table.ShoeNumber+1),
		zap.String("trace_id", traceID))
	return nil
}

// HandleCountdown 倒计时滴答：写缓存，>0 时延迟 1 秒重入队，归零时封盘。
// Redis 不可用只影响展示，不影响封盘。
func (s *tableService) HandleCountdown(ctx context.Context, task *queue.Task) (queue.Result, error) {
	var p countdownPayload
	if err := common.JsonUnmarshal(task.Payload, &p); err != nil {
		return queue.Fatal, err
	}

	if r := infrds.Client(); r != nil {
		_ = r.Set(ctx, infrds.CountdownKey(p.TableID), strconv.Itoa(p.Remaining), countdownCacheTTL).Err()
	}

	if p.Remaining > 0 {
		payload, _ := common.JsonMarshal(countdownPayload{TableID: p.TableID, Remaining: p.Remaining - 1})
		s.q.EnqueueDelayed(&queue.Task{
			Kind:    TaskTableCountdown,
			Key:     task.Key,
			Payload: payload,
			TraceID: task.TraceID,
		}, time.Second)
		return queue.Done, nil
	}

	// 归零封盘
	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return queue.Retry, err
	}
	defer func() { _ = tx.Rollback() }()

	table, err := model.GetTableForUpdate(ctx, tx, p.TableID)
	if err != nil {
		return queue.Retry, err
	}
	if table.RunState != state.TableBetting {
		// 已被开牌或洗牌动作翻转，滴答任务无事可做
		return queue.Done, nil
	}
	next, err := state.NextTableState(table.RunState, state.EvtBettingClose)
	if err != nil {
		return queue.Fatal, err
	}
	if err := model.UpdateTableRunState(ctx, tx, p.TableID, next); err != nil {
		return queue.Retry, err
	}
	if err := tx.Commit(); err != nil {
		return queue.Retry, err
	}

	logger.Info("betting closed",
		zap.Int64("table_id", p.TableID),
		zap.String("round_no", task.Key),
		zap.String("trace_id", task.TraceID))
	return queue.Done, nil
}
