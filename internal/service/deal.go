package service

import (
	"context"
	"database/sql"
	"time"

	"bjl-server/common"
	"bjl-server/common/logger"
	"bjl-server/internal/game"
	infmysql "bjl-server/internal/infra/mysql"
	infrds "bjl-server/internal/infra/redis"
	"bjl-server/internal/metrics"
	"bjl-server/internal/model"
	"bjl-server/internal/queue"
	"bjl-server/internal/state"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// 开牌结果缓存 TTL：推送端按秒轮询，短 TTL 即可覆盖展示窗口
const outcomeCacheTTL = 5 * time.Second

// DealInput 荷官端开牌上报
type DealInput struct {
	TableID     int64
	ShoeNumber  int
	RoundNumber int
	CardList    []string // 按席位顺序，1-3 庄 4-6 闲
	DealTime    int64
	Operator    string
	TraceID     string
}

// DealOutput 开牌受理结果
type DealOutput struct {
	RoundID       int64    `json:"round_id"`
	RoundNo       string   `json:"round_no"`
	BankerPoint   int      `json:"banker_point"`
	PlayerPoint   int      `json:"player_point"`
	Category      string   `json:"category"`
	BankerDisplay string   `json:"banker_display"`
	PlayerDisplay string   `json:"player_display"`
	WinningWagers []int    `json:"winning_wagers"`
	BankerImages  []string `json:"banker_images"`
	PlayerImages  []string `json:"player_images"`
}

type DealService interface {
	SubmitDealResult(ctx context.Context, in DealInput) (*DealOutput, error)
}

type dealService struct {
	q *queue.Queue
}

func NewDealService(q *queue.Queue) DealService { return &dealService{q: q} }

// SubmitDealResult 处理开牌上报：
// 先做纯计算（失败则整单拒绝，不触库），再在事务内做重复检查与落库，
// 最后缓存结果并投递派彩任务。派彩本身在队列侧异步执行。
func (s *dealService) SubmitDealResult(ctx context.Context, in DealInput) (*DealOutput, error) {
	start := time.Now()
	resultLabel := "fail"
	categoryLabel := "unknown"
	defer func() { metrics.RecordDeal(resultLabel, categoryLabel, start) }()

	if in.TableID <= 0 || in.ShoeNumber <= 0 || in.RoundNumber <= 0 || len(in.CardList) == 0 {
		return nil, ErrBadRequest
	}

	roundNo := model.RoundNo(in.TableID, in.ShoeNumber, in.RoundNumber)
	logger.Info("deal result received",
		zap.String("round_no", roundNo),
		zap.Strings("card_list", in.CardList),
		zap.String("trace_id", in.TraceID))

	// 纯计算先行：牌面非法或全空直接拒绝，数据库不留痕
	placements := placementsFromSlots(in.CardList)
	out, err := game.ComputeOutcome(placements)
	if err != nil {
		logger.Warn("deal result rejected",
			zap.String("round_no", roundNo),
			zap.Error(err),
			zap.String("trace_id", in.TraceID))
		return nil, err
	}
	categoryLabel = out.Category.String()

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 重复提交检查：同一 (table, shoe, round) 已有未作废记录且已计算过结果则拒绝
	cardListJSON := encodeCardList(placements)
	round, err := model.GetActiveRound(ctx, tx, in.TableID, in.ShoeNumber, in.RoundNumber)
	switch {
	case err == nil:
		if round.Status != roundStateToCode(state.RoundReceived) {
			logger.Warn("duplicate deal result",
				zap.String("round_no", roundNo),
				zap.String("status", roundCodeToState(round.Status)),
				zap.String("trace_id", in.TraceID))
			return nil, ErrDuplicateRound
		}
		// 开局时已建行（received），补写计算结果
		fillRoundOutcome(round, out, cardListJSON, in.TraceID)
		if err := model.UpdateRoundOutcome(ctx, tx, round); err != nil {
			return nil, err
		}
	case err == sql.ErrNoRows:
		// 未经开局直接上报（无人投注的空局），直接建行
		round = &model.Round{
			TableID:     in.TableID,
			ShoeNumber:  in.ShoeNumber,
			RoundNumber: in.RoundNumber,
		}
		fillRoundOutcome(round, out, cardListJSON, in.TraceID)
		if err := round.Insert(ctx, tx); err != nil {
			if model.IsDuplicateKeyError(err) {
				return nil, ErrDuplicateRound
			}
			return nil, err
		}
	default:
		return nil, err
	}

	// 台桌封盘：倒计时可能已先行归零封盘，仅在下注态时经状态机翻转
	if err := closeBettingOnDeal(ctx, tx, in.TableID); err != nil {
		return nil, err
	}

	// Outbox：开牌事件（事务内写入，确保与数据库状态一致）
	if err := model.CreateOutbox(ctx, tx, "round_dealt", roundNo, map[string]any{
		"event":        "round_dealt",
		"round_id":     round.ID,
		"round_no":     roundNo,
		"table_id":     in.TableID,
		"category":     out.Category.String(),
		"banker_point": out.Banker.Point,
		"player_point": out.Player.Point,
		"trace_id":     in.TraceID,
	}); err != nil {
		return nil, err
	}

	// 审计
	operator := in.Operator
	if operator == "" {
		operator = "dealer"
	}
	aud := &model.RoundAudit{
		RoundID:   round.ID,
		TableID:   in.TableID,
		Event:     state.EvtOutcomeComputed,
		PrevState: state.RoundReceived,
		NextState: state.RoundOutcomeDone,
		Operator:  operator,
		Source:    "api",
		Payload: toJSON(map[string]any{
			"card_list":    in.CardList,
			"category":     out.Category.String(),
			"banker_point": out.Banker.Point,
			"player_point": out.Player.Point,
			"lucky_total":  out.LuckyTotal,
			"dragon7":      out.Dragon7,
			"panda8":       out.Panda8,
		}),
		TraceID: in.TraceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("deal result commit failed",
			zap.String("round_no", roundNo),
			zap.Error(err),
			zap.String("trace_id", in.TraceID))
		return nil, err
	}

	winning := game.WinningWagers(out)
	winningCodes := make([]int, 0, len(winning))
	for _, w := range winning {
		winningCodes = append(winningCodes, int(w))
	}

	// 台桌开牌结果缓存：推送端按台桌读取
	if r := infrds.Client(); r != nil {
		val := map[string]any{
			"round_id":       round.ID,
			"round_no":       roundNo,
			"table_id":       in.TableID,
			"category":       out.Category.String(),
			"banker_point":   out.Banker.Point,
			"player_point":   out.Player.Point,
			"banker_display": out.Banker.Display,
			"player_display": out.Player.Display,
			"banker_images":  game.ImageTokens(out.Banker),
			"player_images":  game.ImageTokens(out.Player),
			"winning_wagers": winningCodes,
		}
		if b, e := common.JsonMarshal(val); e == nil {
			_ = r.Set(ctx, infrds.TableOutcomeKey(in.TableID), b, outcomeCacheTTL).Err()
		}
	}

	// 异步派彩
	payload, _ := common.JsonMarshal(map[string]any{"round_id": round.ID})
	s.q.Enqueue(&queue.Task{
		Kind:    TaskRoundSettle,
		Key:     roundNo,
		Payload: payload,
		TraceID: in.TraceID,
	})

	resultLabel = "success"
	logger.Info("deal result accepted",
		zap.String("round_no", roundNo),
		zap.Int64("round_id", round.ID),
		zap.String("category", out.Category.String()),
		zap.Int("banker_point", out.Banker.Point),
		zap.Int("player_point", out.Player.Point),
		zap.String("trace_id", in.TraceID))

	return &DealOutput{
		RoundID:       round.ID,
		RoundNo:       roundNo,
		BankerPoint:   out.Banker.Point,
		PlayerPoint:   out.Player.Point,
		Category:      out.Category.String(),
		BankerDisplay: out.Banker.Display,
		PlayerDisplay: out.Player.Display,
		WinningWagers: winningCodes,
		BankerImages:  game.ImageTokens(out.Banker),
		PlayerImages:  game.ImageTokens(out.Player),
	}, nil
}

// closeBettingOnDeal 开牌受理时封盘。台桌仍在下注态时走状态机翻转到
// dealing；已被倒计时归零或洗牌动作翻转过的不再改写。台桌行不存在
// （未配置台桌的直接上报）时无运行状态可翻转，放过。
func closeBettingOnDeal(ctx context.Context, exec sqlx.ExtContext, tableID int64) error {
	table, err := model.GetTableForUpdate(ctx, exec, tableID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if table.RunState != state.TableBetting {
		return nil
	}
	next, err := state.NextTableState(table.RunState, state.EvtBettingClose)
	if err != nil {
		return err
	}
	return model.UpdateTableRunState(ctx, exec, tableID, next)
}

// fillRoundOutcome 将计算结果写入 Round 行（状态推进到 outcome_computed）
func fillRoundOutcome(r *model.Round, out *game.Outcome, cardListJSON, traceID string) {
	r.CardList = cardListJSON
	r.BankerPoint = out.Banker.Point
	r.PlayerPoint = out.Player.Point
	r.BankerPair = boolToFlag(out.Banker.Pair)
	r.PlayerPair = boolToFlag(out.Player.Pair)
	r.LuckyTotal = out.LuckyTotal
	r.LuckySize = out.LuckySize
	r.Dragon7 = boolToFlag(out.Dragon7)
	r.Panda8 = boolToFlag(out.Panda8)
	r.Category = int8(out.Category)
	r.CategoryStr = out.Category.String()
	r.Status = roundStateToCode(state.RoundOutcomeDone)
	r.StatusStr = state.RoundOutcomeDone
	r.TraceID = traceID
}

func boolToFlag(b bool) int8 {
	if b {
		return 1
	}
	return 0
}
