package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"bjl-server/common"
	"bjl-server/common/constant"
	chelper "bjl-server/common/helper"
	"bjl-server/common/logger"
	"bjl-server/internal/config"
	"bjl-server/internal/game"
	infmysql "bjl-server/internal/infra/mysql"
	infrds "bjl-server/internal/infra/redis"
	"bjl-server/internal/metrics"
	"bjl-server/internal/model"
	"bjl-server/internal/queue"
	"bjl-server/internal/state"
	"bjl-server/internal/wallet"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BetInput 投注入参
type BetInput struct {
	TableID          int64
	PlatformID       int8   // 平台ID
	PlatformUserID   string // 平台用户ID
	PlatformUserName string // 平台用户名（可选）
	BetAmount        string
	WagerType        int  // 线路编码：2闲对 3幸运6 4庄对 6闲 7和 8庄 9龙7 10熊8
	IsExempt         bool // 免佣模式（仅对庄注生效）
	IdempotencyKey   string
	TraceID          string
}

type BetOutput struct {
	BillNo       string `json:"bill_no"`
	RoundNo      string `json:"round_no"`
	RemainAmount string `json:"remain_amount"` // 剩余金额
}

type BetService interface {
	PlaceBet(ctx context.Context, in BetInput) (*BetOutput, error)
}

type betService struct {
	q *queue.Queue
}

func NewBetService(q *queue.Queue) BetService { return &betService{q: q} }

const (
	// Redis 进行中锁 TTL：小于最短投注窗口，避免长时间阻塞重复请求
	idemLockTTL = 45 * time.Second
	// 结果缓存 TTL：重复请求直接返回第一次成功结果，覆盖大多数短时重试窗口
	idemResultTTL = 1 * time.Minute
)

// 默认事务超时时间，防止长事务占用资源影响并发（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

var (
	ErrDuplicateInFlight  = errors.New("duplicate request in flight")
	ErrInvalidStateBet    = errors.New("bet not allowed in current state")
	ErrBetWindowClosed    = errors.New("bet window closed")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrUserDisabled       = errors.New("user disabled")
	ErrUnknownWagerType   = errors.New("unknown wager type")
	ErrBetAmountOutOfSpec = errors.New("bet amount out of range")
)

// PlaceBet 处理下注主流程：
// Redis 幂等快路径 -> 事务内锁用户与局 -> 扣款落账 -> 注单落库 -> 异步钱包扣款通知
func (s *betService) PlaceBet(ctx context.Context, in BetInput) (*BetOutput, error) {
	start := time.Now()
	result := "fail"

	wt := game.WagerType(in.WagerType)
	defer func() { metrics.RecordBet(result, fmt.Sprintf("%d", in.WagerType), start) }()

	if !wt.Valid() {
		return nil, ErrUnknownWagerType
	}

	// 投注金额解析与限额校验
	amtDec, err := decimal.NewFromString(strings.TrimSpace(in.BetAmount))
	if err != nil {
		return nil, errors.New("invalid bet amount format")
	}
	if amtDec.LessThanOrEqual(decimal.Zero) {
		return nil, ErrBetAmountOutOfSpec
	}
	minBet := decimal.RequireFromString("0.01")
	maxBet := decimal.NewFromInt(config.GetThreshold("bet_max_amount", 1000000))
	if amtDec.LessThan(minBet) || amtDec.GreaterThan(maxBet) {
		return nil, ErrBetAmountOutOfSpec
	}

	logger.Info("bet received",
		zap.Int64("table_id", in.TableID),
		zap.Int8("platform_id", in.PlatformID),
		zap.String("platform_user_id", in.PlatformUserID),
		zap.String("amount", in.BetAmount),
		zap.String("wager", wt.String()),
		zap.String("idem_key", in.IdempotencyKey),
		zap.String("trace_id", in.TraceID))

	// Redis 快路径：若已有结果缓存，直接返回
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
			var out BetOutput
			if common.JsonUnmarshal(bs, &out) == nil {
				logger.Info("bet idempotent cache hit",
					zap.String("idem_key", in.IdempotencyKey),
					zap.String("bill_no", out.BillNo),
					zap.String("trace_id", in.TraceID))
				return &out, nil
			}
		}

		// 进行中锁（SETNX + TTL），吸收瞬时重复；锁值唯一防误删
		lockValue := uuid.New().String()
		lockKey := infrds.IdemLockKey(in.IdempotencyKey)
		ok, _ := r.SetNX(ctx, lockKey, lockValue, idemLockTTL).Result()
		if !ok {
			if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
				var out BetOutput
				if common.JsonUnmarshal(bs, &out) == nil {
					return &out, nil
				}
			}
			return nil, ErrDuplicateInFlight
		}

		// Lua 脚本原子释放锁（仅当锁值匹配时删除）
		defer func() {
			script := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("del", KEYS[1])
				else
					return 0
				end
			`
			ret, err := r.Eval(ctx, script, []string{lockKey}, lockValue).Result()
			if err != nil {
				logger.Warn("release idem lock failed",
					zap.String("idem_key", in.IdempotencyKey),
					zap.Error(err),
					zap.String("trace_id", in.TraceID))
			} else if ret == int64(0) {
				logger.Warn("idem lock already released or expired",
					zap.String("idem_key", in.IdempotencyKey),
					zap.String("trace_id", in.TraceID))
			}
		}()
	}

	// 开启 MySQL 事务（带默认超时，防止长事务影响并发）
	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 台桌状态：仅 betting 期间允许下注
	table, err := model.GetTableForUpdate(txCtx, tx, in.TableID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTableNotFound
		}
		return nil, err
	}
	if table.Status != constant.StatusNormal {
		return nil, ErrTableDisabled
	}
	if table.RunState != state.TableBetting {
		return nil, ErrBetWindowClosed
	}

	// 当前开局（StartBetting 时已建行，received 状态）
	round, err := model.GetActiveRound(txCtx, tx, in.TableID, table.ShoeNumber, table.RoundNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidStateBet
		}
		return nil, err
	}
	if round.Status != roundStateToCode(state.RoundReceived) {
		return nil, ErrBetWindowClosed
	}
	roundNo := round.RoundNo()

	// 获取或创建用户并加锁（自动注册）
	user, err := getOrCreateCustomerInTx(txCtx, tx, in.PlatformID, in.PlatformUserID, in.PlatformUserName)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create customer: %w", err)
	}

	billNo := generateBillNo(user.UserID)

	// 幂等：先占幂等键，ref 记录 bill_no
	if err := (&model.IdempotencyKey{IdempotencyKey: in.IdempotencyKey, Purpose: "bet", Ref: billNo}).Insert(txCtx, tx); err != nil {
		if model.IsDuplicateKeyError(err) {
			_ = tx.Rollback()
			// Redis 先查
			if r := infrds.Client(); r != nil {
				if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
					var out BetOutput
					if common.JsonUnmarshal(bs, &out) == nil {
						return &out, nil
					}
				}
			}
			// DB 回源：根据幂等键查 bill_no，再查用户余额
			ref, e1 := model.SelectRefByIdemKey(ctx, infmysql.SQLX(), in.IdempotencyKey)
			if e1 == nil && ref != "" {
				u, e2 := model.GetCustomerByPlatformUser(ctx, infmysql.SQLX(), in.PlatformID, in.PlatformUserID)
				if e2 == nil {
					return &BetOutput{
						BillNo:       ref,
						RoundNo:      roundNo,
						RemainAmount: chelper.TrimDecimal(decimal.NewFromFloat(u.Balance)),
					}, nil
				}
			}
		}
		return nil, fmt.Errorf("idempotency conflict or insert failed: %w", err)
	}

	// 用户状态与余额校验（已持行锁）
	if user.Status != constant.StatusNormal {
		return nil, ErrUserDisabled
	}
	beforeDec := decimal.NewFromFloat(user.Balance)
	if beforeDec.Cmp(amtDec) < 0 {
		return nil, ErrInsufficientFunds
	}
	afterDec := beforeDec.Sub(amtDec).Round(2)

	if err := model.UpdateCustomerBalance(txCtx, tx, user.UserID, afterDec.InexactFloat64()); err != nil {
		return nil, err
	}

	// 账本：下注扣款
	correlationID := wallet.BetCorrelationID(in.TableID, table.ShoeNumber, table.RoundNumber, user.UserID, billNo)
	ledger := &model.LedgerEntry{
		UserID:        user.UserID,
		BizType:       model.LedgerBizBet,
		DeltaAmount:   amtDec.Neg().InexactFloat64(),
		BeforeAmount:  beforeDec.InexactFloat64(),
		AfterAmount:   afterDec.InexactFloat64(),
		Currency:      "CNY",
		BillNo:        billNo,
		RoundID:       round.ID,
		CorrelationID: correlationID,
		Remark:        "bet deduct",
		TraceID:       in.TraceID,
	}
	if err := ledger.Insert(txCtx, tx); err != nil {
		return nil, err
	}

	// 落注单（bet_status:2成功, settle_status:1待结算）
	isExempt := int8(0)
	if in.IsExempt || user.IsExempt == 1 {
		isExempt = 1
	}
	bet := &model.Bet{
		BillNo:         billNo,
		RoundID:        round.ID,
		TableID:        in.TableID,
		GameType:       table.GameType,
		UserID:         user.UserID,
		PlatformID:     in.PlatformID,
		PlatformUserID: in.PlatformUserID,
		UserName:       user.Username,
		WagerType:      in.WagerType,
		BetAmount:      amtDec.InexactFloat64(),
		IsExempt:       isExempt,
		BetStatus:      2,
		SettleStatus:   model.BetSettlePending,
		Currency:       "CNY",
		IdempotencyKey: in.IdempotencyKey,
		TraceID:        in.TraceID,
	}
	if err := bet.Insert(txCtx, tx); err != nil {
		return nil, err
	}

	// Outbox 消息（异步广播）
	if err := model.CreateOutbox(txCtx, tx, "bet_placed", billNo, map[string]any{
		"event":            "bet_placed",
		"bill_no":          billNo,
		"round_no":         roundNo,
		"user_id":          user.UserID,
		"platform_id":      in.PlatformID,
		"platform_user_id": in.PlatformUserID,
		"wager_type":       in.WagerType,
		"bet_amount":       amtDec.StringFixed(2),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("bet commit failed",
			zap.String("bill_no", billNo),
			zap.Error(err),
			zap.String("trace_id", in.TraceID))
		return nil, err
	}

	result = "success"
	out := &BetOutput{BillNo: billNo, RoundNo: roundNo, RemainAmount: chelper.TrimDecimal(afterDec)}

	// 写入 Redis 结果缓存（降级容错）
	if r := infrds.Client(); r != nil {
		if b, e := common.JsonMarshal(out); e == nil {
			_ = r.Set(ctx, infrds.IdemResultKey(in.IdempotencyKey), b, idemResultTTL).Err()
		}
	}

	// 异步钱包扣款通知
	payload, _ := common.JsonMarshal(debitPayload{
		BillNo:        billNo,
		RoundNo:       roundNo,
		TableID:       in.TableID,
		UserName:      user.Username,
		CorrelationID: correlationID,
		Amount:        amtDec.Neg().StringFixed(2),
	})
	s.q.Enqueue(&queue.Task{Kind: TaskWalletDebit, Key: billNo, Payload: payload, TraceID: in.TraceID})

	return out, nil
}

// generateBillNo 生成可读的注单号
// 格式：BJL{YYYYMMDDHHmmss}{UserID后4位}{随机3位十六进制}
func generateBillNo(userID int64) string {
	now := time.Now()
	dateTime := now.Format("20060102150405")
	userSuffix := fmt.Sprintf("%04d", userID%10000)
	randomBytes := make([]byte, 2)
	rand.Read(randomBytes)
	randomHex := strings.ToUpper(hex.EncodeToString(randomBytes)[:3])

	return fmt.Sprintf("BJL%s%s%s", dateTime, userSuffix, randomHex)
}

// getOrCreateCustomerInTx 在事务中获取或创建用户（加锁）
func getOrCreateCustomerInTx(ctx context.Context, tx *sqlx.Tx, platformID int8, platformUserID, username string) (*model.Customer, error) {
	user, err := model.GetCustomerByPlatformUserForUpdate(ctx, tx, platformID, platformUserID)
	if err == nil {
		return user, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	now := time.Now().UnixMilli()
	newUser := &model.Customer{
		PlatformID:     platformID,
		PlatformUserID: platformUserID,
		Username:       username,
		Balance:        0.00,
		Status:         constant.StatusNormal,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	query := `INSERT INTO customers (platform_id, platform_user_id, username, balance, rebate_balance, rebate_total, is_exempt, status, created_at, updated_at)
	          VALUES (?, ?, ?, ?, 0, 0, 0, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, query,
		newUser.PlatformID, newUser.PlatformUserID, newUser.Username, newUser.Balance, newUser.Status, newUser.CreatedAt, newUser.UpdatedAt)
	if err != nil {
		// 并发创建撞唯一索引时回查并加锁
		if model.IsDuplicateKeyError(err) {
			return model.GetCustomerByPlatformUserForUpdate(ctx, tx, platformID, platformUserID)
		}
		return nil, err
	}

	id, _ := result.LastInsertId()
	newUser.UserID = id
	return newUser, nil
}
