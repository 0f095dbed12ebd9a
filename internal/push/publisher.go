package push

import (
	"context"
	"strconv"
	"sync"
	"time"

	"bjl-server/common"
	"bjl-server/common/logger"
	infrds "bjl-server/internal/infra/redis"
	"bjl-server/internal/metrics"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 下行信封 code。推送只有成功帧，与钱包侧一致固定 200。
const pushCodeOK = 200

// frame WebSocket 下行统一信封，message 标识消息种类，
// 具体内容放在 payload 里。应用层心跳 "ping"/"pong" 不走信封。
type frame struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Payload any    `json:"payload"`
}

func encodeFrame(message string, payload any) ([]byte, error) {
	return common.JsonMarshal(frame{Code: pushCodeOK, Message: message, Payload: payload})
}

// cacheGetter 轮询所需的最小 Redis 能力
type cacheGetter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

// Publisher 按秒轮询 Redis 缓存并向在线连接推送：
// - countdown：下注倒计时剩余秒数（台桌广播）
// - payout：用户派彩（点对点，按局号去重）
// - outcome：开牌结果（台桌广播，按局号去重）
// 推送优先级 countdown > outcome > payout：倒计时进行中的台桌
// 本 tick 只下发倒计时，结果与派彩等倒计时缓存过期后再补。
type Publisher struct {
	registry *Registry

	mu            sync.Mutex
	sentOutcome   map[int64]string // table_id -> 最近推送的局号
	sentPayout    map[string]bool  // round_no:user_id -> 已推送
	lastCountdown map[int64]string
}

func NewPublisher(registry *Registry) *Publisher {
	return &Publisher{
		registry:      registry,
		sentOutcome:   make(map[int64]string),
		sentPayout:    make(map[string]bool),
		lastCountdown: make(map[int64]string),
	}
}

// Run 启动推送循环，ctx 取消时退出
func (p *Publisher) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

func (p *Publisher) tick(ctx context.Context) {
	r := infrds.Client()
	if r == nil {
		return
	}
	p.poll(ctx, r)
}

func (p *Publisher) poll(ctx context.Context, r cacheGetter) {
	for _, tableID := range p.registry.Tables() {
		if p.pushCountdown(ctx, r, tableID) {
			// 倒计时进行中：本 tick 不夹带结果与派彩，保证滴答不跳秒
			continue
		}
		p.pushOutcome(ctx, r, tableID)
		p.pushPayouts(ctx, r, tableID)
	}
}

// pushCountdown 返回台桌是否处于倒计时（缓存键存在即算，数值未变也算）
func (p *Publisher) pushCountdown(ctx context.Context, r cacheGetter, tableID int64) bool {
	val, err := r.Get(ctx, infrds.CountdownKey(tableID)).Result()
	if err != nil {
		if err != goredis.Nil {
			metrics.RecordPushError("redis_countdown")
		}
		return false
	}

	p.mu.Lock()
	dup := p.lastCountdown[tableID] == val
	if !dup {
		p.lastCountdown[tableID] = val
	}
	p.mu.Unlock()
	if dup {
		return true
	}

	msg, err := encodeFrame("countdown", map[string]any{
		"table_id":  tableID,
		"remaining": val,
	})
	if err != nil {
		return true
	}
	p.registry.BroadcastTable(tableID, msg)
	metrics.RecordPush("countdown")
	return true
}

func (p *Publisher) pushOutcome(ctx context.Context, r cacheGetter, tableID int64) {
	bs, err := r.Get(ctx, infrds.TableOutcomeKey(tableID)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			metrics.RecordPushError("redis_outcome")
		}
		return
	}

	var outcome map[string]any
	if err := common.JsonUnmarshal(bs, &outcome); err != nil {
		metrics.RecordPushError("decode_outcome")
		return
	}
	roundNo, _ := outcome["round_no"].(string)
	if roundNo == "" {
		return
	}

	// 同一局只广播一次
	p.mu.Lock()
	dup := p.sentOutcome[tableID] == roundNo
	if !dup {
		p.sentOutcome[tableID] = roundNo
	}
	p.mu.Unlock()
	if dup {
		return
	}

	msg, err := encodeFrame("outcome", outcome)
	if err != nil {
		return
	}
	p.registry.BroadcastTable(tableID, msg)
	metrics.RecordPush("outcome")

	logger.Info("outcome pushed",
		zap.Int64("table_id", tableID),
		zap.String("round_no", roundNo))
}

func (p *Publisher) pushPayouts(ctx context.Context, r cacheGetter, tableID int64) {
	for _, userID := range p.registry.Users(tableID) {
		bs, err := r.Get(ctx, infrds.UserPayoutKey(tableID, userID)).Bytes()
		if err != nil {
			if err != goredis.Nil {
				metrics.RecordPushError("redis_payout")
			}
			continue
		}

		var payout map[string]any
		if err := common.JsonUnmarshal(bs, &payout); err != nil {
			metrics.RecordPushError("decode_payout")
			continue
		}
		roundNo, _ := payout["round_no"].(string)
		if roundNo == "" {
			continue
		}

		key := roundNo + ":" + strconv.FormatInt(userID, 10)
		p.mu.Lock()
		dup := p.sentPayout[key]
		if !dup {
			p.sentPayout[key] = true
			// 去重表防止无限增长，超限直接重建（极端情况下重复推送一次无害）
			if len(p.sentPayout) > 65536 {
				p.sentPayout = map[string]bool{key: true}
			}
		}
		p.mu.Unlock()
		if dup {
			continue
		}

		payout["table_id"] = tableID
		msg, err := encodeFrame("payout", payout)
		if err != nil {
			continue
		}
		p.registry.SendToUser(tableID, userID, msg)
		metrics.RecordPush("payout")
	}
}
