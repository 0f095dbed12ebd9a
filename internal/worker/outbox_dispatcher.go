package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"
	beego "github.com/beego/beego/v2/server/web"

	"bjl-server/common"
	"bjl-server/common/logger"
	infmysql "bjl-server/internal/infra/mysql"
	infmq "bjl-server/internal/infra/rocketmq"
	"bjl-server/internal/model"

	"go.uber.org/zap"
)

// StartOutboxDispatcher 每秒扫描 outbox 待发送消息并投递到 MQ
// 发送失败累加 retry_count，超限后标记永久失败；MQ 未启用时整体不跑
func StartOutboxDispatcher(ctx context.Context, wg *sync.WaitGroup) {
	if !infmq.Enabled() {
		return
	}
	wg.Add(1)
	pub := infmq.PublisherInstance()
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c, cancel := context.WithTimeout(ctx, 2*time.Second)
				rows, err := model.ListOutboxPending(c, infmysql.SQLX(), 100)
				cancel()
				if err != nil {
					logger.Warn("outbox: list pending failed", zap.Error(err))
					continue
				}
				for _, r := range rows {
					if err := pub.Publish(r.Topic, []byte(r.Payload)); err != nil {
						_ = model.MarkOutboxFailed(ctx, infmysql.SQLX(), r.ID, truncateErr(err))
						continue
					}
					if err := model.MarkOutboxSent(ctx, infmysql.SQLX(), r.ID); err != nil {
						logger.Warn("outbox: mark sent failed", zap.Int64("id", r.ID), zap.Error(err))
					}
				}
			}
		}
	}()
}

// truncateErr 错误信息落库前截断，last_error 列宽有限
func truncateErr(err error) string {
	b, _ := common.JsonMarshal(map[string]string{"error": err.Error()})
	if len(b) > 240 {
		return string(b[:240])
	}
	return string(b)
}

// StartInboxConsumer 启动 RocketMQ v5 SimpleConsumer，将收到的消息去重落库到 inbox 表
// 配置项：rocketmq_endpoint（或 rocketmq_namesrv）、rocketmq_consumer_group、
// rocketmq_consume_topics（为空时回退 rocketmq_producer_topics）
func StartInboxConsumer(ctx context.Context, wg *sync.WaitGroup) {
	rmq.ResetLogger()

	endpoint, _ := beego.AppConfig.String("rocketmq_endpoint")
	if endpoint == "" {
		endpoint, _ = beego.AppConfig.String("rocketmq_namesrv")
	}
	if endpoint == "" {
		return
	}
	endpoint = infmq.SanitizeEndpoint(endpoint)
	logger.Info("[mq] consumer endpoint", zap.String("endpoint", endpoint))

	group, _ := beego.AppConfig.String("rocketmq_consumer_group")
	if group == "" {
		logger.Warn("[mq] consumer not started: empty rocketmq_consumer_group")
		return
	}
	topicsStr, _ := beego.AppConfig.String("rocketmq_consume_topics")
	if topicsStr == "" {
		topicsStr, _ = beego.AppConfig.String("rocketmq_producer_topics")
	}
	if topicsStr == "" {
		logger.Warn("[mq] consumer not started: empty topics")
		return
	}
	ak, _ := beego.AppConfig.String("rocketmq_access_key")
	sk, _ := beego.AppConfig.String("rocketmq_secret_key")
	if strings.TrimSpace(ak) == "" || strings.TrimSpace(sk) == "" {
		logger.Warn("[mq] consumer not started: missing access/secret key")
		return
	}
	cfg := &rmq.Config{Endpoint: endpoint, ConsumerGroup: group}
	cfg.Credentials = &credentials.SessionCredentials{AccessKey: ak, AccessSecret: sk}

	subs := map[string]*rmq.FilterExpression{}
	for _, t := range strings.Split(topicsStr, ",") {
		t = strings.TrimSpace(strings.ReplaceAll(t, ".", "_"))
		if t == "" {
			continue
		}
		subs[t] = rmq.SUB_ALL
	}

	awaitDuration := 5 * time.Second
	maxMessageNum := int32(16)
	invisibleDuration := 20 * time.Second

	// 容器刚起时 MQ 可能未就绪，带重试启动
	var sc rmq.SimpleConsumer
	var err error
	for i := 0; i < 6; i++ {
		sc, err = rmq.NewSimpleConsumer(cfg,
			rmq.WithAwaitDuration(awaitDuration),
			rmq.WithSubscriptionExpressions(subs),
		)
		if err == nil {
			if e := sc.Start(); e == nil {
				break
			} else {
				err = e
			}
		}
		logger.Warn("[mq] simple consumer start retry", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(3 * time.Second)
	}
	if err != nil {
		logger.Error("[mq] start simple consumer failed", zap.Error(err))
		return
	}
	logger.Info("[mq] inbox consumer started", zap.String("group", group), zap.String("topics", topicsStr))

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer sc.GracefulStop()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				mvs, err := sc.Receive(ctx, maxMessageNum, invisibleDuration)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Warn("[mq] receive error", zap.Error(err))
					continue
				}
				for _, mv := range mvs {
					id := mv.GetMessageId()
					topic := mv.GetTopic()
					body := mv.GetBody()
					if err := model.UpsertInbox(ctx, infmysql.SQLX(), id, topic, string(body), time.Now().UnixMilli()); err != nil {
						logger.Warn("[mq] upsert inbox failed", zap.String("id", id), zap.String("topic", topic), zap.Error(err))
						continue
					}
					var payload map[string]any
					if err := common.JsonUnmarshal(body, &payload); err == nil {
						if evt, ok := payload["event"].(string); ok && evt == "round_dealt" {
							roundNo, _ := payload["round_no"].(string)
							category, _ := payload["category"].(string)
							logger.Info("[mq] consumed deal result", zap.String("round_no", roundNo), zap.String("category", category))
						}
					}
					if err := sc.Ack(ctx, mv); err != nil {
						logger.Warn("[mq] ack failed", zap.String("id", id), zap.Error(err))
					}
				}
			}
		}
	}()
}
