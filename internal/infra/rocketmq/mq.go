package rocketmq

import (
	"context"
	"strings"
	"sync"
	"time"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"
	beego "github.com/beego/beego/v2/server/web"

	"bjl-server/common/logger"

	"go.uber.org/zap"
)

// Publisher 发布门面；MQ 未启用时退化为丢弃并告警的 stub
type Publisher interface {
	Publish(topic string, body []byte) error
}

var (
	initOnce sync.Once
	enabled  bool
	prod     rmq.Producer
	pub      Publisher
)

// Enabled 返回 MQ 是否配置齐全且 producer 启动成功
func Enabled() bool { initOnce.Do(initMQ); return enabled }

// PublisherInstance 返回当前发布器（未启用时为 stub）
func PublisherInstance() Publisher {
	initOnce.Do(initMQ)
	if pub == nil {
		pub = &stubPublisher{}
	}
	return pub
}

// SanitizeEndpoint 规范化 endpoint：去空白、去 scheme，多地址取第一个
func SanitizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if idx := strings.IndexAny(endpoint, ",;"); idx > 0 {
		endpoint = strings.TrimSpace(endpoint[:idx])
	}
	return endpoint
}

type rmqPublisher struct{ p rmq.Producer }

func (r *rmqPublisher) Publish(topic string, body []byte) error {
	if r.p == nil {
		return nil
	}
	msg := &rmq.Message{Topic: topic, Body: body}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.p.Send(ctx, msg)
	return err
}

type stubPublisher struct{}

func (s *stubPublisher) Publish(topic string, body []byte) error {
	logger.Warn("[mq disabled] drop message", zap.String("topic", topic))
	return nil
}

func disable() {
	enabled = false
	pub = &stubPublisher{}
}

func initMQ() {
	// SDK 默认写文件日志到 /logs，重置为控制台
	rmq.ResetLogger()

	endpoint, _ := beego.AppConfig.String("rocketmq_endpoint")
	if endpoint == "" {
		endpoint, _ = beego.AppConfig.String("rocketmq_namesrv")
	}
	if endpoint == "" {
		disable()
		return
	}
	endpoint = SanitizeEndpoint(endpoint)

	ak, _ := beego.AppConfig.String("rocketmq_access_key")
	sk, _ := beego.AppConfig.String("rocketmq_secret_key")
	topicsStr, _ := beego.AppConfig.String("rocketmq_producer_topics")

	// 凭证不全直接禁用，SDK 在 Sign 阶段会因空凭证崩溃
	if strings.TrimSpace(ak) == "" || strings.TrimSpace(sk) == "" {
		disable()
		logger.Warn("rocketmq disabled: missing access/secret key while endpoint present")
		return
	}

	cfg := &rmq.Config{Endpoint: endpoint}
	cfg.Credentials = &credentials.SessionCredentials{AccessKey: ak, AccessSecret: sk}
	logger.Info("rocketmq producer config", zap.String("endpoint", endpoint), zap.String("topics", topicsStr))

	var opts []rmq.ProducerOption
	if topicsStr != "" {
		parts := strings.Split(topicsStr, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(strings.ReplaceAll(parts[i], ".", "_"))
		}
		opts = append(opts, rmq.WithTopics(parts...))
	}

	p, err := rmq.NewProducer(cfg, opts...)
	if err != nil {
		logger.Error("rocketmq: producer init failed", zap.Error(err))
		disable()
		return
	}

	// 异步启动，超时退化为 stub，不阻塞主流程
	startDone := make(chan error, 1)
	go func() {
		startDone <- p.Start()
	}()

	select {
	case err := <-startDone:
		if err != nil {
			logger.Warn("rocketmq: producer start failed (will use stub publisher)", zap.Error(err))
			disable()
			return
		}
		prod = p
		pub = &rmqPublisher{p: p}
		enabled = true
		logger.Info("rocketmq enabled", zap.String("endpoint", endpoint))
	case <-time.After(2 * time.Second):
		logger.Warn("rocketmq: producer start timeout (will use stub publisher, messages will be dropped)")
		disable()
	}
}
