package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"bjl-server/common"
	"bjl-server/common/logger"
	"bjl-server/internal/config"
	"bjl-server/internal/controller/api"
	infmysql "bjl-server/internal/infra/mysql"
	infrds "bjl-server/internal/infra/redis"
	"bjl-server/internal/push"
	"bjl-server/internal/queue"
	"bjl-server/internal/service"
	"bjl-server/internal/wallet"
	"bjl-server/internal/worker"
	_ "bjl-server/routers"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	logger.InitLogger()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatalf("load config failed", zap.Error(err))
	}
	config.Set(cfg)
	logger.SetLevel(cfg.Server.LogLevel)

	// 配置热更新（仅 Nacos 生效），目前只动态生效日志级别
	if err := config.StartWatch(ctx, func(_, newCfg *config.Config) {
		logger.SetLevel(newCfg.Server.LogLevel)
	}); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	// MySQL 主库
	db := common.InitDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	infmysql.UseDB(db.DB)

	// Redis（可选：不可用时推送/幂等快路径降级）
	if cfg.Redis.Addr != "" {
		infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}

	// 队列与业务服务
	q := queue.New(
		queue.WithWorkers(8),
		queue.WithDeadLetter(service.NewDeadLetterSink()),
	)
	settler := service.NewSettler(q)
	tables := service.NewTableService(q)
	reconciler := service.NewReconciler(wallet.NewClient())
	service.RegisterHandlers(q, settler, tables, reconciler)
	q.Start(ctx)

	api.InitServices(q)

	// WebSocket 推送
	registry := push.NewRegistry()
	go registry.Run()
	api.InitPush(registry)

	var wg sync.WaitGroup
	publisher := push.NewPublisher(registry)
	publisher.Run(ctx, &wg)

	// Outbox 分发与 MQ 入站
	worker.StartOutboxDispatcher(ctx, &wg)
	worker.StartInboxConsumer(ctx, &wg)

	// Prometheus 指标端点（独立端口）
	if cfg.Observability.EnableProm && cfg.Observability.PromAddr != "" {
		beego.Handler("/metrics", promhttp.Handler())
	}

	// 优雅退出
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutdown signal received")
		cancel()
		registry.Shutdown()
		q.Stop()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			logger.Warn("shutdown timeout, exiting")
		}
		os.Exit(0)
	}()

	if cfg.Server.Port > 0 {
		beego.BConfig.Listen.HTTPPort = cfg.Server.Port
	}
	logger.Info("server starting",
		zap.String("port", strconv.Itoa(beego.BConfig.Listen.HTTPPort)))
	beego.Run()
}
