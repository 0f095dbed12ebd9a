package api

import (
	"context"
	"time"

	infmysql "bjl-server/internal/infra/mysql"
	infrds "bjl-server/internal/infra/redis"

	beego "github.com/beego/beego/v2/server/web"
)

// HealthController 提供健康检查端点：/healthz 与 /readyz
// readyz 探测 MySQL 与 Redis 连通性；RocketMQ 为可选依赖不参与就绪判断

type HealthController struct{ beego.Controller }

// Healthz 存活探针：仅返回进程存活
func (c *HealthController) Healthz() {
	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("ok"))
}

// Readyz 就绪探针：核心依赖（MySQL/Redis）任一不可用则返回 503
func (c *HealthController) Readyz() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if db := infmysql.DB(); db == nil || db.PingContext(ctx) != nil {
		c.Ctx.Output.SetStatus(503)
		_ = c.Ctx.Output.Body([]byte("mysql unavailable"))
		return
	}

	if err := infrds.Ping(ctx, time.Second); err != nil {
		c.Ctx.Output.SetStatus(503)
		_ = c.Ctx.Output.Body([]byte("redis unavailable"))
		return
	}

	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("ready"))
}
