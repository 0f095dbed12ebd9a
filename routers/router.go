package routers

import (
	"bjl-server/internal/config"
	"bjl-server/internal/controller/api"
	"bjl-server/internal/metrics"
	"bjl-server/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
)

// init 注册HTTP路由与全局过滤器
func init() {
	cfg := config.Get()

	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（如果启用）
	if cfg != nil && cfg.CORS.Enabled {
		beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)
	}

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	// ========== 业务 API（需要认证） ==========

	// 投注接口：平台认证 + 限流
	if cfg != nil && cfg.Auth.DemoMode {
		// 演示模式：简化认证
		beego.InsertFilter("/api/bet", beego.BeforeExec, middleware.DemoAuthFilter)
	} else {
		// 生产模式：平台签名认证
		beego.InsertFilter("/api/bet", beego.BeforeExec, middleware.PlatformAuthFilter)
	}
	if cfg != nil && cfg.RateLimit.Enabled {
		beego.InsertFilter("/api/bet", beego.BeforeExec, middleware.RateLimitFilter)
	}
	beego.Router("/api/bet", &api.BetController{}, "post:Bet")

	// 用户查询接口：平台认证（用户只能查询自己的数据）
	if cfg != nil && cfg.Auth.DemoMode {
		beego.InsertFilter("/api/user/*", beego.BeforeExec, middleware.DemoAuthFilter)
	} else {
		beego.InsertFilter("/api/user/*", beego.BeforeExec, middleware.PlatformAuthFilter)
	}
	beego.Router("/api/user/balance", &api.UserController{}, "get:Balance")
	beego.Router("/api/user/bets", &api.UserController{}, "get:Bets")

	// ========== 荷官/管理 API（需要管理员认证） ==========

	if cfg != nil && cfg.Auth.Admin.Enabled {
		for _, route := range []string{"/api/deal_result", "/api/table_start", "/api/table_shuffle", "/api/void_round"} {
			beego.InsertFilter(route, beego.BeforeExec, middleware.AdminAuthFilter)
		}
	}

	// 开局（进入下注倒计时）与洗牌换靴
	beego.Router("/api/table_start", &api.TableController{}, "post:StartBetting")
	beego.Router("/api/table_shuffle", &api.TableController{}, "post:StartShuffle")

	// 开牌结果上报
	beego.Router("/api/deal_result", &api.DealResultController{}, "post:Deal")

	// 作废局
	beego.Router("/api/void_round", &api.VoidController{}, "post:Void")

	// ========== 查询与推送 ==========

	// 台桌最新结果查询（读缓存优先，调试/回放用）
	beego.Router("/api/round/:table_id", &api.RoundController{}, "get:GetRound")

	// WebSocket 实时推送订阅
	beego.Router("/ws", &api.WSController{}, "get:Subscribe")
}
