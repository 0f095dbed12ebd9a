package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bjl-server/common/logger"
	"bjl-server/internal/common/helper"
	"bjl-server/internal/common/response"
	"bjl-server/internal/config"
	infrds "bjl-server/internal/infra/redis"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitFilter 投注口限流：全局 / IP / 平台 / 用户四个维度逐级校验
// Redis 不可用或出错时一律放行，限流只作保护不作强依赖
func RateLimitFilter(ctx *beegocontext.Context) {
	cfg := config.Get()
	if cfg == nil || !cfg.RateLimit.Enabled {
		return
	}

	traceID := helper.GetTraceID(ctx)
	rdb := infrds.Client()
	if rdb == nil {
		logger.Warn("redis not available, skip rate limit", zap.String("trace_id", traceID))
		return
	}

	reqCtx := ctx.Request.Context()

	rejected := func(dimension string, fields ...zap.Field) {
		logger.Warn(dimension+" rate limit exceeded",
			append(fields, zap.String("trace_id", traceID))...)
		ctx.Output.SetStatus(429)
		ctx.Output.JSON(response.APIResponse{
			Code:      response.CodeRateLimitExceeded,
			Message:   "请求频率超限，请稍后重试",
			Data:      nil,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	if lim := cfg.RateLimit.Global.RequestsPerSecond; lim > 0 {
		if !allowRequest(reqCtx, rdb, "global", "all", lim, 1) {
			rejected("global")
			return
		}
	}

	if lim := cfg.RateLimit.ByIP.RequestsPerSecond; lim > 0 {
		clientIP := getClientIP(ctx)
		if !allowRequest(reqCtx, rdb, "ip", clientIP, lim, cfg.RateLimit.ByIP.WindowSeconds) {
			rejected("ip", zap.String("client_ip", clientIP))
			return
		}
	}

	if lim := cfg.RateLimit.ByPlatform.RequestsPerSecond; lim > 0 {
		if v := ctx.Input.GetData("platform_id"); v != nil {
			pid := v.(int8)
			if !allowRequest(reqCtx, rdb, "platform", fmt.Sprintf("platform_%d", pid), lim, cfg.RateLimit.ByPlatform.WindowSeconds) {
				rejected("platform", zap.Int8("platform_id", pid))
				return
			}
		}
	}

	if lim := cfg.RateLimit.ByUser.RequestsPerSecond; lim > 0 {
		if v := ctx.Input.GetData("platform_user_id"); v != nil {
			uid := v.(string)
			if !allowRequest(reqCtx, rdb, "user", "user_"+uid, lim, cfg.RateLimit.ByUser.WindowSeconds) {
				rejected("user", zap.String("platform_user_id", uid))
				return
			}
		}
	}
}

// allowRequest 滑动窗口计数（Sorted Set），返回是否放行
func allowRequest(ctx context.Context, rdb *redis.Client, dimension, key string, limit, windowSeconds int) bool {
	if rdb == nil {
		return true
	}
	if windowSeconds <= 0 {
		windowSeconds = 1
	}

	redisKey := fmt.Sprintf("ratelimit:%s:%s", dimension, key)
	now := time.Now().Unix()
	windowStart := now - int64(windowSeconds)

	pipe := rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCount(ctx, redisKey, strconv.FormatInt(windowStart, 10), "+inf")
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now),
		Member: fmt.Sprintf("%d_%d", now, time.Now().UnixNano()),
	})
	pipe.Expire(ctx, redisKey, time.Duration(windowSeconds+10)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("rate limit check failed", zap.Error(err))
		return true
	}
	count, err := countCmd.Result()
	if err != nil {
		logger.Warn("rate limit count failed", zap.Error(err))
		return true
	}
	return count < int64(limit)
}

// getClientIP 反向代理链路下取客户端IP（限流口径与认证保持一致）
func getClientIP(ctx *beegocontext.Context) string {
	if ip := ctx.Input.Header("X-Real-IP"); ip != "" {
		return ip
	}
	if xff := ctx.Input.Header("X-Forwarded-For"); xff != "" {
		for idx := 0; idx < len(xff); idx++ {
			if xff[idx] == ',' {
				return xff[:idx]
			}
		}
		return xff
	}
	return ctx.Request.RemoteAddr
}
