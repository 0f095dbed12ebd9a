package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"bjl-server/common/constant"
	"bjl-server/common/logger"
	"bjl-server/internal/config"
	infrds "bjl-server/internal/infra/redis"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// Platform 接入平台信息（来源于配置）
type Platform struct {
	PlatformID int8     `json:"platform_id"`
	AppKey     string   `json:"app_key"`
	AppSecret  string   `json:"app_secret"`
	Name       string   `json:"name"`
	Status     int8     `json:"status"`
	RateLimit  int      `json:"rate_limit"`
	AllowedIPs []string `json:"allowed_ips"`
}

// 时间戳允许偏差与 Nonce 保留时长，后者必须大于前者
const (
	timestampSkewSec = 300
	nonceTTL         = 10 * time.Minute
)

// VerifyPlatformSignature 校验平台签名请求
// 签名算法：HMAC-SHA256(app_key + timestamp + nonce + body, app_secret)
// 时间戳与 Nonce 双重防重放；Redis 不可用时 Nonce 校验降级放行
func VerifyPlatformSignature(ctx *beegocontext.Context) (*Platform, error) {
	appKey := strings.TrimSpace(ctx.Input.Header("X-Platform-Key"))
	timestamp := strings.TrimSpace(ctx.Input.Header("X-Timestamp"))
	nonce := strings.TrimSpace(ctx.Input.Header("X-Nonce"))
	signature := strings.TrimSpace(ctx.Input.Header("X-Signature"))

	if appKey == "" || timestamp == "" || nonce == "" || signature == "" {
		logger.Warn("missing authentication headers",
			zap.String("app_key", appKey),
			zap.Bool("has_timestamp", timestamp != ""),
			zap.Bool("has_nonce", nonce != ""),
			zap.Bool("has_signature", signature != ""))
		return nil, ErrMissingAuthHeaders
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		logger.Warn("invalid timestamp format", zap.String("timestamp", timestamp))
		return nil, ErrTimestampExpired
	}
	now := time.Now().Unix()
	if diff := math.Abs(float64(now - ts)); diff > timestampSkewSec {
		logger.Warn("timestamp expired",
			zap.Int64("timestamp", ts),
			zap.Int64("now", now),
			zap.Float64("diff_seconds", diff))
		return nil, ErrTimestampExpired
	}

	if err := checkAndSetNonce(ctx.Request.Context(), appKey, nonce); err != nil {
		logger.Warn("nonce check failed",
			zap.String("app_key", appKey),
			zap.String("nonce", nonce),
			zap.Error(err))
		return nil, err
	}

	platform, err := platformByAppKey(appKey)
	if err != nil {
		logger.Warn("platform not found", zap.String("app_key", appKey))
		return nil, ErrInvalidPlatform
	}
	if int(platform.Status) != constant.StatusNormal {
		logger.Warn("platform is disabled",
			zap.String("app_key", appKey),
			zap.Int8("status", platform.Status))
		return nil, ErrPlatformDisabled
	}

	if len(platform.AllowedIPs) > 0 {
		clientIP := getClientIP(ctx)
		if !isIPAllowed(clientIP, platform.AllowedIPs) {
			logger.Warn("ip not allowed",
				zap.String("app_key", appKey),
				zap.String("client_ip", clientIP),
				zap.Strings("allowed_ips", platform.AllowedIPs))
			return nil, ErrIPNotAllowed
		}
	}

	body := readRequestBody(ctx)
	expectedSig := generateSignature(appKey, timestamp, nonce, body, platform.AppSecret)

	// 恒定时间比较，防时序攻击
	if !secureCompare(signature, expectedSig) {
		logger.Warn("signature verification failed",
			zap.String("app_key", appKey),
			zap.String("expected", expectedSig[:16]+"..."),
			zap.String("received", safePrefix(signature, 16)+"..."))
		return nil, ErrInvalidSignature
	}

	logger.Debug("platform authentication successful",
		zap.String("app_key", appKey),
		zap.Int8("platform_id", platform.PlatformID))
	return platform, nil
}

func platformByAppKey(appKey string) (*Platform, error) {
	cfg := config.Get()
	if cfg == nil || cfg.Auth.Platforms == nil {
		return nil, ErrInvalidPlatform
	}
	for _, p := range cfg.Auth.Platforms {
		if p.AppKey == appKey {
			return &Platform{
				PlatformID: p.PlatformID,
				AppKey:     p.AppKey,
				AppSecret:  p.AppSecret,
				Name:       p.Name,
				Status:     p.Status,
				RateLimit:  p.RateLimit,
				AllowedIPs: p.AllowedIPs,
			}, nil
		}
	}
	return nil, ErrInvalidPlatform
}

// checkAndSetNonce Nonce 消费即标记；Redis 异常时放行，不让缓存故障阻断投注
func checkAndSetNonce(ctx context.Context, appKey, nonce string) error {
	rdb := infrds.Client()
	if rdb == nil {
		logger.Warn("redis not available, skip nonce check")
		return nil
	}

	nonceKey := fmt.Sprintf("nonce:%s:%s", appKey, nonce)
	exists, err := rdb.Exists(ctx, nonceKey).Result()
	if err != nil {
		logger.Warn("redis exists check failed", zap.Error(err))
		return nil
	}
	if exists > 0 {
		return ErrNonceReused
	}
	if err := rdb.SetEx(ctx, nonceKey, "1", nonceTTL).Err(); err != nil {
		logger.Warn("redis setex failed", zap.Error(err))
	}
	return nil
}

func generateSignature(appKey, timestamp, nonce, body, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(appKey + timestamp + nonce + body))
	return hex.EncodeToString(h.Sum(nil))
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return hmac.Equal([]byte(a), []byte(b))
}

func safePrefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

// readRequestBody 取参与签名的请求体；GET/DELETE 不参与签名
// body 只读一次，读到后缓存到 context 供后续复用
func readRequestBody(ctx *beegocontext.Context) string {
	if ctx.Request.Method == "GET" || ctx.Request.Method == "DELETE" {
		return ""
	}
	if body := ctx.Input.GetData("request_body"); body != nil {
		if bodyStr, ok := body.(string); ok {
			return bodyStr
		}
	}
	bodyStr := string(ctx.Input.RequestBody)
	ctx.Input.SetData("request_body", bodyStr)
	return bodyStr
}

// getClientIP 反向代理链路下取真实客户端IP
func getClientIP(ctx *beegocontext.Context) string {
	if ip := ctx.Input.Header("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	if xff := ctx.Input.Header("X-Forwarded-For"); xff != "" {
		if ips := strings.Split(xff, ","); len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	host, _, err := net.SplitHostPort(ctx.Request.RemoteAddr)
	if err != nil {
		return ctx.Request.RemoteAddr
	}
	return host
}

// isIPAllowed 白名单匹配，条目支持单IP或CIDR段
func isIPAllowed(clientIP string, allowedIPs []string) bool {
	if len(allowedIPs) == 0 {
		return true
	}
	parsed := net.ParseIP(clientIP)
	for _, entry := range allowedIPs {
		entry = strings.TrimSpace(entry)
		if entry == clientIP {
			return true
		}
		if parsed != nil && strings.Contains(entry, "/") {
			if _, ipnet, err := net.ParseCIDR(entry); err == nil && ipnet.Contains(parsed) {
				return true
			}
		}
	}
	return false
}

// IsValidPlatformUserID 平台用户ID只允许字母数字下划线连字符，最长64
func IsValidPlatformUserID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if !((c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '_' || c == '-') {
			return false
		}
	}
	return true
}
