package helper

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

// WalletTimeout 钱包扣款/结算通知统一超时
const WalletTimeout = 8 * time.Second

// 并发统计（钱包通道）
var (
	activeConnections int64
	totalRequests     int64
)

// 钱包专用客户端：结算高峰是批量逐用户通知，放大并发连接数
var walletClient = &fasthttp.Client{
	ReadTimeout:                   WalletTimeout,
	WriteTimeout:                  WalletTimeout,
	MaxIdleConnDuration:           60 * time.Second,
	MaxConnsPerHost:               100,
	MaxConnWaitTimeout:            1 * time.Second,
	DisableHeaderNamesNormalizing: true,
}

func doTimeout(client *fasthttp.Client, requestBody []byte, method, requestURI string, headers map[string]string, timeout time.Duration) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(requestURI)
	req.Header.SetMethod(method)
	if method == "POST" {
		req.SetBody(requestBody)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	err := client.DoTimeout(req, resp, timeout)

	var respBytes []byte
	statusCode := 0
	if err == nil {
		respBytes = append(respBytes, resp.Body()...)
		statusCode = resp.StatusCode()
	}
	return respBytes, statusCode, errors.WithStack(err)
}

// HttpDoTimeoutForWallet 钱包专用调用，带并发统计
func HttpDoTimeoutForWallet(requestBody []byte, method, requestURI string, headers map[string]string, timeout time.Duration) ([]byte, int, error) {
	atomic.AddInt64(&activeConnections, 1)
	atomic.AddInt64(&totalRequests, 1)
	defer atomic.AddInt64(&activeConnections, -1)

	return doTimeout(walletClient, requestBody, method, requestURI, headers, timeout)
}

// GetConcurrencyStats 返回钱包通道的并发统计（活跃连接数、累计请求数）
func GetConcurrencyStats() (activeConns int64, totalReqs int64) {
	return atomic.LoadInt64(&activeConnections), atomic.LoadInt64(&totalRequests)
}
