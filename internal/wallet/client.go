package wallet

import (
	"fmt"
	"time"

	"bjl-server/common"
	"bjl-server/common/helper"
	"bjl-server/common/logger"
	"bjl-server/internal/config"

	"go.uber.org/zap"
)

// 游戏编码（钱包侧识别用）
const GameCode = "XG_bjl"

// DebitRequest 下注扣款通知
type DebitRequest struct {
	UserName              string `json:"user_name"`
	TransactionID         string `json:"transaction_id"`
	ExternalTransactionID string `json:"external_transaction_id"`
	Amount                string `json:"amount"` // 负数=扣款
	GameCode              string `json:"game_code"`
	RoundID               string `json:"round_id"`
	TableID               int64  `json:"table_id"`
	Timestamp             int64  `json:"timestamp"`
}

// SettleRequest 结算通知
type SettleRequest struct {
	UserName              string `json:"user_name"`
	TransactionID         string `json:"transaction_id"`
	RoundID               string `json:"round_id"`
	ExternalTransactionID string `json:"external_transaction_id"`
	BetAmount             string `json:"bet_amount"`
	WinAmount             string `json:"win_amount"`
	WinLossDelta          string `json:"win_loss_delta"`
	ResultType            string `json:"result_type"` // WIN | LOSE
	BetTime               int64  `json:"bet_time"`
	SettledTime           int64  `json:"settled_time"`
	GameCode              string `json:"game_code"`
}

// Response 钱包响应。code=200 为成功，其余走 error_code 分类。
type Response struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// Client 外部钱包 HTTP 客户端
type Client struct {
	endpoint string
	timeout  time.Duration
}

// NewClient 从配置构造钱包客户端
func NewClient() *Client {
	c := &Client{timeout: helper.WalletTimeout}
	if cfg := config.Get(); cfg != nil {
		c.endpoint = cfg.Wallet.Endpoint
		if cfg.Wallet.TimeoutMs > 0 {
			c.timeout = time.Duration(cfg.Wallet.TimeoutMs) * time.Millisecond
		}
	}
	return c
}

// Debit 发送下注扣款通知
func (c *Client) Debit(req *DebitRequest) (*Response, error) {
	if req.GameCode == "" {
		req.GameCode = GameCode
	}
	return c.post("/api/wallet/debit", req)
}

// Settle 发送结算通知
func (c *Client) Settle(req *SettleRequest) (*Response, error) {
	if req.GameCode == "" {
		req.GameCode = GameCode
	}
	return c.post("/api/wallet/settle", req)
}

func (c *Client) post(path string, payload interface{}) (*Response, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("wallet: endpoint not configured")
	}

	body, err := common.JsonMarshal(payload)
	if err != nil {
		return nil, err
	}

	url := c.endpoint + path
	headers := map[string]string{"Content-Type": "application/json"}

	respBytes, statusCode, err := helper.HttpDoTimeoutForWallet(body, "POST", url, headers, c.timeout)
	if err != nil {
		logger.Warn("wallet request failed",
			zap.String("url", url),
			zap.Error(err))
		return nil, err
	}
	if statusCode != 200 {
		return nil, fmt.Errorf("wallet: http status %d", statusCode)
	}

	var resp Response
	if err := common.JsonUnmarshal(respBytes, &resp); err != nil {
		// 响应体不可解析按可重试处理，由分类器兜底
		logger.Warn("wallet response malformed",
			zap.String("url", url),
			zap.ByteString("body", respBytes))
		return nil, fmt.Errorf("wallet: malformed response: %w", err)
	}

	return &resp, nil
}
