package wallet

import (
	"bjl-server/internal/queue"
)

// 钱包侧已知的终态业务错误：重试无意义，且不回滚本地结算
// （本地账本是事实来源，差异由人工对账处理）
var terminalErrorCodes = map[string]bool{
	"DUPLICATE_TRANSACTION": true,
	"USER_NOT_FOUND":        true,
	"INSUFFICIENT_BALANCE":  true,
}

// Classify 将钱包调用结果归类为 done/retry/fatal。
// 重试与否只在这里决定，调用方不得自行判断。
func Classify(resp *Response, err error) queue.Result {
	if err != nil {
		// 网络错误/超时/非200状态/响应体不可解析
		return queue.Retry
	}
	if resp == nil {
		return queue.Retry
	}
	if resp.Code == 200 {
		return queue.Done
	}
	if terminalErrorCodes[resp.ErrorCode] {
		return queue.Fatal
	}
	return queue.Retry
}
