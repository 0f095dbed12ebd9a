package queue

import "errors"

var (
	// ErrNoHandler 任务类型未注册处理函数
	ErrNoHandler = errors.New("queue: no handler registered for task kind")
	// ErrHandlerPanic 处理函数 panic，按致命错误落死信
	ErrHandlerPanic = errors.New("queue: handler panicked")
)
