package auth

import "errors"

// 认证相关错误定义
var (
	ErrMissingAuthHeaders  = errors.New("missing authentication headers")
	ErrInvalidPlatform     = errors.New("invalid platform")
	ErrPlatformDisabled    = errors.New("platform is disabled")
	ErrTimestampExpired    = errors.New("timestamp expired")
	ErrNonceReused         = errors.New("nonce already used")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrIPNotAllowed        = errors.New("ip address not allowed")
	ErrMissingPlatformUser = errors.New("missing platform user id")
	ErrInvalidPlatformUser = errors.New("invalid platform user id format")
)
