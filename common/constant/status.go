package constant

// 通用行状态（users / game_tables 共用）
const (
	StatusNormal   = 1 // 状态：正常
	StatusDisabled = 2 // 状态：禁用
)
