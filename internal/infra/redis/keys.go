package redis

import "strconv"

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串，便于统一维护与变更。

const (
	// PrefixBetIdemResult：投注幂等“结果缓存”Key 的前缀。
	// 作用：缓存某个 idempotency key 对应的第一次成功结果（BetOutput JSON），用于后续重复请求直接返回。
	PrefixBetIdemResult = "bet:idem:result:"
	// PrefixBetIdemLock：投注幂等“进行中锁”Key 的前缀。
	// 作用：使用 SETNX + TTL 标记 idempotency key 正在处理，吸收瞬时重复请求，减轻数据库压力。
	PrefixBetIdemLock = "bet:idem:lock:"

	// PrefixCountdown：台桌下注倒计时Key的前缀，值为剩余秒数
	PrefixCountdown = "table:countdown:"
	// PrefixTableOutcome：台桌最新开牌结果缓存（推送端按台桌读取）
	PrefixTableOutcome = "table:outcome:"
	// PrefixUserPayout：用户在某台桌的待推送派彩金额缓存
	PrefixUserPayout = "table:payout:"
)

// IdemResultKey：构造幂等“结果缓存”的完整 Key。
// 形如：bet:idem:result:{idempotency_key}
func IdemResultKey(k string) string { return PrefixBetIdemResult + k }

// IdemLockKey：构造幂等“进行中锁”的完整 Key。
// 形如：bet:idem:lock:{idempotency_key}
func IdemLockKey(k string) string { return PrefixBetIdemLock + k }

// CountdownKey：构造台桌倒计时 Key。形如：table:countdown:{table_id}
func CountdownKey(tableID int64) string {
	return PrefixCountdown + strconv.FormatInt(tableID, 10)
}

// TableOutcomeKey：构造台桌开牌结果缓存 Key。形如：table:outcome:{table_id}
func TableOutcomeKey(tableID int64) string {
	return PrefixTableOutcome + strconv.FormatInt(tableID, 10)
}

// UserPayoutKey：构造用户派彩缓存 Key。形如：table:payout:{table_id}:{user_id}
func UserPayoutKey(tableID, userID int64) string {
	return PrefixUserPayout + strconv.FormatInt(tableID, 10) + ":" + strconv.FormatInt(userID, 10)
}
