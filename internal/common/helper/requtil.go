package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 金额格式校验：非负，最多两位小数（预编译正则）
var moneyRe = regexp.MustCompile(`^(?:0|[1-9]\d*)(?:\.\d{1,2})?$`)

// IsMoneyFormat 判断金额格式
func IsMoneyFormat(s string) bool {
	return moneyRe.MatchString(strings.TrimSpace(s))
}

// 牌面 token 格式：点数|花色，点数 0 表示空位（此时花色为空）
// 例如 "13|h"、"1|r"、"0|"
var cardTokenRe = regexp.MustCompile(`^(?:0\||(?:[1-9]|1[0-3])\|[rhfm])$`)

// IsCardToken 判断单张牌 token 格式
func IsCardToken(s string) bool {
	return cardTokenRe.MatchString(strings.TrimSpace(s))
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// -------- Bet helpers --------

// 可投注的玩法编码：2=闲对 3=幸运6 4=庄对 6=闲 7=和 8=庄 9=龙7 10=熊8
var validWagerTypes = map[int]bool{
	2: true, 3: true, 4: true, 6: true, 7: true, 8: true, 9: true, 10: true,
}

// BetParsed 为解析后的投注入参（与控制器/服务层解耦）
type BetParsed struct {
	TableId        int64  `json:"table_id"`
	UserId         int64  `json:"user_id"`
	BetAmount      string `json:"bet_amount"`
	WagerType      int    `json:"wager_type"`
	IsExempt       bool   `json:"is_exempt"` // 免佣模式
	Platform       int    `json:"platform"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ParseBetFromJSON 解析 JSON 到 BetParsed。失败返回 false 与错误消息。
func ParseBetFromJSON(r io.Reader) (BetParsed, bool, string) {
	var out BetParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return BetParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParseBetFromForm 从表单读取字段并做强校验，返回 BetParsed。失败返回 false 与可读错误信息。
func ParseBetFromForm(ctx *beegocontext.Context) (BetParsed, bool, string) {
	var out BetParsed

	tidStr := strings.TrimSpace(ctx.Input.Query("table_id"))
	if tidStr == "" {
		return BetParsed{}, false, "table_id required"
	}
	tid, err := strconv.ParseInt(tidStr, 10, 64)
	if err != nil || tid <= 0 {
		return BetParsed{}, false, "table_id must be positive integer"
	}
	out.TableId = tid

	if uidStr := strings.TrimSpace(ctx.Input.Query("user_id")); uidStr != "" {
		u64, err := strconv.ParseInt(uidStr, 10, 64)
		if err != nil {
			return BetParsed{}, false, "user_id must be integer"
		}
		out.UserId = u64
	}

	out.BetAmount = strings.TrimSpace(ctx.Input.Query("bet_amount"))
	if out.BetAmount == "" || !IsMoneyFormat(out.BetAmount) {
		return BetParsed{}, false, "bet_amount must be numeric with up to 2 decimals"
	}

	wtStr := strings.TrimSpace(ctx.Input.Query("wager_type"))
	if wtStr == "" {
		return BetParsed{}, false, "wager_type required"
	}
	wt, err := strconv.Atoi(wtStr)
	if err != nil || !validWagerTypes[wt] {
		return BetParsed{}, false, "wager_type must be one of: 2|3|4|6|7|8|9|10"
	}
	out.WagerType = wt

	out.IsExempt = strings.TrimSpace(ctx.Input.Query("is_exempt")) == "1"

	// platform: 可选，默认 1；如传入，需为 1..127 的整数
	pStr := strings.TrimSpace(ctx.Input.Query("platform"))
	if pStr == "" {
		out.Platform = 1
	} else {
		pn, err := strconv.Atoi(pStr)
		if err != nil || pn <= 0 || pn >= 128 {
			out.Platform = 1
		} else {
			out.Platform = pn
		}
	}

	out.IdempotencyKey = strings.TrimSpace(ctx.Input.Query("idempotency_key"))
	if out.IdempotencyKey == "" {
		return BetParsed{}, false, "idempotency_key required"
	}

	return out, true, ""
}

// ValidateBet 对通用字段做二次校验（适用于 JSON 与 FORM）。失败返回 false 与错误消息。
func ValidateBet(in *BetParsed) (bool, string) {
	// 注意：UserId 不是必填字段，多平台认证系统使用 platform_id + platform_user_id
	if in.TableId <= 0 || strings.TrimSpace(in.BetAmount) == "" || in.IdempotencyKey == "" {
		return false, "missing or invalid fields"
	}
	// 额外长度保护，避免异常超长输入
	if len(in.IdempotencyKey) > 64 || len(in.BetAmount) > 32 {
		return false, "invalid request"
	}
	if !validWagerTypes[in.WagerType] {
		return false, "wager_type must be one of: 2|3|4|6|7|8|9|10"
	}
	if !IsMoneyFormat(in.BetAmount) {
		return false, "bet_amount must be numeric with up to 2 decimals"
	}
	return true, ""
}

// ParseAndValidateBet 按 Content-Type 自动解析并做统一校验
func ParseAndValidateBet(ctx *beegocontext.Context) (BetParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseBetFromJSON, ParseBetFromForm)
	if !ok {
		return BetParsed{}, false, msg
	}
	if ok, msg := ValidateBet(&out); !ok {
		return BetParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Deal helpers --------

// DealParsed 为解析后的开牌入参
// CardList 按席位顺序给出 6 个 token（1-3 庄，4-6 闲），空位用 "0|"
type DealParsed struct {
	TableId     int64    `json:"table_id"`
	ShoeNumber  int      `json:"shoe_number"`
	RoundNumber int      `json:"round_number"`
	CardList    []string `json:"card_list"`
	DealTime    int64    `json:"deal_time"`
}

func ParseDealFromJSON(r io.Reader) (DealParsed, bool, string) {
	var out DealParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return DealParsed{}, false, "invalid request"
	}
	return out, true, ""
}

func ParseDealFromForm(ctx *beegocontext.Context) (DealParsed, bool, string) {
	var out DealParsed
	if tid, err := strconv.ParseInt(strings.TrimSpace(ctx.Input.Query("table_id")), 10, 64); err == nil {
		out.TableId = tid
	}
	if n, err := strconv.Atoi(strings.TrimSpace(ctx.Input.Query("shoe_number"))); err == nil {
		out.ShoeNumber = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(ctx.Input.Query("round_number"))); err == nil {
		out.RoundNumber = n
	}
	// card_list 表单下用逗号分隔："10|r,6|m,0|,8|h,2|f,0|"
	if cl := strings.TrimSpace(ctx.Input.Query("card_list")); cl != "" {
		out.CardList = strings.Split(cl, ",")
	}
	if ts := strings.TrimSpace(ctx.Input.Query("deal_time")); ts != "" {
		if v, err := strconv.ParseInt(ts, 10, 64); err == nil {
			out.DealTime = v
		}
	}
	return out, true, ""
}

func ValidateDeal(in *DealParsed) (bool, string) {
	if in.TableId <= 0 || in.ShoeNumber <= 0 || in.RoundNumber <= 0 {
		return false, "invalid request"
	}
	if len(in.CardList) == 0 || len(in.CardList) > 6 {
		return false, "card_list must contain 1 to 6 entries"
	}
	for _, tok := range in.CardList {
		if !IsCardToken(tok) {
			return false, "invalid card token: " + tok
		}
	}
	return true, ""
}

// ParseAndValidateDeal 按 Content-Type 自动解析并校验
func ParseAndValidateDeal(ctx *beegocontext.Context) (DealParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseDealFromJSON, ParseDealFromForm)
	if !ok {
		return DealParsed{}, false, msg
	}
	if ok, msg := ValidateDeal(&out); !ok {
		return DealParsed{}, false, msg
	}
	return out, true, ""
}

// -------- TableStart helpers --------

// TableStartParsed 为开局（进入下注倒计时）入参
type TableStartParsed struct {
	TableId      int64 `json:"table_id"`
	CountdownSec int   `json:"countdown_sec"` // 0 时使用配置默认值
}

func ParseTableStartFromJSON(r io.Reader) (TableStartParsed, bool, string) {
	var out TableStartParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return TableStartParsed{}, false, "invalid request"
	}
	return out, true, ""
}

func ParseTableStartFromForm(ctx *beegocontext.Context) (TableStartParsed, bool, string) {
	var out TableStartParsed
	if tid, err := strconv.ParseInt(strings.TrimSpace(ctx.Input.Query("table_id")), 10, 64); err == nil {
		out.TableId = tid
	}
	if n, err := strconv.Atoi(strings.TrimSpace(ctx.Input.Query("countdown_sec"))); err == nil {
		out.CountdownSec = n
	}
	return out, true, ""
}

func ValidateTableStart(in *TableStartParsed) (bool, string) {
	if in.TableId <= 0 {
		return false, "table_id required"
	}
	if in.CountdownSec < 0 || in.CountdownSec > 300 {
		return false, "countdown_sec must be 0..300"
	}
	return true, ""
}

func ParseAndValidateTableStart(ctx *beegocontext.Context) (TableStartParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseTableStartFromJSON, ParseTableStartFromForm)
	if !ok {
		return TableStartParsed{}, false, msg
	}
	if ok, msg := ValidateTableStart(&out); !ok {
		return TableStartParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Void helpers --------

// VoidParsed 为作废局入参
type VoidParsed struct {
	TableId     int64  `json:"table_id"`
	ShoeNumber  int    `json:"shoe_number"`
	RoundNumber int    `json:"round_number"`
	Reason      string `json:"reason"`
}

func ParseVoidFromJSON(r io.Reader) (VoidParsed, bool, string) {
	var out VoidParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return VoidParsed{}, false, "invalid request"
	}
	return out, true, ""
}

func ParseVoidFromForm(ctx *beegocontext.Context) (VoidParsed, bool, string) {
	var out VoidParsed
	if tid, err := strconv.ParseInt(strings.TrimSpace(ctx.Input.Query("table_id")), 10, 64); err == nil {
		out.TableId = tid
	}
	if n, err := strconv.Atoi(strings.TrimSpace(ctx.Input.Query("shoe_number"))); err == nil {
		out.ShoeNumber = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(ctx.Input.Query("round_number"))); err == nil {
		out.RoundNumber = n
	}
	out.Reason = strings.TrimSpace(ctx.Input.Query("reason"))
	return out, true, ""
}

func ValidateVoid(in *VoidParsed) (bool, string) {
	if in.TableId <= 0 || in.ShoeNumber <= 0 || in.RoundNumber <= 0 {
		return false, "invalid request"
	}
	if len(in.Reason) > 255 {
		return false, "reason too long"
	}
	return true, ""
}

func ParseAndValidateVoid(ctx *beegocontext.Context) (VoidParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseVoidFromJSON, ParseVoidFromForm)
	if !ok {
		return VoidParsed{}, false, msg
	}
	if ok, msg := ValidateVoid(&out); !ok {
		return VoidParsed{}, false, msg
	}
	return out, true, ""
}
