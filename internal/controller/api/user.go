package api

import (
	"database/sql"
	"strconv"
	"strings"

	helper "bjl-server/internal/common/helper"
	"bjl-server/internal/common/response"
	infmysql "bjl-server/internal/infra/mysql"
	"bjl-server/internal/model"

	beego "github.com/beego/beego/v2/server/web"
)

// UserController 用户查询接口：余额与注单记录。
// 平台信息由认证中间件注入，用户只能查询自己的数据。
type UserController struct{ beego.Controller }

// platformIdentity 提取认证中间件注入的平台用户身份
func platformIdentity(c *UserController) (int8, string, bool) {
	platformID := int8(0)
	platformUserID := ""
	if v := c.Ctx.Input.GetData("platform_id"); v != nil {
		if pid, ok := v.(int8); ok {
			platformID = pid
		}
	}
	if v := c.Ctx.Input.GetData("platform_user_id"); v != nil {
		if puid, ok := v.(string); ok {
			platformUserID = puid
		}
	}
	// 演示模式降级：直接取 user_id 参数
	if platformUserID == "" {
		if uid := strings.TrimSpace(c.Ctx.Input.Query("user_id")); uid != "" {
			platformUserID = uid
		}
	}
	return platformID, platformUserID, platformUserID != ""
}

// Balance 查询余额：GET /api/user/balance
func (c *UserController) Balance() {
	traceID := helper.GetTraceID(c.Ctx)

	platformID, platformUserID, ok := platformIdentity(c)
	if !ok {
		response.BadRequest(&c.Controller, "missing user identity", traceID)
		return
	}

	user, err := model.GetCustomerByPlatformUser(c.Ctx.Request.Context(), infmysql.SQLX(), platformID, platformUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			response.NotFound(&c.Controller, "user not found", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{
		"user_id":        user.UserID,
		"balance":        user.Balance,
		"rebate_balance": user.RebateBalance,
		"rebate_total":   user.RebateTotal,
		"is_exempt":      user.IsExempt,
	}, traceID)
}

// Bets 查询注单记录：GET /api/user/bets?round_id=&limit=
func (c *UserController) Bets() {
	traceID := helper.GetTraceID(c.Ctx)

	platformID, platformUserID, ok := platformIdentity(c)
	if !ok {
		response.BadRequest(&c.Controller, "missing user identity", traceID)
		return
	}

	var roundID int64
	if s := strings.TrimSpace(c.Ctx.Input.Query("round_id")); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			response.BadRequest(&c.Controller, "round_id must be non-negative integer", traceID)
			return
		}
		roundID = v
	}

	limit := 10
	if s := strings.TrimSpace(c.Ctx.Input.Query("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			limit = v
		}
	}

	records, err := model.ListUserBets(c.Ctx.Request.Context(), infmysql.SQLX(), platformID, platformUserID, roundID, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{
		"bets":  records,
		"count": len(records),
	}, traceID)
}
