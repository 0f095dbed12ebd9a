package api

import (
	"errors"
	"strconv"
	"strings"

	helper "bjl-server/internal/common/helper"
	"bjl-server/internal/common/response"
	"bjl-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

type TableController struct{ beego.Controller }

// adminOperator 从认证中间件注入的数据中取操作员标识
func adminOperator(c *TableController) string {
	if v := c.Ctx.Input.GetData("admin_user"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// StartBetting 开新局并进入下注倒计时：POST /api/table/start
func (c *TableController) StartBetting() {
	traceID := helper.GetTraceID(c.Ctx)

	tp, ok, msg := helper.ParseAndValidateTableStart(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	out, err := tableSvc.StartBetting(c.Ctx.Request.Context(), service.StartBettingInput{
		TableID:      tp.TableId,
		CountdownSec: tp.CountdownSec,
		Operator:     adminOperator(c),
		TraceID:      traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrTableNotFound) {
			response.NotFound(&c.Controller, "table not found", traceID)
			return
		}
		if errors.Is(err, service.ErrTableDisabled) {
			response.Conflict(&c.Controller, response.CodeInvalidState, traceID)
			return
		}
		if errors.Is(err, service.ErrDuplicateRound) {
			response.Conflict(&c.Controller, response.CodeDuplicateRound, traceID)
			return
		}
		if errors.Is(err, service.ErrBadRequest) {
			response.BadRequest(&c.Controller, "invalid request", traceID)
			return
		}
		// 状态机拒绝（上一局未关闭等）
		if strings.Contains(err.Error(), "transition") {
			response.Conflict(&c.Controller, response.CodeInvalidState, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// StartShuffle 进入洗牌换靴：POST /api/table/shuffle
func (c *TableController) StartShuffle() {
	traceID := helper.GetTraceID(c.Ctx)

	tidStr := strings.TrimSpace(c.Ctx.Input.Query("table_id"))
	tid, err := strconv.ParseInt(tidStr, 10, 64)
	if err != nil || tid <= 0 {
		response.BadRequest(&c.Controller, "table_id must be positive integer", traceID)
		return
	}

	if err := tableSvc.StartShuffle(c.Ctx.Request.Context(), tid, adminOperator(c), traceID); err != nil {
		if errors.Is(err, service.ErrTableNotFound) {
			response.NotFound(&c.Controller, "table not found", traceID)
			return
		}
		if strings.Contains(err.Error(), "transition") {
			response.Conflict(&c.Controller, response.CodeInvalidState, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]any{"table_id": tid}, traceID)
}
