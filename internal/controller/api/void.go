package api

import (
	"errors"

	helper "bjl-server/internal/common/helper"
	"bjl-server/internal/common/response"
	"bjl-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

type VoidController struct{ beego.Controller }

// Void 作废一局并冲正注单：POST /api/void
// 未结算注单退本金，已结算注单按净额冲正。已关闭的局返回 409。
func (c *VoidController) Void() {
	traceID := helper.GetTraceID(c.Ctx)

	vp, ok, msg := helper.ParseAndValidateVoid(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	operator := ""
	if v := c.Ctx.Input.GetData("admin_user"); v != nil {
		if s, ok := v.(string); ok {
			operator = s
		}
	}

	out, err := voidSvc.VoidRound(c.Ctx.Request.Context(), service.VoidInput{
		TableID:     vp.TableId,
		ShoeNumber:  vp.ShoeNumber,
		RoundNumber: vp.RoundNumber,
		Reason:      vp.Reason,
		Operator:    operator,
		TraceID:     traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrRoundNotFound) {
			response.NotFound(&c.Controller, "round not found", traceID)
			return
		}
		// 已关闭或已作废的局不可再作废
		if errors.Is(err, service.ErrInvalidRoundState) {
			response.Conflict(&c.Controller, response.CodeInvalidState, traceID)
			return
		}
		if errors.Is(err, service.ErrBadRequest) {
			response.BadRequest(&c.Controller, "invalid request", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}
