package api

import (
	"errors"

	helper "bjl-server/internal/common/helper"
	"bjl-server/internal/common/response"
	"bjl-server/internal/game"
	"bjl-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

type DealResultController struct{ beego.Controller }

// Deal 处理荷官端开牌上报：POST /api/deal_result
// card_list 按席位顺序给出（1-3 庄，4-6 闲），空位 "0|"。
// 同一局重复上报返回 409，不会二次派彩。
func (c *DealResultController) Deal() {
	traceID := helper.GetTraceID(c.Ctx)

	// 这里必须要对业务参数严格校验，后续service不再重复校验
	dp, ok, msg := helper.ParseAndValidateDeal(c.Ctx)
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

	out, err := dealSvc.SubmitDealResult(c.Ctx.Request.Context(), service.DealInput{
		TableID:     dp.TableId,
		ShoeNumber:  dp.ShoeNumber,
		RoundNumber: dp.RoundNumber,
		CardList:    dp.CardList,
		DealTime:    dp.DealTime,
		Operator:    operator,
		TraceID:     traceID,
	})
	if err != nil {
		// 重复提交：该局结果已计算过
		if errors.Is(err, service.ErrDuplicateRound) {
			response.Conflict(&c.Controller, response.CodeDuplicateRound, traceID)
			return
		}
		// 牌面非法或全空
		if errors.Is(err, game.ErrBadCardToken) || errors.Is(err, game.ErrEmptyBoard) {
			response.ErrorWithMessage(&c.Controller, 400, response.CodeInvalidCardList, err.Error(), traceID)
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
