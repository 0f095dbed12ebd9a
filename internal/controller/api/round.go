package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	infmysql "bjl-server/internal/infra/mysql"
	infrds "bjl-server/internal/infra/redis"
	"bjl-server/internal/model"

	beego "github.com/beego/beego/v2/server/web"
	goredis "github.com/redis/go-redis/v9"
)

// RoundController 提供查询台桌最新开牌结果的接口（便于调试/回放）
// GET /api/round/:table_id
// 返回 { ok, outcome, settlement }
// - outcome 优先从 Redis 读取（开牌后的展示窗口内命中），miss 时回源数据库并回填
// - settlement 仅在该局已结算时返回

type RoundController struct {
	beego.Controller
}

func (c *RoundController) GetRound() {
	tidStr := c.Ctx.Input.Param(":table_id")
	tableID, err := strconv.ParseInt(tidStr, 10, 64)
	if err != nil || tableID <= 0 {
		c.CustomAbort(400, "table_id must be positive integer")
		return
	}

	ctx := context.Background()
	r := infrds.Client()

	var outcome map[string]any

	// 读取台桌开牌结果缓存
	if r != nil {
		if bs, err := r.Get(ctx, infrds.TableOutcomeKey(tableID)).Bytes(); err == nil {
			_ = json.Unmarshal(bs, &outcome)
		} else if err != goredis.Nil {
			// 非不存在错误，视为服务不可用
			c.CustomAbort(503, "redis error")
			return
		}
	}

	var settlement map[string]any

	if outcome == nil {
		// DB fallback：从数据库读取最近一局，并回填 Redis
		rs, err := model.GetLatestRoundByTable(ctx, infmysql.SQLX(), tableID)
		if err != nil {
			if err == sql.ErrNoRows {
				c.CustomAbort(404, "round not found")
				return
			}
			c.CustomAbort(503, "db error")
			return
		}

		var cards map[string]string
		_ = json.Unmarshal([]byte(rs.CardList), &cards)
		outcome = map[string]any{
			"round_id":     rs.ID,
			"round_no":     model.RoundNo(rs.TableID, rs.ShoeNumber, rs.RoundNumber),
			"table_id":     rs.TableID,
			"category":     rs.CategoryStr,
			"banker_point": rs.BankerPoint,
			"player_point": rs.PlayerPoint,
			"card_list":    cards,
			"status":       rs.StatusStr,
		}

		if sl, err := model.GetSettlementLog(ctx, infmysql.SQLX(), rs.ID); err == nil {
			settlement = map[string]any{
				"total_bets":   sl.TotalBets,
				"total_payout": sl.TotalPayout,
				"settled_at":   sl.CreatedAt,
			}
		}

		if r != nil {
			if b, e := json.Marshal(outcome); e == nil {
				_ = r.Set(ctx, infrds.TableOutcomeKey(tableID), b, 5*time.Second).Err()
			}
		}
	}

	c.Data["json"] = map[string]any{
		"ok":         true,
		"outcome":    outcome,
		"settlement": settlement,
	}
	_ = c.ServeJSON()
}
