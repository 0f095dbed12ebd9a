package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bjl-server/common/logger"
	"bjl-server/internal/config"
	"bjl-server/internal/push"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 推送注册表由启动时注入
var pushRegistry *push.Registry

// InitPush 注入 WebSocket 连接注册表
func InitPush(r *push.Registry) { pushRegistry = r }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 默认放行（跨域由 CORS 过滤器统一控制）；开启 ws_strict_origin 后要求同源
	CheckOrigin: func(r *http.Request) bool {
		if !config.GetFeatureFlag("ws_strict_origin") {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	},
}

// WSController 实时推送订阅入口：GET /ws?table_id=&user_id=
// user_id 可省略（匿名旁观，仅收倒计时与开牌广播）。
type WSController struct{ beego.Controller }

func (c *WSController) Subscribe() {
	if pushRegistry == nil {
		c.CustomAbort(503, "push not available")
		return
	}

	tidStr := strings.TrimSpace(c.Ctx.Input.Query("table_id"))
	tableID, err := strconv.ParseInt(tidStr, 10, 64)
	if err != nil || tableID <= 0 {
		c.CustomAbort(400, "table_id must be positive integer")
		return
	}

	var userID int64
	if s := strings.TrimSpace(c.Ctx.Input.Query("user_id")); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
			userID = v
		}
	}

	conn, err := upgrader.Upgrade(c.Ctx.ResponseWriter, c.Ctx.Request, nil)
	if err != nil {
		logger.Warn("ws upgrade failed",
			zap.Int64("table_id", tableID),
			zap.Error(err))
		return
	}

	client := pushRegistry.Register(conn, tableID, userID)
	logger.Info("ws connected",
		zap.Int64("table_id", tableID),
		zap.Int64("user_id", userID))

	go client.WritePump()
	client.ReadPump()
}
