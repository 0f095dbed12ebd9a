package push

import (
	"sync"
	"time"

	"bjl-server/common/logger"
	"bjl-server/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type CloseReason string

const (
	ReasonWriteError CloseReason = "write_error"
	ReasonPingError  CloseReason = "ping_error"
	ReasonReadError  CloseReason = "read_error"
	ReasonShutdown   CloseReason = "server_shutdown"
	ReasonBufferFull CloseReason = "buffer_full"
)

// Connection 单条 WebSocket 连接。
// 一条连接订阅一个台桌；user_id 可为 0（匿名旁观，只收公共消息）。
type Connection struct {
	TableID   int64
	UserID    int64
	Conn      *websocket.Conn
	Send      chan []byte
	registry  *Registry
	closeOnce sync.Once
}

// Registry 连接注册表：按台桌组织全部在线连接。
// 同一用户允许多条连接（多端观看），推送按连接逐条投递。
type Registry struct {
	clients    map[*Connection]struct{}
	register   chan *Connection
	unregister chan *Connection
	mu         sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		clients:    make(map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
	}
}

// Register 注册新连接并返回句柄，调用方负责启动读写泵
func (r *Registry) Register(conn *websocket.Conn, tableID, userID int64) *Connection {
	c := &Connection{
		TableID:  tableID,
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		registry: r,
	}
	r.register <- c
	return c
}

// Run 注册表主循环
func (r *Registry) Run() {
	for {
		select {
		case client := <-r.register:
			r.mu.Lock()
			r.clients[client] = struct{}{}
			metrics.SetConnections(len(r.clients))
			r.mu.Unlock()

		case client := <-r.unregister:
			r.mu.Lock()
			if _, ok := r.clients[client]; ok {
				delete(r.clients, client)
				metrics.SetConnections(len(r.clients))
				client.CloseWithReason(ReasonShutdown, nil)
			}
			r.mu.Unlock()
		}
	}
}

// Tables 返回当前有订阅者的台桌集合（轮询端按此拉取缓存）
func (r *Registry) Tables() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[int64]struct{})
	out := make([]int64, 0, 4)
	for c := range r.clients {
		if _, ok := seen[c.TableID]; ok {
			continue
		}
		seen[c.TableID] = struct{}{}
		out = append(out, c.TableID)
	}
	return out
}

// BroadcastTable 向订阅某台桌的全部连接投递消息
func (r *Registry) BroadcastTable(tableID int64, message []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.clients {
		if client.TableID != tableID {
			continue
		}
		select {
		case client.Send <- message:
		default:
			// 缓冲写满说明客户端读得太慢，断开避免拖慢全局
			client.CloseWithReason(ReasonBufferFull, nil)
		}
	}
}

// SendToUser 向某台桌下指定用户的全部连接投递消息
func (r *Registry) SendToUser(tableID, userID int64, message []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.clients {
		if client.TableID != tableID || client.UserID != userID {
			continue
		}
		select {
		case client.Send <- message:
		default:
			client.CloseWithReason(ReasonBufferFull, nil)
		}
	}
}

// Users 返回某台桌当前在线的用户ID集合（不含匿名连接）
func (r *Registry) Users(tableID int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[int64]struct{})
	out := make([]int64, 0, 4)
	for c := range r.clients {
		if c.TableID != tableID || c.UserID == 0 {
			continue
		}
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		out = append(out, c.UserID)
	}
	return out
}

// Shutdown 关闭全部连接
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for client := range r.clients {
		client.CloseWithReason(ReasonShutdown, nil)
	}
	r.clients = make(map[*Connection]struct{})
	metrics.SetConnections(0)
}

// CloseWithReason 幂等关闭连接
func (c *Connection) CloseWithReason(reason CloseReason, err error) {
	c.closeOnce.Do(func() {
		if reason != ReasonShutdown {
			metrics.RecordPushError(string(reason))
		}
		logger.Info("ws connection closed",
			zap.Int64("table_id", c.TableID),
			zap.Int64("user_id", c.UserID),
			zap.String("reason", string(reason)),
			zap.Error(err))
		_ = c.Conn.Close()
	})
}

// WritePump 将 Send 通道中的消息写入连接，并周期性发送 Ping
func (c *Connection) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.CloseWithReason(ReasonWriteError, err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.CloseWithReason(ReasonPingError, err)
				return
			}
		}
	}
}

// ReadPump 读取客户端消息：仅支持文本 "ping"（应用层心跳），其余忽略
func (c *Connection) ReadPump() {
	var readErr error
	defer func() {
		c.registry.unregister <- c
		c.CloseWithReason(ReasonReadError, readErr)
	}()

	c.Conn.SetReadLimit(4096)
	_ = c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				readErr = err
			}
			return
		}
		if string(message) == "ping" {
			select {
			case c.Send <- []byte("pong"):
			default:
			}
		}
	}
}
