package internal

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	apperrors "github.com/koopa0/system-design/14-sea-battle/pkg/errors"
	"github.com/koopa0/system-design/14-sea-battle/pkg/logger"
)

// 系統設計問題：
//   如何把 WebSocket 連線接到單一寫入的協調器上？
//
// 設計方案：
//   ✅ readPump 逐則投遞，等協調器處理完再讀下一則（自然的背壓）
//   ✅ writePump 從緩衝 channel 取訊息寫出，協調器推送不會被慢客戶端卡住
//   ✅ Ping/Pong 心跳偵測死連線
//   ✅ 每條連線一個 token bucket，超量的訊息直接丟棄

// WebSocketHub WebSocket 連接中心
type WebSocketHub struct {
	coordinator *Coordinator
	cfg         WebSocketConfig
	limits      LimitsConfig
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	connections map[string]*Connection // connID -> Connection
	mu          sync.RWMutex
}

// Connection 一條 WebSocket 連線，實作 Conn
type Connection struct {
	ID        string
	SessionID int
	Conn      *websocket.Conn
	Hub       *WebSocketHub
	LastPing  time.Time

	send      chan []byte
	limiter   *rate.Limiter
	closed    bool
	mu        sync.Mutex
	closeOnce sync.Once
}

// NewWebSocketHub 創建 WebSocket Hub
func NewWebSocketHub(coordinator *Coordinator, cfg WebSocketConfig, limits LimitsConfig, logger *slog.Logger) *WebSocketHub {
	return &WebSocketHub{
		coordinator: coordinator,
		cfg:         cfg,
		limits:      limits,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[string]*Connection),
	}
}

// ServeWS 升級連線並加入協調器
func (hub *WebSocketHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	connection := &Connection{
		ID:       uuid.NewString(),
		Conn:     ws,
		Hub:      hub,
		LastPing: time.Now(),
		send:     make(chan []byte, hub.cfg.SendBuffer),
		limiter:  rate.NewLimiter(rate.Limit(hub.limits.MessagesPerSecond), hub.limits.MessageBurst),
	}

	sessionID, err := hub.coordinator.Connect(connection)
	if err != nil {
		hub.logger.Warn("協調器已停止，拒絕連線", "error", err)
		_ = ws.Close()
		return
	}
	connection.SessionID = sessionID

	hub.register(connection)

	go connection.writePump()
	go connection.readPump()

	hub.logger.Info("WebSocket 連接建立",
		"conn_id", connection.ID,
		"session_id", sessionID,
		"remote_addr", r.RemoteAddr)
}

// register 註冊連接
func (hub *WebSocketHub) register(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.connections[conn.ID] = conn
}

// unregister 取消註冊連接
func (hub *WebSocketHub) unregister(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if actual, exists := hub.connections[conn.ID]; exists && actual == conn {
		delete(hub.connections, conn.ID)
	}
}

// Stop 關閉所有連接
func (hub *WebSocketHub) Stop() {
	hub.mu.Lock()
	conns := make([]*Connection, 0, len(hub.connections))
	for _, conn := range hub.connections {
		conns = append(conns, conn)
	}
	hub.connections = make(map[string]*Connection)
	hub.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}

	hub.logger.Info("WebSocket Hub 已停止", "closed", len(conns))
}

// ConnectionCount 目前連接數
func (hub *WebSocketHub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.connections)
}

// MaxIdle 所有連接中距離上次 pong 最久的時間
func (hub *WebSocketHub) MaxIdle() time.Duration {
	hub.mu.RLock()
	conns := make([]*Connection, 0, len(hub.connections))
	for _, conn := range hub.connections {
		conns = append(conns, conn)
	}
	hub.mu.RUnlock()

	now := time.Now()
	var idle time.Duration
	for _, conn := range conns {
		conn.mu.Lock()
		d := now.Sub(conn.LastPing)
		conn.mu.Unlock()
		if d > idle {
			idle = d
		}
	}
	return idle
}

// Send 實作 Conn：放入發送緩衝，不阻塞協調器
func (c *Connection) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apperrors.ErrConnClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return apperrors.New(apperrors.ErrCodeUnavailable, "send buffer full").WithDetails(c.ID)
	}
}

// Close 實作 Conn：關閉發送緩衝，writePump 隨後送出關閉幀
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
	return nil
}

// readPump 讀取客戶端消息
//
// 超時：pong_wait 內沒有收到任何訊息（包括 Pong）就關閉連線。
// 每則訊息都等協調器處理完成才繼續讀取。
func (c *Connection) readPump() {
	hub := c.Hub
	ctx := logger.WithConnID(logger.WithSessionID(context.Background(), c.SessionID), c.ID)

	defer func() {
		hub.coordinator.Disconnect(c.SessionID)
		hub.unregister(c)
		_ = c.Close()
		_ = c.Conn.Close()
		hub.logger.InfoContext(ctx, "WebSocket 連接關閉")
	}()

	c.Conn.SetReadLimit(hub.cfg.MaxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(hub.cfg.PongWait)); err != nil {
		hub.logger.ErrorContext(ctx, "設置讀取期限失敗", "error", err)
	}

	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(hub.cfg.PongWait)); err != nil {
			hub.logger.ErrorContext(ctx, "設置讀取期限失敗", "error", err)
		}
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.logger.ErrorContext(ctx, "WebSocket 讀取錯誤", "error", err)
			}
			return
		}

		// 任何訊息都代表連線存活
		if err := c.Conn.SetReadDeadline(time.Now().Add(hub.cfg.PongWait)); err != nil {
			hub.logger.ErrorContext(ctx, "設置讀取期限失敗", "error", err)
		}

		if messageType != websocket.TextMessage {
			continue
		}
		if !c.limiter.Allow() {
			hub.logger.WarnContext(ctx, "訊息過於頻繁，已丟棄", "size", len(message))
			continue
		}

		hub.coordinator.Deliver(c.SessionID, message)
	}
}

// writePump 寫入消息到客戶端，並定期發送 Ping
func (c *Connection) writePump() {
	hub := c.Hub
	ticker := time.NewTicker(hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(hub.cfg.WriteWait)); err != nil {
				hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// 發送緩衝已關閉，嘗試送出關閉幀（連接可能已關閉，忽略錯誤）
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量發送隊列中的消息，每則獨立一幀
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, next); err != nil {
					hub.logger.Error("發送消息失敗", "error", err, "conn_id", c.ID)
					return
				}
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(hub.cfg.WriteWait)); err != nil {
				hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
