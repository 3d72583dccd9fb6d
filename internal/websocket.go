package internal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何讓每條 WebSocket 連接既能即時收到房間廣播，
//   又不會因為單一慢客戶端拖住整個協調器？
//
// 核心挑戰：
//   1. 寫入隔離：協調器在處理請求時發送，不能被網絡 I/O 阻塞
//   2. 心跳機制：檢測死連接（網絡異常、客戶端崩潰）
//   3. 有序關閉：讀取結束、發送失敗、服務器關閉可能同時發生
//
// 設計方案：
//   ✅ 每條連接一個讀 goroutine、一個寫 goroutine
//   ✅ 緩衝 channel - Send 只入隊，滿了就視為斷線
//   ✅ Ping/Pong 心跳 - 54s 發送 Ping，60s 沒有回應即斷線
//   ✅ closeOnce + WaitGroup - 關閉可重入，Stop 等待所有 goroutine

// 傳輸層錯誤
var (
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrConnectionClosed = errors.New("connection closed")
)

// HubConfig WebSocket 參數
type HubConfig struct {
	SendBuffer     int
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// DefaultHubConfig 預設參數（54s Ping，60s 超時）
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:     256,
		PingInterval:   54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: maxMessageBytes,
	}
}

// WebSocketHub WebSocket 連接中心
//
// 只負責連接生命週期：升級、讀寫 goroutine、心跳、關閉。
// 連接的身份與房間歸屬由 Coordinator 的 Directory 管理。
type WebSocketHub struct {
	coordinator *Coordinator
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	cfg         HubConfig

	connections map[*Connection]struct{}
	mu          sync.Mutex
	stopped     bool
	wg          sync.WaitGroup
}

// Connection 一條 WebSocket 連接
//
// 實現 Sender：Send 只把消息放入緩衝 channel，由 writePump 寫出。
// 緩衝滿或已關閉時返回錯誤，協調器據此判定斷線。
type Connection struct {
	ID   ClientID
	Conn *websocket.Conn
	hub  *WebSocketHub

	send      chan []byte
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewWebSocketHub 創建 WebSocket Hub
func NewWebSocketHub(coordinator *Coordinator, cfg HubConfig, logger *slog.Logger) *WebSocketHub {
	return &WebSocketHub{
		coordinator: coordinator,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cfg:         cfg,
		connections: make(map[*Connection]struct{}),
	}
}

// ServeWS 處理 WebSocket 連接
func (hub *WebSocketHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	hub.mu.Lock()
	stopped := hub.stopped
	hub.mu.Unlock()
	if stopped {
		http.Error(w, "服務器正在關閉", http.StatusServiceUnavailable)
		return
	}

	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	c := &Connection{
		Conn: conn,
		hub:  hub,
		send: make(chan []byte, hub.cfg.SendBuffer),
	}

	// 升級期間可能已經開始關閉：重新檢查 stopped 與 wg.Add 在同一臨界區，
	// Stop 的 wg.Wait 不會與新的 Add 並發
	hub.mu.Lock()
	if hub.stopped {
		hub.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	hub.connections[c] = struct{}{}
	hub.wg.Add(2)
	hub.mu.Unlock()

	// 先啟動 writePump，Connect 會立刻廣播房間人數
	go c.writePump()

	c.ID = hub.coordinator.Connect(c)
	go c.readPump()

	hub.logger.Info("WebSocket 連接建立", "client_id", c.ID, "remote_addr", conn.RemoteAddr().String())
}

// Send 實現 Sender
func (c *Connection) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close 停止發送；writePump 送出關閉幀後關閉底層連接
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
// 60 秒內沒有收到任何消息（包括 Pong）即視為斷線。
// 結束時通知協調器，房間隨之重置。
func (c *Connection) readPump() {
	defer func() {
		c.hub.coordinator.Disconnect(c.ID)
		c.Close()
		c.Conn.Close()
		c.hub.remove(c)
		c.hub.wg.Done()
	}()

	cfg := c.hub.cfg
	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	ctx := context.Background()
	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("WebSocket 讀取錯誤", "error", err, "client_id", c.ID)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		// 收到任何消息都延長期限
		if err := c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
			c.hub.logger.Error("設置讀取期限失敗", "error", err)
		}
		c.hub.coordinator.HandleMessage(ctx, c.ID, message)
	}
}

// writePump 寫入消息到客戶端，並定期發送 Ping
func (c *Connection) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.hub.wg.Done()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// 嘗試發送關閉消息，忽略錯誤（連接可能已關閉）
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("寫入消息失敗", "remote_addr", c.Conn.RemoteAddr().String(), "error", err)
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// remove 取消註冊連接
func (hub *WebSocketHub) remove(c *Connection) {
	hub.mu.Lock()
	delete(hub.connections, c)
	hub.mu.Unlock()
}

// ConnectionCount 獲取連接數
func (hub *WebSocketHub) ConnectionCount() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.connections)
}

// Stop 關閉所有連接並等待讀寫 goroutine 結束
func (hub *WebSocketHub) Stop() {
	hub.mu.Lock()
	hub.stopped = true
	conns := make([]*Connection, 0, len(hub.connections))
	for c := range hub.connections {
		conns = append(conns, c)
	}
	hub.mu.Unlock()

	for _, c := range conns {
		c.Close()
		c.Conn.Close()
	}
	hub.wg.Wait()

	hub.logger.Info("WebSocket Hub 已停止")
}
