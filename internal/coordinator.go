package internal

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/koopa0/online-gobang/pkg/logger"
)

// Coordinator 對局協調器
//
// 持有房間註冊表與連接目錄，並以參數形式交給路由、分發器與廣播器使用；
// 沒有任何全域狀態。
//
// 傳輸層只需要三個入口：
//   - Connect：新連接，返回 ClientID
//   - HandleMessage：收到一條消息
//   - Disconnect：連接斷開（讀取錯誤、發送失敗、服務器關閉）
type Coordinator struct {
	registry   *Registry
	directory  *Directory
	dispatcher *Dispatcher
	status     *StatusPublisher
	router     *Router
	events     EventSink
	logger     *slog.Logger
}

// CoordinatorOptions 協調器選項
type CoordinatorOptions struct {
	RoomCount      int
	StatusInterval time.Duration
	Events         EventSink
}

// NewCoordinator 創建協調器
func NewCoordinator(opts CoordinatorOptions, logger *slog.Logger) (*Coordinator, error) {
	if opts.RoomCount == 0 {
		opts.RoomCount = DefaultRoomCount
	}
	if opts.Events == nil {
		opts.Events = NopSink{}
	}

	registry, err := NewRegistry(opts.RoomCount)
	if err != nil {
		return nil, err
	}

	directory := NewDirectory()
	dispatcher := NewDispatcher(directory, logger)
	status := NewStatusPublisher(registry, dispatcher, opts.StatusInterval, logger)

	c := &Coordinator{
		registry:   registry,
		directory:  directory,
		dispatcher: dispatcher,
		status:     status,
		router:     NewRouter(registry, directory, dispatcher, status, opts.Events, logger),
		events:     opts.Events,
		logger:     logger,
	}

	// 發送失敗即視為斷線
	dispatcher.OnFailure(c.Disconnect)

	return c, nil
}

// Start 啟動定期廣播
func (c *Coordinator) Start() {
	c.status.Start()
}

// Stop 停止定期廣播並關閉事件接收端
func (c *Coordinator) Stop() {
	c.status.Stop()
	if err := c.events.Close(); err != nil {
		c.logger.Warn("關閉事件接收端失敗", "error", err)
	}
	c.logger.Info("協調器已停止")
}

// Connect 註冊新連接並廣播房間人數
func (c *Coordinator) Connect(sender Sender) ClientID {
	id := c.directory.Register(sender)
	c.logger.Info("客戶端已連接", "client_id", id, "connections", c.directory.Count())
	c.status.PublishNow()
	return id
}

// HandleMessage 處理客戶端消息
func (c *Coordinator) HandleMessage(ctx context.Context, id ClientID, data []byte) {
	if !c.directory.Has(id) {
		return
	}
	c.router.Handle(ctx, id, data)
}

// Disconnect 處理斷線
//
// 可被重複呼叫（讀取結束與發送失敗可能同時觸發），只有第一次生效。
// 客戶端所在的房間會被完整重置，留下的玩家收到 player_disconnected。
func (c *Coordinator) Disconnect(id ClientID) {
	sender, _ := c.directory.Sender(id)
	info, ok := c.directory.Unregister(id)
	if !ok {
		return
	}
	roomID := info.RoomID

	if closer, ok := sender.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Debug("關閉連接失敗", "client_id", id, "error", err)
		}
	}

	c.logger.Info("客戶端已斷線",
		"client_id", id,
		"room_id", roomID,
		"session", time.Since(info.ConnectedAt).Round(time.Millisecond),
		"connections", c.directory.Count())

	if roomID != "" {
		ctx := logger.WithRoomID(logger.WithClientID(context.Background(), string(id)), roomID)
		if room, err := c.registry.Get(roomID); err == nil {
			err := c.router.leave(ctx, id, room)
			if err == nil {
				return
			}
			c.logger.WarnContext(ctx, "斷線時離開房間失敗", "error", err)
		}
	}

	c.status.PublishNow()
}

// Registry 返回房間註冊表
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Directory 返回連接目錄
func (c *Coordinator) Directory() *Directory {
	return c.directory
}

// Stats 獲取統計資訊
func (c *Coordinator) Stats() map[string]any {
	stats := c.registry.Stats()
	stats["connections"] = c.directory.Count()
	return stats
}
