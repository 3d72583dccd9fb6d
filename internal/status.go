package internal

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultStatusInterval 房間人數廣播間隔
const DefaultStatusInterval = time.Second

// StatusPublisher 定期廣播房間人數
//
// 與請求處理路徑解耦：獨立 goroutine，按固定間隔執行。
// 只在取快照時短暫持有各房間的鎖，發送期間不持有任何鎖。
type StatusPublisher struct {
	registry   *Registry
	dispatcher *Dispatcher
	interval   time.Duration
	logger     *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewStatusPublisher 創建房間人數廣播器
func NewStatusPublisher(registry *Registry, dispatcher *Dispatcher, interval time.Duration, logger *slog.Logger) *StatusPublisher {
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	return &StatusPublisher{
		registry:   registry,
		dispatcher: dispatcher,
		interval:   interval,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start 啟動廣播 goroutine
func (p *StatusPublisher) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.loop()
		p.logger.Info("房間狀態廣播已啟動", "interval", p.interval)
	})
}

// Stop 停止廣播並等待 goroutine 結束
func (p *StatusPublisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}

// PublishNow 立即廣播一次
func (p *StatusPublisher) PublishNow() {
	snapshot := p.registry.Snapshot()
	p.dispatcher.BroadcastToAll(NewRoomStatus(snapshot))
}

// loop 定時廣播
func (p *StatusPublisher) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.PublishNow()
		case <-p.stopCh:
			return
		}
	}
}
