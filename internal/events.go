package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// 遊戲事件類型
const (
	EventGameStarted = "game_started"
	EventMovePlayed  = "move_played"
	EventGameOver    = "game_over"
	EventPlayerLeft  = "player_left"
)

// GameEvent 對外發布的遊戲事件
type GameEvent struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id"`
	ClientID  ClientID  `json:"client_id,omitempty"`
	Player    Cell      `json:"player,omitempty"`
	Point     *Point    `json:"point,omitempty"`
	Winner    string    `json:"winner,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink 遊戲事件接收端
//
// 事件發布是旁路：失敗只記錄日誌，不影響房間狀態。
type EventSink interface {
	Publish(ctx context.Context, event GameEvent) error
	Close() error
}

// NopSink 不做任何事的事件接收端（未配置 NATS 時使用）
type NopSink struct{}

// Publish 實現 EventSink
func (NopSink) Publish(context.Context, GameEvent) error { return nil }

// Close 實現 EventSink
func (NopSink) Close() error { return nil }

// NATSSink 把遊戲事件發布到 NATS
//
// 主題格式：<prefix>.<type>，例如 gobang.events.game_over。
// 使用 core NATS（非 JetStream）：事件供即時訂閱者使用，不需要持久化。
type NATSSink struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSSink 連接 NATS 並創建事件接收端
func NewNATSSink(url, prefix string, logger *slog.Logger) (*NATSSink, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("online-gobang"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS 連接中斷", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS 已重新連接", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("連接 NATS 失敗: %w", err)
	}

	return &NATSSink{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject 返回事件類型對應的主題
func (s *NATSSink) Subject(eventType string) string {
	return EventSubject(s.prefix, eventType)
}

// Publish 實現 EventSink
func (s *NATSSink) Publish(ctx context.Context, event GameEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失敗: %w", err)
	}
	if err := s.conn.Publish(s.Subject(event.Type), data); err != nil {
		return fmt.Errorf("發布事件失敗: %w", err)
	}
	return nil
}

// Close 清空待發送緩衝並關閉連接
func (s *NATSSink) Close() error {
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return fmt.Errorf("關閉 NATS 連接失敗: %w", err)
	}
	return nil
}

// EventSubject 組合事件主題
func EventSubject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}
