package internal_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koopa0/online-gobang/internal"
	"github.com/koopa0/online-gobang/pkg/logger"
	"github.com/stretchr/testify/require"
)

// fakeSender 記錄收到的消息，可設定為發送失敗或 panic
type fakeSender struct {
	mu        sync.Mutex
	messages  []map[string]any
	fail      bool
	panicNext bool
	closed    bool
}

func (f *fakeSender) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.panicNext {
		f.panicNext = false
		panic("sender exploded")
	}
	if f.fail {
		return errors.New("broken pipe")
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeSender) setPanicNext() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panicNext = true
}

func (f *fakeSender) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// all 返回所有消息的副本
func (f *fakeSender) all() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.messages))
	copy(out, f.messages)
	return out
}

// withAction 返回指定 action 的消息
func (f *fakeSender) withAction(action string) []map[string]any {
	var out []map[string]any
	for _, msg := range f.all() {
		if msg["action"] == action {
			out = append(out, msg)
		}
	}
	return out
}

// last 返回最後一條指定 action 的消息，沒有時返回 nil
func (f *fakeSender) last(action string) map[string]any {
	msgs := f.withAction(action)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// clear 清空已記錄的消息
func (f *fakeSender) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
}

// recordingSink 記錄發布的遊戲事件
type recordingSink struct {
	mu     sync.Mutex
	events []internal.GameEvent
	err    error
}

func (s *recordingSink) Publish(_ context.Context, event internal.GameEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) ofType(eventType string) []internal.GameEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []internal.GameEvent
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// newTestCoordinator 創建測試用協調器（不啟動定期廣播）
func newTestCoordinator(t *testing.T, events internal.EventSink) *internal.Coordinator {
	t.Helper()

	c, err := internal.NewCoordinator(internal.CoordinatorOptions{
		RoomCount:      internal.DefaultRoomCount,
		StatusInterval: time.Hour,
		Events:         events,
	}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(c.Stop)
	return c
}

// send 以 JSON 發送請求
func send(t *testing.T, c *internal.Coordinator, id internal.ClientID, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	c.HandleMessage(context.Background(), id, data)
}

func join(t *testing.T, c *internal.Coordinator, id internal.ClientID, roomID string) {
	t.Helper()
	send(t, c, id, map[string]any{"action": "join_room", "room_id": roomID})
}

func move(t *testing.T, c *internal.Coordinator, id internal.ClientID, roomID string, x, y int) {
	t.Helper()
	send(t, c, id, map[string]any{"action": "move", "room_id": roomID, "x": x, "y": y})
}

// playerPair 兩位已連接並加入同一房間的玩家
type playerPair struct {
	black, white     internal.ClientID
	blackTx, whiteTx *fakeSender
}

func startGame(t *testing.T, c *internal.Coordinator, roomID string) playerPair {
	t.Helper()

	p := playerPair{blackTx: &fakeSender{}, whiteTx: &fakeSender{}}
	p.black = c.Connect(p.blackTx)
	p.white = c.Connect(p.whiteTx)
	join(t, c, p.black, roomID)
	join(t, c, p.white, roomID)

	require.NotNil(t, p.blackTx.last(internal.ActionGameStart))
	require.NotNil(t, p.whiteTx.last(internal.ActionGameStart))
	return p
}

// blackWinsHorizontally 黑方在第 7 行 (3,7)…(7,7) 連成五子，白方下在第 8 行
func blackWinsHorizontally(t *testing.T, c *internal.Coordinator, roomID string, p playerPair) {
	t.Helper()
	for i := 3; i <= 6; i++ {
		move(t, c, p.black, roomID, i, 7)
		move(t, c, p.white, roomID, i, 8)
	}
	move(t, c, p.black, roomID, 7, 7)
}
