package internal_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koopa0/online-gobang/internal"
	"github.com/koopa0/online-gobang/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer 啟動帶 WebSocket 端點的測試服務器
func newTestServer(t *testing.T) (*httptest.Server, *internal.WebSocketHub, *internal.Coordinator) {
	t.Helper()

	c := newTestCoordinator(t, nil)
	hub := internal.NewWebSocketHub(c, internal.DefaultHubConfig(), logger.Discard())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", hub.ServeWS)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})
	return server, hub, c
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil 讀取消息直到遇見指定 action
func readUntil(t *testing.T, conn *websocket.Conn, action string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", action)

		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["action"] == action {
			return msg
		}
	}
}

func writeJSON(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// TestWebSocket_GameFlow 透過真實 WebSocket 連接完成加入、落子與斷線
func TestWebSocket_GameFlow(t *testing.T) {
	server, hub, c := newTestServer(t)

	black := dial(t, server)
	readUntil(t, black, internal.ActionRoomStatus)
	writeJSON(t, black, map[string]any{"action": "join_room", "room_id": "1"})
	joined := readUntil(t, black, internal.ActionJoinSuccess)
	assert.Equal(t, "black", joined["role"])

	white := dial(t, server)
	writeJSON(t, white, map[string]any{"action": "join_room", "room_id": "1"})
	assert.Equal(t, "white", readUntil(t, white, internal.ActionGameStart)["role"])
	assert.Equal(t, "black", readUntil(t, black, internal.ActionGameStart)["role"])
	assert.Equal(t, 2, hub.ConnectionCount())

	writeJSON(t, black, map[string]any{"action": "move", "room_id": "1", "x": 7, "y": 7})
	moved := readUntil(t, white, internal.ActionMove)
	assert.Equal(t, 7.0, moved["x"])
	assert.Equal(t, 1.0, moved["player"])

	// 白方斷線，黑方收到通知
	require.NoError(t, white.Close())
	readUntil(t, black, internal.ActionPlayerDisconnected)

	assert.Eventually(t, func() bool {
		return c.Directory().Count() == 1 && hub.ConnectionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	room, err := c.Registry().Get("1")
	require.NoError(t, err)
	board := room.BoardSnapshot()
	assert.True(t, board.IsEmpty())
}

// TestWebSocket_MalformedKeepsConnection 無效消息不會斷開連接
func TestWebSocket_MalformedKeepsConnection(t *testing.T) {
	server, _, _ := newTestServer(t)
	conn := dial(t, server)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	reply := readUntil(t, conn, internal.ActionError)
	assert.Equal(t, internal.ReasonMalformed, reply["reason"])

	writeJSON(t, conn, map[string]any{"action": "ping"})
	readUntil(t, conn, internal.ActionPong)
}

// TestWebSocket_StopRejectsNewConnections 關閉後拒絕新連接
func TestWebSocket_StopRejectsNewConnections(t *testing.T) {
	server, hub, c := newTestServer(t)
	conn := dial(t, server)
	readUntil(t, conn, internal.ActionRoomStatus)

	hub.Stop()
	assert.Equal(t, 0, c.Directory().Count())

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

// TestWebSocket_StopDuringConnects 關閉與新連接同時發生時不留下任何連接
func TestWebSocket_StopDuringConnects(t *testing.T) {
	server, hub, c := newTestServer(t)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	var (
		mu    sync.Mutex
		conns []*websocket.Conn
		wg    sync.WaitGroup
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}()
	}

	hub.Stop()
	wg.Wait()
	t.Cleanup(func() {
		for _, conn := range conns {
			conn.Close()
		}
	})

	// 客戶端仍然開著，伺服器端必須已經全部清理
	assert.Eventually(t, func() bool {
		return hub.ConnectionCount() == 0 && c.Directory().Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
