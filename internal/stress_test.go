package internal_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/koopa0/online-gobang/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentJoin 多個客戶端同時加入同一房間，只有兩位成功
func TestConcurrentJoin(t *testing.T) {
	if testing.Short() {
		t.Skip("跳過壓力測試")
	}

	c := newTestCoordinator(t, nil)

	const clients = 50
	senders := make([]*fakeSender, clients)
	ids := make([]internal.ClientID, clients)
	for i := range clients {
		senders[i] = &fakeSender{}
		ids[i] = c.Connect(senders[i])
	}

	payload := []byte(`{"action":"join_room","room_id":"1"}`)

	var wg sync.WaitGroup
	for i := range clients {
		wg.Add(1)
		go func(id internal.ClientID) {
			defer wg.Done()
			c.HandleMessage(context.Background(), id, payload)
		}(ids[i])
	}
	wg.Wait()

	joined, rejected := 0, 0
	for _, tx := range senders {
		if tx.last(internal.ActionJoinSuccess) != nil {
			joined++
		}
		if failed := tx.last(internal.ActionJoinFailed); failed != nil {
			assert.Equal(t, internal.ReasonRoomFull, failed["reason"])
			rejected++
		}
	}

	assert.Equal(t, 2, joined)
	assert.Equal(t, clients-2, rejected)
	assert.Equal(t, 2, roomOf(t, c, "1").PlayerCount())
}

// TestConcurrentMoves 同一回合的並發落子只接受一手
func TestConcurrentMoves(t *testing.T) {
	if testing.Short() {
		t.Skip("跳過壓力測試")
	}

	registry, err := internal.NewRegistry(internal.DefaultRoomCount)
	require.NoError(t, err)
	room, err := registry.Get("1")
	require.NoError(t, err)
	_, err = room.Join("black")
	require.NoError(t, err)
	_, err = room.Join("white")
	require.NoError(t, err)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := range internal.BoardSize {
		wg.Add(1)
		go func(x int) {
			defer wg.Done()
			if _, err := room.Move("black", x, 0); err == nil {
				accepted.Add(1)
			} else {
				assert.ErrorIs(t, err, internal.ErrNotYourTurn)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, internal.White, room.CurrentPlayer())
}

// TestConcurrentRooms 不同房間並行對局互不影響
func TestConcurrentRooms(t *testing.T) {
	if testing.Short() {
		t.Skip("跳過壓力測試")
	}

	c := newTestCoordinator(t, nil)

	var wg sync.WaitGroup
	for _, roomID := range []string{"1", "2", "3", "4", "5"} {
		p := startGame(t, c, roomID)
		wg.Add(1)
		go func(roomID string, p playerPair) {
			defer wg.Done()
			play := func(id internal.ClientID, x, y int) {
				msg := fmt.Sprintf(`{"action":"move","room_id":%q,"x":%d,"y":%d}`, roomID, x, y)
				c.HandleMessage(context.Background(), id, []byte(msg))
			}
			for i := 3; i <= 6; i++ {
				play(p.black, i, 7)
				play(p.white, i, 8)
			}
			play(p.black, 7, 7)
		}(roomID, p)
	}
	wg.Wait()

	for _, roomID := range []string{"1", "2", "3", "4", "5"} {
		assert.Equal(t, internal.StatusFinished, roomOf(t, c, roomID).Status(), "room %s", roomID)
	}
}
