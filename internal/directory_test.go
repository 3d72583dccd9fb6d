package internal_test

import (
	"testing"
	"time"

	"github.com/koopa0/online-gobang/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDirectory 測試連接目錄
func TestDirectory(t *testing.T) {
	dir := internal.NewDirectory()

	a := dir.Register(&fakeSender{})
	b := dir.Register(&fakeSender{})
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, dir.Count())
	assert.True(t, dir.Has(a))

	_, ok := dir.RoomOf(a)
	assert.False(t, ok)

	require.True(t, dir.SetRoom(a, "1"))
	roomID, ok := dir.RoomOf(a)
	assert.True(t, ok)
	assert.Equal(t, "1", roomID)

	// 只清除仍指向同一房間的記錄
	dir.ClearRoom(a, "2")
	roomID, ok = dir.RoomOf(a)
	assert.True(t, ok)
	assert.Equal(t, "1", roomID)

	dir.ClearRoom(a, "1")
	_, ok = dir.RoomOf(a)
	assert.False(t, ok)

	require.True(t, dir.SetRoom(b, "3"))
	info, ok := dir.Unregister(b)
	assert.True(t, ok)
	assert.Equal(t, "3", info.RoomID)
	assert.False(t, info.ConnectedAt.IsZero())
	assert.WithinDuration(t, time.Now(), info.ConnectedAt, time.Minute)

	// 重複移除無效
	_, ok = dir.Unregister(b)
	assert.False(t, ok)
	assert.False(t, dir.Has(b))
	assert.False(t, dir.SetRoom(b, "1"))

	_, ok = dir.Sender(b)
	assert.False(t, ok)
	assert.Equal(t, []internal.ClientID{a}, dir.IDs())
}
