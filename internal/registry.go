package internal

import (
	"fmt"
	"strconv"
)

// 系統設計問題：
//   房間數量固定、生命週期等同進程，如何讓查找房間完全不需要全域鎖？
//
// 核心挑戰：
//   1. 熱點路徑：每一條客戶端消息都要先找到房間
//   2. 狀態快照：每秒一次的人數廣播要讀所有房間，不能阻塞落子
//
// 設計方案：
//   ✅ 啟動時一次建立，map 之後只讀 - 查找無鎖
//   ✅ 快照逐一短暫持有各房間的鎖 - 不存在跨房間的大鎖

// DefaultRoomCount 預設房間數
const DefaultRoomCount = 5

// RoomStatusEntry room_status 廣播中每個房間的內容
type RoomStatusEntry struct {
	PlayerCount int `json:"player_count"`
}

// Registry 房間註冊表
//
// 房間在啟動時一次建立（"1" … "N"），之後既不新增也不刪除，
// 因此 rooms map 本身不需要鎖；房間內容由各自的鎖保護。
type Registry struct {
	rooms map[string]*Room
	ids   []string
}

// NewRegistry 創建固定數量的房間
func NewRegistry(count int) (*Registry, error) {
	if count <= 0 {
		return nil, fmt.Errorf("房間數量必須大於 0: %d", count)
	}

	r := &Registry{
		rooms: make(map[string]*Room, count),
		ids:   make([]string, 0, count),
	}
	for i := 1; i <= count; i++ {
		id := strconv.Itoa(i)
		r.rooms[id] = NewRoom(id)
		r.ids = append(r.ids, id)
	}
	return r, nil
}

// Get 獲取房間
func (r *Registry) Get(roomID string) (*Room, error) {
	room, exists := r.rooms[roomID]
	if !exists {
		return nil, WrapGameError(fmt.Errorf("room %q", roomID), ReasonRoomNotFound, "room not found")
	}
	return room, nil
}

// IDs 返回房間 ID（按建立順序）
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.ids))
	copy(ids, r.ids)
	return ids
}

// Len 房間數
func (r *Registry) Len() int {
	return len(r.ids)
}

// Snapshot 房間人數快照
//
// 每個房間只在讀取人數時持有自己的鎖，
// 不會看到落子進行到一半的房間，也不會阻塞其他房間。
func (r *Registry) Snapshot() map[string]RoomStatusEntry {
	snapshot := make(map[string]RoomStatusEntry, len(r.ids))
	for _, id := range r.ids {
		snapshot[id] = RoomStatusEntry{PlayerCount: r.rooms[id].PlayerCount()}
	}
	return snapshot
}

// List 返回所有房間摘要
func (r *Registry) List() []RoomInfo {
	infos := make([]RoomInfo, 0, len(r.ids))
	for _, id := range r.ids {
		infos = append(infos, r.rooms[id].Info())
	}
	return infos
}

// Stats 獲取統計資訊
func (r *Registry) Stats() map[string]any {
	statusCount := make(map[RoomStatus]int)
	totalPlayers := 0

	for _, info := range r.List() {
		statusCount[info.Status]++
		totalPlayers += info.PlayerCount
	}

	return map[string]any{
		"total_rooms":   len(r.ids),
		"total_players": totalPlayers,
		"by_status":     statusCount,
	}
}
