package internal

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ClientID 客戶端識別碼（每條存活連接唯一）
type ClientID string

// Sender 發送能力
//
// 由傳輸層實現（見 Connection）。Send 不應阻塞；
// 無法送達時返回錯誤，呼叫方把它當作該客戶端斷線。
type Sender interface {
	Send(data []byte) error
}

// clientEntry 連接目錄中的一筆記錄
type clientEntry struct {
	sender      Sender
	roomID      string
	connectedAt time.Time
}

// Directory 連接目錄
//
// 擁有 clientID → Sender 的映射，並記錄每個客戶端目前所在的房間。
// 房間只持有 clientID（值），不持有傳輸物件。
type Directory struct {
	mu      sync.RWMutex
	clients map[ClientID]*clientEntry
}

// NewDirectory 創建連接目錄
func NewDirectory() *Directory {
	return &Directory{
		clients: make(map[ClientID]*clientEntry),
	}
}

// Register 註冊連接並分配新的 ClientID
func (d *Directory) Register(sender Sender) ClientID {
	id := ClientID(uuid.NewString())

	d.mu.Lock()
	d.clients[id] = &clientEntry{
		sender:      sender,
		connectedAt: time.Now(),
	}
	d.mu.Unlock()

	return id
}

// ClientInfo 已移除連接的資訊
type ClientInfo struct {
	RoomID      string
	ConnectedAt time.Time
}

// Unregister 移除連接，返回它所在的房間與連接時間
func (d *Directory) Unregister(id ClientID) (ClientInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, exists := d.clients[id]
	if !exists {
		return ClientInfo{}, false
	}
	delete(d.clients, id)
	return ClientInfo{RoomID: entry.roomID, ConnectedAt: entry.connectedAt}, true
}

// Sender 獲取客戶端的發送能力
func (d *Directory) Sender(id ClientID) (Sender, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, exists := d.clients[id]
	if !exists {
		return nil, false
	}
	return entry.sender, true
}

// Has 客戶端是否仍在線
func (d *Directory) Has(id ClientID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.clients[id]
	return exists
}

// RoomOf 獲取客戶端所在房間
func (d *Directory) RoomOf(id ClientID) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, exists := d.clients[id]
	if !exists || entry.roomID == "" {
		return "", false
	}
	return entry.roomID, true
}

// SetRoom 記錄客戶端所在房間，客戶端已斷線時返回 false
func (d *Directory) SetRoom(id ClientID, roomID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, exists := d.clients[id]
	if !exists {
		return false
	}
	entry.roomID = roomID
	return true
}

// ClearRoom 清除房間記錄（僅當記錄仍指向 roomID 時）
func (d *Directory) ClearRoom(id ClientID, roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, exists := d.clients[id]; exists && entry.roomID == roomID {
		entry.roomID = ""
	}
}

// IDs 返回所有在線客戶端（排序後，方便測試）
func (d *Directory) IDs() []ClientID {
	d.mu.RLock()
	ids := make([]ClientID, 0, len(d.clients))
	for id := range d.clients {
		ids = append(ids, id)
	}
	d.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Count 在線連接數
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}
