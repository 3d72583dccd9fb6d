package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
)

// 系統設計問題：
//   一次房間狀態變更要通知多個客戶端，其中任何一個都可能已經斷線，
//   如何保證其他人照常收到消息，並且按正確順序收到？
//
// 核心挑戰：
//   1. 失敗隔離：單一接收者發送失敗不能中斷整輪分發
//   2. 重入：發送失敗 → 斷線處理 → 房間重置 → 又一輪廣播
//   3. 順序：同一次變更的多條消息（move + game_over）不能被斷線通知插隊
//
// 設計方案：
//   ✅ 消息只序列化一次，每位接收者獨立投遞
//   ✅ 失敗先收集，整批消息送完後才交給 onFailure
//   ✅ 已失敗的接收者不再收到同一批的後續消息
//   ✅ 已離開目錄的客戶端直接跳過，不重複觸發斷線

// Dispatcher 廣播分發器
//
// 盡力而為的投遞，永遠不向呼叫方返回錯誤。
// 發送失敗視為該客戶端斷線；onFailure 通常是 Coordinator.Disconnect，
// 它會再次透過 Dispatcher 通知房間內的其他人，因此必須在本輪結束後才呼叫。
type Dispatcher struct {
	directory *Directory
	logger    *slog.Logger
	onFailure func(ClientID)
}

// NewDispatcher 創建分發器
func NewDispatcher(directory *Directory, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		directory: directory,
		logger:    logger,
	}
}

// OnFailure 設置發送失敗的處理函數（通常是 Coordinator.Disconnect）
func (d *Dispatcher) OnFailure(fn func(ClientID)) {
	d.onFailure = fn
}

// Send 發送給單一客戶端
func (d *Dispatcher) Send(id ClientID, msg any) {
	d.SendBatch([]ClientID{id}, "", msg)
}

// SendMany 發送給一組客戶端，exclude 為空字串表示不排除
func (d *Dispatcher) SendMany(ids []ClientID, msg any, exclude ClientID) {
	d.SendBatch(ids, exclude, msg)
}

// SendBatch 按順序把多條消息發送給一組客戶端
//
// 所有消息送完之後才處理失敗，
// 斷線引起的 player_disconnected 一定排在這一批消息之後。
func (d *Dispatcher) SendBatch(ids []ClientID, exclude ClientID, msgs ...any) {
	if len(ids) == 0 || len(msgs) == 0 {
		return
	}

	payloads := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			d.logger.Error("序列化消息失敗", "error", err)
			return
		}
		payloads = append(payloads, data)
	}

	var failed []ClientID
	for _, id := range ids {
		if id == exclude {
			continue
		}
		for _, data := range payloads {
			if err := d.deliver(id, data); err != nil {
				if IsTransportFailure(err) {
					d.logger.Warn("消息發送失敗，視為斷線", "client_id", id, "error", err)
				} else {
					d.logger.Error("投遞消息時發生未知錯誤", "client_id", id, "error", err)
				}
				failed = append(failed, id)
				break
			}
		}
	}

	d.handleFailures(failed)
}

// Delivery 發給單一接收者的一條消息
type Delivery struct {
	To  ClientID
	Msg any
}

// DeliverAll 按順序投遞一組各自不同的消息（例如雙方角色不同的 game_start）
//
// 與 SendBatch 相同：失敗在全部投遞後才處理，失敗的接收者不再收到後續消息。
func (d *Dispatcher) DeliverAll(deliveries []Delivery) {
	var failed []ClientID
	for _, delivery := range deliveries {
		if slices.Contains(failed, delivery.To) {
			continue
		}
		data, err := json.Marshal(delivery.Msg)
		if err != nil {
			d.logger.Error("序列化消息失敗", "error", err)
			continue
		}
		if err := d.deliver(delivery.To, data); err != nil {
			d.logger.Warn("消息發送失敗，視為斷線", "client_id", delivery.To, "error", err)
			failed = append(failed, delivery.To)
		}
	}

	d.handleFailures(failed)
}

// BroadcastToAll 發送給所有在線客戶端
func (d *Dispatcher) BroadcastToAll(msg any) {
	d.SendMany(d.directory.IDs(), msg, "")
}

// deliver 投遞到單一客戶端，失敗時返回 TransportFailure
func (d *Dispatcher) deliver(id ClientID, data []byte) error {
	sender, ok := d.directory.Sender(id)
	if !ok {
		// 已經斷線的客戶端：跳過，不重複觸發斷線處理
		return nil
	}
	if err := sender.Send(data); err != nil {
		return WrapGameError(fmt.Errorf("client %s: %w", id, err), ReasonTransport, "send failed")
	}
	return nil
}

// handleFailures 每個接收者在一批內最多失敗一次；Disconnect 本身可重入
func (d *Dispatcher) handleFailures(failed []ClientID) {
	if d.onFailure == nil {
		return
	}
	for _, id := range failed {
		d.onFailure(id)
	}
}
