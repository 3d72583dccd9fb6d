package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// 客戶端 → 服務器的 action
const (
	ActionJoinRoom = "join_room"
	ActionExitRoom = "exit_room"
	ActionMove     = "move"
	ActionRematch  = "rematch"
	ActionPing     = "ping"
)

// 服務器 → 客戶端的 action
const (
	ActionJoinSuccess        = "join_success"
	ActionJoinFailed         = "join_failed"
	ActionGameStart          = "game_start"
	ActionMoveFailed         = "move_failed"
	ActionGameOver           = "game_over"
	ActionPlayerDisconnected = "player_disconnected"
	ActionExitSuccess        = "exit_success"
	ActionExitFailed         = "exit_failed"
	ActionRematchPending     = "rematch_pending"
	ActionRematchRequested   = "rematch_requested"
	ActionRematchFailed      = "rematch_failed"
	ActionRoomStatus         = "room_status"
	ActionError              = "error"
	ActionPong               = "pong"
)

// maxMessageBytes 單條消息上限（傳輸層另有 ReadLimit）
const maxMessageBytes = 4096

// Request 已解碼的客戶端請求
//
// 封閉的標籤聯合：只有本檔案內的類型實現 isRequest。
type Request interface {
	isRequest()
	Action() string
}

// JoinRoomRequest 加入房間
type JoinRoomRequest struct {
	RoomID string
}

// ExitRoomRequest 離開房間
type ExitRoomRequest struct {
	RoomID string
}

// MoveRequest 落子
type MoveRequest struct {
	RoomID string
	X, Y   int
}

// RematchRequest 再戰
type RematchRequest struct {
	RoomID string
}

// PingRequest 應用層心跳
type PingRequest struct{}

func (JoinRoomRequest) isRequest() {}
func (ExitRoomRequest) isRequest() {}
func (MoveRequest) isRequest()     {}
func (RematchRequest) isRequest()  {}
func (PingRequest) isRequest()     {}

func (JoinRoomRequest) Action() string { return ActionJoinRoom }
func (ExitRoomRequest) Action() string { return ActionExitRoom }
func (MoveRequest) Action() string     { return ActionMove }
func (RematchRequest) Action() string  { return ActionRematch }
func (PingRequest) Action() string     { return ActionPing }

// envelope 第一階段解碼：只取 action
type envelope struct {
	Action string `json:"action"`
}

type roomPayload struct {
	Action string  `json:"action"`
	RoomID *string `json:"room_id"`
}

type movePayload struct {
	Action string  `json:"action"`
	RoomID *string `json:"room_id"`
	X      *int    `json:"x"`
	Y      *int    `json:"y"`
}

type pingPayload struct {
	Action string `json:"action"`
}

// DecodeRequest 解碼客戶端消息
//
// 兩階段解碼：先讀 action，再以對應結構嚴格解碼（拒絕未知欄位、
// 缺少必填欄位、類型不符）。任何失敗都返回 ErrMalformedMessage。
func DecodeRequest(data []byte) (Request, error) {
	if len(data) > maxMessageBytes {
		return nil, malformed(fmt.Errorf("message too large: %d bytes", len(data)))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, malformed(err)
	}

	switch env.Action {
	case ActionJoinRoom, ActionExitRoom, ActionRematch:
		var p roomPayload
		if err := strictUnmarshal(data, &p); err != nil {
			return nil, malformed(err)
		}
		if p.RoomID == nil || *p.RoomID == "" {
			return nil, malformed(fmt.Errorf("%s: missing room_id", env.Action))
		}
		switch env.Action {
		case ActionJoinRoom:
			return JoinRoomRequest{RoomID: *p.RoomID}, nil
		case ActionExitRoom:
			return ExitRoomRequest{RoomID: *p.RoomID}, nil
		default:
			return RematchRequest{RoomID: *p.RoomID}, nil
		}

	case ActionMove:
		var p movePayload
		if err := strictUnmarshal(data, &p); err != nil {
			return nil, malformed(err)
		}
		if p.RoomID == nil || *p.RoomID == "" || p.X == nil || p.Y == nil {
			return nil, malformed(fmt.Errorf("move: missing room_id, x or y"))
		}
		return MoveRequest{RoomID: *p.RoomID, X: *p.X, Y: *p.Y}, nil

	case ActionPing:
		var p pingPayload
		if err := strictUnmarshal(data, &p); err != nil {
			return nil, malformed(err)
		}
		return PingRequest{}, nil

	case "":
		return nil, malformed(fmt.Errorf("missing action"))
	default:
		return nil, malformed(fmt.Errorf("unknown action %q", env.Action))
	}
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func malformed(err error) error {
	return WrapGameError(err, ReasonMalformed, "malformed message")
}

// 以下為服務器 → 客戶端消息

// JoinSuccessMessage 加入成功
type JoinSuccessMessage struct {
	Action    string    `json:"action"`
	RoomID    string    `json:"room_id"`
	Role      string    `json:"role"`
	IsFirst   bool      `json:"is_first"`
	GameState GameState `json:"game_state"`
}

// GameStartMessage 對局開始
type GameStartMessage struct {
	Action    string    `json:"action"`
	RoomID    string    `json:"room_id"`
	Role      string    `json:"role"`
	IsFirst   bool      `json:"is_first"`
	GameState GameState `json:"game_state"`
}

// MoveMessage 落子廣播
type MoveMessage struct {
	Action string `json:"action"`
	RoomID string `json:"room_id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Player Cell   `json:"player"`
}

// GameOverMessage 對局結束
type GameOverMessage struct {
	Action      string `json:"action"`
	RoomID      string `json:"room_id"`
	Winner      string `json:"winner"`
	WinningMove Point  `json:"winning_move"`
}

// RoomMessage 只帶房間 ID 的消息
// （player_disconnected / exit_success / rematch_pending / rematch_requested）
type RoomMessage struct {
	Action string `json:"action"`
	RoomID string `json:"room_id"`
}

// FailureMessage 失敗回覆（join_failed / move_failed / exit_failed / rematch_failed / error）
type FailureMessage struct {
	Action string `json:"action"`
	RoomID string `json:"room_id,omitempty"`
	Reason string `json:"reason"`
}

// RoomStatusMessage 房間人數廣播
type RoomStatusMessage struct {
	Action string                     `json:"action"`
	Rooms  map[string]RoomStatusEntry `json:"rooms"`
}

// PongMessage 心跳回覆
type PongMessage struct {
	Action string `json:"action"`
}

// NewFailure 創建失敗回覆，reason 取自錯誤
func NewFailure(action, roomID string, err error) FailureMessage {
	return FailureMessage{Action: action, RoomID: roomID, Reason: ReasonOf(err)}
}

// NewRoomStatus 創建房間人數廣播
func NewRoomStatus(snapshot map[string]RoomStatusEntry) RoomStatusMessage {
	return RoomStatusMessage{Action: ActionRoomStatus, Rooms: snapshot}
}
