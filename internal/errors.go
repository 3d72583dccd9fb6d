package internal

import (
	"errors"
	"fmt"
)

// 錯誤原因碼（即 wire 上的 reason 字串）
const (
	ReasonRoomNotFound     = "room_not_found"
	ReasonRoomFull         = "room_full"
	ReasonAlreadyInRoom    = "already_in_room"
	ReasonNotInRoom        = "not_in_room"
	ReasonGameNotStarted   = "game_not_started"
	ReasonGameNotFinished  = "game_not_finished"
	ReasonInvalidPosition  = "invalid_position"
	ReasonPositionOccupied = "position_occupied"
	ReasonNotYourTurn      = "not_your_turn"
	ReasonMalformed        = "malformed_message"
	ReasonTransport        = "transport_failure"
	ReasonInternal         = "internal_error"
)

// GameError 遊戲錯誤
//
// 所有驗證失敗都以 GameError 表示，Reason 直接作為回覆給客戶端的 reason。
// 比較時只看 Reason，因此 errors.Is(err, ErrRoomFull) 對包裝過的錯誤也成立。
type GameError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *GameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Reason, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *GameError) Unwrap() error {
	return e.Err
}

// Is 實現 errors.Is
func (e *GameError) Is(target error) bool {
	t, ok := target.(*GameError)
	if !ok {
		return false
	}
	return e.Reason == t.Reason
}

// NewGameError 創建遊戲錯誤
func NewGameError(reason, message string) *GameError {
	return &GameError{Reason: reason, Message: message}
}

// WrapGameError 包裝底層錯誤
func WrapGameError(err error, reason, message string) *GameError {
	return &GameError{Reason: reason, Message: message, Err: err}
}

// 預定義錯誤
var (
	ErrRoomNotFound     = NewGameError(ReasonRoomNotFound, "room not found")
	ErrRoomFull         = NewGameError(ReasonRoomFull, "room is full")
	ErrAlreadyInRoom    = NewGameError(ReasonAlreadyInRoom, "client already in a room")
	ErrNotInRoom        = NewGameError(ReasonNotInRoom, "client not in room")
	ErrGameNotStarted   = NewGameError(ReasonGameNotStarted, "game not started")
	ErrGameNotFinished  = NewGameError(ReasonGameNotFinished, "game not finished")
	ErrInvalidPosition  = NewGameError(ReasonInvalidPosition, "position out of board")
	ErrPositionOccupied = NewGameError(ReasonPositionOccupied, "position occupied")
	ErrNotYourTurn      = NewGameError(ReasonNotYourTurn, "not your turn")
	ErrMalformedMessage = NewGameError(ReasonMalformed, "malformed message")
	ErrTransportFailure = NewGameError(ReasonTransport, "send failed")
)

// ReasonOf 取得錯誤對應的 reason，非 GameError 一律視為內部錯誤
func ReasonOf(err error) string {
	var gameErr *GameError
	if errors.As(err, &gameErr) {
		return gameErr.Reason
	}
	return ReasonInternal
}

// IsTransportFailure 檢查是否為發送失敗
func IsTransportFailure(err error) bool {
	return errors.Is(err, ErrTransportFailure)
}
