package internal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/koopa0/online-gobang/pkg/logger"
)

// Router 消息路由
//
// 每條連接的讀取 goroutine 依序呼叫 Handle，
// 因此同一客戶端的請求按到達順序處理；不同客戶端之間靠房間鎖串行化。
//
// 所有驗證失敗只回覆給發起者，不會改變房間狀態。
type Router struct {
	registry   *Registry
	directory  *Directory
	dispatcher *Dispatcher
	status     *StatusPublisher
	events     EventSink
	logger     *slog.Logger
}

// NewRouter 創建消息路由
func NewRouter(registry *Registry, directory *Directory, dispatcher *Dispatcher, status *StatusPublisher, events EventSink, logger *slog.Logger) *Router {
	if events == nil {
		events = NopSink{}
	}
	return &Router{
		registry:   registry,
		directory:  directory,
		dispatcher: dispatcher,
		status:     status,
		events:     events,
		logger:     logger,
	}
}

// Handle 處理一條客戶端消息
//
// handler 內的 panic 在此恢復並轉為 internal_error 回覆，協調器繼續服務其他客戶端。
func (r *Router) Handle(ctx context.Context, clientID ClientID, data []byte) {
	ctx = logger.WithClientID(ctx, string(clientID))

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "處理消息時發生 panic", "error", rec)
			r.dispatcher.Send(clientID, FailureMessage{Action: ActionError, Reason: ReasonInternal})
		}
	}()

	req, err := DecodeRequest(data)
	if err != nil {
		r.logger.WarnContext(ctx, "無效的客戶端消息", "error", err)
		r.dispatcher.Send(clientID, NewFailure(ActionError, "", err))
		return
	}

	r.logger.DebugContext(ctx, "處理客戶端請求", "action", req.Action())

	switch req := req.(type) {
	case JoinRoomRequest:
		r.handleJoin(logger.WithRoomID(ctx, req.RoomID), clientID, req)
	case ExitRoomRequest:
		r.handleExit(logger.WithRoomID(ctx, req.RoomID), clientID, req)
	case MoveRequest:
		r.handleMove(logger.WithRoomID(ctx, req.RoomID), clientID, req)
	case RematchRequest:
		r.handleRematch(logger.WithRoomID(ctx, req.RoomID), clientID, req)
	case PingRequest:
		r.dispatcher.Send(clientID, PongMessage{Action: ActionPong})
	default:
		panic(fmt.Sprintf("unhandled request type %T", req))
	}
}

// handleJoin 加入房間
func (r *Router) handleJoin(ctx context.Context, clientID ClientID, req JoinRoomRequest) {
	if current, ok := r.directory.RoomOf(clientID); ok {
		r.logger.InfoContext(ctx, "玩家已在其他房間", "current_room", current)
		r.dispatcher.Send(clientID, NewFailure(ActionJoinFailed, req.RoomID, ErrAlreadyInRoom))
		return
	}

	room, err := r.registry.Get(req.RoomID)
	if err != nil {
		r.dispatcher.Send(clientID, NewFailure(ActionJoinFailed, req.RoomID, err))
		return
	}

	result, err := room.Join(clientID)
	if err != nil {
		r.logger.InfoContext(ctx, "加入房間失敗", "reason", ReasonOf(err))
		r.dispatcher.Send(clientID, NewFailure(ActionJoinFailed, req.RoomID, err))
		return
	}

	// 加入與登記之間客戶端可能已被斷線處理移除，此時回滾，避免房間留下失效的 ID
	if !r.directory.SetRoom(clientID, room.ID) {
		r.logger.WarnContext(ctx, "玩家在加入過程中斷線，回滾")
		r.leave(ctx, clientID, room)
		return
	}

	r.logger.InfoContext(ctx, "玩家加入房間",
		"role", result.Role.String(),
		"players", len(result.Members))

	// join_success 與 game_start 同一批送出，中途斷線不會讓對手收到失效的開局
	deliveries := []Delivery{{To: clientID, Msg: JoinSuccessMessage{
		Action:    ActionJoinSuccess,
		RoomID:    room.ID,
		Role:      result.Role.String(),
		IsFirst:   result.IsFirst,
		GameState: result.State,
	}}}
	if result.Started {
		deliveries = append(deliveries, r.startDeliveries(room.ID, result.Members, result.State)...)
	}
	r.dispatcher.DeliverAll(deliveries)

	if result.Started {
		r.announceStart(ctx, room.ID, len(result.Members))
	}

	r.status.PublishNow()
}

// handleExit 主動離開房間
func (r *Router) handleExit(ctx context.Context, clientID ClientID, req ExitRoomRequest) {
	room, err := r.registry.Get(req.RoomID)
	if err != nil {
		r.dispatcher.Send(clientID, NewFailure(ActionExitFailed, req.RoomID, err))
		return
	}

	if err := r.leave(ctx, clientID, room); err != nil {
		r.dispatcher.Send(clientID, NewFailure(ActionExitFailed, req.RoomID, err))
		return
	}

	r.dispatcher.Send(clientID, RoomMessage{Action: ActionExitSuccess, RoomID: room.ID})
}

// handleMove 落子
func (r *Router) handleMove(ctx context.Context, clientID ClientID, req MoveRequest) {
	room, err := r.registry.Get(req.RoomID)
	if err != nil {
		r.dispatcher.Send(clientID, NewFailure(ActionMoveFailed, req.RoomID, err))
		return
	}

	result, err := room.Move(clientID, req.X, req.Y)
	if err != nil {
		r.logger.DebugContext(ctx, "落子被拒絕", "x", req.X, "y", req.Y, "reason", ReasonOf(err))
		r.dispatcher.Send(clientID, NewFailure(ActionMoveFailed, req.RoomID, err))
		return
	}

	point := result.Point
	batch := []any{MoveMessage{
		Action: ActionMove,
		RoomID: room.ID,
		X:      point.X,
		Y:      point.Y,
		Player: result.Player,
	}}
	if result.Won {
		batch = append(batch, GameOverMessage{
			Action:      ActionGameOver,
			RoomID:      room.ID,
			Winner:      result.Player.String(),
			WinningMove: point,
		})
	}

	// move 與 game_over 作為同一批送出：發送失敗引起的斷線在整批之後才處理，
	// 對手不會在 game_over 之前先看到 player_disconnected
	r.dispatcher.SendBatch(result.Members, "", batch...)

	r.publishEvent(ctx, GameEvent{
		Type:     EventMovePlayed,
		RoomID:   room.ID,
		ClientID: clientID,
		Player:   result.Player,
		Point:    &point,
	})

	if !result.Won {
		return
	}

	r.logger.InfoContext(ctx, "對局結束", "winner", result.Player.String(), "x", point.X, "y", point.Y)

	r.publishEvent(ctx, GameEvent{
		Type:     EventGameOver,
		RoomID:   room.ID,
		ClientID: clientID,
		Player:   result.Player,
		Point:    &point,
		Winner:   result.Player.String(),
	})
}

// handleRematch 再戰投票
func (r *Router) handleRematch(ctx context.Context, clientID ClientID, req RematchRequest) {
	room, err := r.registry.Get(req.RoomID)
	if err != nil {
		r.dispatcher.Send(clientID, NewFailure(ActionRematchFailed, req.RoomID, err))
		return
	}

	result, err := room.Rematch(clientID)
	if err != nil {
		r.dispatcher.Send(clientID, NewFailure(ActionRematchFailed, req.RoomID, err))
		return
	}

	if result.Restarted {
		r.logger.InfoContext(ctx, "雙方同意再戰")
		r.dispatcher.DeliverAll(r.startDeliveries(room.ID, result.Members, result.State))
		r.announceStart(ctx, room.ID, len(result.Members))
		return
	}

	r.dispatcher.DeliverAll([]Delivery{
		{To: clientID, Msg: RoomMessage{Action: ActionRematchPending, RoomID: room.ID}},
		{To: result.Opponent, Msg: RoomMessage{Action: ActionRematchRequested, RoomID: room.ID}},
	})
}

// leave 離開房間的共用流程（主動離開與斷線）
//
// 房間完整重置，通知留下的玩家，並廣播最新的房間人數。
func (r *Router) leave(ctx context.Context, clientID ClientID, room *Room) error {
	result, err := room.Exit(clientID)
	if err != nil {
		return err
	}
	r.directory.ClearRoom(clientID, room.ID)

	r.logger.InfoContext(ctx, "玩家離開房間",
		"was_playing", result.WasPlaying,
		"remaining", len(result.Remaining))

	r.dispatcher.SendMany(result.Remaining, RoomMessage{
		Action: ActionPlayerDisconnected,
		RoomID: room.ID,
	}, "")

	r.publishEvent(ctx, GameEvent{
		Type:     EventPlayerLeft,
		RoomID:   room.ID,
		ClientID: clientID,
	})

	r.status.PublishNow()
	return nil
}

// startDeliveries 雙方的 game_start，角色按加入順序
func (r *Router) startDeliveries(roomID string, members []ClientID, state GameState) []Delivery {
	deliveries := make([]Delivery, 0, len(members))
	for i, member := range members {
		role := Black
		if i > 0 {
			role = White
		}
		deliveries = append(deliveries, Delivery{To: member, Msg: GameStartMessage{
			Action:    ActionGameStart,
			RoomID:    roomID,
			Role:      role.String(),
			IsFirst:   i == 0,
			GameState: state,
		}})
	}
	return deliveries
}

// announceStart 記錄開局並發布事件
func (r *Router) announceStart(ctx context.Context, roomID string, players int) {
	r.logger.InfoContext(ctx, "對局開始", "players", players)
	r.publishEvent(ctx, GameEvent{Type: EventGameStarted, RoomID: roomID})
}

func (r *Router) publishEvent(ctx context.Context, event GameEvent) {
	event.Timestamp = time.Now()
	if err := r.events.Publish(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "發布遊戲事件失敗", "type", event.Type, "error", err)
	}
}
