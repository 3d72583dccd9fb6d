package internal

import (
	"slices"
	"sync"
	"time"
)

// 系統設計問題：
//   兩位玩家透過各自的連接同時操作同一個棋盤，
//   如何保證回合嚴格交替、每一格只被落一次，並且任何人離開後房間都回到乾淨狀態？
//
// 核心挑戰：
//   1. 並發控制：兩個 goroutine 可能在同一瞬間對同一房間落子
//   2. 原子性：驗證（回合、空位）與修改必須不可分割
//   3. 廣播一致性：通知對象必須是修改當下的成員，而不是廣播時的成員
//   4. 生命週期：斷線、主動離開、勝負後再戰都要把房間帶回已知狀態
//
// 設計方案：
//   ✅ 有限狀態機 - 狀態由內容推導，不會與內容不一致
//   ✅ 每個房間一把 Mutex - 房間之間完全並行
//   ✅ 操作返回成員快照 - 廣播在釋放鎖之後進行
//   ✅ 離開即完整重置 - 沒有「半局」殘留

// RoomStatus 房間狀態
//
// 有限狀態機：
//
//	empty → waiting → playing → finished
//	  ↑_______↑__________|__________|   （任何一方離開：完整重置）
//
// 狀態由房間內容推導，不單獨儲存：
//   - empty：沒有玩家
//   - waiting：一位玩家，等待對手
//   - playing：兩位玩家，started=true
//   - finished：兩位玩家，已分勝負，棋盤保留供顯示
type RoomStatus string

const (
	StatusEmpty    RoomStatus = "empty"
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// MaxPlayers 每個房間的玩家上限
const MaxPlayers = 2

// GameState 對局狀態（join_success / game_start 的 game_state 欄位）
type GameState struct {
	Board         [][]int `json:"board"`
	CurrentPlayer Cell    `json:"current_player"`
}

// RoomInfo 房間摘要（HTTP API 使用）
type RoomInfo struct {
	ID          string     `json:"room_id"`
	PlayerCount int        `json:"player_count"`
	Status      RoomStatus `json:"status"`
	LastMove    *Point     `json:"last_move,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// JoinResult 加入結果
type JoinResult struct {
	Role    Cell
	IsFirst bool
	// Started 本次加入是否讓房間開始對局
	Started bool
	Members []ClientID
	State   GameState
}

// ExitResult 離開結果
type ExitResult struct {
	// Remaining 仍在房間內的玩家（需要通知 player_disconnected）
	Remaining  []ClientID
	WasPlaying bool
}

// MoveResult 落子結果
type MoveResult struct {
	Point   Point
	Player  Cell
	Won     bool
	Members []ClientID
}

// RematchResult 再戰投票結果
type RematchResult struct {
	// Restarted 雙方都已投票，新的一局已開始
	Restarted bool
	Opponent  ClientID
	Members   []ClientID
	State     GameState
}

// Room 一個對局房間
//
// 房間由 Registry 在啟動時建立，生命週期等同進程；
// 「重置」只清空內容，不會銷毀房間。
//
// 並發控制：每個房間一把互斥鎖。
// 驗證與修改在同一個臨界區內完成，兩個連接同時落子時，
// 後拿到鎖的一方會看到已更新的狀態並被拒絕（not_your_turn / position_occupied）。
// 不同房間之間沒有共享狀態，可以完全並行。
//
// 所有操作返回成員快照，廣播在釋放鎖之後進行。
type Room struct {
	ID string

	mu        sync.Mutex
	players   []ClientID // 加入順序決定顏色：第一位為黑
	board     Board
	current   Cell
	started   bool
	finished  bool
	lastMove  *Point
	rematch   map[ClientID]bool
	updatedAt time.Time
}

// NewRoom 創建空房間
func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		players:   make([]ClientID, 0, MaxPlayers),
		current:   Black,
		rematch:   make(map[ClientID]bool),
		updatedAt: time.Now(),
	}
}

// Join 加入房間
//
// 第一位加入者為黑方；第二位為白方，並立即開始新局（黑先）。
func (r *Room) Join(clientID ClientID) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.players, clientID) {
		return JoinResult{}, ErrAlreadyInRoom
	}
	if len(r.players) >= MaxPlayers {
		return JoinResult{}, ErrRoomFull
	}

	r.players = append(r.players, clientID)
	r.updatedAt = time.Now()

	result := JoinResult{
		Role:    r.colorOf(len(r.players) - 1),
		IsFirst: len(r.players) == 1,
	}

	if len(r.players) == MaxPlayers {
		r.resetGame()
		r.started = true
		result.Started = true
	}

	result.Members = r.membersLocked()
	result.State = r.gameStateLocked()
	return result, nil
}

// Exit 離開房間
//
// 任何一方離開都視為放棄本局：棋盤與回合完整重置。
// 留下的玩家成為新的第一位（黑方），等待下一位對手。
func (r *Room) Exit(clientID ClientID) (ExitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.Index(r.players, clientID)
	if idx < 0 {
		return ExitResult{}, ErrNotInRoom
	}

	result := ExitResult{WasPlaying: r.started}

	r.players = slices.Delete(r.players, idx, idx+1)
	r.resetGame()
	r.updatedAt = time.Now()

	result.Remaining = r.membersLocked()
	return result, nil
}

// Move 落子
//
// 驗證順序：成員 → 已開始 → 座標範圍 → 回合 → 空位。
// 任一失敗都不修改狀態。
func (r *Room) Move(clientID ClientID, x, y int) (MoveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.Index(r.players, clientID)
	if idx < 0 {
		return MoveResult{}, ErrNotInRoom
	}
	if !r.started {
		return MoveResult{}, ErrGameNotStarted
	}
	if !InBounds(x, y) {
		return MoveResult{}, ErrInvalidPosition
	}
	color := r.colorOf(idx)
	if color != r.current {
		return MoveResult{}, ErrNotYourTurn
	}
	if err := r.board.Place(x, y, color); err != nil {
		return MoveResult{}, err
	}

	p := Point{X: x, Y: y}
	r.lastMove = &p
	r.updatedAt = time.Now()

	result := MoveResult{Point: p, Player: color}
	if r.board.CheckWin(x, y) {
		r.started = false
		r.finished = true
		result.Won = true
	} else {
		r.current = color.Opponent()
	}

	result.Members = r.membersLocked()
	return result, nil
}

// Rematch 再戰投票
//
// 只有已分出勝負的房間可以投票；雙方都同意後重置棋盤並開始新局，顏色不變。
func (r *Room) Rematch(clientID ClientID) (RematchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.Index(r.players, clientID)
	if idx < 0 {
		return RematchResult{}, ErrNotInRoom
	}
	if !r.finished {
		return RematchResult{}, ErrGameNotFinished
	}

	r.rematch[clientID] = true
	result := RematchResult{Opponent: r.players[1-idx]}

	if len(r.rematch) == MaxPlayers {
		r.resetGame()
		r.started = true
		r.updatedAt = time.Now()
		result.Restarted = true
	}

	result.Members = r.membersLocked()
	result.State = r.gameStateLocked()
	return result, nil
}

// Members 返回玩家快照（按加入順序）
func (r *Room) Members() []ClientID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked()
}

// RoleOf 返回玩家顏色，不在房間內返回 Empty
func (r *Room) RoleOf(clientID ClientID) Cell {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.Index(r.players, clientID)
	if idx < 0 {
		return Empty
	}
	return r.colorOf(idx)
}

// PlayerCount 獲取玩家數量
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Status 獲取房間狀態
func (r *Room) Status() RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

// Started 對局是否進行中
func (r *Room) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// CurrentPlayer 當前回合顏色
func (r *Room) CurrentPlayer() Cell {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// BoardSnapshot 返回棋盤副本
func (r *Room) BoardSnapshot() Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board
}

// LastMove 最後一手，沒有時返回 nil
func (r *Room) LastMove() *Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastMove == nil {
		return nil
	}
	p := *r.lastMove
	return &p
}

// GameState 獲取對局狀態
func (r *Room) GameState() GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gameStateLocked()
}

// Info 獲取房間摘要
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := RoomInfo{
		ID:          r.ID,
		PlayerCount: len(r.players),
		Status:      r.statusLocked(),
		UpdatedAt:   r.updatedAt,
	}
	if r.lastMove != nil {
		p := *r.lastMove
		info.LastMove = &p
	}
	return info
}

// 以下方法需要持有 r.mu

func (r *Room) colorOf(idx int) Cell {
	if idx == 0 {
		return Black
	}
	return White
}

func (r *Room) resetGame() {
	r.board.Reset()
	r.current = Black
	r.started = false
	r.finished = false
	r.lastMove = nil
	clear(r.rematch)
}

func (r *Room) statusLocked() RoomStatus {
	switch {
	case len(r.players) == 0:
		return StatusEmpty
	case r.finished:
		return StatusFinished
	case r.started:
		return StatusPlaying
	default:
		return StatusWaiting
	}
}

func (r *Room) membersLocked() []ClientID {
	return slices.Clone(r.players)
}

func (r *Room) gameStateLocked() GameState {
	return GameState{
		Board:         r.board.Grid(),
		CurrentPlayer: r.current,
	}
}
