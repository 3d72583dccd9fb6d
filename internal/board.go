package internal

// Cell 棋盤格狀態，同時作為棋子顏色（wire 上的 player 值）
type Cell uint8

const (
	Empty Cell = 0
	Black Cell = 1
	White Cell = 2
)

const (
	// BoardSize 棋盤邊長
	BoardSize = 15
	// WinLength 連成一線所需的棋子數
	WinLength = 5
)

// String 返回角色名稱（black / white）
func (c Cell) String() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return "empty"
	}
}

// Opponent 返回對手顏色
func (c Cell) Opponent() Cell {
	switch c {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

// Point 棋盤座標
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// 四個方向對：水平、垂直、↘、↗
var winDirections = [4][2]int{
	{1, 0},
	{0, 1},
	{1, 1},
	{1, -1},
}

// Board 15×15 棋盤
//
// 值類型：複製 Board 即得到一份獨立快照。
// 以 cells[y][x] 儲存，與 wire 上 game_state.board 的形狀一致。
type Board struct {
	cells [BoardSize][BoardSize]Cell
}

// InBounds 座標是否在棋盤內
func InBounds(x, y int) bool {
	return x >= 0 && x < BoardSize && y >= 0 && y < BoardSize
}

// At 返回座標上的狀態，越界時返回 Empty
func (b *Board) At(x, y int) Cell {
	if !InBounds(x, y) {
		return Empty
	}
	return b.cells[y][x]
}

// Place 落子
//
// 每一格在一局中只能從 Empty 變成 Black/White 一次。
func (b *Board) Place(x, y int, c Cell) error {
	if !InBounds(x, y) {
		return ErrInvalidPosition
	}
	if b.cells[y][x] != Empty {
		return ErrPositionOccupied
	}
	b.cells[y][x] = c
	return nil
}

// Reset 清空棋盤
func (b *Board) Reset() {
	b.cells = [BoardSize][BoardSize]Cell{}
}

// IsEmpty 棋盤是否全空
func (b *Board) IsEmpty() bool {
	return b.cells == [BoardSize][BoardSize]Cell{}
}

// Grid 返回 [y][x] 形式的整數矩陣（用於序列化）
func (b *Board) Grid() [][]int {
	grid := make([][]int, BoardSize)
	for y := range BoardSize {
		row := make([]int, BoardSize)
		for x := range BoardSize {
			row[x] = int(b.cells[y][x])
		}
		grid[y] = row
	}
	return grid
}

// CheckWin 檢查剛落在 (x, y) 的棋子是否形成五連
//
// 只需檢查經過最後一手的四條線：新的連線一定經過新落下的棋子。
// 長連（超過五子）同樣算勝。
func (b *Board) CheckWin(x, y int) bool {
	color := b.At(x, y)
	if color == Empty {
		return false
	}

	for _, dir := range winDirections {
		count := 1
		count += b.countFrom(x, y, dir[0], dir[1], color)
		count += b.countFrom(x, y, -dir[0], -dir[1], color)
		if count >= WinLength {
			return true
		}
	}
	return false
}

// countFrom 沿 (dx, dy) 方向數連續同色棋子（不含起點）
func (b *Board) countFrom(x, y, dx, dy int, color Cell) int {
	count := 0
	nx, ny := x+dx, y+dy
	for InBounds(nx, ny) && b.cells[ny][nx] == color {
		count++
		nx += dx
		ny += dy
	}
	return count
}
