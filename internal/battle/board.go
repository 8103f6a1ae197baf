// Package battle 實作海戰棋盤與攻擊判定。
//
// 本包不持有任何狀態：
//   - Ship / Fleet：艦隊佈局與佔用格
//   - Grid：某一方已被判定過的格子
//   - Resolve：給定攻擊格，計算 miss / shot / killed 結果（含擊沉後的周邊標記）
//
// 座標系：x 為欄、y 為列，範圍皆為 [0, BoardSize)。
package battle

import "math/rand/v2"

const (
	// BoardSize 棋盤邊長
	BoardSize = 10

	// FleetSize 一支完整艦隊的船艦數量（1 艘 4 格、2 艘 3 格、3 艘 2 格、4 艘 1 格）
	FleetSize = 10
)

// Position 棋盤座標
type Position struct {
	X int `json:"x" validate:"min=0,max=9"`
	Y int `json:"y" validate:"min=0,max=9"`
}

// InBounds 是否在棋盤內
func (p Position) InBounds() bool {
	return p.X >= 0 && p.X < BoardSize && p.Y >= 0 && p.Y < BoardSize
}

// Grid 記錄每一格是否已被判定（命中、未命中或擊沉後標記）
//
// 索引為 Grid[x][y]。
type Grid [BoardSize][BoardSize]bool

// Resolved 該格是否已判定過；越界視為已判定
func (g *Grid) Resolved(p Position) bool {
	if !p.InBounds() {
		return true
	}
	return g[p.X][p.Y]
}

// Apply 將一組結果全部標記為已判定
func (g *Grid) Apply(outcomes []Outcome) {
	for _, o := range outcomes {
		if o.Position.InBounds() {
			g[o.Position.X][o.Position.Y] = true
		}
	}
}

// FreeCells 返回所有尚未判定的格子
func (g *Grid) FreeCells() []Position {
	cells := make([]Position, 0, BoardSize*BoardSize)
	for x := 0; x < BoardSize; x++ {
		for y := 0; y < BoardSize; y++ {
			if !g[x][y] {
				cells = append(cells, Position{X: x, Y: y})
			}
		}
	}
	return cells
}

// RandomFree 均勻隨機挑選一個尚未判定的格子
func (g *Grid) RandomFree(r *rand.Rand) (Position, bool) {
	cells := g.FreeCells()
	if len(cells) == 0 {
		return Position{}, false
	}
	return cells[r.IntN(len(cells))], true
}
