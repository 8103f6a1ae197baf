package battle

// Status 單格判定結果，字串值沿用客戶端協議
type Status string

const (
	StatusMiss Status = "miss"
	StatusHit  Status = "shot"
	StatusSunk Status = "killed"
)

// Outcome 一格的判定結果
type Outcome struct {
	Position Position `json:"position"`
	Status   Status   `json:"status"`
}

// Resolve 計算攻擊 target 的判定結果
//
// 規則：
//   - target 已判定過（或越界）：返回空，重複攻擊不產生任何效果
//   - 沒有船：單一 miss
//   - 命中但船上其他格仍未全部判定：單一 shot
//   - 此擊擊沉：整艘船每格 killed，接著周邊尚未判定的格子 miss
//
// Resolve 不修改 grid；呼叫方須以 grid.Apply 標記所有返回的格子。
func Resolve(target Position, fleet Fleet, grid *Grid) []Outcome {
	if grid.Resolved(target) {
		return nil
	}

	ship, ok := fleet.ShipAt(target)
	if !ok {
		return []Outcome{{Position: target, Status: StatusMiss}}
	}

	cells := ship.Cells()
	for _, c := range cells {
		if c != target && !grid.Resolved(c) {
			return []Outcome{{Position: target, Status: StatusHit}}
		}
	}

	outcomes := make([]Outcome, 0, len(cells)+2*len(cells)+6)
	for _, c := range cells {
		outcomes = append(outcomes, Outcome{Position: c, Status: StatusSunk})
	}
	for _, p := range ship.Perimeter() {
		if !grid.Resolved(p) {
			outcomes = append(outcomes, Outcome{Position: p, Status: StatusMiss})
		}
	}
	return outcomes
}

// Successful 結果中是否包含命中或擊沉
func Successful(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Status == StatusHit || o.Status == StatusSunk {
			return true
		}
	}
	return false
}

// Sunk 結果中是否包含擊沉
func Sunk(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Status == StatusSunk {
			return true
		}
	}
	return false
}
