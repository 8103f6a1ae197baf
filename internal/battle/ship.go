package battle

// ShipClass 船艦級別
type ShipClass string

const (
	ClassSmall  ShipClass = "small"  // 1 格
	ClassMedium ShipClass = "medium" // 2 格
	ClassLarge  ShipClass = "large"  // 3 格
	ClassHuge   ShipClass = "huge"   // 4 格
)

// Length 級別對應的長度；未知級別返回 0
func (c ShipClass) Length() int {
	switch c {
	case ClassSmall:
		return 1
	case ClassMedium:
		return 2
	case ClassLarge:
		return 3
	case ClassHuge:
		return 4
	default:
		return 0
	}
}

// Ship 一艘船艦的擺放
//
// Vertical 對應線上格式的 direction 欄位：true 表示沿 y 軸延伸，false 沿 x 軸。
type Ship struct {
	Position Position  `json:"position"`
	Vertical bool      `json:"direction"`
	Type     ShipClass `json:"type" validate:"oneof=small medium large huge"`
	Length   int       `json:"length" validate:"min=1,max=4"`
}

// Cells 船艦佔用的所有格子，從起點開始依序排列
func (s Ship) Cells() []Position {
	cells := make([]Position, 0, s.Length)
	for i := 0; i < s.Length; i++ {
		if s.Vertical {
			cells = append(cells, Position{X: s.Position.X, Y: s.Position.Y + i})
		} else {
			cells = append(cells, Position{X: s.Position.X + i, Y: s.Position.Y})
		}
	}
	return cells
}

// Occupies 船艦是否佔用該格
func (s Ship) Occupies(p Position) bool {
	for _, c := range s.Cells() {
		if c == p {
			return true
		}
	}
	return false
}

// Perimeter 船艦周邊（含對角）且在棋盤內的格子
//
// 兩端各 3 格、沿船身兩側各 1 格。
func (s Ship) Perimeter() []Position {
	if s.Length <= 0 {
		return nil
	}
	cells := s.Cells()
	first, last := cells[0], cells[len(cells)-1]

	around := make([]Position, 0, 2*len(cells)+6)
	if s.Vertical {
		for _, c := range cells {
			around = append(around, Position{X: c.X - 1, Y: c.Y}, Position{X: c.X + 1, Y: c.Y})
		}
		for dx := -1; dx <= 1; dx++ {
			around = append(around,
				Position{X: first.X + dx, Y: first.Y - 1},
				Position{X: last.X + dx, Y: last.Y + 1})
		}
	} else {
		for _, c := range cells {
			around = append(around, Position{X: c.X, Y: c.Y - 1}, Position{X: c.X, Y: c.Y + 1})
		}
		for dy := -1; dy <= 1; dy++ {
			around = append(around,
				Position{X: first.X - 1, Y: first.Y + dy},
				Position{X: last.X + 1, Y: last.Y + dy})
		}
	}

	inBounds := around[:0]
	for _, p := range around {
		if p.InBounds() {
			inBounds = append(inBounds, p)
		}
	}
	return inBounds
}

// Fleet 一方的全部船艦
type Fleet []Ship

// ShipAt 返回佔用該格的船艦
func (f Fleet) ShipAt(p Position) (Ship, bool) {
	for _, s := range f {
		if s.Occupies(p) {
			return s, true
		}
	}
	return Ship{}, false
}

// Clone 深拷貝艦隊
func (f Fleet) Clone() Fleet {
	if f == nil {
		return nil
	}
	out := make(Fleet, len(f))
	copy(out, f)
	return out
}
