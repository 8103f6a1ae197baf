package battle

import "math/rand/v2"

func ship(x, y int, vertical bool, class ShipClass) Ship {
	return Ship{Position: Position{X: x, Y: y}, Vertical: vertical, Type: class, Length: class.Length()}
}

// templates 預先驗證過的合法艦隊（無重疊、無相鄰）
var templates = []Fleet{
	{
		ship(7, 5, true, ClassHuge),
		ship(0, 8, false, ClassLarge),
		ship(4, 3, false, ClassLarge),
		ship(2, 1, false, ClassMedium),
		ship(8, 2, false, ClassMedium),
		ship(9, 4, true, ClassMedium),
		ship(0, 4, false, ClassSmall),
		ship(7, 0, true, ClassSmall),
		ship(1, 6, true, ClassSmall),
		ship(0, 1, false, ClassSmall),
	},
	{
		ship(1, 9, false, ClassHuge),
		ship(6, 6, false, ClassLarge),
		ship(0, 2, true, ClassLarge),
		ship(6, 3, false, ClassMedium),
		ship(0, 6, true, ClassMedium),
		ship(3, 3, true, ClassMedium),
		ship(7, 8, false, ClassSmall),
		ship(9, 4, false, ClassSmall),
		ship(6, 1, false, ClassSmall),
		ship(4, 0, true, ClassSmall),
	},
	{
		ship(4, 0, false, ClassHuge),
		ship(5, 4, false, ClassLarge),
		ship(0, 5, false, ClassLarge),
		ship(5, 6, false, ClassMedium),
		ship(4, 8, true, ClassMedium),
		ship(7, 2, false, ClassMedium),
		ship(1, 2, true, ClassSmall),
		ship(9, 4, false, ClassSmall),
		ship(8, 6, false, ClassSmall),
		ship(3, 3, false, ClassSmall),
	},
	{
		ship(4, 5, true, ClassHuge),
		ship(2, 3, true, ClassLarge),
		ship(0, 9, false, ClassLarge),
		ship(9, 0, true, ClassMedium),
		ship(0, 7, false, ClassMedium),
		ship(0, 4, true, ClassMedium),
		ship(5, 1, true, ClassSmall),
		ship(8, 6, true, ClassSmall),
		ship(6, 4, true, ClassSmall),
		ship(9, 3, true, ClassSmall),
	},
}

// Templates 返回所有預設艦隊的副本
func Templates() []Fleet {
	out := make([]Fleet, len(templates))
	for i, f := range templates {
		out[i] = f.Clone()
	}
	return out
}

// RandomFleet 隨機挑選一支預設艦隊
func RandomFleet(r *rand.Rand) Fleet {
	return templates[r.IntN(len(templates))].Clone()
}
