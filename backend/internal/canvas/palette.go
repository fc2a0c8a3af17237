package canvas

import "math/rand/v2"

// 固定调色板；每个连接独立随机取色，允许撞色
var Palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#fabebe", "#008080", "#e6beff",
}

// PickColor 用 intn 从调色板里选一个颜色；intn 为 nil 时使用 math/rand/v2
func PickColor(intn func(n int) int) string {
	if intn == nil {
		intn = rand.IntN
	}
	return Palette[intn(len(Palette))]
}
