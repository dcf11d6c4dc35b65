package suggest

import (
	"math/rand/v2"
)

// Strategy 根据当前文本给出一条建议，返回 false 表示没有建议
type Strategy func(text string) (string, bool)

// DefaultPool 默认候选建议
var DefaultPool = []string{
	"and that is exactly why the details matter.",
	"which leads to the next point worth considering.",
	"In other words, the result speaks for itself.",
	"This makes the overall argument much clearer.",
	"Let me explain this in a bit more detail.",
}

// PoolStrategy 从固定候选集合中选择一条建议。
// pick 返回 [0, n) 内的下标，为 nil 时随机选择。
func PoolStrategy(pool []string, pick func(n int) int) Strategy {
	candidates := make([]string, 0, len(pool))
	for _, s := range pool {
		if s != "" {
			candidates = append(candidates, s)
		}
	}
	if pick == nil {
		pick = rand.IntN
	}

	return func(string) (string, bool) {
		if len(candidates) == 0 {
			return "", false
		}
		i := pick(len(candidates))
		if i < 0 || i >= len(candidates) {
			i = 0
		}
		return candidates[i], true
	}
}
