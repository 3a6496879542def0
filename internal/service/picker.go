package service

import (
	"math/rand"
	"sync"
	"time"
)

// Picker 随机选择的来源，测试中可替换为确定性实现
type Picker interface {
	Intn(n int) int
}

type randomPicker struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandomPicker seed 为0时以当前时间为种子
func NewRandomPicker(seed int64) Picker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &randomPicker{r: rand.New(rand.NewSource(seed))}
}

func (p *randomPicker) Intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.Intn(n)
}

// pickRandom 在列表中均匀随机取一项
func pickRandom[T any](p Picker, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	idx := p.Intn(len(items))
	if idx < 0 || idx >= len(items) {
		idx = 0
	}
	return items[idx], true
}
