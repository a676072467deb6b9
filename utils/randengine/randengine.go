// 随机数引擎，包装了golang.org/x/exp/rand，供外部策略抽样相位
package randengine

import (
	"flag"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成

	log = logrus.WithField("module", "randengine")
)

// Engine 随机数引擎
// 功能：提供均匀抽样与按权重抽样，带Safe后缀的方法可并发调用
type Engine struct {
	*rand.Rand            // 底层随机数生成器
	mtx        sync.Mutex // 互斥锁，用于线程安全操作
}

// New 创建随机数引擎
// 参数：seed-随机数种子（实际种子为seed加上-rand.seed_offset）
// 返回：随机数引擎指针
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// DiscreteDistribution 按给定权重抽取下标（非线程安全）
// 参数：weight-非负权重数组，总和必须大于0
// 返回：随机生成的下标（0到len(weight)-1）
// 算法说明：在[0, 总权重)内取随机数，返回累积权重第一次超过该随机数的下标
func (e *Engine) DiscreteDistribution(weight []float64) int32 {
	random := .0
	for _, w := range weight {
		random += w
	}
	random *= e.Float64()
	sum := 0.
	for i, w := range weight {
		sum += w
		if sum > random {
			return int32(i)
		}
	}
	log.Panicf("DiscreteDistribution: sum: %f random: %f", sum, random)
	return -1
}

// PTrue 以指定概率返回true（非线程安全）
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// IntnSafe 随机生成[0, n)内的整数（线程安全）
func (e *Engine) IntnSafe(n int) int {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.Intn(n)
}

// PTrueSafe 以指定概率返回true（线程安全）
func (e *Engine) PTrueSafe(p float64) bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.PTrue(p)
}

// DiscreteDistributionSafe 按给定权重抽取下标（线程安全）
func (e *Engine) DiscreteDistributionSafe(weight []float64) int32 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.DiscreteDistribution(weight)
}
