package trafficlight

import (
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils/container"
)

// maxPhase 选取计数最大的相位
// 功能：按计数对候选相位排序，返回计数最大的相位
// 参数：phases-候选相位（非空），count-相位的计数
// 返回：计数最大的相位，计数相同时取序号最小者
// 算法说明：
// 1. 计数均为整数，优先级取 -计数 + 序号/(相位数+1)，小顶堆弹出的即为计数最大、序号最小的相位
// 2. 序号项严格小于1，不会改变不同计数之间的先后
func maxPhase(phases []entity.PhaseIndex, count func(p entity.PhaseIndex) int) (entity.PhaseIndex, int) {
	n := float64(len(phases) + 1)
	counts := make(map[entity.PhaseIndex]int, len(phases))
	heap := container.NewPriorityQueue[entity.PhaseIndex]()
	for i, p := range phases {
		c := count(p)
		counts[p] = c
		heap.Push(p, -float64(c)+float64(i)/n) // 小顶堆，计数越大越靠前
	}
	heap.Heapify()
	best, _ := heap.HeapPop()
	return best, counts[best]
}
