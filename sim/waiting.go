package sim

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/junction"
)

// WaitingTracker 累计等待时间
// 功能：为不提供等待时间的仿真器累计每辆车速度低于阈值的时长
// 说明：车辆从观测中消失后清除其记录
type WaitingTracker struct {
	stationarySpeed float64
	waiting         map[string]float64
}

// NewWaitingTracker 创建等待时间统计
// 参数：stationarySpeed-速度低于该值视为等待
func NewWaitingTracker(stationarySpeed float64) *WaitingTracker {
	return &WaitingTracker{
		stationarySpeed: stationarySpeed,
		waiting:         make(map[string]float64),
	}
}

// Reset 清除全部记录
func (w *WaitingTracker) Reset() {
	w.waiting = make(map[string]float64)
}

// Update 累计一步的等待时间并写入车辆观测
// 参数：vehicles-本步车辆（原地修改WaitingTime），dt-时间步长
func (w *WaitingTracker) Update(vehicles []entity.Vehicle, dt float64) {
	seen := make(map[string]float64, len(vehicles))
	for i := range vehicles {
		v := &vehicles[i]
		t := w.waiting[v.ID]
		if v.Speed < w.stationarySpeed {
			t += dt
		}
		seen[v.ID] = t
		v.WaitingTime = t
	}
	w.waiting = seen
}

// Get 车辆的累计等待时间
func (w *WaitingTracker) Get(id string) float64 {
	return w.waiting[id]
}

// JunctionTicks 路口快照->路口状态
func JunctionTicks(snapshots map[entity.JunctionID]junction.Snapshot) map[entity.JunctionID]JunctionTick {
	return lo.MapValues(snapshots, func(s junction.Snapshot, _ entity.JunctionID) JunctionTick {
		return JunctionTick{
			Features: s.Features,
			Ready:    s.Ready,
			Phase:    s.Phase,
		}
	})
}
