package topology

import (
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
)

// Observation 分组后的车辆观测
type Observation struct {
	VehicleID   string
	Category    entity.Category
	Distance    float64 // 距停车线距离
	Speed       float64
	WaitingTime float64
	Length      float64
}

// Groups 按车道分组的观测，只包含受信号控制的车道
type Groups map[entity.LaneID][]Observation

// Count 统计满足条件的观测数
func (g Groups) Count(lane entity.LaneID, pred func(o Observation) bool) int {
	n := 0
	for _, o := range g[lane] {
		if pred(o) {
			n++
		}
	}
	return n
}

// Group 将本时刻的车辆列表按车道分组
// 功能：过滤掉不受信号控制的车道上的车辆，并计算到停车线的距离
// 参数：vehicles-仿真器给出的车辆列表
// 返回：车道->观测列表，保持输入顺序
// 说明：距离 = 车道长度 - 车道上位置，截断到[0, 车道长度]；每步重新计算，不做缓存
func (t *Topology) Group(vehicles []entity.Vehicle) Groups {
	groups := make(Groups)
	for _, v := range vehicles {
		if !t.IsControlled(v.Lane) {
			continue
		}
		length := t.lanes[v.Lane].Length
		distance := length - v.Position
		if distance < 0 {
			distance = 0
		} else if distance > length {
			distance = length
		}
		groups[v.Lane] = append(groups[v.Lane], Observation{
			VehicleID:   v.ID,
			Category:    v.Category,
			Distance:    distance,
			Speed:       v.Speed,
			WaitingTime: v.WaitingTime,
			Length:      v.EffectiveLength(),
		})
	}
	return groups
}
