package topology

import (
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
)

// LaneSpec 车道的静态描述
type LaneSpec struct {
	ID       entity.LaneID   `yaml:"id"`
	Length   float64         `yaml:"length"`             // 车道长度(m)
	Approach entity.Approach `yaml:"approach,omitempty"` // 进口道/出口道，默认进口道
	Road     string          `yaml:"road,omitempty"`     // 所属道路
}

// MovementSpec 流向的静态描述
type MovementSpec struct {
	ID        entity.MovementID `yaml:"id"`
	Direction entity.Direction  `yaml:"direction"`
	Lanes     []entity.LaneID   `yaml:"lanes"`
	LaneCount int               `yaml:"lane_count,omitempty"` // 车道数，为0时取去重后的车道数
}

// PhaseSpec 相位的静态描述，序号为其在列表中的位置
type PhaseSpec struct {
	Movements []entity.MovementID `yaml:"movements"`
}

// SignalLayout 路口内车道的信号灯布局
// 功能：记录路口内车道顺序以及每个可用相位对应的灯色，用于生成下发给仿真器的信控程序
type SignalLayout struct {
	JunctionID int32
	LaneIDs    []int32
	Phases     [][]mapv2.LightState
}

// Description 路口的静态描述（相位->流向，流向->车道，车道长度）
type Description struct {
	Junction  entity.JunctionID `yaml:"junction"`
	Lanes     []LaneSpec        `yaml:"lanes"`
	Movements []MovementSpec    `yaml:"movements"`
	Phases    []PhaseSpec       `yaml:"phases"`

	Signal *SignalLayout `yaml:"-"`
}
