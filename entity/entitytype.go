package entity

import (
	"fmt"
	"strings"
)

// 各类实体的ID，使用不同的类型避免车道/流向/相位之间的键混用

type LaneID string     // 车道ID
type MovementID string // 流向ID
type JunctionID string // 路口ID

// PhaseIndex 相位序号，从0开始
type PhaseIndex int

// NoPhase 无相位（未决策）
const NoPhase PhaseIndex = -1

// Direction 流向的转向
type Direction int

const (
	Straight Direction = iota // 直行
	Left                      // 左转
	Right                     // 右转
)

// ParseDirection 解析转向字符串
// 功能：支持s/l/r缩写与straight/left/right全称
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "straight":
		return Straight, nil
	case "l", "left":
		return Left, nil
	case "r", "right":
		return Right, nil
	default:
		return Straight, fmt.Errorf("unknown direction %q", s)
	}
}

func (d Direction) String() string {
	switch d {
	case Straight:
		return "s"
	case Left:
		return "l"
	case Right:
		return "r"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// UnmarshalYAML 从YAML字符串解析转向
func (d *Direction) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalYAML 输出为缩写
func (d Direction) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Approach 车道相对路口的方位
type Approach int

const (
	Incoming Approach = iota // 进口道
	Outgoing                 // 出口道
)

func (a Approach) String() string {
	if a == Outgoing {
		return "outgoing"
	}
	return "incoming"
}

// UnmarshalYAML 从YAML字符串解析方位（in/incoming/out/outgoing）
func (a *Approach) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "incoming":
		*a = Incoming
	case "out", "outgoing":
		*a = Outgoing
	default:
		return fmt.Errorf("unknown approach %q", s)
	}
	return nil
}

// MarshalYAML 输出为全称
func (a Approach) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}

// Vehicle 单个时刻的车辆观测
// 功能：仿真器每步产出的车辆记录，聚合后即丢弃，不跨决策周期保存
type Vehicle struct {
	ID          string   // 车辆ID
	Type        string   // 原始车辆类型
	Category    Category // 车辆类别
	Lane        LaneID   // 所在车道
	Position    float64  // 在车道上的位置（从车道起点起算）
	Speed       float64  // 速度
	WaitingTime float64  // 累计等待时间
	Length      float64  // 车长，0表示使用默认车长
}

// DefaultVehicleLength 未给出车长时使用的默认值(m)
const DefaultVehicleLength = 5.0

// EffectiveLength 车长，未设置时返回默认车长
func (v Vehicle) EffectiveLength() float64 {
	if v.Length > 0 {
		return v.Length
	}
	return DefaultVehicleLength
}

// FeatureSize 每个流向特征向量的长度
const FeatureSize = 7

// MovementFeature 单个流向在某一时刻的特征
type MovementFeature struct {
	Occupancy      float64 // 占有率 [0,1]
	QueueLength    float64 // 排队车辆数/10
	IsCurrentPhase float64 // 是否属于当前相位
	Straight       float64 // 直行标记
	Left           float64 // 左转标记
	Right          float64 // 右转标记
	LaneCount      float64 // 车道数/5
}

// Values 按固定顺序展开为向量
func (f MovementFeature) Values() []float64 {
	return []float64{
		f.Occupancy,
		f.QueueLength,
		f.IsCurrentPhase,
		f.Straight,
		f.Left,
		f.Right,
		f.LaneCount,
	}
}

// DirectionFlags 转向的独热编码（直行、左转、右转）
func DirectionFlags(d Direction) (straight, left, right float64) {
	switch d {
	case Straight:
		return 1, 0, 0
	case Left:
		return 0, 1, 0
	case Right:
		return 0, 0, 1
	}
	return 0, 0, 0
}
