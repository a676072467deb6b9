package entity

import "fmt"

// Category 车辆类别
type Category int

const (
	Background  Category = iota // 普通车辆
	Priority                    // 特种车辆（救护、警车、消防），享有优先通行
	Obstruction                 // 障碍物（路障、树枝、事故车、行人事件），占用车道
)

func (c Category) String() string {
	switch c {
	case Background:
		return "background"
	case Priority:
		return "priority"
	case Obstruction:
		return "obstruction"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

var (
	priorityTypes = map[string]struct{}{
		"emergency":   {},
		"police":      {},
		"fire_engine": {},
	}
	obstructionTypes = map[string]struct{}{
		"barrier_A":            {},
		"barrier_B":            {},
		"barrier_C":            {},
		"barrier_D":            {},
		"barrier_E":            {},
		"safety_barriers":      {},
		"tree_branch_1lane":    {},
		"tree_branch_3lanes":   {},
		"pedestrian":           {},
		"crash_vehicle_1lane":  {},
		"crash_vehicle_3lanes": {},
		"other_accidents":      {},
	}
)

// Classify 根据车辆类型字符串判断类别
// 功能：将仿真器给出的车辆类型映射为封闭的类别集合，未知类型视为普通车辆
func Classify(vehicleType string) Category {
	if _, ok := priorityTypes[vehicleType]; ok {
		return Priority
	}
	if _, ok := obstructionTypes[vehicleType]; ok {
		return Obstruction
	}
	return Background
}

// NewVehicle 创建车辆观测并按类型填充类别
func NewVehicle(id, vehicleType string, lane LaneID, position, speed, waitingTime float64) Vehicle {
	return Vehicle{
		ID:          id,
		Type:        vehicleType,
		Category:    Classify(vehicleType),
		Lane:        lane,
		Position:    position,
		Speed:       speed,
		WaitingTime: waitingTime,
	}
}
