package topology

import (
	"fmt"
	"strconv"

	"git.fiblab.net/general/common/v2/geometry"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
)

// LaneIDOf 地图车道ID转换
func LaneIDOf(id int32) entity.LaneID {
	return entity.LaneID(strconv.FormatInt(int64(id), 10))
}

// JunctionIDOf 地图路口ID转换
func JunctionIDOf(id int32) entity.JunctionID {
	return entity.JunctionID(strconv.FormatInt(int64(id), 10))
}

// directionOf 车道转向->流向转向，掉头按左转处理
func directionOf(turn mapv2.LaneTurn) entity.Direction {
	switch turn {
	case mapv2.LaneTurn_LANE_TURN_LEFT, mapv2.LaneTurn_LANE_TURN_AROUND:
		return entity.Left
	case mapv2.LaneTurn_LANE_TURN_RIGHT:
		return entity.Right
	default:
		return entity.Straight
	}
}

// laneLength 以中心线长度为车道长度
func laneLength(l *mapv2.Lane) (float64, error) {
	if l.CenterLine == nil || len(l.CenterLine.Nodes) < 2 {
		return 0, fmt.Errorf("%w: lane %d has no center line", ErrConfiguration, l.Id)
	}
	line := lo.Map(l.CenterLine.Nodes, func(node *geov2.XYPosition, _ int) geometry.Point {
		return geometry.NewPointFromPb(node)
	})
	lengths := geometry.GetPolylineLengths2D(line)
	return lengths[len(lengths)-1], nil
}

// FromMap 从地图数据中提取路口静态描述
// 功能：将路口的行车道组转换为流向，将可用相位转换为相位->流向
// 参数：m-地图，junctionID-路口ID
// 返回：路口静态描述
// 算法说明：
// 1. 每个行车道组（进入道路->驶出道路）为一个流向，流向的车道为组内车道的前驱车道（进口道）
// 2. 组内车道在某个可用相位中全部为绿灯，则该流向属于该相位
// 3. 在所有相位均为绿灯的流向（如右转）不受信控，跳过
// 4. 在多个（非全部）相位中为绿灯的流向违反"一个流向只属于一个相位"，返回ErrConfiguration
// 5. 组内车道的后继车道记为出口道，用于奖励计算时排除已驶离路口的车辆
func FromMap(m *mapv2.Map, junctionID int32) (Description, error) {
	j, ok := lo.Find(m.Junctions, func(j *mapv2.Junction) bool { return j.Id == junctionID })
	if !ok {
		return Description{}, fmt.Errorf("no id %d in junction data", junctionID)
	}
	// 至少两个相位才有信控
	if len(j.Phases) < 2 {
		return Description{}, fmt.Errorf("%w: junction %d has %d available phases", ErrConfiguration, junctionID, len(j.Phases))
	}
	lanes := lo.SliceToMap(m.Lanes, func(l *mapv2.Lane) (int32, *mapv2.Lane) {
		return l.Id, l
	})
	laneRoad := make(map[int32]int32)
	for _, r := range m.Roads {
		for _, id := range r.LaneIds {
			laneRoad[id] = r.Id
		}
	}
	stateIndex := make(map[int32]int, len(j.LaneIds))
	for i, id := range j.LaneIds {
		stateIndex[id] = i
	}

	desc := Description{
		Junction: JunctionIDOf(j.Id),
		Phases:   make([]PhaseSpec, len(j.Phases)),
		Signal: &SignalLayout{
			JunctionID: j.Id,
			LaneIDs:    append([]int32(nil), j.LaneIds...),
			Phases: lo.Map(j.Phases, func(p *mapv2.AvailablePhase, _ int) []mapv2.LightState {
				return append([]mapv2.LightState(nil), p.States...)
			}),
		},
	}
	described := make(map[int32]struct{})
	addLane := func(id int32, approach entity.Approach) error {
		if _, ok := described[id]; ok {
			return nil
		}
		l, ok := lanes[id]
		if !ok {
			return fmt.Errorf("%w: no id %d in lane data", ErrConfiguration, id)
		}
		length, err := laneLength(l)
		if err != nil {
			return err
		}
		spec := LaneSpec{ID: LaneIDOf(id), Length: length, Approach: approach}
		if road, ok := laneRoad[id]; ok {
			spec.Road = strconv.FormatInt(int64(road), 10)
		}
		desc.Lanes = append(desc.Lanes, spec)
		described[id] = struct{}{}
		return nil
	}

	outgoing := make([]int32, 0)
	claimed := make(map[int32]entity.MovementID)
	for _, g := range j.DrivingLaneGroups {
		groupLanes := lo.Filter(g.LaneIds, func(id int32, _ int) bool {
			l, ok := lanes[id]
			return ok && l.Type == mapv2.LaneType_LANE_TYPE_DRIVING
		})
		if len(groupLanes) == 0 {
			continue
		}
		greenIn := make([]int, 0)
		for pi, p := range j.Phases {
			allGreen := lo.EveryBy(groupLanes, func(id int32) bool {
				i, ok := stateIndex[id]
				return ok && i < len(p.States) && p.States[i] == mapv2.LightState_LIGHT_STATE_GREEN
			})
			if allGreen {
				greenIn = append(greenIn, pi)
			}
		}
		if len(greenIn) == len(j.Phases) {
			// 常绿，不受信控
			continue
		}
		if len(greenIn) == 0 {
			log.Warnf("junction %d: lane group %d->%d is never green", j.Id, g.InRoadId, g.OutRoadId)
			continue
		}
		if len(greenIn) > 1 {
			return Description{}, fmt.Errorf("%w: lane group %d->%d of junction %d is green in phases %v", ErrConfiguration, g.InRoadId, g.OutRoadId, j.Id, greenIn)
		}

		dir := directionOf(lanes[groupLanes[0]].Turn)
		movement := MovementSpec{
			ID:        entity.MovementID(fmt.Sprintf("%d-%d-%s", g.InRoadId, g.OutRoadId, dir)),
			Direction: dir,
		}
		for _, id := range groupLanes {
			for _, conn := range lanes[id].Predecessors {
				// 共用车道（如直左合用）归入先出现的流向
				if owner, ok := claimed[conn.Id]; ok {
					if owner != movement.ID {
						log.Warnf("junction %d: lane %d is shared by %s and %s, keep the former", j.Id, conn.Id, owner, movement.ID)
					}
					continue
				}
				if err := addLane(conn.Id, entity.Incoming); err != nil {
					return Description{}, err
				}
				claimed[conn.Id] = movement.ID
				movement.Lanes = append(movement.Lanes, LaneIDOf(conn.Id))
			}
			for _, conn := range lanes[id].Successors {
				outgoing = append(outgoing, conn.Id)
			}
		}
		if len(movement.Lanes) == 0 {
			continue
		}
		desc.Movements = append(desc.Movements, movement)
		desc.Phases[greenIn[0]].Movements = append(desc.Phases[greenIn[0]].Movements, movement.ID)
	}
	for _, id := range lo.Uniq(outgoing) {
		if err := addLane(id, entity.Outgoing); err != nil {
			return Description{}, err
		}
	}
	return desc, nil
}
