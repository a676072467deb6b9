// 路口拓扑索引：车道->流向、流向->相位、相位->车道集合
// 每个路口配置只构建一次，构建后只读，可在配置相同的多个路口实例间共享
package topology

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
)

var (
	ErrConfiguration = errors.New("topology: configuration error")
)

// Lane 车道
type Lane struct {
	ID       entity.LaneID
	Length   float64
	Approach entity.Approach
	Road     string
}

// Movement 流向
type Movement struct {
	ID        entity.MovementID
	Direction entity.Direction
	Lanes     []entity.LaneID
	LaneCount int
}

// Topology 路口拓扑索引
type Topology struct {
	junction entity.JunctionID

	lanes          map[entity.LaneID]Lane
	movements      []Movement
	movementIndex  map[entity.MovementID]int
	laneMovement   map[entity.LaneID]entity.MovementID
	movementPhase  map[entity.MovementID]entity.PhaseIndex
	phaseMovements [][]entity.MovementID
	phaseLanes     [][]entity.LaneID // 按车道ID排序
	phaseLaneSet   []map[entity.LaneID]struct{}

	signal *SignalLayout
}

// New 根据静态描述构建拓扑索引
// 功能：建立三个全映射，任一车道属于多个流向、任一流向属于多个相位时返回ErrConfiguration
// 参数：desc-路口静态描述
// 返回：构建完成的拓扑索引
func New(desc Description) (*Topology, error) {
	if len(desc.Phases) == 0 {
		return nil, fmt.Errorf("%w: junction %s has no phase", ErrConfiguration, desc.Junction)
	}
	t := &Topology{
		junction:      desc.Junction,
		lanes:         make(map[entity.LaneID]Lane, len(desc.Lanes)),
		movements:     make([]Movement, 0, len(desc.Movements)),
		movementIndex: make(map[entity.MovementID]int, len(desc.Movements)),
		laneMovement:  make(map[entity.LaneID]entity.MovementID),
		movementPhase: make(map[entity.MovementID]entity.PhaseIndex),
		signal:        desc.Signal,
	}
	for _, l := range desc.Lanes {
		if _, ok := t.lanes[l.ID]; ok {
			return nil, fmt.Errorf("%w: lane %s is described twice", ErrConfiguration, l.ID)
		}
		if l.Length <= 0 {
			return nil, fmt.Errorf("%w: lane %s has non-positive length %v", ErrConfiguration, l.ID, l.Length)
		}
		t.lanes[l.ID] = Lane(l)
	}

	// 车道->流向
	for _, m := range desc.Movements {
		if _, ok := t.movementIndex[m.ID]; ok {
			return nil, fmt.Errorf("%w: movement %s is described twice", ErrConfiguration, m.ID)
		}
		lanes := lo.Uniq(m.Lanes)
		for _, laneID := range lanes {
			if owner, ok := t.laneMovement[laneID]; ok {
				return nil, fmt.Errorf("%w: lane %s is associated with movements %s and %s", ErrConfiguration, laneID, owner, m.ID)
			}
			lane, ok := t.lanes[laneID]
			if !ok {
				return nil, fmt.Errorf("%w: lane %s of movement %s has no length", ErrConfiguration, laneID, m.ID)
			}
			if lane.Approach != entity.Incoming {
				return nil, fmt.Errorf("%w: lane %s of movement %s is not an incoming lane", ErrConfiguration, laneID, m.ID)
			}
			t.laneMovement[laneID] = m.ID
		}
		laneCount := m.LaneCount
		if laneCount <= 0 {
			laneCount = len(lanes)
		}
		t.movementIndex[m.ID] = len(t.movements)
		t.movements = append(t.movements, Movement{
			ID:        m.ID,
			Direction: m.Direction,
			Lanes:     lanes,
			LaneCount: laneCount,
		})
	}

	// 流向->相位，相位->车道
	t.phaseMovements = make([][]entity.MovementID, len(desc.Phases))
	t.phaseLanes = make([][]entity.LaneID, len(desc.Phases))
	t.phaseLaneSet = make([]map[entity.LaneID]struct{}, len(desc.Phases))
	for i, p := range desc.Phases {
		phase := entity.PhaseIndex(i)
		set := make(map[entity.LaneID]struct{})
		for _, mid := range p.Movements {
			if owner, ok := t.movementPhase[mid]; ok {
				return nil, fmt.Errorf("%w: movement %s is associated with phases %d and %d", ErrConfiguration, mid, owner, phase)
			}
			idx, ok := t.movementIndex[mid]
			if !ok {
				return nil, fmt.Errorf("%w: phase %d references unknown movement %s", ErrConfiguration, phase, mid)
			}
			t.movementPhase[mid] = phase
			for _, laneID := range t.movements[idx].Lanes {
				set[laneID] = struct{}{}
			}
		}
		lanes := lo.Keys(set)
		sort.Slice(lanes, func(a, b int) bool { return lanes[a] < lanes[b] })
		t.phaseMovements[i] = append([]entity.MovementID(nil), p.Movements...)
		t.phaseLanes[i] = lanes
		t.phaseLaneSet[i] = set
	}
	for _, m := range t.movements {
		if _, ok := t.movementPhase[m.ID]; !ok {
			log.Warnf("junction %s: movement %s belongs to no phase", t.junction, m.ID)
		}
	}
	if t.signal != nil && len(t.signal.Phases) != len(desc.Phases) {
		return nil, fmt.Errorf("%w: junction %s has %d phases but %d signal phases", ErrConfiguration, t.junction, len(desc.Phases), len(t.signal.Phases))
	}
	return t, nil
}

// MustNew 同New，出错时panic
func MustNew(desc Description) *Topology {
	t, err := New(desc)
	if err != nil {
		log.Panicf("build topology error: %v", err)
	}
	return t
}

// Junction 路口ID
func (t *Topology) Junction() entity.JunctionID {
	return t.junction
}

// Signal 信号灯布局，可能为nil
func (t *Topology) Signal() *SignalLayout {
	return t.signal
}

// NumPhases 相位数
func (t *Topology) NumPhases() int {
	return len(t.phaseMovements)
}

// Phases 全部相位序号（升序）
func (t *Topology) Phases() []entity.PhaseIndex {
	return lo.Times(len(t.phaseMovements), func(i int) entity.PhaseIndex { return entity.PhaseIndex(i) })
}

// HasPhase 检查相位序号是否有效
func (t *Topology) HasPhase(p entity.PhaseIndex) bool {
	return p >= 0 && int(p) < len(t.phaseMovements)
}

// Movements 全部流向，顺序与描述一致
func (t *Topology) Movements() []Movement {
	return t.movements
}

// Lane 查询车道
func (t *Topology) Lane(id entity.LaneID) (Lane, bool) {
	l, ok := t.lanes[id]
	return l, ok
}

// MovementOf 查询车道所属流向
func (t *Topology) MovementOf(lane entity.LaneID) (entity.MovementID, bool) {
	m, ok := t.laneMovement[lane]
	return m, ok
}

// PhaseOf 查询流向所属相位
func (t *Topology) PhaseOf(movement entity.MovementID) (entity.PhaseIndex, bool) {
	p, ok := t.movementPhase[movement]
	return p, ok
}

// PhaseMovements 相位包含的流向
func (t *Topology) PhaseMovements(p entity.PhaseIndex) []entity.MovementID {
	return t.phaseMovements[p]
}

// PhaseLanes 相位包含的车道（按ID排序）
func (t *Topology) PhaseLanes(p entity.PhaseIndex) []entity.LaneID {
	return t.phaseLanes[p]
}

// PhaseHasLane 检查相位是否包含车道
func (t *Topology) PhaseHasLane(p entity.PhaseIndex, lane entity.LaneID) bool {
	_, ok := t.phaseLaneSet[p][lane]
	return ok
}

// IsControlled 车道是否受信号控制（属于某个流向）
func (t *Topology) IsControlled(lane entity.LaneID) bool {
	_, ok := t.laneMovement[lane]
	return ok
}

// IsIncoming 车道是否为进口道
func (t *Topology) IsIncoming(lane entity.LaneID) bool {
	if t.IsControlled(lane) {
		return true
	}
	l, ok := t.lanes[lane]
	return ok && l.Approach == entity.Incoming
}

// LaneMovement 车道->流向映射的副本
func (t *Topology) LaneMovement() map[entity.LaneID]entity.MovementID {
	return lo.Assign(t.laneMovement)
}

// MovementPhase 流向->相位映射的副本
func (t *Topology) MovementPhase() map[entity.MovementID]entity.PhaseIndex {
	return lo.Assign(t.movementPhase)
}
