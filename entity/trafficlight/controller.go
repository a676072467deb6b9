// 路口信控决策：特种车辆优先 > 障碍物避让 > 兜底（排队压力或外部策略）
// 决策完全由当前时刻的车辆观测计算，不保存跨时刻的状态
package trafficlight

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
)

var (
	ErrUnresolvedOverride = errors.New("trafficlight: override resolves to no phase")
)

// Thresholds 决策使用的阈值
type Thresholds struct {
	PriorityDistance float64 `yaml:"priority_distance"` // 特种车辆距停车线小于该距离时触发优先(m)
	QueueDistance    float64 `yaml:"queue_distance"`    // 障碍物避让时统计该距离内的排队车辆(m)
	StationarySpeed  float64 `yaml:"stationary_speed"`  // 速度低于该值视为静止(m/s)
}

// DefaultThresholds 默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		PriorityDistance: 150,
		QueueDistance:    50,
		StationarySpeed:  0.1,
	}
}

// Controller 单个路口的相位决策器
// 功能：持有只读的拓扑索引与阈值，对每个时刻的车辆观测给出相位决策
// 说明：无内部可变状态，可在多个goroutine中并发调用
type Controller struct {
	topo       *topology.Topology
	mode       Mode
	thresholds Thresholds
}

// NewController 创建决策器
// 参数：topo-路口拓扑索引，mode-兜底模式，thresholds-阈值
// 返回：决策器实例
func NewController(topo *topology.Topology, mode Mode, thresholds Thresholds) *Controller {
	return &Controller{
		topo:       topo,
		mode:       mode,
		thresholds: thresholds,
	}
}

// Topology 拓扑索引
func (c *Controller) Topology() *topology.Topology {
	return c.topo
}

// Mode 兜底模式
func (c *Controller) Mode() Mode {
	return c.mode
}

// Decide 对车辆观测给出相位决策
// 功能：分组后依次执行覆盖规则与兜底规则，可独立于聚合器供规则控制使用
// 参数：vehicles-本时刻的车辆列表
// 返回：Forced(相位)或Deferred（仅Delegate模式），错误
func (c *Controller) Decide(vehicles []entity.Vehicle) (Decision, error) {
	groups := c.topo.Group(vehicles)
	d, err := c.Override(groups)
	if err != nil {
		return Deferred(), err
	}
	if d.IsForced() {
		return d, nil
	}
	return c.Fallback(groups), nil
}

// Override 覆盖规则
// 功能：依次检查特种车辆与障碍物，任一规则生效即返回强制相位
// 参数：groups-按车道分组的观测
// 返回：Forced(相位)或Deferred（两条规则均未生效），特种车辆无法对应到相位时返回ErrUnresolvedOverride
func (c *Controller) Override(groups topology.Groups) (Decision, error) {
	if d, err := c.checkPriority(groups); err != nil || d.IsForced() {
		return d, err
	}
	return c.checkObstruction(groups), nil
}

// Fallback 兜底规则
// 功能：Pressure模式下选取静止排队车辆数最多的相位，Delegate模式下返回Deferred
func (c *Controller) Fallback(groups topology.Groups) Decision {
	if c.mode == Delegate {
		return Deferred()
	}
	phase, _ := maxPhase(c.topo.Phases(), func(p entity.PhaseIndex) int {
		return c.countPhase(groups, p, func(o topology.Observation) bool {
			return o.Category != entity.Obstruction && o.Speed < c.thresholds.StationarySpeed
		})
	})
	return Forced(phase, RulePressure)
}

// checkPriority 特种车辆优先
// 算法说明：
// 1. 找出距停车线小于阈值的全部特种车辆
// 2. 取距离最小者，距离相同时取相位序号最小者，再相同时取车道ID最小者
// 3. 车道->流向->相位，无法对应时返回ErrUnresolvedOverride
func (c *Controller) checkPriority(groups topology.Groups) (Decision, error) {
	type candidate struct {
		lane     entity.LaneID
		distance float64
	}
	candidates := make([]candidate, 0)
	for lane, obs := range groups {
		for _, o := range obs {
			if o.Category == entity.Priority && o.Distance < c.thresholds.PriorityDistance {
				candidates = append(candidates, candidate{lane: lane, distance: o.Distance})
			}
		}
	}
	if len(candidates) == 0 {
		return Deferred(), nil
	}
	closest := lo.MinBy(candidates, func(a, b candidate) bool { return a.distance < b.distance })
	tied := lo.Filter(candidates, func(a candidate, _ int) bool { return a.distance == closest.distance })
	best := Deferred()
	var bestLane entity.LaneID
	for _, cand := range tied {
		phase, err := c.resolve(cand.lane)
		if err != nil {
			return Deferred(), err
		}
		if !best.IsForced() || phase < best.Phase || (phase == best.Phase && cand.lane < bestLane) {
			best = Forced(phase, RulePriority)
			bestLane = cand.lane
		}
	}
	log.Debugf("junction %s: priority vehicle on lane %s at %.1fm, force phase %d", c.topo.Junction(), bestLane, closest.distance, best.Phase)
	return best, nil
}

// checkObstruction 障碍物避让
// 算法说明：
// 1. 有任一障碍物的车道记为阻塞，无阻塞车道时本规则不生效
// 2. 不包含阻塞车道的相位为可用相位，无可用相位时取最小相位
// 3. 可用相位中取阈值距离内非障碍物车辆数最多者，相同时取序号最小者
func (c *Controller) checkObstruction(groups topology.Groups) Decision {
	blocked := make([]entity.LaneID, 0)
	for lane, obs := range groups {
		if lo.ContainsBy(obs, func(o topology.Observation) bool { return o.Category == entity.Obstruction }) {
			blocked = append(blocked, lane)
		}
	}
	if len(blocked) == 0 {
		return Deferred()
	}
	sort.Slice(blocked, func(i, j int) bool { return blocked[i] < blocked[j] })
	valid := lo.Filter(c.topo.Phases(), func(p entity.PhaseIndex, _ int) bool {
		return !lo.SomeBy(blocked, func(lane entity.LaneID) bool { return c.topo.PhaseHasLane(p, lane) })
	})
	if len(valid) == 0 {
		log.Debugf("junction %s: all phases blocked by lanes %v, fall back to phase 0", c.topo.Junction(), blocked)
		return Forced(0, RuleBlockedFallback)
	}
	phase, queue := maxPhase(valid, func(p entity.PhaseIndex) int {
		return c.countPhase(groups, p, func(o topology.Observation) bool {
			return o.Category != entity.Obstruction && o.Distance <= c.thresholds.QueueDistance
		})
	})
	log.Debugf("junction %s: lanes %v blocked, choose phase %d with %d queued vehicles", c.topo.Junction(), blocked, phase, queue)
	return Forced(phase, RuleObstruction)
}

// resolve 车道->流向->相位
func (c *Controller) resolve(lane entity.LaneID) (entity.PhaseIndex, error) {
	movement, ok := c.topo.MovementOf(lane)
	if !ok {
		return entity.NoPhase, fmt.Errorf("%w: lane %s has no movement", ErrUnresolvedOverride, lane)
	}
	phase, ok := c.topo.PhaseOf(movement)
	if !ok {
		return entity.NoPhase, fmt.Errorf("%w: movement %s of lane %s has no phase", ErrUnresolvedOverride, movement, lane)
	}
	return phase, nil
}

// countPhase 统计相位全部车道上满足条件的观测数
func (c *Controller) countPhase(groups topology.Groups, p entity.PhaseIndex, pred func(o topology.Observation) bool) int {
	return lo.SumBy(c.topo.PhaseLanes(p), func(lane entity.LaneID) int {
		return groups.Count(lane, pred)
	})
}
