package junction

import (
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/trafficlight"
)

// Options 路口运行时参数
type Options struct {
	Mode       trafficlight.Mode
	Thresholds trafficlight.Thresholds
	Timing     trafficlight.Timing
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		Mode:       trafficlight.Pressure,
		Thresholds: trafficlight.DefaultThresholds(),
		Timing:     trafficlight.DefaultTiming(),
	}
}

// Snapshot 路口在某一时刻的状态
type Snapshot struct {
	Features [][]float64       // 每个流向一行，列为entity.FeatureSize个特征
	Ready    bool              // 是否可以接受新相位
	Phase    entity.PhaseIndex // 当前相位
}

// Junction 受控路口运行时
// 功能：组合拓扑索引、相位决策器与信号计时状态机，并根据车辆观测生成流向特征
type Junction struct {
	id         entity.JunctionID
	topo       *topology.Topology
	controller *trafficlight.Controller
	timer      *trafficlight.Timer
	thresholds trafficlight.Thresholds

	laneLength map[entity.MovementID]float64 // 流向车道总长度
}

// New 创建路口运行时
// 参数：topo-拓扑索引（只读，可在配置相同的路口间共享），opts-运行时参数
// 返回：初始处于相位0的路口
func New(topo *topology.Topology, opts Options) *Junction {
	var layout [][]mapv2.LightState
	if s := topo.Signal(); s != nil {
		layout = s.Phases
	}
	j := &Junction{
		id:         topo.Junction(),
		topo:       topo,
		controller: trafficlight.NewController(topo, opts.Mode, opts.Thresholds),
		timer:      trafficlight.NewTimer(topo.NumPhases(), layout, opts.Timing),
		thresholds: opts.Thresholds,
		laneLength: make(map[entity.MovementID]float64),
	}
	for _, m := range topo.Movements() {
		j.laneLength[m.ID] = lo.SumBy(m.Lanes, func(id entity.LaneID) float64 {
			l, _ := topo.Lane(id)
			return l.Length
		})
	}
	return j
}

// ID 路口ID
func (j *Junction) ID() entity.JunctionID {
	return j.id
}

// Topology 拓扑索引
func (j *Junction) Topology() *topology.Topology {
	return j.topo
}

// Controller 相位决策器
func (j *Junction) Controller() *trafficlight.Controller {
	return j.controller
}

// Timer 信号计时状态机
func (j *Junction) Timer() *trafficlight.Timer {
	return j.timer
}

// Ready 是否可以接受新相位
func (j *Junction) Ready() bool {
	return j.timer.Ready()
}

// Phase 当前相位
func (j *Junction) Phase() entity.PhaseIndex {
	return j.timer.Current()
}

// Command 下发相位，非Ready时忽略
func (j *Junction) Command(phase entity.PhaseIndex) bool {
	return j.timer.Command(phase)
}

// Decide 规则决策，见trafficlight.Controller.Decide
func (j *Junction) Decide(vehicles []entity.Vehicle) (trafficlight.Decision, error) {
	return j.controller.Decide(vehicles)
}

func (j *Junction) reset() {
	j.timer.Reset()
}

func (j *Junction) update(dt float64) {
	j.timer.Update(dt)
}

// Features 计算每个流向的特征
// 功能：按拓扑中流向的顺序生成特征向量
// 参数：groups-按车道分组的观测
// 返回：流向特征，顺序与topology.Movements()一致
// 算法说明：
// 1. 占有率 = 流向车道上车辆长度之和 / 流向车道总长度，截断到[0,1]
// 2. 排队 = 静止（速度低于阈值）的非障碍物车辆数 / 10
// 3. 当前相位标记、转向独热编码、车道数 / 5
func (j *Junction) Features(groups topology.Groups) []entity.MovementFeature {
	current := j.timer.Current()
	return lo.Map(j.topo.Movements(), func(m topology.Movement, _ int) entity.MovementFeature {
		occupied := 0.
		queue := 0
		for _, lane := range m.Lanes {
			for _, o := range groups[lane] {
				occupied += o.Length
				if o.Category != entity.Obstruction && o.Speed < j.thresholds.StationarySpeed {
					queue++
				}
			}
		}
		occupancy := 0.
		if total := j.laneLength[m.ID]; total > 0 {
			occupancy = min(occupied/total, 1)
		}
		isCurrent := 0.
		if p, ok := j.topo.PhaseOf(m.ID); ok && p == current {
			isCurrent = 1
		}
		s, l, r := entity.DirectionFlags(m.Direction)
		return entity.MovementFeature{
			Occupancy:      occupancy,
			QueueLength:    float64(queue) / 10,
			IsCurrentPhase: isCurrent,
			Straight:       s,
			Left:           l,
			Right:          r,
			LaneCount:      float64(m.LaneCount) / 5,
		}
	})
}

// Snapshot 生成路口当前状态
func (j *Junction) Snapshot(vehicles []entity.Vehicle) Snapshot {
	features := j.Features(j.topo.Group(vehicles))
	return Snapshot{
		Features: lo.Map(features, func(f entity.MovementFeature, _ int) []float64 { return f.Values() }),
		Ready:    j.timer.Ready(),
		Phase:    j.timer.Current(),
	}
}
