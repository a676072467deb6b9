package junction

import (
	"errors"
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/trafficlight"
)

// Manager 路口管理器
// 说明：各路口之间没有共享的可变状态，批量操作并行执行
type Manager struct {
	data      map[entity.JunctionID]*Junction
	junctions []*Junction
}

// NewManager 创建路口管理器
func NewManager() *Manager {
	return &Manager{
		data:      make(map[entity.JunctionID]*Junction),
		junctions: make([]*Junction, 0),
	}
}

// Init 根据静态描述初始化所有路口
// 功能：并行构建拓扑索引与路口运行时，任一描述非法时返回全部错误
// 参数：descs-路口静态描述列表，opts-运行时参数
func (m *Manager) Init(descs []topology.Description, opts Options) error {
	type result struct {
		j   *Junction
		err error
	}
	results := parallel.GoMap(descs, func(desc topology.Description) result {
		topo, err := topology.New(desc)
		if err != nil {
			return result{err: err}
		}
		return result{j: New(topo, opts)}
	})
	if err := errors.Join(lo.FilterMap(results, func(r result, _ int) (error, bool) {
		return r.err, r.err != nil
	})...); err != nil {
		return err
	}
	return m.Add(lo.Map(results, func(r result, _ int) *Junction { return r.j })...)
}

// Add 加入已构建的路口
func (m *Manager) Add(junctions ...*Junction) error {
	for _, j := range junctions {
		if _, ok := m.data[j.id]; ok {
			return fmt.Errorf("%w: junction %s is described twice", topology.ErrConfiguration, j.id)
		}
		m.data[j.id] = j
		m.junctions = append(m.junctions, j)
	}
	log.Infof("%d junctions under signal control", len(m.junctions))
	return nil
}

// Get 根据ID获取路口，不存在时panic
func (m *Manager) Get(id entity.JunctionID) *Junction {
	if j, ok := m.data[id]; !ok {
		log.Panicf("no id %s in junction data", id)
		return nil
	} else {
		return j
	}
}

// GetOrError 根据ID获取路口
func (m *Manager) GetOrError(id entity.JunctionID) (*Junction, error) {
	if j, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %s in junction data", id)
	} else {
		return j, nil
	}
}

// Junctions 全部路口，顺序与加入顺序一致
func (m *Manager) Junctions() []*Junction {
	return m.junctions
}

// IDs 全部路口ID
func (m *Manager) IDs() []entity.JunctionID {
	return lo.Map(m.junctions, func(j *Junction, _ int) entity.JunctionID { return j.id })
}

// Reset 所有路口回到初始相位
func (m *Manager) Reset() {
	parallel.GoFor(m.junctions, func(j *Junction) { j.reset() })
}

// Command 下发相位指令
// 参数：commands-路口->相位，未知路口被忽略并告警
// 返回：接受了指令的路口
func (m *Manager) Command(commands map[entity.JunctionID]entity.PhaseIndex) []entity.JunctionID {
	accepted := make([]entity.JunctionID, 0, len(commands))
	for id, phase := range commands {
		j, ok := m.data[id]
		if !ok {
			log.Warnf("command for unknown junction %s", id)
			continue
		}
		if j.Command(phase) {
			accepted = append(accepted, id)
		}
	}
	return accepted
}

// Update 推进所有路口的信号计时
// 参数：dt-时间步长
func (m *Manager) Update(dt float64) {
	parallel.GoFor(m.junctions, func(j *Junction) { j.update(dt) })
}

// Snapshot 生成所有路口的当前状态
func (m *Manager) Snapshot(vehicles []entity.Vehicle) map[entity.JunctionID]Snapshot {
	snapshots := parallel.GoMap(m.junctions, func(j *Junction) Snapshot {
		return j.Snapshot(vehicles)
	})
	return lo.SliceToMap(lo.Zip2(m.junctions, snapshots), func(t lo.Tuple2[*Junction, Snapshot]) (entity.JunctionID, Snapshot) {
		return t.A.id, t.B
	})
}

// Decide 对所有Ready的路口做规则决策
// 功能：规则控制入口，并行调用各路口的Decide
// 参数：vehicles-本时刻的车辆列表
// 返回：路口->决策（只包含Ready且给出相位的路口），以及各路口决策错误的合并
func (m *Manager) Decide(vehicles []entity.Vehicle) (map[entity.JunctionID]trafficlight.Decision, error) {
	type result struct {
		id       entity.JunctionID
		decision trafficlight.Decision
		err      error
	}
	results := parallel.GoMapFilter(m.junctions, func(j *Junction) (result, bool) {
		if !j.Ready() {
			return result{}, false
		}
		d, err := j.Decide(vehicles)
		return result{id: j.id, decision: d, err: err}, true
	})
	decisions := make(map[entity.JunctionID]trafficlight.Decision, len(results))
	errs := make([]error, 0)
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("junction %s: %w", r.id, r.err))
			continue
		}
		if r.decision.IsForced() {
			decisions[r.id] = r.decision
		}
	}
	return decisions, errors.Join(errs...)
}
