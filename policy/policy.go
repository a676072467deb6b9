// 外部策略：在没有覆盖规则生效时为决策周期给出候选相位
package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils/randengine"
)

// Observation 策略的输入
type Observation struct {
	History   [][][]float64 // 历史缓冲区，第i行为第i个槽位
	Epoch     int           // 已完成的决策周期数
	NumPhases int           // 相位数
}

// Latest 最近一个完成的决策周期的特征，尚无完成的周期时返回nil
func (o Observation) Latest() [][]float64 {
	if o.Epoch <= 0 || len(o.History) == 0 {
		return nil
	}
	return o.History[(o.Epoch-1)%len(o.History)]
}

// Policy 外部策略
type Policy interface {
	// Act 给出候选相位，返回值必须在[0, NumPhases)内
	Act(obs Observation) entity.PhaseIndex
}

// Fixed 总是给出同一相位
type Fixed entity.PhaseIndex

func (f Fixed) Act(obs Observation) entity.PhaseIndex {
	return entity.PhaseIndex(f)
}

// Cycle 按序号轮转相位
type Cycle struct {
	next entity.PhaseIndex
}

func (c *Cycle) Act(obs Observation) entity.PhaseIndex {
	p := c.next
	if int(p) >= obs.NumPhases {
		p = 0
	}
	c.next = p + 1
	return p
}

// Random 均匀随机选择相位
type Random struct {
	engine *randengine.Engine
}

// NewRandom 创建均匀随机策略
func NewRandom(seed uint64) *Random {
	return &Random{engine: randengine.New(seed)}
}

func (r *Random) Act(obs Observation) entity.PhaseIndex {
	return entity.PhaseIndex(r.engine.IntnSafe(obs.NumPhases))
}

// QueueWeighted 按排队长度加权随机选择相位
// 功能：相位权重 = 最近一个周期中该相位各流向的排队特征之和 + smoothing，
// 排队越长的相位越容易被选中
type QueueWeighted struct {
	engine    *randengine.Engine
	rows      [][]int // 相位 -> 历史特征中的流向行号
	smoothing float64
}

// queueColumn 排队特征在流向特征向量中的位置
const queueColumn = 1

// NewQueueWeighted 创建排队加权策略
// 参数：topo-路口拓扑（特征行顺序与topo.Movements()一致），seed-随机数种子
func NewQueueWeighted(topo *topology.Topology, seed uint64) *QueueWeighted {
	row := make(map[entity.MovementID]int, len(topo.Movements()))
	for i, m := range topo.Movements() {
		row[m.ID] = i
	}
	return &QueueWeighted{
		engine: randengine.New(seed),
		rows: lo.Map(topo.Phases(), func(p entity.PhaseIndex, _ int) []int {
			return lo.Map(topo.PhaseMovements(p), func(m entity.MovementID, _ int) int { return row[m] })
		}),
		smoothing: 0.1,
	}
}

func (q *QueueWeighted) Act(obs Observation) entity.PhaseIndex {
	latest := obs.Latest()
	weights := lo.Map(q.rows, func(rows []int, _ int) float64 {
		w := q.smoothing
		for _, r := range rows {
			if r < len(latest) && queueColumn < len(latest[r]) {
				w += latest[r][queueColumn]
			}
		}
		return w
	})
	return entity.PhaseIndex(q.engine.DiscreteDistributionSafe(weights))
}

// Explore 以概率Epsilon均匀随机选择相位，否则使用Base的选择
type Explore struct {
	Base    Policy
	Epsilon float64
	engine  *randengine.Engine
}

// NewExplore 创建探索策略
func NewExplore(base Policy, epsilon float64, seed uint64) *Explore {
	return &Explore{Base: base, Epsilon: epsilon, engine: randengine.New(seed)}
}

func (x *Explore) Act(obs Observation) entity.PhaseIndex {
	if x.engine.PTrueSafe(x.Epsilon) {
		return entity.PhaseIndex(x.engine.IntnSafe(obs.NumPhases))
	}
	return x.Base.Act(obs)
}

// New 按名称创建策略
// 参数：name-fixed:<相位> / cycle / random / queue / explore:<概率>:<策略>，topo-路口拓扑，seed-随机数种子
func New(name string, topo *topology.Topology, seed uint64) (Policy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(name, "explore:"):
		parts := strings.SplitN(name, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("policy %q: expect explore:<epsilon>:<policy>", name)
		}
		epsilon, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || epsilon < 0 || epsilon > 1 {
			return nil, fmt.Errorf("policy %q: epsilon must be in [0, 1]", name)
		}
		base, err := New(parts[2], topo, seed+1)
		if err != nil {
			return nil, err
		}
		return NewExplore(base, epsilon, seed), nil
	case name == "random":
		return NewRandom(seed), nil
	case name == "cycle":
		return &Cycle{}, nil
	case name == "queue":
		return NewQueueWeighted(topo, seed), nil
	case strings.HasPrefix(name, "fixed"):
		var p int
		if _, err := fmt.Sscanf(name, "fixed:%d", &p); err != nil {
			return nil, fmt.Errorf("policy %q: expect fixed:<phase>", name)
		}
		if !topo.HasPhase(entity.PhaseIndex(p)) {
			return nil, fmt.Errorf("policy %q: phase out of range [0, %d)", name, topo.NumPhases())
		}
		return Fixed(p), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}
