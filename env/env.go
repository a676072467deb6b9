// 决策周期聚合：反复推进仿真器直到信号可以接受新相位，期间执行覆盖规则并维护定长历史特征
package env

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/sim"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils/container"
)

var (
	ErrNotReset        = errors.New("env: step before reset")
	ErrEpisodeDone     = errors.New("env: episode is done, reset first")
	ErrInvalidPhase    = errors.New("env: invalid candidate phase")
	ErrMissingJunction = errors.New("env: simulator does not report the junction")
	ErrSubTickLimit    = errors.New("env: sub tick limit reached before ready")
	ErrFeatureShape    = errors.New("env: junction features do not match the topology")
)

// Options 聚合参数
type Options struct {
	HistoryLength int        // 历史缓冲区长度L
	Reward        RewardMode // 奖励计算方式
	MaxSubTicks   int        // 单个决策周期最多推进的仿真步数，0表示不限
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{HistoryLength: 5, Reward: RewardSum}
}

// Command 一次仿真步下发的相位
type Command struct {
	Tick  int               // 做出决策所依据的仿真步（从Reset起计，Reset返回的为第0步）
	Phase entity.PhaseIndex // 下发的相位
	Rule  trafficlight.Rule // 覆盖规则，RuleNone表示使用候选相位
}

// Diagnostics 诊断信息
type Diagnostics struct {
	Episode     string            // 本轮仿真ID
	Epoch       int               // 已完成的决策周期数
	SubTicks    int               // 本周期推进的仿真步数
	Commands    []Command         // 本周期每一步下发的相位
	Phase       entity.PhaseIndex // 周期结束时仿真器中的相位
	Time        float64           // 仿真时间
	Reason      string            // 结束原因
	Vehicles    int               // 进口道车辆数
	WaitingMean float64           // 进口道车辆等待时间均值
	WaitingStd  float64           // 进口道车辆等待时间标准差
}

// Overrides 本周期中由覆盖规则给出的相位
func (d Diagnostics) Overrides() []Command {
	return lo.Filter(d.Commands, func(c Command, _ int) bool { return c.Rule != trafficlight.RuleNone && c.Rule != trafficlight.RulePressure })
}

// StepResult 一个决策周期的结果
type StepResult struct {
	History   [][][]float64 // L x 流向数 x 特征数，第i行为第i个槽位
	Reward    float64
	Ready     bool // 是否在周期边界结束（可以接受新相位）
	Terminal  bool // 仿真异常结束
	Truncated bool // 仿真达到时间上限
	Info      Diagnostics
}

// Env 单个路口的决策周期聚合器
// 功能：状态机 Accumulating -> Ready，每次Step推进若干仿真步直到仿真器报告可以接受新相位
// 说明：同一Env只能由一个goroutine使用；拓扑与决策器只读，可在配置相同的多个Env间共享
type Env struct {
	simulator  sim.Simulator
	controller *trafficlight.Controller
	topo       *topology.Topology
	junction   entity.JunctionID
	opts       Options

	history *container.Ring[[][]float64]
	last    *sim.Tick
	episode string
	ticks   int // 本轮已推进的仿真步数

	started bool
	done    bool
}

// New 创建聚合器
// 参数：simulator-仿真器，controller-路口决策器（决定路口、拓扑与兜底模式），opts-聚合参数
// 返回：聚合器实例，参数非法时返回错误
func New(simulator sim.Simulator, controller *trafficlight.Controller, opts Options) (*Env, error) {
	if opts.HistoryLength <= 0 {
		return nil, fmt.Errorf("env: history length must be positive, got %d", opts.HistoryLength)
	}
	if opts.MaxSubTicks < 0 {
		return nil, fmt.Errorf("env: negative sub tick limit %d", opts.MaxSubTicks)
	}
	topo := controller.Topology()
	rows := len(topo.Movements())
	return &Env{
		simulator:  simulator,
		controller: controller,
		topo:       topo,
		junction:   topo.Junction(),
		opts:       opts,
		history: container.NewRing(opts.HistoryLength, func() [][]float64 {
			return lo.Times(rows, func(int) []float64 { return make([]float64, entity.FeatureSize) })
		}),
	}, nil
}

// Junction 路口ID
func (e *Env) Junction() entity.JunctionID {
	return e.junction
}

// Epoch 已完成的决策周期数
func (e *Env) Epoch() int {
	return e.history.Count()
}

// Episode 本轮仿真ID
func (e *Env) Episode() string {
	return e.episode
}

// Reset 开始新的一轮
// 功能：重置仿真器，历史缓冲区清零，决策周期计数清零
// 返回：全零的历史缓冲区
func (e *Env) Reset(ctx context.Context) ([][][]float64, error) {
	tick, err := e.simulator.Reset(ctx)
	if err != nil {
		return nil, fmt.Errorf("env: reset simulator: %w", err)
	}
	e.history.Reset()
	e.last = tick
	e.ticks = 0
	e.episode = uuid.NewString()
	e.started = true
	e.done = tick.Done()
	log.Debugf("episode %s of junction %s started", e.episode, e.junction)
	return e.snapshot(), nil
}

// Step 推进一个决策周期
// 功能：以candidate为候选相位反复推进仿真器，直到仿真器报告可以接受新相位或仿真结束
// 参数：ctx-上下文，candidate-外部策略给出的候选相位（Pressure模式下可为entity.NoPhase）
// 返回：历史缓冲区、奖励、是否Ready、结束标记与诊断信息
// 算法说明：
// 1. 每一步先对上一步的车辆观测执行覆盖规则，生效则以覆盖相位替代候选相位
// 2. 未生效时，Pressure模式以排队压力最大的相位替代候选相位，Delegate模式使用候选相位
// 3. 推进仿真器一步，将路口特征写入历史缓冲区的当前槽位（epoch mod L）
// 4. 仿真器报告Ready时周期计数加1并结束；仿真结束时立即返回已有结果，不重试
// 5. 奖励 = -（最后一步中位于进口道的车辆的累计等待时间之和），mean方式除以车辆数
func (e *Env) Step(ctx context.Context, candidate entity.PhaseIndex) (*StepResult, error) {
	if !e.started {
		return nil, ErrNotReset
	}
	if e.done {
		return nil, ErrEpisodeDone
	}
	if e.controller.Mode() == trafficlight.Delegate && !e.topo.HasPhase(candidate) {
		return nil, fmt.Errorf("%w: %d of %d phases", ErrInvalidPhase, candidate, e.topo.NumPhases())
	}

	info := Diagnostics{Episode: e.episode, Commands: make([]Command, 0), Phase: entity.NoPhase}
	ready := false
	for !ready && !e.done {
		if e.opts.MaxSubTicks > 0 && info.SubTicks >= e.opts.MaxSubTicks {
			log.Warnf("junction %s: not ready after %d sub ticks", e.junction, info.SubTicks)
			return nil, fmt.Errorf("%w: %d", ErrSubTickLimit, info.SubTicks)
		}
		cmd, err := e.command(candidate)
		if err != nil {
			return nil, err
		}
		tick, err := e.simulator.Advance(ctx, map[entity.JunctionID]entity.PhaseIndex{e.junction: cmd.Phase})
		if err != nil {
			return nil, fmt.Errorf("env: advance simulator: %w", err)
		}
		info.Commands = append(info.Commands, cmd)
		info.SubTicks++
		e.ticks++
		e.last = tick

		jt, ok := tick.Junctions[e.junction]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingJunction, e.junction)
		}
		if err := e.checkFeatures(jt.Features); err != nil {
			return nil, err
		}
		e.history.Set(cloneRows(jt.Features))
		info.Phase = jt.Phase
		if jt.Ready {
			e.history.Advance()
			ready = true
		}
		if tick.Done() {
			e.done = true
			info.Reason = tick.Reason
		}
	}

	waits := incomingWaiting(e.topo, e.last.Vehicles)
	info.Epoch = e.history.Count()
	info.Time = e.last.Time
	info.Vehicles = len(waits)
	info.WaitingMean, info.WaitingStd = waitingStats(waits)
	return &StepResult{
		History:   e.snapshot(),
		Reward:    reward(e.opts.Reward, waits),
		Ready:     ready,
		Terminal:  e.last.Terminal,
		Truncated: e.last.Truncated,
		Info:      info,
	}, nil
}

// command 根据上一步的观测决定本步下发的相位
func (e *Env) command(candidate entity.PhaseIndex) (Command, error) {
	groups := e.topo.Group(e.last.Vehicles)
	d, err := e.controller.Override(groups)
	if err != nil {
		return Command{}, err
	}
	if !d.IsForced() {
		d = e.controller.Fallback(groups)
	}
	if d.IsForced() {
		if d.IsOverride() {
			log.Debugf("junction %s tick %d: %s overrides candidate %d", e.junction, e.ticks, d, candidate)
		}
		return Command{Tick: e.ticks, Phase: d.Phase, Rule: d.Rule}, nil
	}
	return Command{Tick: e.ticks, Phase: candidate, Rule: trafficlight.RuleNone}, nil
}

// checkFeatures 特征必须为 流向数 x entity.FeatureSize
func (e *Env) checkFeatures(features [][]float64) error {
	if rows := len(e.topo.Movements()); len(features) != rows {
		return fmt.Errorf("%w: junction %s reports %d rows, want %d", ErrFeatureShape, e.junction, len(features), rows)
	}
	for i, row := range features {
		if len(row) != entity.FeatureSize {
			return fmt.Errorf("%w: junction %s row %d has %d values, want %d", ErrFeatureShape, e.junction, i, len(row), entity.FeatureSize)
		}
	}
	return nil
}

// snapshot 历史缓冲区的深拷贝
func (e *Env) snapshot() [][][]float64 {
	return e.history.SnapshotFunc(cloneRows)
}

func cloneRows(rows [][]float64) [][]float64 {
	return lo.Map(rows, func(row []float64, _ int) []float64 { return slices.Clone(row) })
}
