// 场景回放仿真器：按帧回放车辆观测，信号时序由路口运行时计时
package scripted

import (
	"context"
	"errors"

	"github.com/tsinghua-fib-lab/agentsociety-tsc/clock"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/sim"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils/config"
)

var (
	ErrNotStarted = errors.New("scripted: simulator is not reset")
	ErrFinished   = errors.New("scripted: scenario is finished")
)

// Simulator 场景回放仿真器
type Simulator struct {
	scenario  *Scenario
	junctions *junction.Manager
	clock     *clock.Clock
	waiting   *sim.WaitingTracker

	started bool
	done    bool
}

// New 创建回放仿真器
// 参数：s-场景，opts-路口运行时参数（场景给出时长时覆盖opts.Timing）
// 返回：仿真器，场景中的路口描述非法时返回错误
func New(s *Scenario, opts junction.Options) (*Simulator, error) {
	if s.Timing != nil {
		opts.Timing = *s.Timing
	}
	m := junction.NewManager()
	if err := m.Init(s.Junctions, opts); err != nil {
		return nil, err
	}
	return &Simulator{
		scenario:  s,
		junctions: m,
		clock: clock.New(config.ControlStep{
			Interval: s.Interval,
			Total:    int32(len(s.Frames) - 1),
		}),
		waiting: sim.NewWaitingTracker(opts.Thresholds.StationarySpeed),
	}, nil
}

// Junctions 路口管理器
func (s *Simulator) Junctions() *junction.Manager {
	return s.junctions
}

// Reset 回到第0帧
func (s *Simulator) Reset(ctx context.Context) (*sim.Tick, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.clock.Init()
	s.junctions.Reset()
	s.waiting.Reset()
	s.started = true
	s.done = false
	return s.tick(0), nil
}

// Advance 下发相位指令并前进一帧
// 说明：只有Ready的路口接受指令，其余路口的指令被忽略
func (s *Simulator) Advance(ctx context.Context, commands map[entity.JunctionID]entity.PhaseIndex) (*sim.Tick, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.started {
		return nil, ErrNotStarted
	}
	if s.done {
		return nil, ErrFinished
	}
	s.junctions.Command(commands)
	s.junctions.Update(s.clock.DT)
	s.clock.Step()
	return s.tick(s.clock.DT), nil
}

// tick 生成当前帧的结果
func (s *Simulator) tick(dt float64) *sim.Tick {
	frame := s.scenario.Frames[s.clock.Elapsed()]
	vehicles := frame.vehicles()
	s.waiting.Update(vehicles, dt)
	for i, spec := range frame.Vehicles {
		if spec.Waiting != nil {
			vehicles[i].WaitingTime = *spec.Waiting
		}
	}
	t := &sim.Tick{
		Time:      s.clock.T,
		Vehicles:  vehicles,
		Junctions: sim.JunctionTicks(s.junctions.Snapshot(vehicles)),
		Terminal:  frame.Terminal,
		Reason:    frame.Reason,
	}
	if !t.Terminal && int(s.clock.Elapsed()) >= len(s.scenario.Frames)-1 {
		t.Truncated = true
		t.Reason = "time limit"
	}
	if t.Done() {
		s.done = true
		log.Debugf("scenario finished at %s: %s", s.clock, t.Reason)
	}
	return t
}
