// 城市仿真器适配：通过connect RPC读取车辆状态、下发信号灯程序，按syncer步进与仿真器同步
package citysim

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/clock"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/sim"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils/config"
)

var (
	ErrResetUnsupported = errors.New("citysim: the city simulator can only be reset once")
	ErrNotStarted       = errors.New("citysim: simulator is not reset")
	ErrClosed           = errors.New("citysim: simulation is closed")
)

// Options 适配器参数
type Options struct {
	Step      config.ControlStep // 步长与总步数
	TypeLabel string             // 人员标签中表示车辆类型的键
}

// Simulator 城市仿真器适配器
// 功能：实现sim.Simulator，每次Advance对应城市仿真器的一步
// 算法说明（每一步）：
// 1. 将相位指令交给路口运行时，信号灯状态发生变化的路口通过SetTrafficLight下发单相位程序
// 2. NotifyStepReady + Step，等待仿真器完成一步
// 3. 路口运行时计时推进dt
// 4. GetPersons读取行驶中的车辆，首次出现的车辆再读取一次基本信息以获得车辆类型
// 5. 累计等待时间，计算路口特征
type Simulator struct {
	clients   Clients
	stepper   Stepper
	junctions *junction.Manager
	clock     *clock.Clock
	waiting   *sim.WaitingTracker
	typeLabel string

	vehicleTypes map[int32]string                         // 人员ID->车辆类型
	pushed       map[entity.JunctionID][]mapv2.LightState // 已下发的灯色

	started bool
	closed  bool
}

// New 创建适配器
// 参数：clients-RPC客户端，stepper-步进同步（通常为syncer.Sidecar），junctions-已初始化的路口管理器，opts-参数
func New(clients Clients, stepper Stepper, junctions *junction.Manager, stationarySpeed float64, opts Options) *Simulator {
	return &Simulator{
		clients:      clients,
		stepper:      stepper,
		junctions:    junctions,
		clock:        clock.New(opts.Step),
		waiting:      sim.NewWaitingTracker(stationarySpeed),
		typeLabel:    opts.TypeLabel,
		vehicleTypes: make(map[int32]string),
		pushed:       make(map[entity.JunctionID][]mapv2.LightState),
	}
}

// Junctions 路口管理器
func (s *Simulator) Junctions() *junction.Manager {
	return s.junctions
}

// Clock 时钟
func (s *Simulator) Clock() *clock.Clock {
	return s.clock
}

// Reset 进入第一步并读取初始状态
// 说明：城市仿真器不能回到起点，只能调用一次
func (s *Simulator) Reset(ctx context.Context) (*sim.Tick, error) {
	if s.started {
		return nil, ErrResetUnsupported
	}
	s.started = true
	s.clock.Init()
	s.junctions.Reset()
	s.waiting.Reset()
	// 初始化syncer
	if s.stepper.Step(false) {
		s.closed = true
		return nil, ErrClosed
	}
	if err := s.pushAll(ctx); err != nil {
		return nil, err
	}
	return s.observe(ctx, 0)
}

// Advance 下发相位指令并推进一步
func (s *Simulator) Advance(ctx context.Context, commands map[entity.JunctionID]entity.PhaseIndex) (*sim.Tick, error) {
	if !s.started {
		return nil, ErrNotStarted
	}
	if s.closed {
		return nil, ErrClosed
	}
	accepted := s.junctions.Command(commands)
	if len(accepted) > 0 {
		log.Debugf("%s: junctions %v accepted new phases", s.clock, accepted)
	}
	if err := s.pushAll(ctx); err != nil {
		return nil, err
	}
	s.stepper.NotifyStepReady()
	s.closed = s.stepper.Step(s.clock.InternalStep+1 >= s.clock.END_STEP && s.clock.END_STEP >= 0)
	s.junctions.Update(s.clock.DT)
	s.clock.Step()
	tick, err := s.observe(ctx, s.clock.DT)
	if err != nil {
		return nil, err
	}
	if s.closed && !tick.Done() {
		tick.Terminal = true
		tick.Reason = "simulation closed"
	}
	return tick, nil
}

// pushAll 下发灯色发生变化的路口的信号灯程序
func (s *Simulator) pushAll(ctx context.Context) error {
	for _, j := range s.junctions.Junctions() {
		layout := j.Topology().Signal()
		if layout == nil {
			continue
		}
		program := j.Timer().Program(layout.JunctionID)
		if program == nil {
			continue
		}
		states := program.Phases[0].States
		if slices.Equal(states, s.pushed[j.ID()]) {
			continue
		}
		_, err := s.clients.TrafficLights.SetTrafficLight(ctx, connect.NewRequest(&mapv2.SetTrafficLightRequest{
			TrafficLight:  program,
			PhaseIndex:    0,
			TimeRemaining: j.Timer().RemainingTime(),
		}))
		if err != nil {
			return fmt.Errorf("citysim: set traffic light of junction %s: %w", j.ID(), err)
		}
		s.pushed[j.ID()] = states
	}
	return nil
}

// observe 读取仿真器状态
func (s *Simulator) observe(ctx context.Context, dt float64) (*sim.Tick, error) {
	now, err := s.clients.Clock.Now(ctx, connect.NewRequest(&clockv1.NowRequest{}))
	if err != nil {
		return nil, fmt.Errorf("citysim: clock: %w", err)
	}
	vehicles, err := s.vehicles(ctx)
	if err != nil {
		return nil, err
	}
	s.waiting.Update(vehicles, dt)
	t := &sim.Tick{
		Time:      now.Msg.T,
		Vehicles:  vehicles,
		Junctions: sim.JunctionTicks(s.junctions.Snapshot(vehicles)),
	}
	if s.clock.Finished() {
		t.Truncated = true
		t.Reason = "time limit"
	}
	return t, nil
}

// vehicles 行驶中且位于车道上的车辆
func (s *Simulator) vehicles(ctx context.Context) ([]entity.Vehicle, error) {
	res, err := s.clients.Persons.GetPersons(ctx, connect.NewRequest(&personv2.GetPersonsRequest{
		ExcludeStatuses: []personv2.Status{personv2.Status_STATUS_SLEEP},
	}))
	if err != nil {
		return nil, fmt.Errorf("citysim: get persons: %w", err)
	}
	motions := lo.FilterMap(res.Msg.Persons, func(p *personv2.PersonRuntime, _ int) (*personv2.PersonMotion, bool) {
		m := p.GetMotion()
		return m, m != nil && m.Status == personv2.Status_STATUS_DRIVING && m.GetPosition().GetLanePosition() != nil
	})
	if err := s.fetchTypes(ctx, motions); err != nil {
		return nil, err
	}
	return lo.Map(motions, func(m *personv2.PersonMotion, _ int) entity.Vehicle {
		pos := m.Position.LanePosition
		v := entity.NewVehicle(strconv.FormatInt(int64(m.Id), 10), s.vehicleTypes[m.Id], topology.LaneIDOf(pos.LaneId), pos.S, m.V, 0)
		v.Length = m.L
		return v
	}), nil
}

// fetchTypes 读取首次出现的车辆的类型标签
func (s *Simulator) fetchTypes(ctx context.Context, motions []*personv2.PersonMotion) error {
	unknown := lo.FilterMap(motions, func(m *personv2.PersonMotion, _ int) (int32, bool) {
		_, ok := s.vehicleTypes[m.Id]
		return m.Id, !ok
	})
	if len(unknown) == 0 {
		return nil
	}
	res, err := s.clients.Persons.GetPersons(ctx, connect.NewRequest(&personv2.GetPersonsRequest{
		PersonIds:  unknown,
		ReturnBase: true,
	}))
	if err != nil {
		return fmt.Errorf("citysim: get person base: %w", err)
	}
	for _, p := range res.Msg.Persons {
		base := p.GetBase()
		if base == nil {
			continue
		}
		s.vehicleTypes[base.Id] = base.Labels[s.typeLabel]
	}
	// 没有返回基本信息的车辆按普通车辆处理，不再重复查询
	for _, id := range unknown {
		if _, ok := s.vehicleTypes[id]; !ok {
			s.vehicleTypes[id] = ""
		}
	}
	return nil
}
