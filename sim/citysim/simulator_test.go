package citysim_test

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/sim/citysim"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils/config"
)

const (
	G = mapv2.LightState_LIGHT_STATE_GREEN
	Y = mapv2.LightState_LIGHT_STATE_YELLOW
	R = mapv2.LightState_LIGHT_STATE_RED
)

type fakePersons struct {
	motions   []*personv2.PersonMotion
	bases     map[int32]*personv2.Person
	baseCalls int
}

func (f *fakePersons) GetPersons(ctx context.Context, in *connect.Request[personv2.GetPersonsRequest]) (*connect.Response[personv2.GetPersonsResponse], error) {
	res := &personv2.GetPersonsResponse{}
	if in.Msg.ReturnBase {
		f.baseCalls++
		for _, id := range in.Msg.PersonIds {
			if b, ok := f.bases[id]; ok {
				res.Persons = append(res.Persons, &personv2.PersonRuntime{Base: b})
			}
		}
		return connect.NewResponse(res), nil
	}
	for _, m := range f.motions {
		res.Persons = append(res.Persons, &personv2.PersonRuntime{Motion: m})
	}
	return connect.NewResponse(res), nil
}

type fakeLights struct {
	requests []*mapv2.SetTrafficLightRequest
	err      error
}

func (f *fakeLights) SetTrafficLight(ctx context.Context, in *connect.Request[mapv2.SetTrafficLightRequest]) (*connect.Response[mapv2.SetTrafficLightResponse], error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, in.Msg)
	return connect.NewResponse(&mapv2.SetTrafficLightResponse{}), nil
}

type fakeClock struct {
	t float64
}

func (f *fakeClock) Now(ctx context.Context, in *connect.Request[clockv1.NowRequest]) (*connect.Response[clockv1.NowResponse], error) {
	return connect.NewResponse(&clockv1.NowResponse{T: f.t}), nil
}

type fakeStepper struct {
	steps  int
	ready  int
	closes []bool
	clock  *fakeClock
}

func (f *fakeStepper) NotifyStepReady() {
	f.ready++
}

func (f *fakeStepper) Step(close bool) bool {
	f.steps++
	f.closes = append(f.closes, close)
	if f.steps > 1 {
		f.clock.t++
	}
	return close
}

func onLane(id, lane int32, s, v float64) *personv2.PersonMotion {
	return &personv2.PersonMotion{
		Id:       id,
		Status:   personv2.Status_STATUS_DRIVING,
		Position: &geov2.Position{LanePosition: &geov2.LanePosition{LaneId: lane, S: s}},
		V:        v,
		L:        5,
	}
}

type fixture struct {
	sim     *citysim.Simulator
	persons *fakePersons
	lights  *fakeLights
	stepper *fakeStepper
}

// 路口7：相位0-车道1，相位1-车道2，灯色布局为两条路口内车道
func newFixture(t *testing.T, total int32) *fixture {
	t.Helper()
	desc := topology.Description{
		Junction: topology.JunctionIDOf(7),
		Lanes: []topology.LaneSpec{
			{ID: "1", Length: 100},
			{ID: "2", Length: 100},
		},
		Movements: []topology.MovementSpec{
			{ID: "a", Direction: entity.Straight, Lanes: []entity.LaneID{"1"}},
			{ID: "b", Direction: entity.Left, Lanes: []entity.LaneID{"2"}},
		},
		Phases: []topology.PhaseSpec{
			{Movements: []entity.MovementID{"a"}},
			{Movements: []entity.MovementID{"b"}},
		},
		Signal: &topology.SignalLayout{
			JunctionID: 7,
			LaneIDs:    []int32{11, 12},
			Phases:     [][]mapv2.LightState{{G, R}, {R, G}},
		},
	}
	opts := junction.DefaultOptions()
	opts.Timing = trafficlight.Timing{MinGreen: 2, Yellow: 1}
	m := junction.NewManager()
	require.NoError(t, m.Init([]topology.Description{desc}, opts))

	persons := &fakePersons{
		motions: []*personv2.PersonMotion{
			onLane(1, 1, 90, 0),
			{Id: 2, Status: personv2.Status_STATUS_WALKING, Position: &geov2.Position{LanePosition: &geov2.LanePosition{LaneId: 2, S: 3}}},
			{Id: 3, Status: personv2.Status_STATUS_DRIVING, Position: &geov2.Position{AoiPosition: &geov2.AoiPosition{AoiId: 9}}},
			onLane(4, 2, 50, 8),
		},
		bases: map[int32]*personv2.Person{
			1: {Id: 1, Labels: map[string]string{config.DefaultTypeLabel: "emergency"}},
		},
	}
	lights := &fakeLights{}
	clk := &fakeClock{}
	stepper := &fakeStepper{clock: clk}
	s := citysim.New(
		citysim.Clients{Persons: persons, TrafficLights: lights, Clock: clk},
		stepper,
		m,
		trafficlight.DefaultThresholds().StationarySpeed,
		citysim.Options{Step: config.ControlStep{Total: total, Interval: 1}, TypeLabel: config.DefaultTypeLabel},
	)
	return &fixture{sim: s, persons: persons, lights: lights, stepper: stepper}
}

func TestResetReadsDrivingVehicles(t *testing.T) {
	f := newFixture(t, 0)
	tick, err := f.sim.Reset(context.Background())
	require.NoError(t, err)

	require.Len(t, tick.Vehicles, 2)
	amb := tick.Vehicles[0]
	assert.Equal(t, "1", amb.ID)
	assert.Equal(t, entity.Priority, amb.Category)
	assert.Equal(t, entity.LaneID("1"), amb.Lane)
	assert.Equal(t, 90.0, amb.Position)
	assert.Equal(t, 5.0, amb.Length)
	assert.Equal(t, entity.Background, tick.Vehicles[1].Category)

	jt := tick.Junctions[topology.JunctionIDOf(7)]
	assert.True(t, jt.Ready)
	assert.Equal(t, entity.PhaseIndex(0), jt.Phase)
	assert.Len(t, jt.Features, 2)

	require.Len(t, f.lights.requests, 1)
	assert.Equal(t, int32(7), f.lights.requests[0].TrafficLight.JunctionId)
	assert.Equal(t, []mapv2.LightState{G, R}, f.lights.requests[0].TrafficLight.Phases[0].States)
	assert.Equal(t, 1, f.persons.baseCalls)

	_, err = f.sim.Reset(context.Background())
	assert.ErrorIs(t, err, citysim.ErrResetUnsupported)
}

func TestAdvancePushesTransitions(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.sim.Reset(ctx)
	require.NoError(t, err)

	tick, err := f.sim.Advance(ctx, map[entity.JunctionID]entity.PhaseIndex{topology.JunctionIDOf(7): 1})
	require.NoError(t, err)
	jt := tick.Junctions[topology.JunctionIDOf(7)]
	assert.False(t, jt.Ready)
	assert.Equal(t, entity.PhaseIndex(1), jt.Phase)
	assert.Equal(t, 1.0, tick.Time)
	assert.Equal(t, 1.0, tick.Vehicles[0].WaitingTime)
	assert.Equal(t, 0.0, tick.Vehicles[1].WaitingTime)

	_, err = f.sim.Advance(ctx, nil)
	require.NoError(t, err)
	// 相同灯色不重复下发
	_, err = f.sim.Advance(ctx, nil)
	require.NoError(t, err)

	require.Len(t, f.lights.requests, 3)
	assert.Equal(t, []mapv2.LightState{Y, R}, f.lights.requests[1].TrafficLight.Phases[0].States)
	assert.Equal(t, 1.0, f.lights.requests[1].TimeRemaining)
	assert.Equal(t, []mapv2.LightState{R, G}, f.lights.requests[2].TrafficLight.Phases[0].States)
	assert.Equal(t, 1, f.persons.baseCalls, "vehicle types are fetched once")
	assert.Equal(t, 3, f.stepper.ready)
}

func TestAdvanceBeforeReset(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.sim.Advance(context.Background(), nil)
	assert.ErrorIs(t, err, citysim.ErrNotStarted)
}

func TestTimeLimitClosesSyncer(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	_, err := f.sim.Reset(ctx)
	require.NoError(t, err)

	tick, err := f.sim.Advance(ctx, nil)
	require.NoError(t, err)
	assert.False(t, tick.Done())

	tick, err = f.sim.Advance(ctx, nil)
	require.NoError(t, err)
	assert.True(t, tick.Truncated)
	assert.False(t, tick.Terminal)
	assert.Equal(t, []bool{false, false, true}, f.stepper.closes)

	_, err = f.sim.Advance(ctx, nil)
	assert.ErrorIs(t, err, citysim.ErrClosed)
}

func TestTrafficLightErrorPropagates(t *testing.T) {
	f := newFixture(t, 0)
	f.lights.err = connect.NewError(connect.CodeInvalidArgument, errors.New("junction id does not exist"))
	_, err := f.sim.Reset(context.Background())
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}
