package trafficlight_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/trafficlight"
)

// 3相位路口，车道长度均为100m
// 相位0：N--s(N_0,N_1) N--l(N_2) S--s(S_0..S_2)
// 相位1：E--s(E_1,E_2) W--s(W_0..W_2)
// 相位2：E--r(E_0)
func threePhase() topology.Description {
	ids := []entity.LaneID{"N_0", "N_1", "N_2", "S_0", "S_1", "S_2", "E_0", "E_1", "E_2", "W_0", "W_1", "W_2"}
	desc := topology.Description{
		Junction: "J1",
		Movements: []topology.MovementSpec{
			{ID: "N--s", Direction: entity.Straight, Lanes: []entity.LaneID{"N_0", "N_1"}},
			{ID: "N--l", Direction: entity.Left, Lanes: []entity.LaneID{"N_2"}},
			{ID: "S--s", Direction: entity.Straight, Lanes: []entity.LaneID{"S_0", "S_1", "S_2"}},
			{ID: "E--s", Direction: entity.Straight, Lanes: []entity.LaneID{"E_1", "E_2"}},
			{ID: "W--s", Direction: entity.Straight, Lanes: []entity.LaneID{"W_0", "W_1", "W_2"}},
			{ID: "E--r", Direction: entity.Right, Lanes: []entity.LaneID{"E_0"}},
		},
		Phases: []topology.PhaseSpec{
			{Movements: []entity.MovementID{"N--s", "N--l", "S--s"}},
			{Movements: []entity.MovementID{"E--s", "W--s"}},
			{Movements: []entity.MovementID{"E--r"}},
		},
	}
	for _, id := range ids {
		desc.Lanes = append(desc.Lanes, topology.LaneSpec{ID: id, Length: 100})
	}
	return desc
}

func newController(t *testing.T, mode trafficlight.Mode) *trafficlight.Controller {
	t.Helper()
	topo, err := topology.New(threePhase())
	require.NoError(t, err)
	return trafficlight.NewController(topo, mode, trafficlight.DefaultThresholds())
}

// vehicleAt 在车道上距停车线distance处的车辆
func vehicleAt(id, vehicleType string, lane entity.LaneID, distance, speed float64) entity.Vehicle {
	return entity.NewVehicle(id, vehicleType, lane, 100-distance, speed, 0)
}

func TestPriorityTakesPrecedenceOverObstruction(t *testing.T) {
	c := newController(t, trafficlight.Pressure)
	d, err := c.Decide([]entity.Vehicle{
		vehicleAt("police", "police", "N_0", 10, 8),
		vehicleAt("barrier", "barrier_A", "E_1", 5, 0),
		vehicleAt("car", "passenger", "W_0", 5, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, trafficlight.Forced(0, trafficlight.RulePriority), d)
	assert.True(t, d.IsOverride())
}

func TestClosestPriorityVehicleWins(t *testing.T) {
	c := newController(t, trafficlight.Pressure)
	d, err := c.Decide([]entity.Vehicle{
		vehicleAt("far", "emergency", "N_0", 25, 8),
		vehicleAt("near", "fire_engine", "E_1", 15, 8),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.PhaseIndex(1), d.Phase)
	assert.Equal(t, trafficlight.RulePriority, d.Rule)
}

func TestPriorityTieTakesLowestPhase(t *testing.T) {
	c := newController(t, trafficlight.Pressure)
	d, err := c.Decide([]entity.Vehicle{
		vehicleAt("a", "police", "E_0", 20, 8),
		vehicleAt("b", "police", "W_2", 20, 8),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.PhaseIndex(1), d.Phase)
}

func TestPriorityBeyondThresholdIsIgnored(t *testing.T) {
	topo := topology.MustNew(threePhase())
	th := trafficlight.DefaultThresholds()
	th.PriorityDistance = 30
	c := trafficlight.NewController(topo, trafficlight.Delegate, th)
	d, err := c.Decide([]entity.Vehicle{vehicleAt("police", "police", "E_0", 30, 8)})
	require.NoError(t, err)
	assert.False(t, d.IsForced())
	assert.Equal(t, trafficlight.Deferred(), d)
}

func TestAllPhasesBlockedFallsBackToLowestPhase(t *testing.T) {
	c := newController(t, trafficlight.Pressure)
	vehicles := make([]entity.Vehicle, 0)
	for lane := range c.Topology().LaneMovement() {
		vehicles = append(vehicles, vehicleAt("barrier-"+string(lane), "crash_vehicle_1lane", lane, 30, 0))
	}
	d, err := c.Decide(vehicles)
	require.NoError(t, err)
	assert.Equal(t, trafficlight.Forced(0, trafficlight.RuleBlockedFallback), d)
}

func TestObstructionChoosesLongestValidQueue(t *testing.T) {
	c := newController(t, trafficlight.Delegate)
	d, err := c.Decide([]entity.Vehicle{
		vehicleAt("tree", "tree_branch_1lane", "S_1", 40, 0),
		vehicleAt("p0", "passenger", "N_0", 5, 0),
		vehicleAt("p0b", "passenger", "N_1", 5, 0),
		vehicleAt("p0c", "passenger", "N_1", 10, 0),
		vehicleAt("p1", "passenger", "W_0", 10, 3),
		vehicleAt("p1b", "passenger", "E_2", 50, 0),
		vehicleAt("p2", "passenger", "E_0", 60, 0),
		vehicleAt("p2b", "passenger", "E_0", 70, 0),
		vehicleAt("p2c", "passenger", "E_0", 80, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, trafficlight.Forced(1, trafficlight.RuleObstruction), d)
}

func TestObstructionQueueTieTakesLowestPhase(t *testing.T) {
	c := newController(t, trafficlight.Pressure)
	d, err := c.Decide([]entity.Vehicle{
		vehicleAt("ped", "pedestrian", "N_2", 1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, trafficlight.Forced(1, trafficlight.RuleObstruction), d)
}

func TestPressureRanking(t *testing.T) {
	c := newController(t, trafficlight.Pressure)
	d, err := c.Decide([]entity.Vehicle{
		vehicleAt("a", "passenger", "N_0", 5, 0),
		vehicleAt("b", "passenger", "E_1", 5, 0),
		vehicleAt("c", "passenger", "E_2", 10, 0.05),
		vehicleAt("d", "passenger", "W_1", 90, 0),
		vehicleAt("moving", "passenger", "S_0", 20, 10),
		vehicleAt("moving2", "passenger", "S_1", 20, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, trafficlight.Forced(1, trafficlight.RulePressure), d)
	assert.False(t, d.IsOverride())
}

func TestPressureTieTakesLowestPhase(t *testing.T) {
	c := newController(t, trafficlight.Pressure)
	d, err := c.Decide(nil)
	require.NoError(t, err)
	assert.Equal(t, trafficlight.Forced(0, trafficlight.RulePressure), d)

	d, err = c.Decide([]entity.Vehicle{
		vehicleAt("a", "passenger", "E_0", 5, 0),
		vehicleAt("b", "passenger", "W_0", 5, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.PhaseIndex(1), d.Phase)
}

func TestDelegateModeDefersWithoutOverride(t *testing.T) {
	c := newController(t, trafficlight.Delegate)
	d, err := c.Decide([]entity.Vehicle{
		vehicleAt("a", "passenger", "E_1", 5, 0),
		vehicleAt("b", "passenger", "E_2", 5, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, trafficlight.Deferred(), d)
	assert.Equal(t, entity.NoPhase, d.Phase)
}

func TestOverrideWithoutPhaseIsUnresolved(t *testing.T) {
	desc := threePhase()
	desc.Phases[2].Movements = nil
	topo, err := topology.New(desc)
	require.NoError(t, err)
	c := trafficlight.NewController(topo, trafficlight.Pressure, trafficlight.DefaultThresholds())
	_, err = c.Decide([]entity.Vehicle{vehicleAt("police", "police", "E_0", 10, 8)})
	assert.ErrorIs(t, err, trafficlight.ErrUnresolvedOverride)
}

func TestParseMode(t *testing.T) {
	m, err := trafficlight.ParseMode("delegate")
	require.NoError(t, err)
	assert.Equal(t, trafficlight.Delegate, m)
	m, err = trafficlight.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, trafficlight.Pressure, m)
	_, err = trafficlight.ParseMode("maxq")
	assert.Error(t, err)
}
