package junction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/trafficlight"
)

// 2相位路口：相位0-南北直行(N_0,N_1,S_0)，相位1-东西左转(E_0)
func twoPhase(id entity.JunctionID) topology.Description {
	return topology.Description{
		Junction: id,
		Lanes: []topology.LaneSpec{
			{ID: "N_0", Length: 50},
			{ID: "N_1", Length: 50},
			{ID: "S_0", Length: 100},
			{ID: "E_0", Length: 40},
		},
		Movements: []topology.MovementSpec{
			{ID: "NS--s", Direction: entity.Straight, Lanes: []entity.LaneID{"N_0", "N_1", "S_0"}},
			{ID: "E--l", Direction: entity.Left, Lanes: []entity.LaneID{"E_0"}},
		},
		Phases: []topology.PhaseSpec{
			{Movements: []entity.MovementID{"NS--s"}},
			{Movements: []entity.MovementID{"E--l"}},
		},
	}
}

func TestFeatures(t *testing.T) {
	topo := topology.MustNew(twoPhase("J"))
	j := junction.New(topo, junction.DefaultOptions())
	snap := j.Snapshot([]entity.Vehicle{
		entity.NewVehicle("a", "passenger", "N_0", 49, 0, 0),
		entity.NewVehicle("b", "passenger", "S_0", 90, 0.05, 0),
		entity.NewVehicle("c", "barrier_B", "S_0", 80, 0, 0),
		entity.NewVehicle("d", "passenger", "E_0", 10, 12, 0),
	})
	require.Len(t, snap.Features, 2)
	for _, row := range snap.Features {
		assert.Len(t, row, entity.FeatureSize)
	}
	// 3辆车*5m / 200m，2辆静止的非障碍物车辆，相位0，直行，3车道
	assert.InDeltaSlice(t, []float64{15.0 / 200, 0.2, 1, 1, 0, 0, 0.6}, snap.Features[0], 1e-9)
	assert.InDeltaSlice(t, []float64{5.0 / 40, 0, 0, 0, 1, 0, 0.2}, snap.Features[1], 1e-9)
	assert.True(t, snap.Ready)
	assert.Equal(t, entity.PhaseIndex(0), snap.Phase)
}

func TestOccupancyIsClamped(t *testing.T) {
	j := junction.New(topology.MustNew(twoPhase("J")), junction.DefaultOptions())
	vehicles := make([]entity.Vehicle, 0)
	for i := 0; i < 20; i++ {
		v := entity.NewVehicle("v", "passenger", "E_0", 1, 0, 0)
		v.Length = 4
		vehicles = append(vehicles, v)
	}
	features := j.Features(j.Topology().Group(vehicles))
	assert.Equal(t, 1.0, features[1].Occupancy)
	assert.InDelta(t, 2.0, features[1].QueueLength, 1e-9)
}

func TestCurrentPhaseFlagFollowsTimer(t *testing.T) {
	opts := junction.DefaultOptions()
	opts.Timing = trafficlight.Timing{MinGreen: 5, Yellow: 1}
	j := junction.New(topology.MustNew(twoPhase("J")), opts)
	require.True(t, j.Command(1))
	j.Timer().Update(1)
	snap := j.Snapshot(nil)
	assert.Equal(t, entity.PhaseIndex(1), snap.Phase)
	assert.False(t, snap.Ready)
	assert.Equal(t, 0.0, snap.Features[0][2])
	assert.Equal(t, 1.0, snap.Features[1][2])
}

func TestManagerInitJoinsErrors(t *testing.T) {
	bad := twoPhase("bad")
	bad.Phases = nil
	m := junction.NewManager()
	err := m.Init([]topology.Description{twoPhase("ok"), bad}, junction.DefaultOptions())
	assert.ErrorIs(t, err, topology.ErrConfiguration)
	assert.Empty(t, m.Junctions())
}

func TestManagerRejectsDuplicateJunction(t *testing.T) {
	m := junction.NewManager()
	err := m.Init([]topology.Description{twoPhase("J"), twoPhase("J")}, junction.DefaultOptions())
	assert.ErrorIs(t, err, topology.ErrConfiguration)
}

func TestManagerDecideOnlyReadyJunctions(t *testing.T) {
	m := junction.NewManager()
	require.NoError(t, m.Init([]topology.Description{twoPhase("A"), twoPhase("B")}, junction.DefaultOptions()))
	assert.Equal(t, []entity.JunctionID{"A", "B"}, m.IDs())

	accepted := m.Command(map[entity.JunctionID]entity.PhaseIndex{"A": 0, "missing": 1})
	assert.Equal(t, []entity.JunctionID{"A"}, accepted)

	vehicles := []entity.Vehicle{entity.NewVehicle("amb", "emergency", "E_0", 30, 10, 0)}
	decisions, err := m.Decide(vehicles)
	require.NoError(t, err)
	assert.NotContains(t, decisions, entity.JunctionID("A"))
	assert.Equal(t, trafficlight.Forced(1, trafficlight.RulePriority), decisions["B"])

	m.Update(15)
	decisions, err = m.Decide(vehicles)
	require.NoError(t, err)
	assert.Len(t, decisions, 2)

	snapshots := m.Snapshot(vehicles)
	assert.True(t, snapshots["A"].Ready)
	m.Reset()
	assert.True(t, m.Get("A").Ready())
	_, err = m.GetOrError("missing")
	assert.Error(t, err)
}
