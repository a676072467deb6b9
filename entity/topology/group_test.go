package topology_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
)

func TestGroupDropsUncontrolledLanes(t *testing.T) {
	topo := topology.MustNew(threePhase())
	groups := topo.Group([]entity.Vehicle{
		entity.NewVehicle("v1", "passenger", "N_0", 90, 2, 0),
		entity.NewVehicle("v2", "passenger", "OUT_0", 10, 8, 0),
		entity.NewVehicle("v3", "passenger", "nowhere", 10, 8, 0),
		entity.NewVehicle("v4", "police", "N_0", 40, 10, 3),
	})
	assert.Len(t, groups, 1)
	if assert.Len(t, groups["N_0"], 2) {
		assert.Equal(t, "v1", groups["N_0"][0].VehicleID)
		assert.InDelta(t, 10, groups["N_0"][0].Distance, 1e-9)
		assert.Equal(t, entity.Priority, groups["N_0"][1].Category)
		assert.InDelta(t, 60, groups["N_0"][1].Distance, 1e-9)
		assert.InDelta(t, 3, groups["N_0"][1].WaitingTime, 1e-9)
	}
}

func TestGroupClampsDistance(t *testing.T) {
	topo := topology.MustNew(threePhase())
	groups := topo.Group([]entity.Vehicle{
		entity.NewVehicle("over", "passenger", "S_0", 130, 0, 0),
		entity.NewVehicle("before", "passenger", "S_0", -5, 0, 0),
	})
	assert.Equal(t, 0.0, groups["S_0"][0].Distance)
	assert.Equal(t, 100.0, groups["S_0"][1].Distance)
	assert.Equal(t, entity.DefaultVehicleLength, groups["S_0"][0].Length)
}

func TestGroupsCount(t *testing.T) {
	topo := topology.MustNew(threePhase())
	groups := topo.Group([]entity.Vehicle{
		entity.NewVehicle("a", "passenger", "W_1", 99, 0, 0),
		entity.NewVehicle("b", "barrier_A", "W_1", 98, 0, 0),
		entity.NewVehicle("c", "passenger", "W_1", 97, 3, 0),
	})
	stopped := groups.Count("W_1", func(o topology.Observation) bool { return o.Speed < 0.1 })
	assert.Equal(t, 2, stopped)
	assert.Equal(t, 0, groups.Count("W_0", func(topology.Observation) bool { return true }))
}
