package topology_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/entity/topology"
)

func lanes(ids ...entity.LaneID) []topology.LaneSpec {
	specs := make([]topology.LaneSpec, 0, len(ids))
	for _, id := range ids {
		specs = append(specs, topology.LaneSpec{ID: id, Length: 100})
	}
	return specs
}

// 3相位路口：0-南北直行与北左转，1-东西直行，2-东右转
func threePhase() topology.Description {
	desc := topology.Description{
		Junction: "J1",
		Lanes:    lanes("N_0", "N_1", "N_2", "S_0", "S_1", "S_2", "E_0", "E_1", "E_2", "W_0", "W_1", "W_2"),
		Movements: []topology.MovementSpec{
			{ID: "N--s", Direction: entity.Straight, Lanes: []entity.LaneID{"N_0", "N_1"}},
			{ID: "N--l", Direction: entity.Left, Lanes: []entity.LaneID{"N_2", "N_2"}},
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
	desc.Lanes = append(desc.Lanes, topology.LaneSpec{ID: "OUT_0", Length: 80, Approach: entity.Outgoing})
	return desc
}

func TestNewBuildsTotalMappings(t *testing.T) {
	topo, err := topology.New(threePhase())
	require.NoError(t, err)

	assert.Equal(t, 3, topo.NumPhases())
	assert.Equal(t, []entity.PhaseIndex{0, 1, 2}, topo.Phases())

	wantMovementPhase := map[entity.MovementID]entity.PhaseIndex{
		"N--s": 0, "N--l": 0, "S--s": 0,
		"E--s": 1, "W--s": 1,
		"E--r": 2,
	}
	if diff := cmp.Diff(wantMovementPhase, topo.MovementPhase()); diff != "" {
		t.Errorf("movement->phase mismatch (-want +got):\n%s", diff)
	}

	laneMovement := topo.LaneMovement()
	assert.Len(t, laneMovement, 12)
	for lane, movement := range laneMovement {
		phase, ok := topo.PhaseOf(movement)
		require.True(t, ok, "movement %s", movement)
		assert.True(t, topo.PhaseHasLane(phase, lane), "lane %s phase %d", lane, phase)
	}

	wantPhaseLanes := []entity.LaneID{"N_0", "N_1", "N_2", "S_0", "S_1", "S_2"}
	if diff := cmp.Diff(wantPhaseLanes, topo.PhaseLanes(0)); diff != "" {
		t.Errorf("phase 0 lanes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []entity.LaneID{"E_0"}, topo.PhaseLanes(2))
}

func TestNewDeduplicatesLanesWithinMovement(t *testing.T) {
	topo, err := topology.New(threePhase())
	require.NoError(t, err)
	for _, m := range topo.Movements() {
		if m.ID == "N--l" {
			assert.Equal(t, []entity.LaneID{"N_2"}, m.Lanes)
			assert.Equal(t, 1, m.LaneCount)
		}
	}
}

func TestNewRejectsLaneInTwoMovements(t *testing.T) {
	desc := threePhase()
	desc.Movements[1].Lanes = []entity.LaneID{"N_1"}
	_, err := topology.New(desc)
	assert.ErrorIs(t, err, topology.ErrConfiguration)
}

func TestNewRejectsMovementInTwoPhases(t *testing.T) {
	desc := threePhase()
	desc.Phases[2].Movements = append(desc.Phases[2].Movements, "N--s")
	_, err := topology.New(desc)
	assert.ErrorIs(t, err, topology.ErrConfiguration)
}

func TestNewRejectsMalformedDescriptions(t *testing.T) {
	cases := map[string]func(d *topology.Description){
		"no phases": func(d *topology.Description) { d.Phases = nil },
		"unknown movement": func(d *topology.Description) {
			d.Phases[1].Movements = append(d.Phases[1].Movements, "X--s")
		},
		"lane without length": func(d *topology.Description) {
			d.Movements[0].Lanes = append(d.Movements[0].Lanes, "N_9")
		},
		"movement on outgoing lane": func(d *topology.Description) {
			d.Movements[0].Lanes = append(d.Movements[0].Lanes, "OUT_0")
		},
		"duplicated lane spec": func(d *topology.Description) {
			d.Lanes = append(d.Lanes, topology.LaneSpec{ID: "N_0", Length: 10})
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			desc := threePhase()
			mutate(&desc)
			_, err := topology.New(desc)
			assert.ErrorIs(t, err, topology.ErrConfiguration)
		})
	}
}

func TestMovementWithoutPhaseIsTolerated(t *testing.T) {
	desc := threePhase()
	desc.Phases[2].Movements = nil
	topo, err := topology.New(desc)
	require.NoError(t, err)
	m, ok := topo.MovementOf("E_0")
	require.True(t, ok)
	_, ok = topo.PhaseOf(m)
	assert.False(t, ok)
	assert.Empty(t, topo.PhaseLanes(2))
}

func TestIsIncoming(t *testing.T) {
	topo := topology.MustNew(threePhase())
	assert.True(t, topo.IsIncoming("N_0"))
	assert.False(t, topo.IsIncoming("OUT_0"))
	assert.False(t, topo.IsIncoming("unknown"))
	assert.False(t, topo.IsControlled("OUT_0"))
}
