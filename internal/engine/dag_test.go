package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeIDs(nodes []*Node) []int {
	ids := make([]int, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestBuildDAG_Chain(t *testing.T) {
	dag, err := BuildDAG(testDefinition("x", 1, ""))
	require.NoError(t, err)

	assert.Len(t, dag.Nodes, 2)
	assert.Equal(t, []int{0, 1}, nodeIDs(dag.RootNodes))
	assert.Equal(t, []int{1}, nodeIDs(dag.Nodes[0].Next))
	assert.Empty(t, dag.Unreachable())
}

func TestBuildDAG_Nesting(t *testing.T) {
	// 0 switch → {1 when → 3, 2 when → 3}, 0 → 4
	def := &Definition{ID: "x", Steps: []*Step{
		{ID: 0, BodyType: "switch", Children: []int{1, 2}, Outcomes: []Outcome{{NextStep: 4}}},
		{ID: 1, BodyType: "when", Children: []int{3}},
		{ID: 2, BodyType: "when", Children: []int{3}},
		{ID: 3, Body: noop()},
		{ID: 4, Body: noop()},
	}}

	dag, err := BuildDAG(def)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 4}, nodeIDs(dag.RootNodes))
	assert.Equal(t, 2, dag.Nodes[3].InDegree)
	assert.Equal(t, []int{1, 2}, nodeIDs(dag.Nodes[3].Parents))

	order := nodeIDs(dag.Order)
	require.Len(t, order, 5)
	pos := make(map[int]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos[0], pos[1])
	assert.Less(t, pos[1], pos[3])
	assert.Less(t, pos[2], pos[3])

	assert.Equal(t, 0, dag.Depth(0))
	assert.Equal(t, 2, dag.Depth(3))
	assert.Equal(t, -1, dag.Depth(42))
}

func TestBuildDAG_OutcomeLoopAllowed(t *testing.T) {
	def := &Definition{ID: "x", Steps: []*Step{
		{ID: 0, Body: noop(), Outcomes: []Outcome{{NextStep: 1}}},
		{ID: 1, Body: noop(), Outcomes: []Outcome{{NextStep: 0, Value: "again"}}},
	}}

	dag, err := BuildDAG(def)
	require.NoError(t, err)
	assert.Empty(t, dag.Unreachable())
}

func TestBuildDAG_ChildCycle(t *testing.T) {
	def := &Definition{ID: "x", Steps: []*Step{
		{ID: 0, Body: noop(), Outcomes: []Outcome{{NextStep: 1}}},
		{ID: 1, BodyType: "when", Children: []int{2}},
		{ID: 2, BodyType: "foreach", Children: []int{1}},
	}}

	_, err := BuildDAG(def)
	require.ErrorIs(t, err, ErrChildCycle)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 1, vErr.StepID)
}

func TestBuildDAG_MissingStep(t *testing.T) {
	_, err := BuildDAG(&Definition{ID: "x", Steps: []*Step{
		{ID: 0, Body: noop(), Outcomes: []Outcome{{NextStep: 9}}},
	}})
	assert.ErrorIs(t, err, ErrMissingStep)

	_, err = BuildDAG(nil)
	assert.ErrorIs(t, err, ErrEmptySteps)
}

func TestUnreachableSteps(t *testing.T) {
	def := &Definition{ID: "x", Steps: []*Step{
		{ID: 0, Body: noop(), Outcomes: []Outcome{{NextStep: 2}}},
		{ID: 1, BodyType: "when", Children: []int{3}},
		{ID: 2, Body: noop()},
		{ID: 3, Body: noop()},
	}}

	ids, err := UnreachableSteps(def)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, ids)
}
