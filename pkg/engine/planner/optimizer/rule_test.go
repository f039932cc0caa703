package optimizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/logical"
)

// countdownRule reports a change on its first remaining calls and counts
// the nodes it was applied to.
type countdownRule struct {
	remaining int
	visited   map[arena.Node]int
	err       error
}

func (r *countdownRule) name() string { return "countdown" }

func (r *countdownRule) apply(_ *logical.Arenas, node arena.Node) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	if r.visited == nil {
		r.visited = make(map[arena.Node]int)
	}
	r.visited[node]++
	if r.remaining == 0 {
		return false, nil
	}
	r.remaining--
	return true, nil
}

func TestOptimization(t *testing.T) {
	newPlan := func(t *testing.T) (*logical.Arenas, arena.Node) {
		arenas := logical.NewArenas()
		root := mustNode(t, logical.ScanCSV(arenas, "data.csv", testSchema("a", "int64"), logical.CSVScanOptions{}).
			Sort("a", false).
			Cache())
		return arenas, root
	}

	t.Run("stops once nothing changes", func(t *testing.T) {
		arenas, root := newPlan(t)
		r := &countdownRule{remaining: 2}

		iterations, converged, err := newOptimization("test", 3).withRules(r).optimize(arenas, root)
		require.NoError(t, err)
		require.True(t, converged)
		require.Equal(t, 2, iterations)
		require.Len(t, r.visited, 3)
	})

	t.Run("gives up after max iterations", func(t *testing.T) {
		arenas, root := newPlan(t)
		r := &countdownRule{remaining: 1000}

		iterations, converged, err := newOptimization("test", 3).withRules(r).optimize(arenas, root)
		require.NoError(t, err)
		require.False(t, converged)
		require.Equal(t, 3, iterations)
	})

	t.Run("rule error", func(t *testing.T) {
		arenas, root := newPlan(t)
		boom := errors.New("boom")

		_, _, err := newOptimization("test", 3).withRules(&countdownRule{err: boom}).optimize(arenas, root)
		require.ErrorIs(t, err, boom)
		require.ErrorContains(t, err, "rule countdown")
	})
}
