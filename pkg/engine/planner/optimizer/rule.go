package optimizer

import (
	"github.com/pkg/errors"

	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/logical"
)

// A rule is a transformation that can be applied on a plan node.
type rule interface {
	// name identifies the rule in logs and in Config.DisabledRules.
	name() string

	// apply tries to apply the transformation on node, replacing the content
	// of its slot. It returns a boolean indicating whether the
	// transformation has been applied.
	apply(arenas *logical.Arenas, node arena.Node) (bool, error)
}

// optimization represents a single optimization pass and can hold multiple
// rules.
type optimization struct {
	name          string
	rules         []rule
	maxIterations int
}

func newOptimization(name string, maxIterations int) *optimization {
	return &optimization{
		name:          name,
		maxIterations: max(maxIterations, 1),
	}
}

func (o *optimization) withRules(rules ...rule) *optimization {
	o.rules = append(o.rules, rules...)
	return o
}

// optimize applies the rules to every node reachable from root until an
// iteration makes no change or maxIterations is reached. It returns the
// number of iterations run and whether the plan reached a fixed point.
func (o *optimization) optimize(arenas *logical.Arenas, root arena.Node) (int, bool, error) {
	iterations := 0

	for iterations < o.maxIterations {
		iterations++

		changed, err := o.applyRules(arenas, root)
		if err != nil {
			return iterations, false, err
		}
		if !changed {
			// Stop immediately if an iteration produced no changes.
			return iterations, true, nil
		}
	}
	return iterations, false, nil
}

// applyRules walks the plan with an explicit stack. Each rule is applied to
// a node until it stops changing it; the inputs of the node are visited
// afterwards, so nodes added below it by a rule are visited too.
func (o *optimization) applyRules(arenas *logical.Arenas, root arena.Node) (bool, error) {
	var (
		anyChanged bool
		stack      = []arena.Node{root}
		inputs     []arena.Node
	)

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, r := range o.rules {
			for range o.maxIterations {
				changed, err := r.apply(arenas, node)
				if err != nil {
					return anyChanged, errors.Wrapf(err, "rule %s on %s", r.name(), node)
				}
				if !changed {
					break
				}
				anyChanged = true
			}
		}

		inputs = inputs[:0]
		logical.CopyInputs(arenas.Plans.Get(node), &inputs)
		stack = append(stack, inputs...)
	}

	return anyChanged, nil
}
