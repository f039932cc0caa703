package logical

import (
	"iter"

	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
)

// ExprIter walks an expression graph with an explicit stack. Each node is
// returned before its children; beyond that the order is unspecified.
type ExprIter struct {
	exprs *arena.Arena[Expr]
	stack []arena.Node
	buf   []arena.Node
}

// NewExprIter returns an iterator over the expressions reachable from root.
func NewExprIter(exprs *arena.Arena[Expr], root arena.Node) *ExprIter {
	return &ExprIter{exprs: exprs, stack: []arena.Node{root}}
}

// Next returns the next handle and expression, or false when done.
func (it *ExprIter) Next() (arena.Node, Expr, bool) {
	if len(it.stack) == 0 {
		return 0, nil, false
	}
	n := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]

	e := it.exprs.Get(n)
	it.buf = it.buf[:0]
	copyExprInputs(e, &it.buf)
	for i := len(it.buf) - 1; i >= 0; i-- {
		it.stack = append(it.stack, it.buf[i])
	}
	return n, e, true
}

// All drains the iterator as a sequence.
func (it *ExprIter) All() iter.Seq2[arena.Node, Expr] {
	return func(yield func(arena.Node, Expr) bool) {
		for n, e, ok := it.Next(); ok; n, e, ok = it.Next() {
			if !yield(n, e) {
				return
			}
		}
	}
}

// PlanIter walks a plan graph with an explicit stack. Each node is returned
// before its inputs.
type PlanIter struct {
	plans *arena.Arena[Plan]
	stack []arena.Node
	buf   []arena.Node
}

// NewPlanIter returns an iterator over the plan nodes reachable from root.
func NewPlanIter(plans *arena.Arena[Plan], root arena.Node) *PlanIter {
	return &PlanIter{plans: plans, stack: []arena.Node{root}}
}

// Next returns the next handle and plan node, or false when done.
func (it *PlanIter) Next() (arena.Node, Plan, bool) {
	if len(it.stack) == 0 {
		return 0, nil, false
	}
	n := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]

	p := it.plans.Get(n)
	it.buf = it.buf[:0]
	CopyInputs(p, &it.buf)
	for i := len(it.buf) - 1; i >= 0; i-- {
		it.stack = append(it.stack, it.buf[i])
	}
	return n, p, true
}

// All drains the iterator as a sequence.
func (it *PlanIter) All() iter.Seq2[arena.Node, Plan] {
	return func(yield func(arena.Node, Plan) bool) {
		for n, p, ok := it.Next(); ok; n, p, ok = it.Next() {
			if !yield(n, p) {
				return
			}
		}
	}
}
