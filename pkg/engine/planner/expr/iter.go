package expr

import "iter"

// Children returns the direct inputs of e in evaluation order.
func Children(e Expr) []Expr {
	switch e := e.(type) {
	case *Column, *Literal, *Wildcard:
		return nil
	case *Alias:
		return []Expr{e.Expr}
	case *Unary:
		return []Expr{e.Expr}
	case *Binary:
		return []Expr{e.Left, e.Right}
	case *Cast:
		return []Expr{e.Expr}
	case *Sort:
		return []Expr{e.Expr}
	case *SortBy:
		return []Expr{e.Expr, e.By}
	case *Filter:
		return []Expr{e.Input, e.By}
	case *Agg:
		return []Expr{e.Expr}
	case *Ternary:
		return []Expr{e.Predicate, e.Truthy, e.Falsy}
	case *Udf:
		return []Expr{e.Input}
	case *Shift:
		return []Expr{e.Input}
	case *Window:
		if e.OrderBy != nil {
			return []Expr{e.Function, e.PartitionBy, e.OrderBy}
		}
		return []Expr{e.Function, e.PartitionBy}
	case *Slice:
		return []Expr{e.Input}
	case *BinaryFunction:
		return []Expr{e.InputA, e.InputB}
	case *Except:
		return []Expr{e.Expr}
	}
	return nil
}

// Iter walks an expression tree depth-first, yielding each node before its
// children. The zero value is an exhausted iterator.
type Iter struct {
	stack []Expr
}

// NewIter returns an iterator starting at root.
func NewIter(root Expr) *Iter {
	return &Iter{stack: []Expr{root}}
}

// Next returns the next expression, or false once the tree is exhausted.
func (it *Iter) Next() (Expr, bool) {
	if len(it.stack) == 0 {
		return nil, false
	}
	e := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]

	children := Children(e)
	for i := len(children) - 1; i >= 0; i-- {
		it.stack = append(it.stack, children[i])
	}
	return e, true
}

// All drains the iterator as a sequence.
func (it *Iter) All() iter.Seq[Expr] {
	return func(yield func(Expr) bool) {
		for e, ok := it.Next(); ok; e, ok = it.Next() {
			if !yield(e) {
				return
			}
		}
	}
}

// Walk returns a sequence over every node of root in pre-order.
func Walk(root Expr) iter.Seq[Expr] {
	return NewIter(root).All()
}

// Has reports whether any node of root satisfies pred.
func Has(root Expr, pred func(Expr) bool) bool {
	for e := range Walk(root) {
		if pred(e) {
			return true
		}
	}
	return false
}
