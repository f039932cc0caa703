package expr

import (
	"github.com/pkg/errors"

	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// Transform rebuilds e bottom-up, replacing every node with the result of
// fn. The input tree is not modified.
func Transform(e Expr, fn func(Expr) Expr) Expr {
	t := func(x Expr) Expr { return Transform(x, fn) }

	var out Expr
	switch e := e.(type) {
	case *Column:
		c := *e
		out = &c
	case *Literal:
		l := *e
		out = &l
	case *Wildcard:
		out = &Wildcard{}
	case *Alias:
		out = &Alias{Expr: t(e.Expr), Name: e.Name}
	case *Unary:
		out = &Unary{Op: e.Op, Expr: t(e.Expr)}
	case *Binary:
		out = &Binary{Left: t(e.Left), Op: e.Op, Right: t(e.Right)}
	case *Cast:
		out = &Cast{Expr: t(e.Expr), DataType: e.DataType}
	case *Sort:
		out = &Sort{Expr: t(e.Expr), Reverse: e.Reverse}
	case *SortBy:
		out = &SortBy{Expr: t(e.Expr), By: t(e.By), Reverse: e.Reverse}
	case *Filter:
		out = &Filter{Input: t(e.Input), By: t(e.By)}
	case *Agg:
		out = &Agg{Op: e.Op, Expr: t(e.Expr), Quantile: e.Quantile}
	case *Ternary:
		out = &Ternary{Predicate: t(e.Predicate), Truthy: t(e.Truthy), Falsy: t(e.Falsy)}
	case *Udf:
		out = &Udf{Input: t(e.Input), Name: e.Name, Function: e.Function, OutputType: e.OutputType}
	case *Shift:
		out = &Shift{Input: t(e.Input), Periods: e.Periods}
	case *Window:
		w := &Window{Function: t(e.Function), PartitionBy: t(e.PartitionBy)}
		if e.OrderBy != nil {
			w.OrderBy = t(e.OrderBy)
		}
		out = w
	case *Slice:
		out = &Slice{Input: t(e.Input), Offset: e.Offset, Length: e.Length}
	case *BinaryFunction:
		out = &BinaryFunction{
			InputA:     t(e.InputA),
			InputB:     t(e.InputB),
			Name:       e.Name,
			Function:   e.Function,
			OutputType: e.OutputType,
		}
	case *Except:
		out = &Except{Expr: t(e.Expr)}
	default:
		return e
	}
	return fn(out)
}

// RewriteProjections expands wildcards in a projection list against the
// input schema. An expression containing a wildcard is repeated once per
// input column with the wildcard replaced by that column. Columns referenced
// by an [Except] entry anywhere in the list are left out of the expansion,
// and Except entries themselves are dropped.
func RewriteProjections(exprs []Expr, input *schema.Schema) ([]Expr, error) {
	excluded := map[string]struct{}{}
	for _, e := range exprs {
		ex, ok := e.(*Except)
		if !ok {
			continue
		}
		for n := range Walk(ex.Expr) {
			switch n := n.(type) {
			case *Column:
				excluded[n.Name] = struct{}{}
			case *Wildcard:
				return nil, errors.Wrap(planerr.ErrInvalidOperation, "wildcard inside except")
			}
		}
	}

	out := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if _, ok := e.(*Except); ok {
			continue
		}
		if !Has(e, isWildcard) {
			out = append(out, e)
			continue
		}
		if _, ok := e.(*Alias); ok {
			return nil, errors.Wrapf(planerr.ErrInvalidOperation, "cannot alias wildcard expression %s", e)
		}
		for _, name := range input.Names() {
			if _, skip := excluded[name]; skip {
				continue
			}
			out = append(out, Transform(e, func(x Expr) Expr {
				if isWildcard(x) {
					return Col(name)
				}
				return x
			}))
		}
	}
	return out, nil
}

func isWildcard(e Expr) bool {
	_, ok := e.(*Wildcard)
	return ok
}
