package logical

import (
	"fmt"

	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/expr"
)

// AddExpr lowers a front-end expression into exprs and returns the handle of
// its root.
func AddExpr(exprs *arena.Arena[Expr], e expr.Expr) arena.Node {
	add := func(e expr.Expr) arena.Node { return AddExpr(exprs, e) }

	switch e := e.(type) {
	case *expr.Column:
		return exprs.Add(ColumnExpr{Name: e.Name})
	case *expr.Literal:
		return exprs.Add(LiteralExpr{Value: e.Value})
	case *expr.Wildcard:
		return exprs.Add(WildcardExpr{})
	case *expr.Alias:
		return exprs.Add(AliasExpr{Expr: add(e.Expr), Name: e.Name})
	case *expr.Unary:
		return exprs.Add(UnaryExpr{Op: e.Op, Expr: add(e.Expr)})
	case *expr.Binary:
		return exprs.Add(BinaryExpr{Left: add(e.Left), Op: e.Op, Right: add(e.Right)})
	case *expr.Cast:
		return exprs.Add(CastExpr{Expr: add(e.Expr), DataType: e.DataType})
	case *expr.Sort:
		return exprs.Add(SortExpr{Expr: add(e.Expr), Reverse: e.Reverse})
	case *expr.SortBy:
		return exprs.Add(SortByExpr{Expr: add(e.Expr), By: add(e.By), Reverse: e.Reverse})
	case *expr.Filter:
		return exprs.Add(FilterExpr{Input: add(e.Input), By: add(e.By)})
	case *expr.Agg:
		return exprs.Add(AggExpr{Op: e.Op, Expr: add(e.Expr), Quantile: e.Quantile})
	case *expr.Ternary:
		return exprs.Add(TernaryExpr{Predicate: add(e.Predicate), Truthy: add(e.Truthy), Falsy: add(e.Falsy)})
	case *expr.Udf:
		return exprs.Add(UdfExpr{Input: add(e.Input), Name: e.Name, Function: e.Function, OutputType: e.OutputType})
	case *expr.Shift:
		return exprs.Add(ShiftExpr{Input: add(e.Input), Periods: e.Periods})
	case *expr.Window:
		w := WindowExpr{Function: add(e.Function), PartitionBy: add(e.PartitionBy)}
		if e.OrderBy != nil {
			w.OrderBy = nodeRef(add(e.OrderBy))
		}
		return exprs.Add(w)
	case *expr.Slice:
		return exprs.Add(SliceExpr{Input: add(e.Input), Offset: e.Offset, Length: e.Length})
	case *expr.BinaryFunction:
		return exprs.Add(BinaryFunctionExpr{
			InputA:     add(e.InputA),
			InputB:     add(e.InputB),
			Name:       e.Name,
			Function:   e.Function,
			OutputType: e.OutputType,
		})
	case *expr.Except:
		return exprs.Add(ExceptExpr{Expr: add(e.Expr)})
	}
	panic(fmt.Sprintf("unexpected expression type %T", e))
}

// AddExprs lowers each of es and returns their handles in order.
func AddExprs(exprs *arena.Arena[Expr], es ...expr.Expr) []arena.Node {
	out := make([]arena.Node, len(es))
	for i, e := range es {
		out[i] = AddExpr(exprs, e)
	}
	return out
}

// NodeToExpr converts the expression at n back into a front-end tree.
func NodeToExpr(exprs *arena.Arena[Expr], n arena.Node) expr.Expr {
	to := func(n arena.Node) expr.Expr { return NodeToExpr(exprs, n) }

	switch e := exprs.Get(n).(type) {
	case ColumnExpr:
		return expr.Col(e.Name)
	case LiteralExpr:
		return expr.Lit(e.Value)
	case WildcardExpr:
		return expr.All()
	case AliasExpr:
		return expr.As(to(e.Expr), e.Name)
	case UnaryExpr:
		return &expr.Unary{Op: e.Op, Expr: to(e.Expr)}
	case BinaryExpr:
		return expr.BinOp(to(e.Left), e.Op, to(e.Right))
	case CastExpr:
		return expr.CastTo(to(e.Expr), e.DataType)
	case SortExpr:
		return &expr.Sort{Expr: to(e.Expr), Reverse: e.Reverse}
	case SortByExpr:
		return &expr.SortBy{Expr: to(e.Expr), By: to(e.By), Reverse: e.Reverse}
	case FilterExpr:
		return &expr.Filter{Input: to(e.Input), By: to(e.By)}
	case AggExpr:
		return &expr.Agg{Op: e.Op, Expr: to(e.Expr), Quantile: e.Quantile}
	case TernaryExpr:
		return &expr.Ternary{Predicate: to(e.Predicate), Truthy: to(e.Truthy), Falsy: to(e.Falsy)}
	case UdfExpr:
		return &expr.Udf{Input: to(e.Input), Name: e.Name, Function: e.Function, OutputType: e.OutputType}
	case ShiftExpr:
		return &expr.Shift{Input: to(e.Input), Periods: e.Periods}
	case WindowExpr:
		w := &expr.Window{Function: to(e.Function), PartitionBy: to(e.PartitionBy)}
		if e.OrderBy != nil {
			w.OrderBy = to(*e.OrderBy)
		}
		return w
	case SliceExpr:
		return &expr.Slice{Input: to(e.Input), Offset: e.Offset, Length: e.Length}
	case BinaryFunctionExpr:
		return &expr.BinaryFunction{
			InputA:     to(e.InputA),
			InputB:     to(e.InputB),
			Name:       e.Name,
			Function:   e.Function,
			OutputType: e.OutputType,
		}
	case ExceptExpr:
		return &expr.Except{Expr: to(e.Expr)}
	}
	panic(fmt.Sprintf("unexpected expression type %T", exprs.Get(n)))
}

// FormatExpr returns a printable form of the expression at n.
func FormatExpr(exprs *arena.Arena[Expr], n arena.Node) string {
	return NodeToExpr(exprs, n).String()
}
