package logical

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/lazyplan/lazyplan/pkg/engine/internal/types"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/expr"
)

// ExprType identifies the variant of an [Expr].
type ExprType uint32

const (
	_ ExprType = iota // zero-value is an invalid type

	ExprTypeColumn
	ExprTypeLiteral
	ExprTypeWildcard
	ExprTypeAlias
	ExprTypeUnary
	ExprTypeBinary
	ExprTypeCast
	ExprTypeSort
	ExprTypeSortBy
	ExprTypeFilter
	ExprTypeAgg
	ExprTypeTernary
	ExprTypeUdf
	ExprTypeShift
	ExprTypeWindow
	ExprTypeSlice
	ExprTypeBinaryFunction
	ExprTypeExcept
)

var exprTypeNames = [...]string{
	ExprTypeColumn:         "Column",
	ExprTypeLiteral:        "Literal",
	ExprTypeWildcard:       "Wildcard",
	ExprTypeAlias:          "Alias",
	ExprTypeUnary:          "Unary",
	ExprTypeBinary:         "Binary",
	ExprTypeCast:           "Cast",
	ExprTypeSort:           "Sort",
	ExprTypeSortBy:         "SortBy",
	ExprTypeFilter:         "Filter",
	ExprTypeAgg:            "Agg",
	ExprTypeTernary:        "Ternary",
	ExprTypeUdf:            "Udf",
	ExprTypeShift:          "Shift",
	ExprTypeWindow:         "Window",
	ExprTypeSlice:          "Slice",
	ExprTypeBinaryFunction: "BinaryFunction",
	ExprTypeExcept:         "Except",
}

// String returns the name of the variant.
func (t ExprType) String() string {
	if int(t) > 0 && int(t) < len(exprTypeNames) {
		return exprTypeNames[t]
	}
	return fmt.Sprintf("ExprType(%d)", t)
}

// Expr is an expression stored in an expression arena. Children are
// referenced by handle into the same arena. The set of implementations is
// closed.
type Expr interface {
	Type() ExprType
	isExpr()
}

type (
	// ColumnExpr references an input column by name.
	ColumnExpr struct {
		Name string
	}

	// LiteralExpr is a constant. See [expr.Literal] for the accepted values.
	LiteralExpr struct {
		Value any
	}

	// WildcardExpr selects all input columns. Wildcards are expanded before
	// lowering and never type-check.
	WildcardExpr struct{}

	// AliasExpr renames Expr.
	AliasExpr struct {
		Expr arena.Node
		Name string
	}

	UnaryExpr struct {
		Op   types.UnaryOp
		Expr arena.Node
	}

	BinaryExpr struct {
		Left  arena.Node
		Op    types.BinaryOp
		Right arena.Node
	}

	CastExpr struct {
		Expr     arena.Node
		DataType arrow.DataType
	}

	SortExpr struct {
		Expr    arena.Node
		Reverse bool
	}

	SortByExpr struct {
		Expr    arena.Node
		By      arena.Node
		Reverse bool
	}

	FilterExpr struct {
		Input arena.Node
		By    arena.Node
	}

	// AggExpr aggregates Expr. Quantile is only read for [types.AggOpQuantile].
	AggExpr struct {
		Op       types.AggOp
		Expr     arena.Node
		Quantile float64
	}

	TernaryExpr struct {
		Predicate arena.Node
		Truthy    arena.Node
		Falsy     arena.Node
	}

	// UdfExpr applies a function to a single column. A nil OutputType keeps
	// the input type.
	UdfExpr struct {
		Input      arena.Node
		Name       string
		Function   expr.SeriesFunc
		OutputType arrow.DataType
	}

	ShiftExpr struct {
		Input   arena.Node
		Periods int64
	}

	// WindowExpr evaluates Function per partition. OrderBy is optional.
	WindowExpr struct {
		Function    arena.Node
		PartitionBy arena.Node
		OrderBy     *arena.Node
	}

	SliceExpr struct {
		Input  arena.Node
		Offset int64
		Length int
	}

	// BinaryFunctionExpr applies a function to two columns. The result is
	// named after InputA.
	BinaryFunctionExpr struct {
		InputA     arena.Node
		InputB     arena.Node
		Name       string
		Function   expr.BinarySeriesFunc
		OutputType arrow.DataType
	}

	ExceptExpr struct {
		Expr arena.Node
	}
)

func (ColumnExpr) Type() ExprType         { return ExprTypeColumn }
func (LiteralExpr) Type() ExprType        { return ExprTypeLiteral }
func (WildcardExpr) Type() ExprType       { return ExprTypeWildcard }
func (AliasExpr) Type() ExprType          { return ExprTypeAlias }
func (UnaryExpr) Type() ExprType          { return ExprTypeUnary }
func (BinaryExpr) Type() ExprType         { return ExprTypeBinary }
func (CastExpr) Type() ExprType           { return ExprTypeCast }
func (SortExpr) Type() ExprType           { return ExprTypeSort }
func (SortByExpr) Type() ExprType         { return ExprTypeSortBy }
func (FilterExpr) Type() ExprType         { return ExprTypeFilter }
func (AggExpr) Type() ExprType            { return ExprTypeAgg }
func (TernaryExpr) Type() ExprType        { return ExprTypeTernary }
func (UdfExpr) Type() ExprType            { return ExprTypeUdf }
func (ShiftExpr) Type() ExprType          { return ExprTypeShift }
func (WindowExpr) Type() ExprType         { return ExprTypeWindow }
func (SliceExpr) Type() ExprType          { return ExprTypeSlice }
func (BinaryFunctionExpr) Type() ExprType { return ExprTypeBinaryFunction }
func (ExceptExpr) Type() ExprType         { return ExprTypeExcept }

func (ColumnExpr) isExpr()         {}
func (LiteralExpr) isExpr()        {}
func (WildcardExpr) isExpr()       {}
func (AliasExpr) isExpr()          {}
func (UnaryExpr) isExpr()          {}
func (BinaryExpr) isExpr()         {}
func (CastExpr) isExpr()           {}
func (SortExpr) isExpr()           {}
func (SortByExpr) isExpr()         {}
func (FilterExpr) isExpr()         {}
func (AggExpr) isExpr()            {}
func (TernaryExpr) isExpr()        {}
func (UdfExpr) isExpr()            {}
func (ShiftExpr) isExpr()          {}
func (WindowExpr) isExpr()         {}
func (SliceExpr) isExpr()          {}
func (BinaryFunctionExpr) isExpr() {}
func (ExceptExpr) isExpr()         {}

// copyExprInputs appends the direct children of e to dst.
func copyExprInputs(e Expr, dst *[]arena.Node) {
	push := func(nodes ...arena.Node) { *dst = append(*dst, nodes...) }

	switch e := e.(type) {
	case ColumnExpr, LiteralExpr, WildcardExpr:
	case AliasExpr:
		push(e.Expr)
	case UnaryExpr:
		push(e.Expr)
	case BinaryExpr:
		push(e.Left, e.Right)
	case CastExpr:
		push(e.Expr)
	case SortExpr:
		push(e.Expr)
	case SortByExpr:
		push(e.Expr, e.By)
	case FilterExpr:
		push(e.Input, e.By)
	case AggExpr:
		push(e.Expr)
	case TernaryExpr:
		push(e.Predicate, e.Truthy, e.Falsy)
	case UdfExpr:
		push(e.Input)
	case ShiftExpr:
		push(e.Input)
	case WindowExpr:
		push(e.Function, e.PartitionBy)
		if e.OrderBy != nil {
			push(*e.OrderBy)
		}
	case SliceExpr:
		push(e.Input)
	case BinaryFunctionExpr:
		push(e.InputA, e.InputB)
	case ExceptExpr:
		push(e.Expr)
	default:
		panic(fmt.Sprintf("unexpected expression type %T", e))
	}
}

// ExprInputs returns the direct children of e.
func ExprInputs(e Expr) []arena.Node {
	var out []arena.Node
	copyExprInputs(e, &out)
	return out
}

// Col adds a column reference to exprs and returns its handle.
func Col(exprs *arena.Arena[Expr], name string) arena.Node {
	return exprs.Add(ColumnExpr{Name: name})
}

// Alias adds an alias of n to exprs and returns its handle.
func Alias(exprs *arena.Arena[Expr], n arena.Node, name string) arena.Node {
	return exprs.Add(AliasExpr{Expr: n, Name: name})
}

func nodeRef(n arena.Node) *arena.Node { return &n }
