// Package expr holds the front-end expression tree: scalar and aggregate
// expressions that own their children. Expressions are lowered into an
// arena by the logical package before optimization.
package expr

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/lazyplan/lazyplan/pkg/engine/internal/datatype"
	"github.com/lazyplan/lazyplan/pkg/engine/internal/types"
)

// SeriesFunc is a user-defined function applied to a single column.
type SeriesFunc func(arrow.Array) (arrow.Array, error)

// BinarySeriesFunc is a user-defined function combining two columns.
type BinarySeriesFunc func(a, b arrow.Array) (arrow.Array, error)

// Expr is the common interface of all front-end expressions. The set of
// implementations is closed; consumers type-switch over them.
type Expr interface {
	fmt.Stringer
	isExpr()
}

type (
	// Column references a column of the input by name.
	Column struct {
		Name string
	}

	// Literal is a constant value. Value is one of nil, bool, string, int,
	// int32, int64, uint32, uint64, float32, float64 or time.Time.
	Literal struct {
		Value any
	}

	// Wildcard selects every column of the input. It must be expanded with
	// [RewriteProjections] before lowering.
	Wildcard struct{}

	// Alias renames the result of Expr.
	Alias struct {
		Expr Expr
		Name string
	}

	// Unary applies a unary operator.
	Unary struct {
		Op   types.UnaryOp
		Expr Expr
	}

	// Binary applies a binary operator.
	Binary struct {
		Left  Expr
		Op    types.BinaryOp
		Right Expr
	}

	// Cast converts Expr to DataType.
	Cast struct {
		Expr     Expr
		DataType arrow.DataType
	}

	// Sort sorts the values of Expr.
	Sort struct {
		Expr    Expr
		Reverse bool
	}

	// SortBy sorts the values of Expr by the values of By.
	SortBy struct {
		Expr    Expr
		By      Expr
		Reverse bool
	}

	// Filter keeps the values of Input where By is true.
	Filter struct {
		Input Expr
		By    Expr
	}

	// Agg aggregates Expr. Quantile is only used by [types.AggOpQuantile].
	Agg struct {
		Op       types.AggOp
		Expr     Expr
		Quantile float64
	}

	// Ternary picks Truthy where Predicate holds and Falsy otherwise.
	Ternary struct {
		Predicate Expr
		Truthy    Expr
		Falsy     Expr
	}

	// Udf applies a user-defined function to Input. A nil OutputType means
	// the function preserves the input type.
	Udf struct {
		Input      Expr
		Name       string
		Function   SeriesFunc
		OutputType arrow.DataType
	}

	// Shift shifts the values of Input by Periods.
	Shift struct {
		Input   Expr
		Periods int64
	}

	// Window evaluates Function over groups of PartitionBy. OrderBy may be nil.
	Window struct {
		Function    Expr
		PartitionBy Expr
		OrderBy     Expr
	}

	// Slice takes Length values of Input starting at Offset. A negative
	// offset counts from the end.
	Slice struct {
		Input  Expr
		Offset int64
		Length int
	}

	// BinaryFunction applies a user-defined function to two inputs. The
	// result is named after InputA. A nil OutputType means the type of InputA.
	BinaryFunction struct {
		InputA     Expr
		InputB     Expr
		Name       string
		Function   BinarySeriesFunc
		OutputType arrow.DataType
	}

	// Except excludes the columns referenced by Expr from a wildcard
	// selection in the same projection.
	Except struct {
		Expr Expr
	}
)

func (*Column) isExpr()         {}
func (*Literal) isExpr()        {}
func (*Wildcard) isExpr()       {}
func (*Alias) isExpr()          {}
func (*Unary) isExpr()          {}
func (*Binary) isExpr()         {}
func (*Cast) isExpr()           {}
func (*Sort) isExpr()           {}
func (*SortBy) isExpr()         {}
func (*Filter) isExpr()         {}
func (*Agg) isExpr()            {}
func (*Ternary) isExpr()        {}
func (*Udf) isExpr()            {}
func (*Shift) isExpr()          {}
func (*Window) isExpr()         {}
func (*Slice) isExpr()          {}
func (*BinaryFunction) isExpr() {}
func (*Except) isExpr()         {}

func (e *Column) String() string { return "col(" + e.Name + ")" }

func (e *Literal) String() string { return FormatLiteral(e.Value) }

func (*Wildcard) String() string { return "*" }

func (e *Alias) String() string { return fmt.Sprintf("%s AS %s", e.Expr, e.Name) }

func (e *Unary) String() string { return fmt.Sprintf("%s(%s)", e.Op, e.Expr) }

func (e *Binary) String() string { return fmt.Sprintf("%s(%s, %s)", e.Op, e.Left, e.Right) }

func (e *Cast) String() string {
	return fmt.Sprintf("CAST(%s, %s)", e.Expr, datatype.Name(e.DataType))
}

func (e *Sort) String() string { return fmt.Sprintf("SORT(%s, reverse=%t)", e.Expr, e.Reverse) }

func (e *SortBy) String() string {
	return fmt.Sprintf("SORT_BY(%s, %s, reverse=%t)", e.Expr, e.By, e.Reverse)
}

func (e *Filter) String() string { return fmt.Sprintf("FILTER(%s, %s)", e.Input, e.By) }

func (e *Agg) String() string {
	if e.Op == types.AggOpQuantile {
		return fmt.Sprintf("%s(%s, %g)", e.Op, e.Expr, e.Quantile)
	}
	return fmt.Sprintf("%s(%s)", e.Op, e.Expr)
}

func (e *Ternary) String() string {
	return fmt.Sprintf("WHEN(%s, %s, %s)", e.Predicate, e.Truthy, e.Falsy)
}

func (e *Udf) String() string { return fmt.Sprintf("%s(%s)", udfName(e.Name), e.Input) }

func (e *Shift) String() string { return fmt.Sprintf("SHIFT(%s, %d)", e.Input, e.Periods) }

func (e *Window) String() string {
	if e.OrderBy != nil {
		return fmt.Sprintf("%s OVER(%s ORDER BY %s)", e.Function, e.PartitionBy, e.OrderBy)
	}
	return fmt.Sprintf("%s OVER(%s)", e.Function, e.PartitionBy)
}

func (e *Slice) String() string {
	return fmt.Sprintf("SLICE(%s, %d, %d)", e.Input, e.Offset, e.Length)
}

func (e *BinaryFunction) String() string {
	return fmt.Sprintf("%s(%s, %s)", udfName(e.Name), e.InputA, e.InputB)
}

func (e *Except) String() string { return fmt.Sprintf("EXCEPT(%s)", e.Expr) }

func udfName(name string) string {
	if name == "" {
		return "udf"
	}
	return name
}

// FormatLiteral formats a literal value the way expressions print it.
func FormatLiteral(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}

// Col returns a column reference.
func Col(name string) *Column { return &Column{Name: name} }

// Cols returns a column reference per name.
func Cols(names ...string) []Expr {
	out := make([]Expr, len(names))
	for i, n := range names {
		out[i] = Col(n)
	}
	return out
}

// Lit returns a literal.
func Lit(v any) *Literal { return &Literal{Value: v} }

// All returns a wildcard.
func All() *Wildcard { return &Wildcard{} }

// As renames e.
func As(e Expr, name string) *Alias { return &Alias{Expr: e, Name: name} }

// BinOp returns a binary expression.
func BinOp(left Expr, op types.BinaryOp, right Expr) *Binary {
	return &Binary{Left: left, Op: op, Right: right}
}

// Eq returns left == right.
func Eq(left, right Expr) *Binary { return BinOp(left, types.BinaryOpEq, right) }

// Gt returns left > right.
func Gt(left, right Expr) *Binary { return BinOp(left, types.BinaryOpGt, right) }

// Lt returns left < right.
func Lt(left, right Expr) *Binary { return BinOp(left, types.BinaryOpLt, right) }

// And returns left && right.
func And(left, right Expr) *Binary { return BinOp(left, types.BinaryOpAnd, right) }

// Add returns left + right.
func Add(left, right Expr) *Binary { return BinOp(left, types.BinaryOpAdd, right) }

// Not negates e.
func Not(e Expr) *Unary { return &Unary{Op: types.UnaryOpNot, Expr: e} }

// AggOf aggregates e with op.
func AggOf(op types.AggOp, e Expr) *Agg { return &Agg{Op: op, Expr: e} }

// Sum returns sum(e).
func Sum(e Expr) *Agg { return AggOf(types.AggOpSum, e) }

// Mean returns mean(e).
func Mean(e Expr) *Agg { return AggOf(types.AggOpMean, e) }

// First returns first(e).
func First(e Expr) *Agg { return AggOf(types.AggOpFirst, e) }

// Count returns count(e).
func Count(e Expr) *Agg { return AggOf(types.AggOpCount, e) }

// CastTo casts e to dt.
func CastTo(e Expr, dt arrow.DataType) *Cast { return &Cast{Expr: e, DataType: dt} }

// Join formats exprs as a comma separated list.
func Join(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
