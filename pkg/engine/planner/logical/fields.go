package logical

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/pkg/errors"

	"github.com/lazyplan/lazyplan/pkg/engine/internal/datatype"
	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
	"github.com/lazyplan/lazyplan/pkg/engine/internal/types"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// Context controls how expression result fields are derived.
type Context int

const (
	// ContextDefault derives fields of projections, filters and group keys.
	ContextDefault Context = iota
	// ContextAggregation derives fields of group-by aggregations. Aggregated
	// columns are renamed to "<column>_<method>".
	ContextAggregation
)

// LiteralName is the output name of a bare literal.
const LiteralName = "literal"

// ToField derives the output field of expression n against the input schema
// s. It fails with [planerr.ErrFieldNotFound] when a referenced column is
// missing.
func ToField(exprs *arena.Arena[Expr], n arena.Node, s *schema.Schema, ctx Context) (arrow.Field, error) {
	field := func(n arena.Node) (arrow.Field, error) { return ToField(exprs, n, s, ctx) }

	switch e := exprs.Get(n).(type) {
	case ColumnExpr:
		return s.FieldByName(e.Name)

	case LiteralExpr:
		dt, err := datatype.FromValue(e.Value)
		if err != nil {
			return arrow.Field{}, err
		}
		return arrow.Field{Name: LiteralName, Type: dt, Nullable: true}, nil

	case WildcardExpr, ExceptExpr:
		return arrow.Field{}, errors.Wrapf(planerr.ErrInvalidOperation, "%s must be expanded before use", e.Type())

	case AliasExpr:
		f, err := field(e.Expr)
		if err != nil {
			return f, err
		}
		f.Name = e.Name
		return f, nil

	case UnaryExpr:
		f, err := field(e.Expr)
		if err != nil {
			return f, err
		}
		switch {
		case e.Op.IsPredicate():
			f.Type = datatype.Arrow.Bool
		case e.Op == types.UnaryOpExplode:
			f.Type = datatype.ListInner(f.Type)
		}
		return f, nil

	case BinaryExpr:
		left, err := field(e.Left)
		if err != nil {
			return left, err
		}
		right, err := field(e.Right)
		if err != nil {
			return right, err
		}
		if e.Op.IsPredicate() {
			left.Type = datatype.Arrow.Bool
			return left, nil
		}
		dt, err := datatype.Supertype(left.Type, right.Type)
		if err != nil {
			return arrow.Field{}, errors.Wrapf(err, "%s(%s, %s)", e.Op, left.Name, right.Name)
		}
		left.Type = dt
		return left, nil

	case CastExpr:
		f, err := field(e.Expr)
		if err != nil {
			return f, err
		}
		f.Type = e.DataType
		return f, nil

	case SortExpr:
		return field(e.Expr)
	case SortByExpr:
		if _, err := field(e.By); err != nil {
			return arrow.Field{}, err
		}
		return field(e.Expr)
	case FilterExpr:
		if _, err := field(e.By); err != nil {
			return arrow.Field{}, err
		}
		return field(e.Input)

	case AggExpr:
		return aggField(exprs, e, s, ctx)

	case TernaryExpr:
		if _, err := field(e.Predicate); err != nil {
			return arrow.Field{}, err
		}
		if _, err := field(e.Falsy); err != nil {
			return arrow.Field{}, err
		}
		return field(e.Truthy)

	case UdfExpr:
		f, err := field(e.Input)
		if err != nil {
			return f, err
		}
		if e.OutputType != nil {
			f.Type = e.OutputType
		}
		return f, nil

	case ShiftExpr:
		return field(e.Input)
	case SliceExpr:
		return field(e.Input)

	case WindowExpr:
		if _, err := ToField(exprs, e.PartitionBy, s, ContextDefault); err != nil {
			return arrow.Field{}, err
		}
		if e.OrderBy != nil {
			if _, err := ToField(exprs, *e.OrderBy, s, ContextDefault); err != nil {
				return arrow.Field{}, err
			}
		}
		return ToField(exprs, e.Function, s, ContextDefault)

	case BinaryFunctionExpr:
		a, err := field(e.InputA)
		if err != nil {
			return a, err
		}
		if _, err := field(e.InputB); err != nil {
			return arrow.Field{}, err
		}
		if e.OutputType != nil {
			a.Type = e.OutputType
		}
		return a, nil
	}
	panic(fmt.Sprintf("unexpected expression type %T", exprs.Get(n)))
}

func aggField(exprs *arena.Arena[Expr], e AggExpr, s *schema.Schema, ctx Context) (arrow.Field, error) {
	f, err := ToField(exprs, e.Expr, s, ContextDefault)
	if err != nil {
		return f, err
	}

	suffix := e.Op.String()
	switch e.Op {
	case types.AggOpCount, types.AggOpNUnique:
		f.Type = datatype.Arrow.Uint32
	case types.AggOpMean, types.AggOpMedian, types.AggOpStd, types.AggOpVar:
		f.Type = datatype.Arrow.Float64
	case types.AggOpQuantile:
		f.Type = datatype.Arrow.Float64
		suffix = fmt.Sprintf("%s_%.2f", suffix, e.Quantile)
	case types.AggOpList:
		f.Type = arrow.ListOf(f.Type)
	case types.AggOpGroups:
		f.Type = arrow.ListOf(datatype.Arrow.Uint32)
	default:
		// min, max, sum, first and last keep the input type; booleans are
		// counted.
		if f.Type.ID() == arrow.BOOL {
			f.Type = datatype.Arrow.Uint32
		}
	}

	if ctx == ContextAggregation {
		f.Name = f.Name + "_" + suffix
	}
	return f, nil
}

// ExprsToSchema derives the schema produced by evaluating nodes against s.
// Duplicate output names fail with [planerr.ErrShapeMismatch].
func ExprsToSchema(exprs *arena.Arena[Expr], nodes []arena.Node, s *schema.Schema, ctx Context) (*schema.Schema, error) {
	fields := make([]arrow.Field, 0, len(nodes))
	for _, n := range nodes {
		f, err := ToField(exprs, n, s, ctx)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return schema.FromArrow(arrow.NewSchema(fields, nil))
}

// CheckDownNode reports whether expression n can be evaluated against s.
func CheckDownNode(exprs *arena.Arena[Expr], n arena.Node, s *schema.Schema) bool {
	_, err := ToField(exprs, n, s, ContextDefault)
	return err == nil
}

// RootNodes returns the handles of the column references n depends on.
func RootNodes(exprs *arena.Arena[Expr], n arena.Node) []arena.Node {
	var out []arena.Node
	for node, e := range NewExprIter(exprs, n).All() {
		if _, ok := e.(ColumnExpr); ok {
			out = append(out, node)
		}
	}
	return out
}

// RootNames returns the names of the columns n depends on, in the order
// of [RootNodes]. Names may repeat.
func RootNames(exprs *arena.Arena[Expr], n arena.Node) []string {
	var out []string
	for _, e := range NewExprIter(exprs, n).All() {
		if c, ok := e.(ColumnExpr); ok {
			out = append(out, c.Name)
		}
	}
	return out
}

// HasExpr reports whether any expression reachable from n satisfies pred.
func HasExpr(exprs *arena.Arena[Expr], n arena.Node, pred func(Expr) bool) bool {
	for _, e := range NewExprIter(exprs, n).All() {
		if pred(e) {
			return true
		}
	}
	return false
}

// OutputName returns the name of the column n produces against s.
func OutputName(exprs *arena.Arena[Expr], n arena.Node, s *schema.Schema) (string, error) {
	f, err := ToField(exprs, n, s, ContextDefault)
	return f.Name, err
}
