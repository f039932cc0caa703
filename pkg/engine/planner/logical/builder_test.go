package logical

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lazyplan/lazyplan/pkg/engine/internal/datatype"
	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
	"github.com/lazyplan/lazyplan/pkg/engine/internal/types"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/expr"
)

func TestBuilderProject(t *testing.T) {
	arenas := NewArenas()
	scan := ScanCSV(arenas, "data.csv", testSchema("a", "int64", "b", "int64", "c", "utf8"), CSVScanOptions{HasHeader: true})

	t.Run("empty projection is a no-op", func(t *testing.T) {
		b := scan.Project(nil)
		require.Same(t, scan, b)
		b = scan.ProjectLocal(nil)
		require.Same(t, scan, b)
	})

	t.Run("projection derives its schema", func(t *testing.T) {
		b := scan.Project(AddExprs(arenas.Exprs, expr.Col("c"), expr.As(expr.Col("a"), "x")))
		n, err := b.Node()
		require.NoError(t, err)
		require.Equal(t, PlanTypeProjection, arenas.Plans.Get(n).Type())
		require.Equal(t, "[c: utf8, x: int64]", b.Schema().String())
	})

	t.Run("select expands wildcards", func(t *testing.T) {
		b := scan.Select(expr.All(), &expr.Except{Expr: expr.Col("b")})
		require.NoError(t, b.Err())
		require.Equal(t, "[a: int64, c: utf8]", b.Schema().String())
	})

	t.Run("duplicate output names", func(t *testing.T) {
		b := scan.Project(AddExprs(arenas.Exprs, expr.Col("a"), expr.As(expr.Col("b"), "a")))
		_, err := b.Node()
		require.ErrorIs(t, err, planerr.ErrShapeMismatch)
	})

	t.Run("local projection", func(t *testing.T) {
		b := scan.ProjectLocal(AddExprs(arenas.Exprs, expr.Col("b")))
		n, err := b.Node()
		require.NoError(t, err)
		require.Equal(t, PlanTypeLocalProjection, arenas.Plans.Get(n).Type())
		require.Equal(t, "[b: int64]", b.Schema().String())
	})
}

func TestBuilderStickyError(t *testing.T) {
	arenas := NewArenas()
	b := ScanCSV(arenas, "data.csv", testSchema("a", "int64"), CSVScanOptions{}).
		Filter(AddExpr(arenas.Exprs, expr.Gt(expr.Col("missing"), expr.Lit(1)))).
		Sort("a", false).
		Cache()

	_, err := b.Node()
	require.ErrorIs(t, err, planerr.ErrFieldNotFound)
	require.Nil(t, b.Schema())

	_, err = b.Build()
	require.ErrorIs(t, err, planerr.ErrFieldNotFound)
}

func TestBuilderWithColumns(t *testing.T) {
	arenas := NewArenas()
	b := ScanCSV(arenas, "data.csv", testSchema("a", "int64", "b", "int32"), CSVScanOptions{}).
		WithColumns(AddExprs(arenas.Exprs,
			expr.CastTo(expr.Col("b"), datatype.Arrow.Float64),
			expr.As(expr.Add(expr.Col("a"), expr.Col("b")), "sum"),
		))

	require.NoError(t, b.Err())
	require.Equal(t, "[a: int64, b: float64, sum: int64]", b.Schema().String())
}

func TestBuilderGroupBy(t *testing.T) {
	arenas := NewArenas()
	scan := ScanCSV(arenas, "data.csv", testSchema("k", "utf8", "v", "int64", "f", "float64"), CSVScanOptions{})

	b := scan.GroupBy(
		AddExprs(arenas.Exprs, expr.Col("k")),
		AddExprs(arenas.Exprs, expr.Sum(expr.Col("v")), expr.Mean(expr.Col("v")), expr.Count(expr.Col("f"))),
		nil,
	)
	require.NoError(t, b.Err())
	require.Equal(t, "[k: utf8, v_sum: int64, v_mean: float64, f_count: uint32]", b.Schema().String())

	b = scan.GroupBy(
		AddExprs(arenas.Exprs, expr.Col("k")),
		AddExprs(arenas.Exprs, expr.As(expr.Sum(expr.Col("v")), "k")),
		nil,
	)
	require.ErrorIs(t, b.Err(), planerr.ErrShapeMismatch)
}

func TestBuilderJoin(t *testing.T) {
	arenas := NewArenas()
	left := ScanCSV(arenas, "left.csv", testSchema("id", "int64", "x", "int64", "l", "utf8"), CSVScanOptions{})
	right := ScanCSV(arenas, "right.csv", testSchema("id", "int64", "x", "float64", "r", "utf8"), CSVScanOptions{})
	rightNode, err := right.Node()
	require.NoError(t, err)

	b := left.Join(rightNode,
		AddExprs(arenas.Exprs, expr.Col("id")),
		AddExprs(arenas.Exprs, expr.Col("id")),
		JoinOptions{How: types.JoinTypeLeft},
	)
	require.NoError(t, b.Err())
	require.Equal(t, "[id: int64, x: int64, l: utf8, x_right: float64, r: utf8]", b.Schema().String())

	t.Run("unresolvable right key panics", func(t *testing.T) {
		require.Panics(t, func() {
			left.Join(rightNode,
				AddExprs(arenas.Exprs, expr.Col("id")),
				AddExprs(arenas.Exprs, expr.Add(expr.Col("id"), expr.Lit(int64(1)))),
				JoinOptions{},
			)
		})
	})

	t.Run("key count mismatch", func(t *testing.T) {
		b := left.Join(rightNode, AddExprs(arenas.Exprs, expr.Col("id")), nil, JoinOptions{})
		require.ErrorIs(t, b.Err(), planerr.ErrShapeMismatch)
	})
}

func TestBuilderMelt(t *testing.T) {
	arenas := NewArenas()
	scan := ScanCSV(arenas, "data.csv", testSchema("id", "utf8", "x", "int64", "y", "int32", "z", "utf8"), CSVScanOptions{})

	b := scan.Melt([]string{"id"}, []string{"x", "y"})
	require.NoError(t, b.Err())
	require.Equal(t, "[id: utf8, z: utf8, variable: utf8, value: int64]", b.Schema().String())

	require.ErrorIs(t, scan.Melt([]string{"id"}, nil).Err(), planerr.ErrNoData)
	require.ErrorIs(t, scan.Melt([]string{"id"}, []string{"nope"}).Err(), planerr.ErrFieldNotFound)
	require.ErrorIs(t, scan.Melt([]string{"id"}, []string{"x", "z"}).Err(), planerr.ErrInvalidOperation)
}

func TestBuilderBuildTakesRoot(t *testing.T) {
	arenas := NewArenas()
	b := ScanCSV(arenas, "data.csv", testSchema("a", "int64"), CSVScanOptions{}).Slice(0, 10)
	n, err := b.Node()
	require.NoError(t, err)

	p, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, Slice{Input: 0, Offset: 0, Length: 10}, p)
	require.True(t, arenas.Plans.IsTaken(n))
	require.Panics(t, func() { arenas.Plans.Get(n) })
}

func TestBuilderSchemaPreservingNodes(t *testing.T) {
	arenas := NewArenas()
	in := testSchema("a", "int64", "l", "list<int64>")
	b := ScanCSV(arenas, "data.csv", in, CSVScanOptions{}).
		Filter(AddExpr(arenas.Exprs, expr.Gt(expr.Col("a"), expr.Lit(int64(1))))).
		Sort("a", true).
		Explode("l").
		Cache().
		Distinct(true, []string{"a"}).
		Slice(1, 2).
		Map(nil, MapOptions{})

	require.NoError(t, b.Err())
	require.True(t, in.Equal(b.Schema()))

	out := testSchema("n", "uint32")
	require.Same(t, out, b.Map(nil, MapOptions{OutputSchema: out}).Schema())

	require.ErrorIs(t, b.Sort("nope", false).Err(), planerr.ErrFieldNotFound)
	require.ErrorIs(t, b.Explode("nope").Err(), planerr.ErrFieldNotFound)
	require.ErrorIs(t, b.Distinct(false, []string{"nope"}).Err(), planerr.ErrFieldNotFound)
}

func TestScanDataFrame(t *testing.T) {
	arenas := NewArenas()
	b := ScanDataFrame(arenas, testRecord(t))
	require.NoError(t, b.Err())
	require.Equal(t, "[a: int64, b: utf8, c: float64]", b.Schema().String())
}
