package logical

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/expr"
)

func TestScanSchemaFollowsColumns(t *testing.T) {
	file := testSchema("a", "int64", "b", "utf8", "c", "float64")

	csv := CsvScan{Path: "x.csv", FileSchema: file}
	require.Same(t, file, csv.Schema(nil))

	csv.WithColumns = []string{"a", "c"}
	require.Equal(t, "[a: int64, c: float64]", csv.Schema(nil).String())

	pq := ParquetScan{Path: "x.parquet", FileSchema: file, WithColumns: []string{"b"}}
	require.Equal(t, "[b: utf8]", pq.Schema(nil).String())
}

func TestDataFrameScanProjection(t *testing.T) {
	arenas := NewArenas()
	n, err := ScanDataFrame(arenas, testRecord(t)).Node()
	require.NoError(t, err)

	scan := arenas.Plans.Get(n).(DataFrameScan)
	projected, err := scan.WithProjection(arenas.Exprs, AddExprs(arenas.Exprs, expr.Col("c"), expr.Col("a")))
	require.NoError(t, err)
	require.Equal(t, "[c: float64, a: int64]", projected.Schema(nil).String())

	_, err = scan.WithProjection(arenas.Exprs, AddExprs(arenas.Exprs, expr.Col("nope")))
	require.Error(t, err)

	all, err := projected.WithProjection(arenas.Exprs, nil)
	require.NoError(t, err)
	require.Equal(t, "[a: int64, b: utf8, c: float64]", all.Schema(nil).String())
}

func TestWithExprsAndInputs(t *testing.T) {
	arenas := NewArenas()
	left := ScanCSV(arenas, "l.csv", testSchema("k", "utf8", "v", "int64"), CSVScanOptions{})
	right, err := ScanCSV(arenas, "r.csv", testSchema("k", "utf8", "w", "int64"), CSVScanOptions{}).Node()
	require.NoError(t, err)

	var nodes []arena.Node
	add := func(b *Builder) {
		n, err := b.Node()
		require.NoError(t, err)
		nodes = append(nodes, n)
	}

	add(left.GroupBy(AddExprs(arenas.Exprs, expr.Col("k")), AddExprs(arenas.Exprs, expr.Sum(expr.Col("v")), expr.Count(expr.Col("v"))), nil))
	add(left.Join(right, AddExprs(arenas.Exprs, expr.Col("k")), AddExprs(arenas.Exprs, expr.Col("k")), JoinOptions{}))
	add(left.Filter(AddExpr(arenas.Exprs, expr.Gt(expr.Col("v"), expr.Lit(int64(0))))))
	add(left.Select(expr.Col("v")))
	add(left.WithColumns(AddExprs(arenas.Exprs, expr.As(expr.Col("v"), "v2"))))
	add(left.Melt([]string{"k"}, []string{"v"}))
	add(left.Distinct(false, nil))

	for _, n := range nodes {
		p := arenas.Plans.Get(n)
		t.Run(p.Type().String(), func(t *testing.T) {
			rebuilt := WithExprsAndInputs(p, Exprs(p), Inputs(p))
			require.Equal(t, p, rebuilt)
		})
	}

	t.Run("scan predicate is last", func(t *testing.T) {
		pred := AddExpr(arenas.Exprs, expr.Gt(expr.Col("v"), expr.Lit(int64(0))))
		agg := AddExpr(arenas.Exprs, expr.Sum(expr.Col("v")))
		scan := CsvScan{Path: "l.csv", Predicate: nodeRef(pred), Aggregate: []arena.Node{agg}}
		require.Equal(t, []arena.Node{agg, pred}, Exprs(scan))

		rebuilt := WithExprsAndInputs(scan, []arena.Node{agg, pred}, nil).(CsvScan)
		require.Equal(t, pred, *rebuilt.Predicate)
		require.Equal(t, []arena.Node{agg}, rebuilt.Aggregate)
	})

	t.Run("aggregate splits keys from aggs", func(t *testing.T) {
		agg := arenas.Plans.Get(nodes[0]).(Aggregate)
		rebuilt := WithExprsAndInputs(agg, []arena.Node{100, 101, 102}, []arena.Node{7}).(Aggregate)
		require.Equal(t, arena.Node(7), rebuilt.Input)
		require.Equal(t, []arena.Node{100}, rebuilt.Keys)
		require.Equal(t, []arena.Node{101, 102}, rebuilt.Aggs)
	})
}
