package optimizer

import (
	"slices"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/require"

	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/expr"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/logical"
)

func TestAggregateScanProjections(t *testing.T) {
	arenas := logical.NewArenas()
	fileSchema := testSchema("a", "int64", "b", "int64", "c", "utf8")
	keys := func() []arena.Node { return logical.AddExprs(arenas.Exprs, expr.Col("a")) }

	left := mustNode(t, logical.ScanCSV(arenas, "t.csv", fileSchema, logical.CSVScanOptions{}))
	setScanColumns(arenas, left, []string{"a"})
	right := mustNode(t, logical.ScanCSV(arenas, "t.csv", fileSchema, logical.CSVScanOptions{}))
	setScanColumns(arenas, right, []string{"a", "c"})
	other := mustNode(t, logical.ScanParquet(arenas, "u.parquet", testSchema("a", "int64", "d", "float64"), logical.ParquetScanOptions{}))
	frame := mustNode(t, logical.ScanDataFrame(arenas, testRecord(t)))

	root := mustNode(t, logical.NewBuilder(arenas, left).
		Join(right, keys(), keys(), logical.JoinOptions{}).
		Join(other, keys(), keys(), logical.JoinOptions{}).
		Join(frame, keys(), keys(), logical.JoinOptions{}))

	got := AggregateScanProjections(root, arenas.Plans)
	require.Len(t, got, 2)

	require.False(t, got["t.csv"].All)
	cols := got["t.csv"].Columns.ToSlice()
	slices.Sort(cols)
	require.Equal(t, []string{"a", "c"}, cols)

	require.True(t, got["u.parquet"].All)
}

func TestScanColumnsResolve(t *testing.T) {
	fileSchema := testSchema("a", "int64", "b", "int64", "c", "utf8")

	sc := &ScanColumns{Columns: mapset.NewThreadUnsafeSet("c", "a", "unknown")}
	require.Equal(t, []string{"a", "c"}, sc.resolve(fileSchema))

	sc.All = true
	require.Nil(t, sc.resolve(fileSchema))
}

func TestScanProjectionRule(t *testing.T) {
	fileSchema := testSchema("a", "int64", "b", "int64", "c", "utf8")

	t.Run("narrower scan is widened below a local projection", func(t *testing.T) {
		arenas := logical.NewArenas()
		scan := mustNode(t, logical.ScanCSV(arenas, "t.csv", fileSchema, logical.CSVScanOptions{}))
		setScanColumns(arenas, scan, []string{"a"})

		r := newScanProjectionRule(map[string]*ScanColumns{
			"t.csv": {Columns: mapset.NewThreadUnsafeSet("c", "a")},
		})

		changed, err := r.apply(arenas, scan)
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, 1, r.inserted)

		proj, ok := arenas.Plans.Get(scan).(logical.LocalProjection)
		require.True(t, ok)
		require.Equal(t, "[a: int64]", arenas.Schema(scan).String())

		moved := arenas.Plans.Get(proj.Input).(logical.CsvScan)
		require.Equal(t, []string{"a", "c"}, moved.WithColumns)

		// Neither node changes when the rule runs again.
		for _, n := range []arena.Node{scan, proj.Input} {
			changed, err = r.apply(arenas, n)
			require.NoError(t, err)
			require.False(t, changed)
		}
		require.Equal(t, 1, r.inserted)
	})

	t.Run("scan reading every column is widened in place", func(t *testing.T) {
		arenas := logical.NewArenas()
		scan := mustNode(t, logical.ScanParquet(arenas, "t.parquet", fileSchema, logical.ParquetScanOptions{}))
		setScanColumns(arenas, scan, []string{"a", "b", "c"})

		r := newScanProjectionRule(map[string]*ScanColumns{
			"t.parquet": {All: true, Columns: mapset.NewThreadUnsafeSet("a")},
		})

		changed, err := r.apply(arenas, scan)
		require.NoError(t, err)
		require.True(t, changed)
		require.Zero(t, r.inserted)
		require.Nil(t, arenas.Plans.Get(scan).(logical.ParquetScan).WithColumns)
	})

	t.Run("unknown path and other operators are left alone", func(t *testing.T) {
		arenas := logical.NewArenas()
		b := logical.ScanCSV(arenas, "other.csv", fileSchema, logical.CSVScanOptions{})
		scan := mustNode(t, b)
		sort := mustNode(t, b.Sort("a", false))

		r := newScanProjectionRule(map[string]*ScanColumns{})
		for _, n := range []arena.Node{scan, sort} {
			changed, err := r.apply(arenas, n)
			require.NoError(t, err)
			require.False(t, changed)
		}
	})
}
