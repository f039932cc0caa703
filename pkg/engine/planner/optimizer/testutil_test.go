package optimizer

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/lazyplan/lazyplan/pkg/engine/internal/datatype"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/logical"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// testSchema builds a schema from name/type pairs.
func testSchema(fields ...string) *schema.Schema {
	out := make([]arrow.Field, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		dt, err := datatype.FromName(fields[i+1])
		if err != nil {
			panic(err)
		}
		out = append(out, arrow.Field{Name: fields[i], Type: dt, Nullable: true})
	}
	return schema.New(out...)
}

func testRecord(t *testing.T) arrow.Record {
	t.Helper()

	s := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: datatype.Arrow.Int64, Nullable: true},
		{Name: "b", Type: datatype.Arrow.String, Nullable: true},
		{Name: "c", Type: datatype.Arrow.Float64, Nullable: true},
	}, nil)

	rb := array.NewRecordBuilder(memory.NewGoAllocator(), s)
	defer rb.Release()

	rb.Field(0).(*array.Int64Builder).AppendValues([]int64{3, 1, 2}, nil)
	rb.Field(1).(*array.StringBuilder).AppendValues([]string{"x", "y", "x"}, nil)
	rb.Field(2).(*array.Float64Builder).AppendValues([]float64{0.5, 1.5, 2.5}, nil)

	rec := rb.NewRecord()
	t.Cleanup(rec.Release)
	return rec
}

// scannedColumns returns the columns read by every file scan reachable from
// root, keyed by path. Paths scanned more than once get one entry per scan.
func scannedColumns(arenas *logical.Arenas, root arena.Node) map[string][][]string {
	out := make(map[string][][]string)
	for _, p := range logical.NewPlanIter(arenas.Plans, root).All() {
		switch p := p.(type) {
		case logical.CsvScan:
			out[p.Path] = append(out[p.Path], p.WithColumns)
		case logical.ParquetScan:
			out[p.Path] = append(out[p.Path], p.WithColumns)
		}
	}
	return out
}

// countPlans returns how many nodes of type typ are reachable from root.
func countPlans(arenas *logical.Arenas, root arena.Node, typ logical.PlanType) int {
	n := 0
	for _, p := range logical.NewPlanIter(arenas.Plans, root).All() {
		if p.Type() == typ {
			n++
		}
	}
	return n
}

func mustNode(t *testing.T, b *logical.Builder) arena.Node {
	t.Helper()
	n, err := b.Node()
	require.NoError(t, err)
	return n
}

func setScanColumns(arenas *logical.Arenas, n arena.Node, cols []string) {
	switch scan := arenas.Plans.Get(n).(type) {
	case logical.CsvScan:
		scan.WithColumns = cols
		arenas.Plans.Replace(n, scan)
	case logical.ParquetScan:
		scan.WithColumns = cols
		arenas.Plans.Replace(n, scan)
	}
}
