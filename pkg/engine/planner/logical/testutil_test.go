package logical

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/lazyplan/lazyplan/pkg/engine/internal/datatype"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

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
