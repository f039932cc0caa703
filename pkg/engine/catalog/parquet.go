package catalog

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
	"github.com/pkg/errors"

	"github.com/lazyplan/lazyplan/pkg/engine/internal/datatype"
	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// ReadParquetSchema reads the schema from the footer of the Parquet file in
// r. Repeated columns and LIST groups become arrow lists; other nested
// groups are not supported.
func ReadParquetSchema(r io.ReaderAt, size int64) (*schema.Schema, error) {
	f, err := parquet.OpenFile(r, size, parquet.SkipPageIndex(true), parquet.SkipBloomFilters(true))
	if err != nil {
		return nil, errors.Wrap(err, "opening parquet file")
	}

	columns := f.Schema().Fields()
	fields := make([]arrow.Field, 0, len(columns))
	for _, col := range columns {
		dt, err := parquetFieldType(col)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", col.Name())
		}
		fields = append(fields, arrow.Field{Name: col.Name(), Type: dt, Nullable: col.Optional()})
	}
	return schema.FromArrow(arrow.NewSchema(fields, nil))
}

func parquetFieldType(node parquet.Node) (arrow.DataType, error) {
	if !node.Leaf() {
		return parquetGroupType(node)
	}

	dt, err := parquetLeafType(node.Type())
	if err != nil {
		return nil, err
	}
	if node.Repeated() {
		return arrow.ListOf(dt), nil
	}
	return dt, nil
}

// parquetGroupType handles the three-level LIST layout:
//
//	optional group name (LIST) { repeated group list { element } }
func parquetGroupType(node parquet.Node) (arrow.DataType, error) {
	lt := node.Type().LogicalType()
	if lt == nil || lt.List == nil {
		return nil, errors.Wrap(planerr.ErrNotImplemented, "nested parquet groups")
	}

	children := node.Fields()
	if len(children) != 1 || !children[0].Repeated() {
		return nil, errors.Wrap(planerr.ErrShapeMismatch, "malformed parquet list")
	}

	elem := parquet.Node(children[0])
	if !elem.Leaf() {
		inner := elem.Fields()
		if len(inner) != 1 {
			return nil, errors.Wrap(planerr.ErrShapeMismatch, "malformed parquet list element")
		}
		elem = inner[0]
	}
	if !elem.Leaf() {
		return nil, errors.Wrap(planerr.ErrNotImplemented, "parquet lists of nested groups")
	}

	dt, err := parquetLeafType(elem.Type())
	if err != nil {
		return nil, err
	}
	return arrow.ListOf(dt), nil
}

func parquetLeafType(t parquet.Type) (arrow.DataType, error) {
	lt := t.LogicalType()
	if lt != nil && lt.Decimal != nil {
		return nil, errors.Wrap(planerr.ErrNotImplemented, "parquet decimals")
	}

	switch t.Kind() {
	case parquet.Boolean:
		return datatype.Arrow.Bool, nil

	case parquet.Int32:
		switch {
		case lt == nil:
			return datatype.Arrow.Int32, nil
		case lt.Date != nil:
			return datatype.Arrow.Date, nil
		case lt.Integer != nil:
			return parquetIntType(lt.Integer), nil
		}
		return datatype.Arrow.Int32, nil

	case parquet.Int64:
		switch {
		case lt == nil:
			return datatype.Arrow.Int64, nil
		case lt.Timestamp != nil:
			return parquetTimestampType(lt.Timestamp), nil
		case lt.Integer != nil:
			return parquetIntType(lt.Integer), nil
		}
		return datatype.Arrow.Int64, nil

	case parquet.Int96:
		return datatype.Arrow.Time, nil

	case parquet.Float:
		return datatype.Arrow.Float32, nil

	case parquet.Double:
		return datatype.Arrow.Float64, nil

	case parquet.ByteArray:
		if lt != nil && (lt.UTF8 != nil || lt.Enum != nil || lt.Json != nil) {
			return datatype.Arrow.String, nil
		}
		return arrow.BinaryTypes.Binary, nil

	case parquet.FixedLenByteArray:
		return &arrow.FixedSizeBinaryType{ByteWidth: t.Length()}, nil
	}
	return nil, errors.Wrapf(planerr.ErrNotImplemented, "parquet type %s", t)
}

func parquetIntType(it *format.IntType) arrow.DataType {
	switch {
	case it.IsSigned && it.BitWidth <= 8:
		return arrow.PrimitiveTypes.Int8
	case it.IsSigned && it.BitWidth <= 16:
		return arrow.PrimitiveTypes.Int16
	case it.IsSigned && it.BitWidth <= 32:
		return datatype.Arrow.Int32
	case it.IsSigned:
		return datatype.Arrow.Int64
	case it.BitWidth <= 8:
		return arrow.PrimitiveTypes.Uint8
	case it.BitWidth <= 16:
		return arrow.PrimitiveTypes.Uint16
	case it.BitWidth <= 32:
		return datatype.Arrow.Uint32
	}
	return datatype.Arrow.Uint64
}

func parquetTimestampType(ts *format.TimestampType) arrow.DataType {
	switch {
	case ts.Unit.Millis != nil:
		return arrow.FixedWidthTypes.Timestamp_ms
	case ts.Unit.Micros != nil:
		return arrow.FixedWidthTypes.Timestamp_us
	}
	return datatype.Arrow.Time
}
