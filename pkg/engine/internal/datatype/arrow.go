// Package datatype maps planner values and type names onto arrow data types
// and implements the type-coercion rules used during schema derivation.
package datatype

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/pkg/errors"

	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
)

var (
	// Arrow lists the arrow data types the planner works with.
	Arrow = struct {
		Null    arrow.DataType
		Bool    arrow.DataType
		String  arrow.DataType
		Int32   arrow.DataType
		Int64   arrow.DataType
		Uint32  arrow.DataType
		Uint64  arrow.DataType
		Float32 arrow.DataType
		Float64 arrow.DataType
		Date    arrow.DataType
		Time    arrow.DataType
	}{
		Null:    arrow.Null,
		Bool:    arrow.FixedWidthTypes.Boolean,
		String:  arrow.BinaryTypes.String,
		Int32:   arrow.PrimitiveTypes.Int32,
		Int64:   arrow.PrimitiveTypes.Int64,
		Uint32:  arrow.PrimitiveTypes.Uint32,
		Uint64:  arrow.PrimitiveTypes.Uint64,
		Float32: arrow.PrimitiveTypes.Float32,
		Float64: arrow.PrimitiveTypes.Float64,
		Date:    arrow.FixedWidthTypes.Date32,
		Time:    arrow.FixedWidthTypes.Timestamp_ns,
	}

	byName = map[string]arrow.DataType{
		"null":      Arrow.Null,
		"bool":      Arrow.Bool,
		"boolean":   Arrow.Bool,
		"utf8":      Arrow.String,
		"string":    Arrow.String,
		"int32":     Arrow.Int32,
		"int64":     Arrow.Int64,
		"uint32":    Arrow.Uint32,
		"uint64":    Arrow.Uint64,
		"float32":   Arrow.Float32,
		"float64":   Arrow.Float64,
		"date32":    Arrow.Date,
		"timestamp": Arrow.Time,
	}

	// rank orders numeric types for supertype resolution.
	rank = map[arrow.Type]int{
		arrow.BOOL:    0,
		arrow.UINT8:   1,
		arrow.INT8:    2,
		arrow.UINT16:  3,
		arrow.INT16:   4,
		arrow.UINT32:  5,
		arrow.INT32:   6,
		arrow.UINT64:  7,
		arrow.INT64:   8,
		arrow.FLOAT32: 9,
		arrow.FLOAT64: 10,
	}
)

// FromName returns the arrow data type for a type name such as "int64",
// "utf8" or "list<float64>".
func FromName(name string) (arrow.DataType, error) {
	if dt, ok := byName[name]; ok {
		return dt, nil
	}
	if len(name) > len("list<>") && name[:5] == "list<" && name[len(name)-1] == '>' {
		inner, err := FromName(name[5 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(inner), nil
	}
	return nil, errors.Wrapf(planerr.ErrInvalidOperation, "unknown data type %q", name)
}

// FromValue returns the arrow data type of a Go literal value.
func FromValue(v any) (arrow.DataType, error) {
	switch v.(type) {
	case nil:
		return Arrow.Null, nil
	case bool:
		return Arrow.Bool, nil
	case string:
		return Arrow.String, nil
	case int32:
		return Arrow.Int32, nil
	case int, int64:
		return Arrow.Int64, nil
	case uint32:
		return Arrow.Uint32, nil
	case uint64:
		return Arrow.Uint64, nil
	case float32:
		return Arrow.Float32, nil
	case float64:
		return Arrow.Float64, nil
	case time.Time:
		return Arrow.Time, nil
	default:
		return nil, errors.Wrapf(planerr.ErrInvalidOperation, "unsupported literal type %T", v)
	}
}

// IsNumeric reports whether dt is an integer or floating point type.
func IsNumeric(dt arrow.DataType) bool {
	_, ok := rank[dt.ID()]
	return ok && dt.ID() != arrow.BOOL
}

// Supertype returns the type both a and b can be losslessly cast to.
func Supertype(a, b arrow.DataType) (arrow.DataType, error) {
	switch {
	case arrow.TypeEqual(a, b):
		return a, nil
	case a.ID() == arrow.NULL:
		return b, nil
	case b.ID() == arrow.NULL:
		return a, nil
	}

	ra, okA := rank[a.ID()]
	rb, okB := rank[b.ID()]
	if !okA || !okB {
		return nil, errors.Wrapf(planerr.ErrInvalidOperation, "failed to determine supertype of %s and %s", a, b)
	}

	hi, lo := a, b
	if rb > ra {
		hi, lo = b, a
	}

	switch {
	case hi.ID() == arrow.FLOAT32 && rank[lo.ID()] >= rank[arrow.UINT32]:
		// float32 cannot hold 32 or 64 bit integers exactly.
		return Arrow.Float64, nil
	case isSigned(hi) && isUnsigned(lo) && rank[lo.ID()] == rank[hi.ID()]-1:
		return widerSigned(hi.ID()), nil
	case isUnsigned(hi) && isSigned(lo):
		return widerSigned(hi.ID()), nil
	}
	return hi, nil
}

// widerSigned returns the smallest signed type able to hold every value of a
// signed or unsigned integer of the width of id.
func widerSigned(id arrow.Type) arrow.DataType {
	switch id {
	case arrow.INT8, arrow.UINT8:
		return arrow.PrimitiveTypes.Int16
	case arrow.INT16, arrow.UINT16:
		return arrow.PrimitiveTypes.Int32
	case arrow.INT32, arrow.UINT32:
		return Arrow.Int64
	default:
		return Arrow.Float64
	}
}

func isUnsigned(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	}
	return false
}

func isSigned(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		return true
	}
	return false
}

// ListInner returns the element type of a list type, or dt itself when dt
// is not a list.
func ListInner(dt arrow.DataType) arrow.DataType {
	if l, ok := dt.(*arrow.ListType); ok {
		return l.Elem()
	}
	return dt
}

// Name returns the short name of dt as accepted by [FromName].
func Name(dt arrow.DataType) string {
	if l, ok := dt.(*arrow.ListType); ok {
		return fmt.Sprintf("list<%s>", Name(l.Elem()))
	}
	for name, t := range byName {
		if arrow.TypeEqual(t, dt) && name != "boolean" && name != "string" {
			return name
		}
	}
	return dt.String()
}
