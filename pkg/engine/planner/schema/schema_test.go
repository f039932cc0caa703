package schema

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"github.com/lazyplan/lazyplan/pkg/engine/internal/datatype"
	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
)

func TestSchema(t *testing.T) {
	s := New(
		arrow.Field{Name: "a", Type: datatype.Arrow.Int64},
		arrow.Field{Name: "b", Type: datatype.Arrow.String},
	)

	require.Equal(t, 2, s.Len())
	require.Equal(t, []string{"a", "b"}, s.Names())
	require.Equal(t, "[a: int64, b: utf8]", s.String())

	f, err := s.FieldByName("b")
	require.NoError(t, err)
	require.Equal(t, datatype.Arrow.String, f.Type)

	_, err = s.FieldByName("c")
	require.ErrorIs(t, err, planerr.ErrFieldNotFound)
	require.ErrorContains(t, err, "c in schema")

	idx, ok := s.IndexOf("b")
	require.True(t, ok)
	require.Equal(t, 1, idx)
}

func TestSchema_DuplicatesReplaceInPlace(t *testing.T) {
	s := New(
		arrow.Field{Name: "a", Type: datatype.Arrow.Int64},
		arrow.Field{Name: "b", Type: datatype.Arrow.String},
		arrow.Field{Name: "a", Type: datatype.Arrow.Float64},
	)
	require.Equal(t, "[a: float64, b: utf8]", s.String())
}

func TestSchema_Select(t *testing.T) {
	s := New(
		arrow.Field{Name: "a", Type: datatype.Arrow.Int64},
		arrow.Field{Name: "b", Type: datatype.Arrow.String},
		arrow.Field{Name: "c", Type: datatype.Arrow.Bool},
	)
	require.Equal(t, []string{"a", "c"}, s.Select([]string{"c", "a", "missing"}).Names())
}

func TestTryMerge(t *testing.T) {
	left := New(
		arrow.Field{Name: "a", Type: datatype.Arrow.Int64},
		arrow.Field{Name: "b", Type: datatype.Arrow.String},
	)
	right := New(
		arrow.Field{Name: "b", Type: datatype.Arrow.String},
		arrow.Field{Name: "c", Type: datatype.Arrow.Float64},
	)

	merged, err := TryMerge(left, right)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, merged.Names())

	conflicting := New(arrow.Field{Name: "a", Type: datatype.Arrow.String})
	_, err = TryMerge(left, conflicting)
	require.ErrorIs(t, err, planerr.ErrShapeMismatch)
}

func TestArrowRoundTrip(t *testing.T) {
	s := New(
		arrow.Field{Name: "a", Type: datatype.Arrow.Int64},
		arrow.Field{Name: "b", Type: datatype.Arrow.String, Nullable: true},
	)

	back, err := FromArrow(s.ToArrow())
	require.NoError(t, err)
	require.True(t, s.Equal(back))

	dup := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: datatype.Arrow.Int64},
		{Name: "a", Type: datatype.Arrow.Int64},
	}, nil)
	_, err = FromArrow(dup)
	require.ErrorIs(t, err, planerr.ErrShapeMismatch)
}
