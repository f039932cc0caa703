// Package schema describes the output of a plan node: an ordered list of
// uniquely named arrow fields.
package schema

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/pkg/errors"

	"github.com/lazyplan/lazyplan/pkg/engine/internal/datatype"
	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
)

// Schema is an ordered sequence of fields with unique names. Field order
// defines output column order.
//
// A Schema is immutable once built and may be shared between plan nodes.
type Schema struct {
	fields []arrow.Field
	index  map[string]int
}

// New returns a Schema holding fields. When a name appears more than once,
// the later field replaces the earlier one in place.
func New(fields ...arrow.Field) *Schema {
	s := &Schema{
		fields: make([]arrow.Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if i, ok := s.index[f.Name]; ok {
			s.fields[i] = f
			continue
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

// FromArrow converts an arrow schema. Duplicate field names are rejected.
func FromArrow(as *arrow.Schema) (*Schema, error) {
	fields := as.Fields()
	s := New(fields...)
	if s.Len() != len(fields) {
		return nil, errors.Wrapf(planerr.ErrShapeMismatch, "arrow schema has duplicate field names: %s", as)
	}
	return s, nil
}

// ToArrow returns s as an arrow schema.
func (s *Schema) ToArrow() *arrow.Schema {
	return arrow.NewSchema(s.Fields(), nil)
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the fields in order.
func (s *Schema) Fields() []arrow.Field {
	out := make([]arrow.Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the i-th field.
func (s *Schema) Field(i int) arrow.Field { return s.fields[i] }

// Names returns the field names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// IndexOf returns the position of the field called name.
func (s *Schema) IndexOf(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Has reports whether s has a field called name.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// FieldByName returns the field called name, or an error wrapping
// [planerr.ErrFieldNotFound].
func (s *Schema) FieldByName(name string) (arrow.Field, error) {
	i, ok := s.index[name]
	if !ok {
		return arrow.Field{}, errors.Wrapf(planerr.ErrFieldNotFound, "%s in schema %s", name, s)
	}
	return s.fields[i], nil
}

// Select returns a schema with only the fields whose names are in names,
// in the order of s. Unknown names are ignored.
func (s *Schema) Select(names []string) *Schema {
	keep := make(map[string]struct{}, len(names))
	for _, n := range names {
		keep[n] = struct{}{}
	}
	fields := make([]arrow.Field, 0, len(names))
	for _, f := range s.fields {
		if _, ok := keep[f.Name]; ok {
			fields = append(fields, f)
		}
	}
	return New(fields...)
}

// Equal reports whether s and other have the same field names and types in
// the same order.
func (s *Schema) Equal(other *Schema) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i].Name != other.fields[i].Name || !arrow.TypeEqual(s.fields[i].Type, other.fields[i].Type) {
			return false
		}
	}
	return true
}

// String returns a compact representation such as "[a: int64, b: utf8]".
func (s *Schema) String() string {
	if s == nil {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range s.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		sb.WriteString(TypeName(f.Type))
	}
	sb.WriteByte(']')
	return sb.String()
}

// TypeName returns the short name of dt as printed in schemas.
func TypeName(dt arrow.DataType) string { return datatype.Name(dt) }

// TryMerge concatenates schemas in order. A name that appears in more than
// one schema is kept once if every occurrence has the same type; otherwise
// TryMerge fails with [planerr.ErrShapeMismatch].
func TryMerge(schemas ...*Schema) (*Schema, error) {
	var fields []arrow.Field
	seen := make(map[string]arrow.DataType)

	for _, s := range schemas {
		for _, f := range s.fields {
			if dt, ok := seen[f.Name]; ok {
				if !arrow.TypeEqual(dt, f.Type) {
					return nil, errors.Wrapf(planerr.ErrShapeMismatch, "cannot merge field %q of type %s with type %s", f.Name, dt, f.Type)
				}
				continue
			}
			seen[f.Name] = f.Type
			fields = append(fields, f)
		}
	}
	return New(fields...), nil
}
