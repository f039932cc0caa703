// Package planfile reads logical plans described in YAML.
//
// A plan file names a source to scan and a list of steps applied to it:
//
//	sources:
//	  trips.csv:
//	    schema:
//	      - {name: id, type: int64}
//	      - {name: fare, type: float64}
//	scan: trips.csv
//	steps:
//	  - filter: {gt: [{col: fare}, {lit: 10}]}
//	  - select: [{col: id}]
//
// Sources listed in the file are used as declared. Other sources are resolved
// with a [catalog.Catalog].
package planfile

import (
	"bytes"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lazyplan/lazyplan/pkg/engine/catalog"
	"github.com/lazyplan/lazyplan/pkg/engine/internal/datatype"
	"github.com/lazyplan/lazyplan/pkg/engine/internal/types"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/expr"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/logical"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// File is a parsed plan file.
type File struct {
	Sources map[string]SourceDef `yaml:"sources"`
	Plan    `yaml:",inline"`
}

// SourceDef declares the schema of a source.
type SourceDef struct {
	// Format overrides the format derived from the file extension.
	Format string     `yaml:"format"`
	Schema []FieldDef `yaml:"schema"`
}

// FieldDef declares a column of a source.
type FieldDef struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

// Plan is a scan followed by steps.
type Plan struct {
	Scan  string `yaml:"scan"`
	Steps []Step `yaml:"steps"`
}

// Step is a single operation. Exactly one field is set.
type Step struct {
	Select      []Expr    `yaml:"select"`
	WithColumns []Expr    `yaml:"with_columns"`
	Filter      *Expr     `yaml:"filter"`
	GroupBy     *GroupBy  `yaml:"group_by"`
	Join        *Join     `yaml:"join"`
	Melt        *Melt     `yaml:"melt"`
	Sort        *Sort     `yaml:"sort"`
	Explode     []string  `yaml:"explode"`
	Distinct    *Distinct `yaml:"distinct"`
	Slice       *Slice    `yaml:"slice"`
	Cache       bool      `yaml:"cache"`
}

// GroupBy groups rows by Keys and evaluates Aggs per group.
type GroupBy struct {
	Keys []Expr `yaml:"keys"`
	Aggs []Expr `yaml:"aggs"`
}

// Join joins with another plan.
type Join struct {
	With    Plan   `yaml:"with"`
	LeftOn  []Expr `yaml:"left_on"`
	RightOn []Expr `yaml:"right_on"`
	How     string `yaml:"how"`
}

// Melt unpivots ValueVars.
type Melt struct {
	IDVars    []string `yaml:"id_vars"`
	ValueVars []string `yaml:"value_vars"`
}

// Sort sorts by a column.
type Sort struct {
	By      string `yaml:"by"`
	Reverse bool   `yaml:"reverse"`
}

// Distinct removes duplicate rows.
type Distinct struct {
	MaintainOrder bool     `yaml:"maintain_order"`
	Subset        []string `yaml:"subset"`
}

// Slice keeps Length rows from Offset.
type Slice struct {
	Offset int64 `yaml:"offset"`
	Length int   `yaml:"length"`
}

// Parse reads a plan file from r. Unknown fields are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty plan file")
		}
		return nil, errors.Wrap(err, "parsing plan file")
	}
	if f.Scan == "" {
		return nil, errors.New("plan file has no scan")
	}
	return &f, nil
}

// ParseBytes is like [Parse] for an in-memory plan file.
func ParseBytes(b []byte) (*File, error) { return Parse(bytes.NewReader(b)) }

// Load reads the plan file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pf, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return pf, nil
}

// Build adds the plan to arenas and returns its root. Sources not declared
// in the file are resolved with c, which may be nil when every source is
// declared.
func (f *File) Build(arenas *logical.Arenas, c catalog.Catalog) (arena.Node, error) {
	declared, err := f.declaredSources()
	if err != nil {
		return 0, err
	}
	b := &planBuilder{arenas: arenas, declared: declared, catalog: c}
	return b.build(&f.Plan)
}

func (f *File) declaredSources() (catalog.MapCatalog, error) {
	out := make(catalog.MapCatalog, len(f.Sources))
	for path, def := range f.Sources {
		format := catalog.FormatOf(path)
		switch def.Format {
		case "":
		case "csv":
			format = catalog.FormatCSV
		case "parquet":
			format = catalog.FormatParquet
		default:
			return nil, errors.Errorf("source %s: unknown format %q", path, def.Format)
		}
		if format == catalog.FormatUnknown {
			return nil, errors.Errorf("source %s: cannot derive format from path", path)
		}

		fields := make([]arrow.Field, 0, len(def.Schema))
		for _, fd := range def.Schema {
			dt, err := datatype.FromName(fd.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "source %s: column %s", path, fd.Name)
			}
			fields = append(fields, arrow.Field{Name: fd.Name, Type: dt, Nullable: fd.Nullable})
		}
		s, err := schema.FromArrow(arrow.NewSchema(fields, nil))
		if err != nil {
			return nil, errors.Wrapf(err, "source %s", path)
		}

		out[path] = &catalog.Source{
			Path:   path,
			Format: format,
			Schema: s,
			CSV:    catalog.CSVOptions{HasHeader: true},
		}
	}
	return out, nil
}

type planBuilder struct {
	arenas   *logical.Arenas
	declared catalog.MapCatalog
	catalog  catalog.Catalog
}

func (pb *planBuilder) resolve(path string) (*catalog.Source, error) {
	if src, ok := pb.declared[path]; ok {
		return src, nil
	}
	if pb.catalog == nil {
		return nil, errors.Errorf("source %s is not declared", path)
	}
	return pb.catalog.Resolve(path)
}

func (pb *planBuilder) build(p *Plan) (arena.Node, error) {
	src, err := pb.resolve(p.Scan)
	if err != nil {
		return 0, err
	}

	b := src.Scan(pb.arenas)
	for i, step := range p.Steps {
		if b, err = pb.apply(b, step); err != nil {
			return 0, errors.Wrapf(err, "step %d", i+1)
		}
	}
	return b.Node()
}

func (pb *planBuilder) apply(b *logical.Builder, s Step) (*logical.Builder, error) {
	if n := s.count(); n != 1 {
		return nil, errors.Errorf("step must hold exactly one operation, got %d", n)
	}

	switch {
	case s.Select != nil:
		b = b.Select(unwrap(s.Select)...)

	case s.WithColumns != nil:
		exprs, err := pb.lower(b, s.WithColumns)
		if err != nil {
			return nil, err
		}
		b = b.WithColumns(exprs)

	case s.Filter != nil:
		b = b.Filter(logical.AddExpr(pb.arenas.Exprs, s.Filter.Expr))

	case s.GroupBy != nil:
		keys, err := pb.lower(b, s.GroupBy.Keys)
		if err != nil {
			return nil, err
		}
		aggs, err := pb.lower(b, s.GroupBy.Aggs)
		if err != nil {
			return nil, err
		}
		b = b.GroupBy(keys, aggs, nil)

	case s.Join != nil:
		how, ok := types.ParseJoinType(s.Join.How)
		if !ok {
			return nil, errors.Errorf("unknown join type %q", s.Join.How)
		}
		other, err := pb.build(&s.Join.With)
		if err != nil {
			return nil, errors.Wrap(err, "join input")
		}
		b = b.Join(other,
			logical.AddExprs(pb.arenas.Exprs, unwrap(s.Join.LeftOn)...),
			logical.AddExprs(pb.arenas.Exprs, unwrap(s.Join.RightOn)...),
			logical.JoinOptions{How: how},
		)

	case s.Melt != nil:
		b = b.Melt(s.Melt.IDVars, s.Melt.ValueVars)

	case s.Sort != nil:
		b = b.Sort(s.Sort.By, s.Sort.Reverse)

	case s.Explode != nil:
		b = b.Explode(s.Explode...)

	case s.Distinct != nil:
		b = b.Distinct(s.Distinct.MaintainOrder, s.Distinct.Subset)

	case s.Slice != nil:
		b = b.Slice(s.Slice.Offset, s.Slice.Length)

	case s.Cache:
		b = b.Cache()
	}
	return b, b.Err()
}

// lower expands wildcards against the schema of b and adds exprs to the
// expression arena.
func (pb *planBuilder) lower(b *logical.Builder, exprs []Expr) ([]arena.Node, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	expanded, err := expr.RewriteProjections(unwrap(exprs), b.Schema())
	if err != nil {
		return nil, err
	}
	return logical.AddExprs(pb.arenas.Exprs, expanded...), nil
}

func (s Step) count() int {
	n := 0
	for _, set := range []bool{
		s.Select != nil,
		s.WithColumns != nil,
		s.Filter != nil,
		s.GroupBy != nil,
		s.Join != nil,
		s.Melt != nil,
		s.Sort != nil,
		s.Explode != nil,
		s.Distinct != nil,
		s.Slice != nil,
		s.Cache,
	} {
		if set {
			n++
		}
	}
	return n
}
