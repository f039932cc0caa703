package logical

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/pkg/errors"

	"github.com/lazyplan/lazyplan/pkg/engine/internal/datatype"
	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
	"github.com/lazyplan/lazyplan/pkg/engine/internal/types"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/expr"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// RightSuffix is appended to right-side join columns whose names collide
// with a left-side column.
const RightSuffix = "_right"

// Builder adds plan nodes on top of a root node. Every method returns a
// builder rooted at the node it added. Errors are sticky: once a method
// fails, later calls are no-ops and the error is returned by [Builder.Node]
// and [Builder.Build].
type Builder struct {
	arenas *Arenas
	root   arena.Node
	err    error
}

// NewBuilder returns a builder rooted at an existing plan node.
func NewBuilder(arenas *Arenas, root arena.Node) *Builder {
	return &Builder{arenas: arenas, root: root}
}

// CSVScanOptions configures [ScanCSV].
type CSVScanOptions struct {
	HasHeader      bool
	Delimiter      byte
	IgnoreErrors   bool
	SkipRows       int
	StopAfterNRows int
	Cache          bool
}

// ScanCSV starts a plan reading all columns of a CSV file with the given
// schema.
func ScanCSV(arenas *Arenas, path string, fileSchema *schema.Schema, opts CSVScanOptions) *Builder {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	return NewBuilder(arenas, arenas.Plans.Add(CsvScan{
		Path:           path,
		FileSchema:     fileSchema,
		HasHeader:      opts.HasHeader,
		Delimiter:      opts.Delimiter,
		IgnoreErrors:   opts.IgnoreErrors,
		SkipRows:       opts.SkipRows,
		StopAfterNRows: opts.StopAfterNRows,
		Cache:          opts.Cache,
	}))
}

// ParquetScanOptions configures [ScanParquet].
type ParquetScanOptions struct {
	StopAfterNRows int
	Cache          bool
}

// ScanParquet starts a plan reading all columns of a Parquet file with the
// given schema.
func ScanParquet(arenas *Arenas, path string, fileSchema *schema.Schema, opts ParquetScanOptions) *Builder {
	return NewBuilder(arenas, arenas.Plans.Add(ParquetScan{
		Path:           path,
		FileSchema:     fileSchema,
		StopAfterNRows: opts.StopAfterNRows,
		Cache:          opts.Cache,
	}))
}

// ScanDataFrame starts a plan reading an in-memory record.
func ScanDataFrame(arenas *Arenas, rec arrow.Record) *Builder {
	s, err := schema.FromArrow(rec.Schema())
	if err != nil {
		return &Builder{arenas: arenas, err: err}
	}
	return NewBuilder(arenas, arenas.Plans.Add(DataFrameScan{Record: rec, RecordSchema: s}))
}

// Arenas returns the arenas the builder adds to.
func (b *Builder) Arenas() *Arenas { return b.arenas }

// Err returns the first error encountered while building.
func (b *Builder) Err() error { return b.err }

// Node returns the handle of the current root.
func (b *Builder) Node() (arena.Node, error) {
	return b.root, b.err
}

// Build takes the current root out of the plan arena and returns it. The
// handle of the root is left taken.
func (b *Builder) Build() (Plan, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.arenas.Plans.Take(b.root), nil
}

// Schema returns the output schema of the current root, or nil after an
// error.
func (b *Builder) Schema() *schema.Schema {
	if b.err != nil {
		return nil
	}
	return b.arenas.Schema(b.root)
}

func (b *Builder) add(p Plan) *Builder {
	return &Builder{arenas: b.arenas, root: b.arenas.Plans.Add(p)}
}

func (b *Builder) fail(err error) *Builder {
	return &Builder{arenas: b.arenas, root: b.root, err: err}
}

// Project evaluates exprs against the current root. An empty list selects
// everything and adds no node.
func (b *Builder) Project(exprs []arena.Node) *Builder {
	if b.err != nil || len(exprs) == 0 {
		return b
	}
	s, err := ExprsToSchema(b.arenas.Exprs, exprs, b.Schema(), ContextDefault)
	if err != nil {
		return b.fail(err)
	}
	return b.add(Projection{Exprs: exprs, Input: b.root, schema: s})
}

// ProjectLocal is like [Builder.Project] but adds a [LocalProjection].
func (b *Builder) ProjectLocal(exprs []arena.Node) *Builder {
	if b.err != nil || len(exprs) == 0 {
		return b
	}
	s, err := ExprsToSchema(b.arenas.Exprs, exprs, b.Schema(), ContextDefault)
	if err != nil {
		return b.fail(err)
	}
	return b.add(LocalProjection{Exprs: exprs, Input: b.root, schema: s})
}

// Select expands wildcards in exprs against the current schema, lowers them
// and projects them.
func (b *Builder) Select(exprs ...expr.Expr) *Builder {
	if b.err != nil {
		return b
	}
	expanded, err := expr.RewriteProjections(exprs, b.Schema())
	if err != nil {
		return b.fail(err)
	}
	return b.Project(AddExprs(b.arenas.Exprs, expanded...))
}

// WithColumns adds the columns produced by exprs, replacing input columns of
// the same name in place.
func (b *Builder) WithColumns(exprs []arena.Node) *Builder {
	if b.err != nil {
		return b
	}
	in := b.Schema()
	fields := in.Fields()
	for _, n := range exprs {
		f, err := ToField(b.arenas.Exprs, n, in, ContextDefault)
		if err != nil {
			return b.fail(err)
		}
		if i, ok := in.IndexOf(f.Name); ok {
			fields[i] = f
			continue
		}
		fields = append(fields, f)
	}
	return b.add(HStack{Input: b.root, Exprs: exprs, schema: schema.New(fields...)})
}

// Filter keeps the rows for which predicate holds.
func (b *Builder) Filter(predicate arena.Node) *Builder {
	if b.err != nil {
		return b
	}
	if _, err := ToField(b.arenas.Exprs, predicate, b.Schema(), ContextDefault); err != nil {
		return b.fail(err)
	}
	return b.add(Selection{Input: b.root, Predicate: predicate})
}

// GroupBy groups by keys and evaluates aggs per group. The output holds the
// keys followed by the aggregations. apply may be nil.
func (b *Builder) GroupBy(keys, aggs []arena.Node, apply DataFrameFunc) *Builder {
	if b.err != nil {
		return b
	}
	in := b.Schema()
	keySchema, err := ExprsToSchema(b.arenas.Exprs, keys, in, ContextDefault)
	if err != nil {
		return b.fail(err)
	}
	aggSchema, err := ExprsToSchema(b.arenas.Exprs, aggs, in, ContextAggregation)
	if err != nil {
		return b.fail(err)
	}
	s, err := schema.TryMerge(keySchema, aggSchema)
	if err != nil {
		return b.fail(err)
	}
	return b.add(Aggregate{Input: b.root, Keys: keys, Aggs: aggs, Apply: apply, schema: s})
}

// JoinOptions configures [Builder.Join].
type JoinOptions struct {
	How           types.JoinType
	AllowParallel bool
	ForceParallel bool
}

// Join joins the current root with other. Right-side key columns are
// dropped from the output; other right-side columns whose names exist on the
// left get [RightSuffix] appended.
//
// Join panics if a right key is neither a column reference nor an alias.
func (b *Builder) Join(other arena.Node, leftOn, rightOn []arena.Node, opts JoinOptions) *Builder {
	if b.err != nil {
		return b
	}
	if len(leftOn) != len(rightOn) {
		return b.fail(errors.Wrapf(planerr.ErrShapeMismatch, "join has %d left keys and %d right keys", len(leftOn), len(rightOn)))
	}
	left, right := b.Schema(), b.arenas.Schema(other)
	for _, n := range leftOn {
		if _, err := ToField(b.arenas.Exprs, n, left, ContextDefault); err != nil {
			return b.fail(err)
		}
	}

	rightKeys := make(map[string]struct{}, len(rightOn))
	for _, n := range rightOn {
		if _, err := ToField(b.arenas.Exprs, n, right, ContextDefault); err != nil {
			return b.fail(err)
		}
		rightKeys[JoinKeyName(b.arenas.Exprs, n)] = struct{}{}
	}

	fields := left.Fields()
	for _, f := range right.Fields() {
		if _, ok := rightKeys[f.Name]; ok {
			continue
		}
		if left.Has(f.Name) {
			f.Name += RightSuffix
		}
		fields = append(fields, f)
	}

	return b.add(Join{
		Left:          b.root,
		Right:         other,
		How:           opts.How,
		LeftOn:        leftOn,
		RightOn:       rightOn,
		AllowParallel: opts.AllowParallel,
		ForceParallel: opts.ForceParallel,
		schema:        schema.New(fields...),
	})
}

// JoinKeyName returns the column name a join key resolves to. It panics if
// the key is neither a column reference nor an alias.
func JoinKeyName(exprs *arena.Arena[Expr], n arena.Node) string {
	switch e := exprs.Get(n).(type) {
	case ColumnExpr:
		return e.Name
	case AliasExpr:
		return e.Name
	}
	panic(fmt.Sprintf("could not determine join column name of %s", FormatExpr(exprs, n)))
}

// MeltVariableName and MeltValueName name the columns added by [Builder.Melt].
const (
	MeltVariableName = "variable"
	MeltValueName    = "value"
)

// Melt unpivots valueVars. The output keeps every other input column
// followed by a "variable" column holding the source column name and a
// "value" column holding its value.
func (b *Builder) Melt(idVars, valueVars []string) *Builder {
	if b.err != nil {
		return b
	}
	s, err := meltSchema(b.Schema(), idVars, valueVars)
	if err != nil {
		return b.fail(err)
	}
	return b.add(Melt{Input: b.root, IDVars: idVars, ValueVars: valueVars, schema: s})
}

func meltSchema(in *schema.Schema, idVars, valueVars []string) (*schema.Schema, error) {
	if len(valueVars) == 0 {
		return nil, errors.Wrap(planerr.ErrNoData, "melt requires at least one value column")
	}
	for _, name := range idVars {
		if _, err := in.FieldByName(name); err != nil {
			return nil, err
		}
	}

	isValue := make(map[string]struct{}, len(valueVars))
	var valueType arrow.DataType
	for _, name := range valueVars {
		f, err := in.FieldByName(name)
		if err != nil {
			return nil, err
		}
		isValue[name] = struct{}{}
		if valueType == nil {
			valueType = f.Type
			continue
		}
		if valueType, err = datatype.Supertype(valueType, f.Type); err != nil {
			return nil, err
		}
	}

	fields := make([]arrow.Field, 0, in.Len()-len(valueVars)+2)
	for _, f := range in.Fields() {
		if _, ok := isValue[f.Name]; !ok {
			fields = append(fields, f)
		}
	}
	fields = append(fields,
		arrow.Field{Name: MeltVariableName, Type: datatype.Arrow.String},
		arrow.Field{Name: MeltValueName, Type: valueType, Nullable: true},
	)
	return schema.FromArrow(arrow.NewSchema(fields, nil))
}

// Sort sorts rows by a column.
func (b *Builder) Sort(byColumn string, reverse bool) *Builder {
	if b.err != nil {
		return b
	}
	if _, err := b.Schema().FieldByName(byColumn); err != nil {
		return b.fail(err)
	}
	return b.add(Sort{Input: b.root, ByColumn: byColumn, Reverse: reverse})
}

// Explode flattens list columns into rows.
func (b *Builder) Explode(columns ...string) *Builder {
	if b.err != nil {
		return b
	}
	for _, c := range columns {
		if _, err := b.Schema().FieldByName(c); err != nil {
			return b.fail(err)
		}
	}
	return b.add(Explode{Input: b.root, Columns: columns})
}

// Cache marks the current plan as reusable.
func (b *Builder) Cache() *Builder {
	if b.err != nil {
		return b
	}
	return b.add(Cache{Input: b.root})
}

// Distinct removes duplicate rows, comparing the columns in subset or all
// columns when subset is nil.
func (b *Builder) Distinct(maintainOrder bool, subset []string) *Builder {
	if b.err != nil {
		return b
	}
	for _, c := range subset {
		if _, err := b.Schema().FieldByName(c); err != nil {
			return b.fail(err)
		}
	}
	return b.add(Distinct{Input: b.root, MaintainOrder: maintainOrder, Subset: subset})
}

// Slice keeps length rows starting at offset.
func (b *Builder) Slice(offset int64, length int) *Builder {
	if b.err != nil {
		return b
	}
	return b.add(Slice{Input: b.root, Offset: offset, Length: length})
}

// MapOptions configures [Builder.Map].
type MapOptions struct {
	// ProjectionPushdown allows the optimizer to prune the input columns of
	// the function.
	ProjectionPushdown bool
	PredicatePushdown  bool
	// OutputSchema is the schema the function produces; nil keeps the input
	// schema.
	OutputSchema *schema.Schema
}

// Map applies fn to the current plan.
func (b *Builder) Map(fn DataFrameFunc, opts MapOptions) *Builder {
	if b.err != nil {
		return b
	}
	return b.add(Udf{
		Input:              b.root,
		Function:           fn,
		PredicatePushdown:  opts.PredicatePushdown,
		ProjectionPushdown: opts.ProjectionPushdown,
		OutputSchema:       opts.OutputSchema,
	})
}
