// Package logical holds the arena-indexed logical plan: relational operators
// and scalar expressions stored in two arenas and referencing each other by
// handle. It derives output schemas, builds plans and walks them.
package logical

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/lazyplan/lazyplan/pkg/engine/internal/types"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// PlanType identifies the variant of a [Plan].
type PlanType uint32

const (
	_ PlanType = iota // zero-value is an invalid type

	PlanTypeMelt
	PlanTypeSlice
	PlanTypeSelection
	PlanTypeCsvScan
	PlanTypeParquetScan
	PlanTypeDataFrameScan
	PlanTypeProjection
	PlanTypeLocalProjection
	PlanTypeSort
	PlanTypeExplode
	PlanTypeCache
	PlanTypeAggregate
	PlanTypeJoin
	PlanTypeHStack
	PlanTypeDistinct
	PlanTypeUdf
)

var planTypeNames = [...]string{
	PlanTypeMelt:            "Melt",
	PlanTypeSlice:           "Slice",
	PlanTypeSelection:       "Selection",
	PlanTypeCsvScan:         "CsvScan",
	PlanTypeParquetScan:     "ParquetScan",
	PlanTypeDataFrameScan:   "DataFrameScan",
	PlanTypeProjection:      "Projection",
	PlanTypeLocalProjection: "LocalProjection",
	PlanTypeSort:            "Sort",
	PlanTypeExplode:         "Explode",
	PlanTypeCache:           "Cache",
	PlanTypeAggregate:       "Aggregate",
	PlanTypeJoin:            "Join",
	PlanTypeHStack:          "HStack",
	PlanTypeDistinct:        "Distinct",
	PlanTypeUdf:             "Udf",
}

// String returns the name of the variant.
func (t PlanType) String() string {
	if int(t) > 0 && int(t) < len(planTypeNames) {
		return planTypeNames[t]
	}
	return fmt.Sprintf("PlanType(%d)", t)
}

// Plan is a logical operator stored in a plan arena. The set of
// implementations is closed.
type Plan interface {
	Type() PlanType
	// Schema returns the output schema of the operator. Schema does not
	// modify plans.
	Schema(plans *arena.Arena[Plan]) *schema.Schema
	isPlan()
}

// DataFrameFunc is a user-defined function over a whole batch of rows.
type DataFrameFunc func(arrow.Record) (arrow.Record, error)

type (
	// Melt unpivots ValueVars into "variable" and "value" columns.
	Melt struct {
		Input     arena.Node
		IDVars    []string
		ValueVars []string
		schema    *schema.Schema
	}

	// Slice keeps Length rows starting at Offset.
	Slice struct {
		Input  arena.Node
		Offset int64
		Length int
	}

	// Selection keeps the rows for which Predicate is true.
	Selection struct {
		Input     arena.Node
		Predicate arena.Node
	}

	// CsvScan reads a CSV file. A nil WithColumns reads every column of
	// FileSchema; otherwise WithColumns lists the columns to read in file
	// order. A StopAfterNRows of zero reads all rows.
	CsvScan struct {
		Path           string
		FileSchema     *schema.Schema
		HasHeader      bool
		Delimiter      byte
		IgnoreErrors   bool
		SkipRows       int
		StopAfterNRows int
		WithColumns    []string
		Predicate      *arena.Node
		Aggregate      []arena.Node
		Cache          bool
	}

	// ParquetScan reads a Parquet file. Column selection works as for
	// [CsvScan].
	ParquetScan struct {
		Path           string
		FileSchema     *schema.Schema
		WithColumns    []string
		Predicate      *arena.Node
		Aggregate      []arena.Node
		StopAfterNRows int
		Cache          bool
	}

	// DataFrameScan reads an in-memory record. A nil Projection reads every
	// column; otherwise Projection holds column references and the output
	// follows their order.
	DataFrameScan struct {
		Record       arrow.Record
		RecordSchema *schema.Schema
		Projection   []arena.Node
		Selection    *arena.Node
		projected    *schema.Schema
	}

	// Projection evaluates Exprs against its input.
	Projection struct {
		Exprs  []arena.Node
		Input  arena.Node
		schema *schema.Schema
	}

	// LocalProjection is a projection introduced by the optimizer to narrow
	// or reorder columns in memory.
	LocalProjection struct {
		Exprs  []arena.Node
		Input  arena.Node
		schema *schema.Schema
	}

	Sort struct {
		Input    arena.Node
		ByColumn string
		Reverse  bool
	}

	Explode struct {
		Input   arena.Node
		Columns []string
	}

	// Cache marks a subplan whose result may be reused.
	Cache struct {
		Input arena.Node
	}

	// Aggregate groups its input by Keys and evaluates Aggs per group. When
	// Apply is set it is called per group instead.
	Aggregate struct {
		Input  arena.Node
		Keys   []arena.Node
		Aggs   []arena.Node
		Apply  DataFrameFunc
		schema *schema.Schema
	}

	Join struct {
		Left          arena.Node
		Right         arena.Node
		How           types.JoinType
		LeftOn        []arena.Node
		RightOn       []arena.Node
		AllowParallel bool
		ForceParallel bool
		schema        *schema.Schema
	}

	// HStack adds or replaces columns of its input.
	HStack struct {
		Input  arena.Node
		Exprs  []arena.Node
		schema *schema.Schema
	}

	// Distinct removes duplicate rows. A nil Subset compares all columns.
	Distinct struct {
		Input         arena.Node
		MaintainOrder bool
		Subset        []string
	}

	// Udf applies Function to its input. OutputSchema is nil when the
	// function keeps the input schema.
	Udf struct {
		Input              arena.Node
		Function           DataFrameFunc
		PredicatePushdown  bool
		ProjectionPushdown bool
		OutputSchema       *schema.Schema
	}
)

func (Melt) Type() PlanType            { return PlanTypeMelt }
func (Slice) Type() PlanType           { return PlanTypeSlice }
func (Selection) Type() PlanType       { return PlanTypeSelection }
func (CsvScan) Type() PlanType         { return PlanTypeCsvScan }
func (ParquetScan) Type() PlanType     { return PlanTypeParquetScan }
func (DataFrameScan) Type() PlanType   { return PlanTypeDataFrameScan }
func (Projection) Type() PlanType      { return PlanTypeProjection }
func (LocalProjection) Type() PlanType { return PlanTypeLocalProjection }
func (Sort) Type() PlanType            { return PlanTypeSort }
func (Explode) Type() PlanType         { return PlanTypeExplode }
func (Cache) Type() PlanType           { return PlanTypeCache }
func (Aggregate) Type() PlanType       { return PlanTypeAggregate }
func (Join) Type() PlanType            { return PlanTypeJoin }
func (HStack) Type() PlanType          { return PlanTypeHStack }
func (Distinct) Type() PlanType        { return PlanTypeDistinct }
func (Udf) Type() PlanType             { return PlanTypeUdf }

func (Melt) isPlan()            {}
func (Slice) isPlan()           {}
func (Selection) isPlan()       {}
func (CsvScan) isPlan()         {}
func (ParquetScan) isPlan()     {}
func (DataFrameScan) isPlan()   {}
func (Projection) isPlan()      {}
func (LocalProjection) isPlan() {}
func (Sort) isPlan()            {}
func (Explode) isPlan()         {}
func (Cache) isPlan()           {}
func (Aggregate) isPlan()       {}
func (Join) isPlan()            {}
func (HStack) isPlan()          {}
func (Distinct) isPlan()        {}
func (Udf) isPlan()             {}

func inputSchema(plans *arena.Arena[Plan], input arena.Node) *schema.Schema {
	return plans.Get(input).Schema(plans)
}

func (p Melt) Schema(*arena.Arena[Plan]) *schema.Schema            { return p.schema }
func (p Projection) Schema(*arena.Arena[Plan]) *schema.Schema      { return p.schema }
func (p LocalProjection) Schema(*arena.Arena[Plan]) *schema.Schema { return p.schema }
func (p Aggregate) Schema(*arena.Arena[Plan]) *schema.Schema       { return p.schema }
func (p Join) Schema(*arena.Arena[Plan]) *schema.Schema            { return p.schema }
func (p HStack) Schema(*arena.Arena[Plan]) *schema.Schema          { return p.schema }

func (p Slice) Schema(plans *arena.Arena[Plan]) *schema.Schema     { return inputSchema(plans, p.Input) }
func (p Selection) Schema(plans *arena.Arena[Plan]) *schema.Schema { return inputSchema(plans, p.Input) }
func (p Sort) Schema(plans *arena.Arena[Plan]) *schema.Schema      { return inputSchema(plans, p.Input) }
func (p Explode) Schema(plans *arena.Arena[Plan]) *schema.Schema   { return inputSchema(plans, p.Input) }
func (p Cache) Schema(plans *arena.Arena[Plan]) *schema.Schema     { return inputSchema(plans, p.Input) }
func (p Distinct) Schema(plans *arena.Arena[Plan]) *schema.Schema  { return inputSchema(plans, p.Input) }

// Schema returns the file schema narrowed to WithColumns.
func (p CsvScan) Schema(*arena.Arena[Plan]) *schema.Schema {
	return scanSchema(p.FileSchema, p.WithColumns)
}

// Schema returns the file schema narrowed to WithColumns.
func (p ParquetScan) Schema(*arena.Arena[Plan]) *schema.Schema {
	return scanSchema(p.FileSchema, p.WithColumns)
}

func scanSchema(file *schema.Schema, withColumns []string) *schema.Schema {
	if withColumns == nil {
		return file
	}
	return file.Select(withColumns)
}

// Schema returns the record schema, or the projected columns when a
// projection is set.
func (p DataFrameScan) Schema(*arena.Arena[Plan]) *schema.Schema {
	if p.Projection != nil && p.projected != nil {
		return p.projected
	}
	return p.RecordSchema
}

// Schema returns OutputSchema, falling back to the input schema.
func (p Udf) Schema(plans *arena.Arena[Plan]) *schema.Schema {
	if p.OutputSchema != nil {
		return p.OutputSchema
	}
	return inputSchema(plans, p.Input)
}

// WithProjection returns a copy of p reading only the columns referenced by
// projection. Each entry must be a column reference present in the record
// schema. A nil projection reads every column.
func (p DataFrameScan) WithProjection(exprs *arena.Arena[Expr], projection []arena.Node) (DataFrameScan, error) {
	p.Projection = projection
	p.projected = nil
	if projection == nil {
		return p, nil
	}
	s, err := ExprsToSchema(exprs, projection, p.RecordSchema, ContextDefault)
	if err != nil {
		return p, err
	}
	p.projected = s
	return p, nil
}

// CopyInputs appends the input handles of p to dst. Joins have two inputs,
// scans none, every other operator one.
func CopyInputs(p Plan, dst *[]arena.Node) {
	var input arena.Node
	switch p := p.(type) {
	case CsvScan, ParquetScan, DataFrameScan:
		return
	case Join:
		*dst = append(*dst, p.Left, p.Right)
		return
	case Melt:
		input = p.Input
	case Slice:
		input = p.Input
	case Selection:
		input = p.Input
	case Projection:
		input = p.Input
	case LocalProjection:
		input = p.Input
	case Sort:
		input = p.Input
	case Explode:
		input = p.Input
	case Cache:
		input = p.Input
	case Aggregate:
		input = p.Input
	case HStack:
		input = p.Input
	case Distinct:
		input = p.Input
	case Udf:
		input = p.Input
	default:
		panic(fmt.Sprintf("unexpected plan type %T", p))
	}
	*dst = append(*dst, input)
}

// Inputs returns the input handles of p.
func Inputs(p Plan) []arena.Node {
	var out []arena.Node
	CopyInputs(p, &out)
	return out
}

// CopyExprs appends the expression handles of p to dst in the order
// [WithExprsAndInputs] expects them.
func CopyExprs(p Plan, dst *[]arena.Node) {
	switch p := p.(type) {
	case Melt, Slice, Sort, Explode, Cache, Distinct, Udf:
	case Selection:
		*dst = append(*dst, p.Predicate)
	case Projection:
		*dst = append(*dst, p.Exprs...)
	case LocalProjection:
		*dst = append(*dst, p.Exprs...)
	case Aggregate:
		*dst = append(*dst, p.Keys...)
		*dst = append(*dst, p.Aggs...)
	case Join:
		*dst = append(*dst, p.LeftOn...)
		*dst = append(*dst, p.RightOn...)
	case HStack:
		*dst = append(*dst, p.Exprs...)
	case CsvScan:
		*dst = append(*dst, p.Aggregate...)
		if p.Predicate != nil {
			*dst = append(*dst, *p.Predicate)
		}
	case ParquetScan:
		*dst = append(*dst, p.Aggregate...)
		if p.Predicate != nil {
			*dst = append(*dst, *p.Predicate)
		}
	case DataFrameScan:
		*dst = append(*dst, p.Projection...)
		if p.Selection != nil {
			*dst = append(*dst, *p.Selection)
		}
	default:
		panic(fmt.Sprintf("unexpected plan type %T", p))
	}
}

// Exprs returns the expression handles of p.
func Exprs(p Plan) []arena.Node {
	var out []arena.Node
	CopyExprs(p, &out)
	return out
}

// WithExprsAndInputs rebuilds p from new expression and input handles laid
// out as [CopyExprs] and [CopyInputs] produce them. Stored schemas are kept.
func WithExprsAndInputs(p Plan, exprs, inputs []arena.Node) Plan {
	switch p := p.(type) {
	case Melt:
		p.Input = inputs[0]
		return p
	case Slice:
		p.Input = inputs[0]
		return p
	case Selection:
		p.Input, p.Predicate = inputs[0], exprs[0]
		return p
	case Projection:
		p.Input, p.Exprs = inputs[0], exprs
		return p
	case LocalProjection:
		p.Input, p.Exprs = inputs[0], exprs
		return p
	case Aggregate:
		n := len(p.Keys)
		p.Input, p.Keys, p.Aggs = inputs[0], exprs[:n:n], exprs[n:]
		return p
	case Join:
		n := len(p.LeftOn)
		p.Left, p.Right = inputs[0], inputs[1]
		p.LeftOn, p.RightOn = exprs[:n:n], exprs[n:]
		return p
	case Sort:
		p.Input = inputs[0]
		return p
	case Explode:
		p.Input = inputs[0]
		return p
	case Cache:
		p.Input = inputs[0]
		return p
	case Distinct:
		p.Input = inputs[0]
		return p
	case HStack:
		p.Input, p.Exprs = inputs[0], exprs
		return p
	case Udf:
		p.Input = inputs[0]
		return p
	case CsvScan:
		p.Predicate, p.Aggregate = splitPredicate(p.Predicate != nil, exprs)
		return p
	case ParquetScan:
		p.Predicate, p.Aggregate = splitPredicate(p.Predicate != nil, exprs)
		return p
	case DataFrameScan:
		p.Selection, exprs = splitPredicate(p.Selection != nil, exprs)
		if p.Projection != nil {
			p.Projection = exprs
		}
		return p
	}
	panic(fmt.Sprintf("unexpected plan type %T", p))
}

func splitPredicate(has bool, exprs []arena.Node) (*arena.Node, []arena.Node) {
	if !has || len(exprs) == 0 {
		return nil, exprs
	}
	last := len(exprs) - 1
	return nodeRef(exprs[last]), exprs[:last:last]
}

// Arenas bundles the plan and expression arenas of one planning session.
type Arenas struct {
	Plans *arena.Arena[Plan]
	Exprs *arena.Arena[Expr]
}

// NewArenas returns empty arenas.
func NewArenas() *Arenas {
	return &Arenas{Plans: arena.New[Plan](), Exprs: arena.New[Expr]()}
}

// Schema returns the output schema of plan node n.
func (a *Arenas) Schema(n arena.Node) *schema.Schema {
	return a.Plans.Get(n).Schema(a.Plans)
}
