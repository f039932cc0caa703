package optimizer

import (
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"

	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/logical"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// demand is the set of columns the operators above a node read from it.
// An empty demand means every column is needed.
type demand struct {
	// projections holds column reference handles, at most one per name.
	projections []arena.Node
	// names holds the names of the columns in projections.
	names mapset.Set[string]
}

func newDemand() *demand {
	return &demand{names: mapset.NewThreadUnsafeSet[string]()}
}

func (d *demand) empty() bool { return len(d.projections) == 0 }

// addExpr demands every column n references that is not demanded yet.
func (d *demand) addExpr(exprs *arena.Arena[logical.Expr], n arena.Node) {
	for _, root := range logical.RootNodes(exprs, n) {
		name := exprs.Get(root).(logical.ColumnExpr).Name
		if d.names.Add(name) {
			d.projections = append(d.projections, root)
		}
	}
}

// addName demands the column called name. When the demand is empty all
// columns are already needed and addName does nothing.
func (d *demand) addName(exprs *arena.Arena[logical.Expr], name string) {
	if d.empty() {
		return
	}
	d.addExpr(exprs, logical.Col(exprs, name))
}

// rootNames returns the distinct column names of the demand in order.
func (d *demand) rootNames(exprs *arena.Arena[logical.Expr]) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(d.projections))
	for _, n := range d.projections {
		for _, name := range logical.RootNames(exprs, n) {
			if seen.Add(name) {
				out = append(out, name)
			}
		}
	}
	return out
}

// split partitions the demand into the projections that resolve against
// the input schema s, which are pushed further down, and the rest, which
// stay at the current node. When the demand names as many columns as s has
// there is nothing to prune and everything stays local.
func (d *demand) split(exprs *arena.Arena[logical.Expr], s *schema.Schema) (pushed *demand, local []arena.Node) {
	pushed = newDemand()
	if s.Len() == len(d.projections) {
		return pushed, d.projections
	}
	for _, n := range d.projections {
		if logical.CheckDownNode(exprs, n, s) {
			pushed.addExpr(exprs, n)
			continue
		}
		local = append(local, n)
	}
	return pushed, local
}

// ProjectionPushdown prunes the columns read by scans and carried by every
// operator to the ones the operators above actually use. The plan is
// rewritten in place: every node keeps its handle and output schema.
type ProjectionPushdown struct{}

// Optimize rewrites the plan rooted at root.
func (pp *ProjectionPushdown) Optimize(root arena.Node, arenas *logical.Arenas) error {
	return pp.pushdownAndAssign(arenas, root, newDemand(), 0)
}

// pushdownAndAssign takes node out of the plan arena, rewrites it for acc
// and stores the result in the same slot. projectionsSeen counts the
// projections between node and the root.
func (pp *ProjectionPushdown) pushdownAndAssign(arenas *logical.Arenas, node arena.Node, acc *demand, projectionsSeen int) error {
	p := arenas.Plans.Take(node)
	out, err := pp.pushDown(arenas, p, acc, projectionsSeen)
	if err != nil {
		arenas.Plans.Replace(node, p)
		return err
	}
	arenas.Plans.Replace(node, out)
	return nil
}

func (pp *ProjectionPushdown) pushDown(arenas *logical.Arenas, p logical.Plan, acc *demand, projectionsSeen int) (logical.Plan, error) {
	exprs := arenas.Exprs

	switch p := p.(type) {
	case logical.Projection:
		return pp.pushDownProjection(arenas, p, acc, projectionsSeen)

	case logical.LocalProjection:
		return pp.pushDownLocalProjection(arenas, p, acc, projectionsSeen)

	case logical.DataFrameScan:
		if acc.empty() {
			return p.WithProjection(exprs, nil)
		}
		if p.Selection != nil {
			acc.addExpr(exprs, *p.Selection)
		}
		return p.WithProjection(exprs, slices.Clone(acc.projections))

	case logical.CsvScan:
		cols, err := scanColumns(exprs, p.Path, p.FileSchema, p.Predicate, acc)
		if err != nil {
			return nil, err
		}
		p.WithColumns = cols
		return p, nil

	case logical.ParquetScan:
		cols, err := scanColumns(exprs, p.Path, p.FileSchema, p.Predicate, acc)
		if err != nil {
			return nil, err
		}
		p.WithColumns = cols
		return p, nil

	case logical.Sort:
		if !acc.empty() {
			acc.addExpr(exprs, logical.Col(exprs, p.ByColumn))
		}
		return p, pp.pushdownAndAssign(arenas, p.Input, acc, projectionsSeen)

	case logical.Explode:
		for _, name := range p.Columns {
			acc.addName(exprs, name)
		}
		return p, pp.pushdownAndAssign(arenas, p.Input, acc, projectionsSeen)

	case logical.Distinct:
		if p.Subset == nil {
			// Rows are compared on every column.
			return p, pp.pushdownAndAssign(arenas, p.Input, newDemand(), projectionsSeen)
		}
		for _, name := range p.Subset {
			acc.addName(exprs, name)
		}
		return p, pp.pushdownAndAssign(arenas, p.Input, acc, projectionsSeen)

	case logical.Selection:
		if !acc.empty() {
			acc.addExpr(exprs, p.Predicate)
		}
		return p, pp.pushdownAndAssign(arenas, p.Input, acc, projectionsSeen)

	case logical.Melt:
		return pp.pushDownMelt(arenas, p, acc, projectionsSeen)

	case logical.Aggregate:
		return pp.pushDownAggregate(arenas, p, acc, projectionsSeen)

	case logical.Join:
		return pp.pushDownJoin(arenas, p, acc, projectionsSeen)

	case logical.HStack:
		if !acc.empty() {
			for _, n := range p.Exprs {
				acc.addExpr(exprs, n)
			}
		}
		pushed, _ := acc.split(exprs, arenas.Schema(p.Input))
		if err := pp.pushdownAndAssign(arenas, p.Input, pushed, projectionsSeen); err != nil {
			return nil, err
		}
		return logical.NewBuilder(arenas, p.Input).WithColumns(p.Exprs).Build()

	case logical.Udf:
		if !p.ProjectionPushdown {
			// The function may read any column of its input.
			return p, pp.pushdownAndAssign(arenas, p.Input, newDemand(), projectionsSeen)
		}
		// Columns created by the function cannot be read from its input.
		in := arenas.Schema(p.Input)
		pushed := newDemand()
		for _, n := range acc.projections {
			if logical.CheckDownNode(exprs, n, in) {
				pushed.addExpr(exprs, n)
			}
		}
		return p, pp.pushdownAndAssign(arenas, p.Input, pushed, projectionsSeen)

	case logical.Slice, logical.Cache:
		inputs := logical.Inputs(p)
		for _, input := range inputs {
			if err := pp.pushdownAndAssign(arenas, input, acc.clone(), projectionsSeen); err != nil {
				return nil, err
			}
		}
		return logical.WithExprsAndInputs(p, logical.Exprs(p), inputs), nil
	}

	panic(fmt.Sprintf("unexpected plan type %T", p))
}

func (d *demand) clone() *demand {
	return &demand{
		projections: append([]arena.Node(nil), d.projections...),
		names:       d.names.Clone(),
	}
}

// pushDownProjection rewrites a projection. The outermost projection keeps
// every expression so the final column order and names are preserved;
// inner projections keep only the expressions whose output is demanded.
// The input is then asked for the columns the kept expressions reference.
func (pp *ProjectionPushdown) pushDownProjection(arenas *logical.Arenas, p logical.Projection, acc *demand, projectionsSeen int) (logical.Plan, error) {
	exprs := arenas.Exprs
	in := arenas.Schema(p.Input)
	demanded := acc.names.Clone()

	kept := make([]arena.Node, 0, len(p.Exprs))
	for _, e := range p.Exprs {
		if projectionsSeen == 0 || acc.empty() {
			kept = append(kept, e)
			continue
		}
		name, err := logical.OutputName(exprs, e, in)
		if err != nil || demanded.Contains(name) {
			kept = append(kept, e)
		}
	}

	// The input only has to provide what the kept expressions read. Names
	// created here by an alias are not demanded from it.
	below := newDemand()
	for _, e := range kept {
		below.addExpr(exprs, e)
	}
	if err := pp.pushdownAndAssign(arenas, p.Input, below, projectionsSeen+1); err != nil {
		return nil, err
	}

	pruned := arenas.Schema(p.Input)
	local := make([]arena.Node, 0, len(kept))
	for _, e := range kept {
		if logical.CheckDownNode(exprs, e, pruned) {
			local = append(local, e)
		}
	}
	return finishNode(local, logical.NewBuilder(arenas, p.Input))
}

// pushDownLocalProjection keeps the expressions producing a demanded name
// and demands their input columns from below. A LocalProjection left with
// exactly the columns of its input is removed.
func (pp *ProjectionPushdown) pushDownLocalProjection(arenas *logical.Arenas, p logical.LocalProjection, acc *demand, projectionsSeen int) (logical.Plan, error) {
	exprs := arenas.Exprs
	in := arenas.Schema(p.Input)

	used := make([]arena.Node, 0, len(p.Exprs))
	below := newDemand()
	for _, e := range p.Exprs {
		if !acc.empty() {
			name, err := logical.OutputName(exprs, e, in)
			if err == nil && !acc.names.Contains(name) {
				continue
			}
		}
		used = append(used, e)
		below.addExpr(exprs, e)
	}

	if err := pp.pushdownAndAssign(arenas, p.Input, below, projectionsSeen); err != nil {
		return nil, err
	}

	in = arenas.Schema(p.Input)
	kept := make([]arena.Node, 0, len(used))
	for _, e := range used {
		if logical.CheckDownNode(exprs, e, in) {
			kept = append(kept, e)
		}
	}
	if selectsAll(exprs, kept, in) {
		return logical.NewBuilder(arenas, p.Input).Build()
	}
	return logical.NewBuilder(arenas, p.Input).ProjectLocal(kept).Build()
}

// selectsAll reports whether nodes are plain references to every column of
// s in order.
func selectsAll(exprs *arena.Arena[logical.Expr], nodes []arena.Node, s *schema.Schema) bool {
	if len(nodes) != s.Len() {
		return false
	}
	for i, n := range nodes {
		col, ok := exprs.Get(n).(logical.ColumnExpr)
		if !ok || col.Name != s.Field(i).Name {
			return false
		}
	}
	return true
}

func (pp *ProjectionPushdown) pushDownMelt(arenas *logical.Arenas, p logical.Melt, acc *demand, projectionsSeen int) (logical.Plan, error) {
	exprs := arenas.Exprs

	pushed, local := acc.split(exprs, arenas.Schema(p.Input))
	if len(local) > 0 {
		local = append(local, pushed.projections...)
	}

	for _, name := range p.IDVars {
		pushed.addName(exprs, name)
	}
	for _, name := range p.ValueVars {
		pushed.addName(exprs, name)
	}

	if err := pp.pushdownAndAssign(arenas, p.Input, pushed, projectionsSeen); err != nil {
		return nil, err
	}
	return finishNode(local, logical.NewBuilder(arenas, p.Input).Melt(p.IDVars, p.ValueVars))
}

func (pp *ProjectionPushdown) pushDownAggregate(arenas *logical.Arenas, p logical.Aggregate, acc *demand, projectionsSeen int) (logical.Plan, error) {
	if p.Apply != nil {
		// The function is called with whole groups and may read any column,
		// so nothing is pruned below.
		return p, nil
	}

	exprs := arenas.Exprs
	pushed, _ := acc.split(exprs, arenas.Schema(p.Input))
	for _, n := range p.Aggs {
		pushed.addExpr(exprs, n)
	}
	for _, n := range p.Keys {
		pushed.addExpr(exprs, n)
	}

	if err := pp.pushdownAndAssign(arenas, p.Input, pushed, projectionsSeen); err != nil {
		return nil, err
	}
	return logical.NewBuilder(arenas, p.Input).GroupBy(p.Keys, p.Aggs, nil).Build()
}

func (pp *ProjectionPushdown) pushDownJoin(arenas *logical.Arenas, p logical.Join, acc *demand, projectionsSeen int) (logical.Plan, error) {
	exprs := arenas.Exprs
	opts := logical.JoinOptions{How: p.How, AllowParallel: p.AllowParallel, ForceParallel: p.ForceParallel}

	if acc.empty() {
		if err := pp.pushdownAndAssign(arenas, p.Left, newDemand(), projectionsSeen); err != nil {
			return nil, err
		}
		if err := pp.pushdownAndAssign(arenas, p.Right, newDemand(), projectionsSeen); err != nil {
			return nil, err
		}
		return logical.NewBuilder(arenas, p.Left).Join(p.Right, p.LeftOn, p.RightOn, opts).Build()
	}

	var (
		leftSchema  = arenas.Schema(p.Left)
		rightSchema = arenas.Schema(p.Right)
		left        = newDemand()
		right       = newDemand()
		local       []arena.Node
		// suffixed holds the right-side columns demanded under their
		// collision name, without the suffix.
		suffixed []string
	)

	// The keys are needed on both sides.
	for _, n := range p.LeftOn {
		left.addExpr(exprs, n)
	}
	for _, n := range p.RightOn {
		right.addExpr(exprs, n)
	}

	// Demanded projections are plain column references, so aliases above
	// the join are applied by the projection that introduced them.
	for _, proj := range acc.projections {
		if !joinPushDown(exprs, proj, leftSchema, rightSchema, left, right) {
			names := logical.RootNames(exprs, proj)
			if len(names) == 0 {
				continue
			}
			rootName := names[len(names)-1]

			// A right-side column renamed because of a collision is read
			// from the right input under its original name.
			if down, ok := strings.CutSuffix(rootName, logical.RightSuffix); ok {
				right.addExpr(exprs, logical.Col(exprs, down))
				suffixed = append(suffixed, down)
			}
			continue
		}
		local = append(local, proj)
	}

	if err := pp.pushdownAndAssign(arenas, p.Left, left, projectionsSeen); err != nil {
		return nil, err
	}
	if err := pp.pushdownAndAssign(arenas, p.Right, right, projectionsSeen); err != nil {
		return nil, err
	}

	b := logical.NewBuilder(arenas, p.Left).Join(p.Right, p.LeftOn, p.RightOn, opts)
	if err := b.Err(); err != nil {
		return nil, err
	}

	// The pruned left side may no longer collide with a right column, in
	// which case the join output keeps the unsuffixed name.
	out := b.Schema()
	for _, down := range suffixed {
		name := down + logical.RightSuffix
		if out.Has(name) {
			local = append(local, logical.Col(exprs, name))
			continue
		}
		if !out.Has(down) {
			return nil, errors.Wrapf(planerr.ErrFieldNotFound, "%s in join output %s", name, out)
		}
		local = append(local, logical.Alias(exprs, logical.Col(exprs, down), name))
	}

	return finishNode(local, b)
}

// joinPushDown demands the root columns of proj from every join input they
// resolve against. It reports whether proj resolved against any input.
func joinPushDown(exprs *arena.Arena[logical.Expr], proj arena.Node, leftSchema, rightSchema *schema.Schema, left, right *demand) bool {
	resolved := false
	for _, root := range logical.RootNodes(exprs, proj) {
		if logical.CheckDownNode(exprs, root, leftSchema) {
			left.addExpr(exprs, root)
			resolved = true
		}
		if logical.CheckDownNode(exprs, root, rightSchema) {
			right.addExpr(exprs, root)
			resolved = true
		}
	}
	return resolved
}

// finishNode puts a projection of local on top of b, or returns the root of
// b when there is nothing to project.
func finishNode(local []arena.Node, b *logical.Builder) (logical.Plan, error) {
	if len(local) > 0 {
		return b.Project(local).Build()
	}
	return b.Build()
}

// scanColumns returns the columns a file scan has to read for acc, in file
// order, or nil when every column is needed. Columns of the scan predicate
// are always read.
func scanColumns(exprs *arena.Arena[logical.Expr], path string, fileSchema *schema.Schema, predicate *arena.Node, acc *demand) ([]string, error) {
	if acc.empty() {
		return nil, nil
	}
	if predicate != nil {
		acc.addExpr(exprs, *predicate)
	}

	wanted := mapset.NewThreadUnsafeSet[string]()
	for _, name := range acc.rootNames(exprs) {
		if !fileSchema.Has(name) {
			return nil, errors.Wrapf(planerr.ErrFieldNotFound, "%s in scan of %s", name, path)
		}
		wanted.Add(name)
	}

	cols := make([]string, 0, wanted.Cardinality())
	for _, name := range fileSchema.Names() {
		if wanted.Contains(name) {
			cols = append(cols, name)
		}
	}
	return cols, nil
}
