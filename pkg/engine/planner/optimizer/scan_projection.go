package optimizer

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/logical"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// ScanColumns is the union of the columns every scan of one source path
// requests.
type ScanColumns struct {
	// All is set when at least one scan reads every column of the source.
	All     bool
	Columns mapset.Set[string]
}

func newScanColumns() *ScanColumns {
	return &ScanColumns{Columns: mapset.NewThreadUnsafeSet[string]()}
}

// resolve returns the columns a scan over fileSchema must read so that
// every occurrence of the source sees what it needs. The result is nil when
// all columns are needed and otherwise in file order.
func (sc *ScanColumns) resolve(fileSchema *schema.Schema) []string {
	if sc.All {
		return nil
	}
	out := make([]string, 0, sc.Columns.Cardinality())
	for _, name := range fileSchema.Names() {
		if sc.Columns.Contains(name) {
			out = append(out, name)
		}
	}
	return out
}

// AggregateScanProjections visits every plan node reachable from root and
// returns, per source path, the union of the columns requested by the CSV
// and Parquet scans of that path. In-memory scans are ignored.
func AggregateScanProjections(root arena.Node, plans *arena.Arena[logical.Plan]) map[string]*ScanColumns {
	out := make(map[string]*ScanColumns)

	add := func(path string, columns []string) {
		sc, ok := out[path]
		if !ok {
			sc = newScanColumns()
			out[path] = sc
		}
		if columns == nil {
			sc.All = true
			return
		}
		for _, c := range columns {
			sc.Columns.Add(c)
		}
	}

	for _, p := range logical.NewPlanIter(plans, root).All() {
		switch p := p.(type) {
		case logical.CsvScan:
			add(p.Path, p.WithColumns)
		case logical.ParquetScan:
			add(p.Path, p.WithColumns)
		}
	}
	return out
}

// scanProjectionRule rewrites every scan of a source to read the union of
// the columns all its scans need. When a scan used to read fewer columns, a
// LocalProjection restoring its previous columns is put in its place and the
// widened scan is moved below it.
type scanProjectionRule struct {
	columns map[string]*ScanColumns

	// inserted counts the LocalProjection nodes added.
	inserted int
}

func newScanProjectionRule(columns map[string]*ScanColumns) *scanProjectionRule {
	return &scanProjectionRule{columns: columns}
}

func (r *scanProjectionRule) name() string { return ruleScanProjection }

// apply implements rule.
func (r *scanProjectionRule) apply(arenas *logical.Arenas, node arena.Node) (bool, error) {
	switch scan := arenas.Plans.Get(node).(type) {
	case logical.CsvScan:
		cols, ok := r.target(scan.Path, scan.FileSchema, scan.WithColumns)
		if !ok {
			return false, nil
		}
		old := scan.WithColumns
		scan.WithColumns = cols
		return true, r.finishRewrite(arenas, node, scan, old)

	case logical.ParquetScan:
		cols, ok := r.target(scan.Path, scan.FileSchema, scan.WithColumns)
		if !ok {
			return false, nil
		}
		old := scan.WithColumns
		scan.WithColumns = cols
		return true, r.finishRewrite(arenas, node, scan, old)
	}
	return false, nil
}

// target returns the columns the scan should read and whether they differ
// from current. Comparing against current keeps the rule from firing again
// on a scan it already rewrote.
func (r *scanProjectionRule) target(path string, fileSchema *schema.Schema, current []string) ([]string, bool) {
	sc, ok := r.columns[path]
	if !ok {
		return nil, false
	}
	cols := sc.resolve(fileSchema)
	if sameColumns(current, cols) {
		return nil, false
	}
	return cols, true
}

// finishRewrite stores the rewritten scan. If the scan used to read a
// strict subset of what it reads now, the scan moves to a new node and node
// becomes a LocalProjection of the old columns, so the output schema seen by
// the parent is unchanged.
func (r *scanProjectionRule) finishRewrite(arenas *logical.Arenas, node arena.Node, scan logical.Plan, old []string) error {
	if old == nil || len(old) >= scan.Schema(arenas.Plans).Len() {
		arenas.Plans.Replace(node, scan)
		return nil
	}

	moved := arenas.Plans.Add(scan)
	exprs := make([]arena.Node, 0, len(old))
	for _, name := range old {
		exprs = append(exprs, logical.Col(arenas.Exprs, name))
	}
	proj, err := logical.NewBuilder(arenas, moved).ProjectLocal(exprs).Build()
	if err != nil {
		return err
	}
	arenas.Plans.Replace(node, proj)
	r.inserted++
	return nil
}

func sameColumns(a, b []string) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return slices.Equal(a, b)
}
