package logical

import (
	"strconv"

	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/internal/tree"
)

// BuildTree converts the plan rooted at root into a printable tree. Node IDs
// are the arena handles.
func BuildTree(arenas *Arenas, root arena.Node) *tree.Node {
	p := arenas.Plans.Get(root)
	node := tree.NewNode(p.Type().String(), strconv.Itoa(int(root)), planProperties(arenas, p)...)
	for _, input := range Inputs(p) {
		node.Children = append(node.Children, BuildTree(arenas, input))
	}
	return node
}

// PrintAsTree renders the plan rooted at root with one operator per line.
func PrintAsTree(arenas *Arenas, root arena.Node) string {
	return tree.String(BuildTree(arenas, root))
}

func planProperties(arenas *Arenas, p Plan) []tree.Property {
	exprList := func(key string, nodes []arena.Node) tree.Property {
		vals := make([]any, len(nodes))
		for i, n := range nodes {
			vals[i] = FormatExpr(arenas.Exprs, n)
		}
		return tree.NewProperty(key, true, vals...)
	}
	expr := func(key string, n arena.Node) tree.Property {
		return tree.NewProperty(key, false, FormatExpr(arenas.Exprs, n))
	}
	columns := func(key string, names []string) tree.Property {
		if names == nil {
			return tree.NewProperty(key, false, "*")
		}
		return tree.NewProperty(key, true, toAnySlice(names)...)
	}

	switch p := p.(type) {
	case CsvScan:
		props := []tree.Property{
			tree.NewProperty("path", false, p.Path),
			columns("columns", p.WithColumns),
		}
		if p.Predicate != nil {
			props = append(props, expr("predicate", *p.Predicate))
		}
		return props
	case ParquetScan:
		props := []tree.Property{
			tree.NewProperty("path", false, p.Path),
			columns("columns", p.WithColumns),
		}
		if p.Predicate != nil {
			props = append(props, expr("predicate", *p.Predicate))
		}
		return props
	case DataFrameScan:
		if p.Projection == nil {
			return []tree.Property{columns("columns", nil)}
		}
		return []tree.Property{exprList("columns", p.Projection)}
	case Projection:
		return []tree.Property{exprList("exprs", p.Exprs)}
	case LocalProjection:
		return []tree.Property{exprList("exprs", p.Exprs)}
	case Selection:
		return []tree.Property{expr("predicate", p.Predicate)}
	case Sort:
		return []tree.Property{
			tree.NewProperty("by", false, p.ByColumn),
			tree.NewProperty("reverse", false, p.Reverse),
		}
	case Explode:
		return []tree.Property{tree.NewProperty("columns", true, toAnySlice(p.Columns)...)}
	case Aggregate:
		props := []tree.Property{exprList("keys", p.Keys), exprList("aggs", p.Aggs)}
		if p.Apply != nil {
			props = append(props, tree.NewProperty("apply", false, true))
		}
		return props
	case Join:
		return []tree.Property{
			tree.NewProperty("how", false, p.How),
			exprList("left_on", p.LeftOn),
			exprList("right_on", p.RightOn),
		}
	case HStack:
		return []tree.Property{exprList("exprs", p.Exprs)}
	case Distinct:
		return []tree.Property{
			tree.NewProperty("maintain_order", false, p.MaintainOrder),
			columns("subset", p.Subset),
		}
	case Melt:
		return []tree.Property{
			tree.NewProperty("id_vars", true, toAnySlice(p.IDVars)...),
			tree.NewProperty("value_vars", true, toAnySlice(p.ValueVars)...),
		}
	case Slice:
		return []tree.Property{
			tree.NewProperty("offset", false, p.Offset),
			tree.NewProperty("length", false, p.Length),
		}
	case Udf:
		return []tree.Property{tree.NewProperty("projection_pushdown", false, p.ProjectionPushdown)}
	}
	return nil
}

func toAnySlice[T any](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
