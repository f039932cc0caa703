package main

import (
	"fmt"
	"io"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lazyplan/lazyplan/pkg/engine/catalog"
	"github.com/lazyplan/lazyplan/pkg/engine/planfile"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/logical"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/optimizer"
)

// explainCommand prints a plan before and after optimization.
type explainCommand struct {
	g    *globals
	out  io.Writer
	file *string
}

func addExplainCommand(app *kingpin.Application, g *globals, out io.Writer) {
	cmd := &explainCommand{g: g, out: out}
	explain := app.Command("explain", "Print a plan file before and after optimization.").Action(cmd.run)
	cmd.file = explain.Arg("planfile", "The YAML plan file.").Required().ExistingFile()
}

func (cmd *explainCommand) run(_ *kingpin.ParseContext) error {
	cfg, logger, err := cmd.g.setup()
	if err != nil {
		return err
	}

	cat, err := catalog.NewFileCatalog(cfg.Catalog, logger)
	if err != nil {
		return err
	}
	pf, err := planfile.Load(*cmd.file)
	if err != nil {
		return err
	}

	arenas := logical.NewArenas()
	root, err := pf.Build(arenas, cat)
	if err != nil {
		return errors.Wrapf(err, "building %s", *cmd.file)
	}

	bold := color.New(color.Bold)
	bold.Fprintln(cmd.out, "Logical plan:")
	fmt.Fprint(cmd.out, logical.PrintAsTree(arenas, root))

	reg := prometheus.NewRegistry()
	o, err := optimizer.New(cfg.Optimizer, logger, reg)
	if err != nil {
		return err
	}
	if root, err = o.Optimize(root, arenas); err != nil {
		return errors.Wrapf(err, "optimizing %s", *cmd.file)
	}

	bold.Fprintln(cmd.out, "Optimized plan:")
	fmt.Fprint(cmd.out, logical.PrintAsTree(arenas, root))
	bold.Fprintln(cmd.out, "Output schema:")
	fmt.Fprintf(cmd.out, "\t%s\n", arenas.Schema(root))

	cmd.printScans(arenas, root)
	logPassTotals(logger, reg)
	return nil
}

func (cmd *explainCommand) printScans(arenas *logical.Arenas, root arena.Node) {
	bold := color.New(color.Bold)
	bold.Fprintln(cmd.out, "Scans:")
	for _, p := range logical.NewPlanIter(arenas.Plans, root).All() {
		switch p := p.(type) {
		case logical.CsvScan:
			fmt.Fprintf(cmd.out, "\t%s: %s\n", p.Path, scanColumns(p.FileSchema.Names(), p.WithColumns))
		case logical.ParquetScan:
			fmt.Fprintf(cmd.out, "\t%s: %s\n", p.Path, scanColumns(p.FileSchema.Names(), p.WithColumns))
		}
	}
}

func scanColumns(all, read []string) string {
	if read == nil {
		return fmt.Sprintf("all %d columns", len(all))
	}
	return fmt.Sprintf("%d of %d columns %v", len(read), len(all), read)
}

func logPassTotals(logger log.Logger, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		level.Warn(logger).Log("msg", "failed to gather optimizer metrics", "err", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				kv := []any{"msg", "optimizer metric", "name", mf.GetName(), "value", c.GetValue()}
				for _, l := range m.GetLabel() {
					kv = append(kv, l.GetName(), l.GetValue())
				}
				level.Debug(logger).Log(kv...)
			}
		}
	}
}
