package main

import (
	"context"
	"fmt"
	"io"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/lazyplan/lazyplan/pkg/engine/catalog"
	planschema "github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// schemaCommand prints the schema of each source in files.
type schemaCommand struct {
	g     *globals
	out   io.Writer
	files *[]string
}

func addSchemaCommand(app *kingpin.Application, g *globals, out io.Writer) {
	cmd := &schemaCommand{g: g, out: out}
	schema := app.Command("schema", "Print the schema of CSV and Parquet files.").Action(cmd.run)
	cmd.files = schema.Arg("file", "The files to inspect.").Required().ExistingFiles()
}

func (cmd *schemaCommand) run(_ *kingpin.ParseContext) error {
	cfg, logger, err := cmd.g.setup()
	if err != nil {
		return err
	}
	cat, err := catalog.NewFileCatalog(cfg.Catalog, logger)
	if err != nil {
		return err
	}

	sources, err := cat.ResolveAll(context.Background(), *cmd.files)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	for _, src := range sources {
		bold.Fprintf(cmd.out, "%s (%s, %s):\n", src.Path, src.Format, humanize.Bytes(uint64(src.Size)))
		for _, f := range src.Schema.Fields() {
			nullable := ""
			if f.Nullable {
				nullable = ", nullable"
			}
			fmt.Fprintf(cmd.out, "\t%s: %s%s\n", f.Name, planschema.TypeName(f.Type), nullable)
		}
	}
	return nil
}
