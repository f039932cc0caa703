// Command lazyplan builds logical plans from YAML plan files and shows how
// the optimizer rewrites them.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

func main() {
	app := newApp(os.Stdout)
	if _, err := app.Parse(os.Args[1:]); err != nil {
		exitWithErr(err)
	}
}

func newApp(out io.Writer) *kingpin.Application {
	app := kingpin.New("lazyplan", "Inspect and optimize logical query plans.")
	app.HelpFlag.Short('h')

	g := &globals{}
	app.Flag("config.file", "YAML configuration file.").StringVar(&g.configFile)
	app.Flag("log.level", "Only log messages with the given severity or above. One of: debug, info, warn, error.").StringVar(&g.logLevel)
	app.Flag("no-projection-pushdown", "Disable the projection pushdown pass.").BoolVar(&g.noProjectionPushdown)
	app.Flag("no-scan-aggregation", "Disable merging the columns read by scans of the same source.").BoolVar(&g.noScanAggregation)

	addExplainCommand(app, g, out)
	addSchemaCommand(app, g, out)
	return app
}

func exitWithErr(err error) {
	fmt.Fprintf(os.Stderr, "lazyplan: %v\n", err)
	os.Exit(1)
}
