package catalog

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/pkg/errors"

	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// CSVOptions controls how the schema of a CSV file is read.
type CSVOptions struct {
	HasHeader bool `yaml:"has_header"`
	// Delimiter separates fields. When empty, .tsv files are split on tabs
	// and every other file on commas.
	Delimiter string `yaml:"delimiter"`
	// InferRows is the number of rows read to infer column types.
	InferRows int `yaml:"infer_rows"`
}

// RegisterFlagsWithPrefix registers the CSV flags with a prefix.
func (o *CSVOptions) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.BoolVar(&o.HasHeader, prefix+"has-header", true, "Whether the first row of CSV files holds the column names.")
	f.StringVar(&o.Delimiter, prefix+"delimiter", "", "Field delimiter of CSV files. Defaults to a tab for .tsv files and a comma otherwise.")
	f.IntVar(&o.InferRows, prefix+"infer-rows", 100, "Number of CSV rows read to infer column types.")
}

// Validate validates the CSV options.
func (o *CSVOptions) Validate() error {
	if o.Delimiter != "" && (len(o.Delimiter) != 1 || o.Delimiter[0] >= utf8.RuneSelf) {
		return errors.Errorf("csv delimiter must be a single ASCII character, got %q", o.Delimiter)
	}
	if o.InferRows < 1 {
		return errors.Errorf("csv infer rows must be positive, got %d", o.InferRows)
	}
	return nil
}

// forPath returns o with an empty delimiter replaced by the default for the
// extension of path.
func (o CSVOptions) forPath(path string) CSVOptions {
	if o.Delimiter != "" {
		return o
	}
	o.Delimiter = ","
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		o.Delimiter = "\t"
	}
	return o
}

func (o *CSVOptions) delimiter() byte {
	if o.Delimiter == "" {
		return ','
	}
	return o.Delimiter[0]
}

// ReadCSVSchema infers the schema of the CSV data in r. Without a header
// row, columns are named column_1, column_2 and so on.
func ReadCSVSchema(r io.Reader, opts CSVOptions) (*schema.Schema, error) {
	chunk := opts.InferRows
	if chunk < 1 {
		chunk = 1
	}

	rd := csv.NewInferringReader(r,
		csv.WithHeader(opts.HasHeader),
		csv.WithComma(rune(opts.delimiter())),
		csv.WithChunk(chunk),
		csv.WithNullReader(true),
	)
	defer rd.Release()

	if !rd.Next() {
		if err := rd.Err(); err != nil {
			return nil, errors.Wrap(err, "inferring csv schema")
		}
		return nil, errors.Wrap(planerr.ErrNoData, "csv has no rows to infer a schema from")
	}

	fields := rd.Schema().Fields()
	out := make([]arrow.Field, len(fields))
	for i, f := range fields {
		if !opts.HasHeader {
			f.Name = fmt.Sprintf("column_%d", i+1)
		}
		f.Nullable = true
		out[i] = f
	}
	return schema.FromArrow(arrow.NewSchema(out, nil))
}
