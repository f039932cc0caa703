package planfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	"github.com/lazyplan/lazyplan/pkg/engine/catalog"
	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/logical"
)

const tripsSource = `
sources:
  trips.csv:
    schema:
      - {name: id, type: int64}
      - {name: fare, type: float64}
      - {name: zone, type: utf8}
      - {name: stops, type: list<int64>}
  zones.parquet:
    schema:
      - {name: zone, type: utf8}
      - {name: borough, type: utf8, nullable: true}
`

func build(t *testing.T, content string) (*logical.Arenas, string) {
	t.Helper()
	f, err := ParseBytes([]byte(content))
	require.NoError(t, err)

	arenas := logical.NewArenas()
	root, err := f.Build(arenas, nil)
	require.NoError(t, err)
	return arenas, logical.PrintAsTree(arenas, root)
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name  string
		steps string
		want  string
	}{
		{
			name: "filter and select",
			steps: `
scan: trips.csv
steps:
  - filter: {gt: [{col: fare}, {lit: 10}]}
  - select: [{col: id}, {as: {expr: {mul: [{col: fare}, {lit: 2}]}, name: double}}]
`,
			want: `Projection #2 exprs=(col(id), MUL(col(fare), 2) AS double)
└── Selection #1 predicate=GT(col(fare), 10)
    └── CsvScan #0 path=trips.csv columns=*
`,
		},
		{
			name: "wildcard with except",
			steps: `
scan: trips.csv
steps:
  - select: [{all: true}, {except: {col: stops}}]
`,
			want: `Projection #1 exprs=(col(id), col(fare), col(zone))
└── CsvScan #0 path=trips.csv columns=*
`,
		},
		{
			name: "group by",
			steps: `
scan: trips.csv
steps:
  - group_by:
      keys: [{col: zone}]
      aggs: [{sum: {col: fare}}, {count: {col: id}}]
  - sort: {by: zone, reverse: true}
`,
			want: `Sort #2 by=zone reverse=true
└── Aggregate #1 keys=(col(zone)) aggs=(sum(col(fare)), count(col(id)))
    └── CsvScan #0 path=trips.csv columns=*
`,
		},
		{
			name: "join",
			steps: `
scan: trips.csv
steps:
  - join:
      with: {scan: zones.parquet}
      left_on: [{col: zone}]
      right_on: [{col: zone}]
      how: left
  - slice: {offset: 5, length: 10}
`,
			want: `Slice #3 offset=5 length=10
└── Join #2 how=left left_on=(col(zone)) right_on=(col(zone))
    ├── CsvScan #0 path=trips.csv columns=*
    └── ParquetScan #1 path=zones.parquet columns=*
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := build(t, tripsSource+tt.steps)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestBuild_DelimiterFromExtension(t *testing.T) {
	for path, want := range map[string]byte{
		"zones.tsv": '\t',
		"zones.csv": ',',
	} {
		t.Run(path, func(t *testing.T) {
			f, err := ParseBytes([]byte("sources:\n  " + path + ":\n    schema:\n      - {name: zone, type: utf8}\nscan: " + path + "\n"))
			require.NoError(t, err)

			arenas := logical.NewArenas()
			root, err := f.Build(arenas, nil)
			require.NoError(t, err)

			scan, ok := arenas.Plans.Get(root).(logical.CsvScan)
			require.True(t, ok)
			require.Equal(t, want, scan.Delimiter)
		})
	}
}

func TestBuild_Operators(t *testing.T) {
	tests := []struct {
		name   string
		steps  string
		schema string
	}{
		{
			name:   "with columns",
			steps:  `[{with_columns: [{as: {expr: {cast: {expr: {col: id}, type: float64}}, name: id}}]}]`,
			schema: "[id: float64, fare: float64, zone: utf8, stops: list<int64>]",
		},
		{
			name:   "melt",
			steps:  `[{melt: {id_vars: [id], value_vars: [fare]}}]`,
			schema: "[id: int64, zone: utf8, stops: list<int64>, variable: utf8, value: float64]",
		},
		{
			name:   "explode distinct cache",
			steps:  `[{explode: [stops]}, {distinct: {maintain_order: true, subset: [id]}}, {cache: true}]`,
			schema: "[id: int64, fare: float64, zone: utf8, stops: list<int64>]",
		},
		{
			name:   "unary and literals",
			steps:  `[{filter: {and: [{not: {eq: [{col: zone}, {lit: "JFK"}]}}, {lt: [{col: fare}, {lit: 2.5}]}]}}, {select: [{col: id}]}]`,
			schema: "[id: int64]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseBytes([]byte(tripsSource + "scan: trips.csv\nsteps: " + tt.steps + "\n"))
			require.NoError(t, err)

			arenas := logical.NewArenas()
			root, err := f.Build(arenas, nil)
			require.NoError(t, err)
			require.Equal(t, tt.schema, arenas.Schema(root).String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     string
	}{
		{name: "empty", content: "", err: "empty plan file"},
		{name: "no scan", content: "steps: []", err: "no scan"},
		{name: "unknown field", content: "scan: a.csv\nlimit: 3", err: "limit"},
		{name: "unknown expression", content: "scan: a.csv\nsteps: [{filter: {between: 1}}]", err: `unknown expression "between"`},
		{name: "two keys", content: "scan: a.csv\nsteps: [{filter: {col: a, lit: 1}}]", err: "exactly one key"},
		{name: "binary arity", content: "scan: a.csv\nsteps: [{filter: {gt: [{col: a}]}}]", err: "2 arguments"},
		{name: "bad cast type", content: "scan: a.csv\nsteps: [{select: [{cast: {expr: {col: a}, type: decimal}}]}]", err: "decimal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.content))
			require.ErrorContains(t, err, tt.err)
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
		msg     string
	}{
		{
			name:    "undeclared source",
			content: "scan: other.csv",
			msg:     "not declared",
		},
		{
			name:    "unknown column",
			content: tripsSource + "scan: trips.csv\nsteps: [{sort: {by: tip}}]",
			err:     planerr.ErrFieldNotFound,
			msg:     "step 1",
		},
		{
			name:    "two operations in one step",
			content: tripsSource + "scan: trips.csv\nsteps: [{cache: true, sort: {by: id}}]",
			msg:     "exactly one operation",
		},
		{
			name:    "unknown join type",
			content: tripsSource + "scan: trips.csv\nsteps: [{join: {with: {scan: zones.parquet}, left_on: [{col: zone}], right_on: [{col: zone}], how: cross}}]",
			msg:     "unknown join type",
		},
		{
			name:    "bad source type",
			content: "sources: {t.csv: {schema: [{name: a, type: money}]}}\nscan: t.csv",
			err:     planerr.ErrInvalidOperation,
		},
		{
			name:    "unknown source format",
			content: "sources: {t.json: {schema: [{name: a, type: int64}]}}\nscan: t.json",
			msg:     "cannot derive format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseBytes([]byte(tt.content))
			require.NoError(t, err)

			_, err = f.Build(logical.NewArenas(), nil)
			require.Error(t, err)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			}
			if tt.msg != "" {
				require.ErrorContains(t, err, tt.msg)
			}
		})
	}
}

func TestLoad_WithCatalog(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "rides.csv")
	require.NoError(t, os.WriteFile(data, []byte("id,fare\n1,9.5\n"), 0o644))

	planPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte("scan: "+data+"\nsteps: [{select: [{col: fare}]}]\n"), 0o644))

	c, err := catalog.NewFileCatalog(catalog.Config{
		CacheSize: 1,
		CSV:       catalog.CSVOptions{HasHeader: true, Delimiter: ",", InferRows: 10},
	}, log.NewNopLogger())
	require.NoError(t, err)

	f, err := Load(planPath)
	require.NoError(t, err)

	arenas := logical.NewArenas()
	root, err := f.Build(arenas, c)
	require.NoError(t, err)
	require.Equal(t, "[fare: float64]", arenas.Schema(root).String())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
