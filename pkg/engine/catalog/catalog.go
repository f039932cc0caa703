// Package catalog resolves the schemas of the files a plan reads.
package catalog

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/logical"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// Format is the file format of a source.
type Format int

// Supported source formats.
const (
	FormatUnknown Format = iota
	FormatCSV
	FormatParquet
)

// String returns the name of the format.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatParquet:
		return "parquet"
	default:
		return "unknown"
	}
}

// FormatOf returns the format of path based on its extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return FormatCSV
	case ".parquet", ".pq":
		return FormatParquet
	default:
		return FormatUnknown
	}
}

// Source describes a file a plan can scan.
type Source struct {
	Path   string
	Format Format
	Schema *schema.Schema
	// Size is the file size in bytes, or zero for sources not read from
	// disk.
	Size int64

	// CSV holds the options the schema of a CSV source was read with.
	CSV CSVOptions
}

// Scan returns a builder rooted at a scan of s reading every column.
func (s *Source) Scan(arenas *logical.Arenas) *logical.Builder {
	if s.Format == FormatParquet {
		return logical.ScanParquet(arenas, s.Path, s.Schema, logical.ParquetScanOptions{})
	}
	opts := s.CSV.forPath(s.Path)
	return logical.ScanCSV(arenas, s.Path, s.Schema, logical.CSVScanOptions{
		HasHeader: opts.HasHeader,
		Delimiter: opts.delimiter(),
	})
}

// A Catalog resolves source paths to sources.
type Catalog interface {
	// Resolve returns the source at path.
	Resolve(path string) (*Source, error)
}

// Config is the configuration block for the file catalog.
type Config struct {
	CacheSize int        `yaml:"cache_size"`
	CSV       CSVOptions `yaml:"csv"`
}

// RegisterFlags registers the flags for the file catalog.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("catalog.", f)
}

// RegisterFlagsWithPrefix registers the flags for the file catalog with a
// prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.CacheSize, prefix+"cache-size", 128, "Number of resolved source schemas to keep in memory.")
	cfg.CSV.RegisterFlagsWithPrefix(prefix+"csv.", f)
}

// Validate validates the file catalog settings.
func (cfg *Config) Validate() error {
	if cfg.CacheSize < 1 {
		return errors.Errorf("catalog cache size must be positive, got %d", cfg.CacheSize)
	}
	return cfg.CSV.Validate()
}

// FileCatalog resolves sources on the local file system. Resolved sources
// are cached by path.
type FileCatalog struct {
	cfg    Config
	logger log.Logger
	cache  *lru.Cache[string, *Source]
}

var _ Catalog = (*FileCatalog)(nil)

// NewFileCatalog returns a FileCatalog.
func NewFileCatalog(cfg Config, logger log.Logger) (*FileCatalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	cache, err := lru.New[string, *Source](cfg.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "creating schema cache")
	}
	return &FileCatalog{cfg: cfg, logger: logger, cache: cache}, nil
}

// Resolve implements Catalog.
func (c *FileCatalog) Resolve(path string) (*Source, error) {
	if src, ok := c.cache.Get(path); ok {
		return src, nil
	}

	src, err := c.load(path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, src)
	level.Debug(c.logger).Log("msg", "resolved source schema", "path", path, "format", src.Format, "schema", src.Schema)
	return src, nil
}

// ResolveAll resolves paths concurrently and returns the sources in the
// order of paths.
func (c *FileCatalog) ResolveAll(ctx context.Context, paths []string) ([]*Source, error) {
	sources := make([]*Source, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			sources[i], err = c.Resolve(path)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

// Forget drops the cached source at path.
func (c *FileCatalog) Forget(path string) { c.cache.Remove(path) }

func (c *FileCatalog) load(path string) (*Source, error) {
	format := FormatOf(path)
	if format == FormatUnknown {
		return nil, errors.Wrapf(planerr.ErrNotImplemented, "unknown file format of %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening source")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "reading source size")
	}

	src := &Source{Path: path, Format: format, Size: info.Size()}
	switch format {
	case FormatCSV:
		src.CSV = c.cfg.CSV.forPath(path)
		src.Schema, err = ReadCSVSchema(f, src.CSV)
	case FormatParquet:
		src.Schema, err = ReadParquetSchema(f, info.Size())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading schema of %s", path)
	}
	return src, nil
}

// MapCatalog is a Catalog over sources known in advance.
type MapCatalog map[string]*Source

// Resolve implements Catalog.
func (m MapCatalog) Resolve(path string) (*Source, error) {
	src, ok := m[path]
	if !ok {
		return nil, errors.Wrapf(planerr.ErrNoData, "unknown source %s", path)
	}
	return src, nil
}
