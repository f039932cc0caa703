// Package optimizer rewrites logical plans so that scans read and operators
// carry only the columns the query uses.
//
// An [Optimizer] runs two passes over a plan. Projection pushdown walks the
// plan from the root and narrows every file scan to the columns demanded
// above it. Scan aggregation then makes every scan of the same source read
// the union of those columns, inserting a LocalProjection where a scan
// previously read fewer.
package optimizer

import (
	"flag"
	"slices"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	planerr "github.com/lazyplan/lazyplan/pkg/engine/internal/errors"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/arena"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/logical"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/schema"
)

// Pass and rule names as reported in logs and metrics.
const (
	passProjectionPushdown = "projection_pushdown"
	passScanAggregation    = "scan_aggregation"

	ruleScanProjection = "scan_projection"
)

var knownRules = []string{ruleScanProjection}

// Config is the configuration block for the optimizer.
type Config struct {
	ProjectionPushdown bool                   `yaml:"projection_pushdown"`
	ScanAggregation    bool                   `yaml:"scan_aggregation"`
	MaxIterations      int                    `yaml:"max_iterations"`
	DisabledRules      flagext.StringSliceCSV `yaml:"disabled_rules"`
}

// RegisterFlags registers the flags for the optimizer.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("optimizer.", f)
}

// RegisterFlagsWithPrefix registers the flags for the optimizer with a
// prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.BoolVar(&cfg.ProjectionPushdown, prefix+"projection-pushdown", true, "Prune the columns read by scans to the ones used by the query.")
	f.BoolVar(&cfg.ScanAggregation, prefix+"scan-aggregation", true, "Make every scan of the same source read the union of the columns its scans need.")
	f.IntVar(&cfg.MaxIterations, prefix+"max-iterations", 3, "Maximum number of times the rules of a pass are applied to the whole plan.")
	f.Var(&cfg.DisabledRules, prefix+"disabled-rules", "Comma-separated list of rewrite rules to skip.")
}

// Validate validates the optimizer settings.
func (cfg *Config) Validate() error {
	if cfg.MaxIterations < 1 {
		return errors.Errorf("optimizer max iterations must be at least 1, got %d", cfg.MaxIterations)
	}
	for _, name := range cfg.DisabledRules {
		if !slices.Contains(knownRules, name) {
			return errors.Errorf("unknown optimizer rule %q, known rules: %v", name, knownRules)
		}
	}
	return nil
}

// DefaultConfig returns a Config with every pass enabled.
func DefaultConfig() Config {
	var cfg Config
	cfg.RegisterFlags(flag.NewFlagSet("", flag.PanicOnError))
	return cfg
}

// Optimizer rewrites logical plans. An Optimizer may be reused for any
// number of plans; each plan is optimized within its own arenas.
type Optimizer struct {
	cfg     Config
	logger  log.Logger
	metrics *metrics
}

// New returns an Optimizer. Metrics are registered to reg when it is not
// nil.
func New(cfg Config, logger log.Logger, reg prometheus.Registerer) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	o := &Optimizer{
		cfg:     cfg,
		logger:  log.With(logger, "component", "optimizer"),
		metrics: newMetrics(),
	}
	if reg != nil {
		if err := o.metrics.Register(reg); err != nil {
			return nil, errors.Wrap(err, "registering optimizer metrics")
		}
	}
	return o, nil
}

// Unregister unregisters the metrics of o from reg.
func (o *Optimizer) Unregister(reg prometheus.Registerer) { o.metrics.Unregister(reg) }

// Optimize rewrites the plan rooted at root and returns the root of the
// optimized plan. The output schema of the plan does not change.
func (o *Optimizer) Optimize(root arena.Node, arenas *logical.Arenas) (arena.Node, error) {
	before := arenas.Schema(root)

	if err := o.runPass(passProjectionPushdown, o.cfg.ProjectionPushdown, func() error {
		var pp ProjectionPushdown
		return pp.Optimize(root, arenas)
	}); err != nil {
		return root, err
	}

	if err := o.runPass(passScanAggregation, o.cfg.ScanAggregation, func() error {
		return o.aggregateScans(root, arenas)
	}); err != nil {
		return root, err
	}

	if err := sameOutput(before, arenas.Schema(root)); err != nil {
		level.Error(o.logger).Log("msg", "optimized plan changed its output schema", "err", err)
		return root, err
	}

	o.metrics.scanColumnsPruned.Add(float64(prunedColumns(root, arenas)))
	return root, nil
}

// sameOutput returns an error wrapping ErrShapeMismatch when after differs
// from before.
func sameOutput(before, after *schema.Schema) error {
	if after.Equal(before) {
		return nil
	}
	return errors.Wrapf(planerr.ErrShapeMismatch, "optimized plan changed its output schema from %s to %s", before, after)
}

func (o *Optimizer) runPass(pass string, enabled bool, fn func() error) error {
	if !enabled {
		o.metrics.passesTotal.WithLabelValues(pass, statusSkipped).Inc()
		level.Debug(o.logger).Log("msg", "skipping optimizer pass", "pass", pass)
		return nil
	}

	timer := prometheus.NewTimer(o.metrics.passSeconds.WithLabelValues(pass))
	err := fn()
	duration := timer.ObserveDuration()

	if err != nil {
		o.metrics.passesTotal.WithLabelValues(pass, statusFailure).Inc()
		level.Warn(o.logger).Log("msg", "optimizer pass failed", "pass", pass, "err", err)
		return errors.Wrapf(err, "optimizer pass %s", pass)
	}

	o.metrics.passesTotal.WithLabelValues(pass, statusSuccess).Inc()
	level.Debug(o.logger).Log("msg", "finished optimizer pass", "pass", pass, "duration", duration.String())
	return nil
}

func (o *Optimizer) aggregateScans(root arena.Node, arenas *logical.Arenas) error {
	if slices.Contains(o.cfg.DisabledRules, ruleScanProjection) {
		return nil
	}

	columns := AggregateScanProjections(root, arenas.Plans)
	r := newScanProjectionRule(columns)

	iterations, converged, err := newOptimization(passScanAggregation, o.cfg.MaxIterations).
		withRules(r).
		optimize(arenas, root)
	if err != nil {
		return err
	}

	o.metrics.localProjectionsInserted.Add(float64(r.inserted))
	if !converged {
		level.Warn(o.logger).Log("msg", "scan aggregation did not reach a fixed point", "iterations", iterations)
	}
	level.Debug(o.logger).Log("msg", "aggregated scan projections", "sources", len(columns), "iterations", iterations, "local_projections", r.inserted)
	return nil
}

// prunedColumns returns how many file columns the scans reachable from root
// skip.
func prunedColumns(root arena.Node, arenas *logical.Arenas) int {
	total := 0
	for _, p := range logical.NewPlanIter(arenas.Plans, root).All() {
		switch p := p.(type) {
		case logical.CsvScan:
			if p.WithColumns != nil {
				total += p.FileSchema.Len() - len(p.WithColumns)
			}
		case logical.ParquetScan:
			if p.WithColumns != nil {
				total += p.FileSchema.Len() - len(p.WithColumns)
			}
		}
	}
	return total
}
