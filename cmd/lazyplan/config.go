package main

import (
	"flag"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lazyplan/lazyplan/pkg/engine/catalog"
	"github.com/lazyplan/lazyplan/pkg/engine/planner/optimizer"
)

// Config is the configuration file of lazyplan.
type Config struct {
	LogLevel  dslog.Level      `yaml:"log_level"`
	Optimizer optimizer.Config `yaml:"optimizer"`
	Catalog   catalog.Config   `yaml:"catalog"`
}

// RegisterFlags registers every setting of c on f with its default.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.LogLevel.RegisterFlags(f)
	c.Optimizer.RegisterFlags(f)
	c.Catalog.RegisterFlags(f)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Optimizer.Validate(); err != nil {
		return errors.Wrap(err, "invalid optimizer config")
	}
	if err := c.Catalog.Validate(); err != nil {
		return errors.Wrap(err, "invalid catalog config")
	}
	return nil
}

func defaultConfig() Config {
	var cfg Config
	cfg.RegisterFlags(flag.NewFlagSet("defaults", flag.PanicOnError))
	return cfg
}

// loadConfig reads the configuration file at path over the defaults. An
// empty path returns the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config file %s", path)
	}
	return cfg, nil
}

// globals holds the flags shared by every command.
type globals struct {
	configFile           string
	logLevel             string
	noProjectionPushdown bool
	noScanAggregation    bool
}

// setup loads the configuration, applies flag overrides and builds the
// logger.
func (g *globals) setup() (Config, log.Logger, error) {
	cfg, err := loadConfig(g.configFile)
	if err != nil {
		return cfg, nil, err
	}
	if g.logLevel != "" {
		if err := cfg.LogLevel.Set(g.logLevel); err != nil {
			return cfg, nil, err
		}
	}
	if g.noProjectionPushdown {
		cfg.Optimizer.ProjectionPushdown = false
	}
	if g.noScanAggregation {
		cfg.Optimizer.ScanAggregation = false
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	return cfg, newLogger(cfg.LogLevel), nil
}

func newLogger(lvl dslog.Level) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, lvl.Option)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}
