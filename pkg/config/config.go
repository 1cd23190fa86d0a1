package config

import (
	"strings"
	"time"

	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/logger"
	"github.com/ajitpratap0/tabula/pkg/observability"
	"github.com/ajitpratap0/tabula/pkg/schema"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, for example
// TABULA_STORE_DSN overrides store.dsn.
const EnvPrefix = "TABULA"

// Config is the complete tabula configuration. It is organised into
// sections that map one to one onto the YAML file:
//   - Log: zap logger settings
//   - Engine: inference heuristics and sampling caps
//   - Store: where tables, columns and rows are persisted
//   - Source: where records are ingested from
//   - Tracing: OpenTelemetry exporter
//   - Metrics: Prometheus endpoint
type Config struct {
	// Log configures the global logger
	Log LogConfig `mapstructure:"log" yaml:"log" json:"log"`
	// Engine tunes the schema engine
	Engine EngineConfig `mapstructure:"engine" yaml:"engine" json:"engine"`
	// Store selects the persistence backend
	Store StoreConfig `mapstructure:"store" yaml:"store" json:"store"`
	// Source selects the ingestion backend
	Source SourceConfig `mapstructure:"source" yaml:"source" json:"source"`
	// Tracing configures span export
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level" json:"level"`
	// Encoding is json or console
	Encoding    string `mapstructure:"encoding" yaml:"encoding" json:"encoding"`
	Development bool   `mapstructure:"development" yaml:"development" json:"development"`
}

// EngineConfig contains the schema engine settings. Zero numeric values
// keep the built-in defaults.
type EngineConfig struct {
	// Delimiter joins flattened path segments
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter" json:"delimiter"`
	// RulesFile is an optional YAML overlay of the heuristic tables
	RulesFile string `mapstructure:"rules_file" yaml:"rules_file" json:"rules_file"`
	// InferenceSampleLimit caps the records per source used for field discovery
	InferenceSampleLimit int `mapstructure:"inference_sample_limit" yaml:"inference_sample_limit" json:"inference_sample_limit"`
	// TypeSampleLimit caps the samples per field used for type sniffing
	TypeSampleLimit int `mapstructure:"type_sample_limit" yaml:"type_sample_limit" json:"type_sample_limit"`
	// RequiredThreshold is the availability above which a column is required
	RequiredThreshold float64 `mapstructure:"required_threshold" yaml:"required_threshold" json:"required_threshold"`
	// CheckProposedType validates existing values against the proposed
	// type instead of the current one when changing a column type
	CheckProposedType bool `mapstructure:"check_proposed_type" yaml:"check_proposed_type" json:"check_proposed_type"`
}

// StoreConfig selects the store driver.
type StoreConfig struct {
	// Driver is memory, sqlite, mysql or postgres
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`
	// DSN is the driver-specific connection string
	DSN string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
}

// SourceConfig selects the ingestion source.
type SourceConfig struct {
	// Kind is file, mongo, s3 or gcs
	Kind string `mapstructure:"kind" yaml:"kind" json:"kind"`
	// Path is a file or directory for the file source
	Path string `mapstructure:"path" yaml:"path" json:"path"`
	// URI is the MongoDB connection string
	URI      string `mapstructure:"uri" yaml:"uri" json:"uri"`
	Database string `mapstructure:"database" yaml:"database" json:"database"`
	// Collections lists the MongoDB collections; each one is a source
	Collections []string `mapstructure:"collections" yaml:"collections" json:"collections"`
	// Bucket and Prefix locate objects for the s3 and gcs sources
	Bucket   string `mapstructure:"bucket" yaml:"bucket" json:"bucket"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix" json:"prefix"`
	Region   string `mapstructure:"region" yaml:"region" json:"region"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	// Limit caps the records read per source (0 = unlimited)
	Limit int64 `mapstructure:"limit" yaml:"limit" json:"limit"`
	// Timeout bounds connecting and reading
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// TracingConfig contains tracing settings.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Exporter     string  `mapstructure:"exporter" yaml:"exporter" json:"exporter"`
	SamplingRate float64 `mapstructure:"sampling_rate" yaml:"sampling_rate" json:"sampling_rate"`
}

// MetricsConfig contains the metrics endpoint settings.
type MetricsConfig struct {
	// Addr serves /metrics when non-empty, for example ":9090"
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}

var (
	storeDrivers = []string{"memory", "sqlite", "mysql", "postgres"}
	sourceKinds  = []string{"", "file", "mongo", "s3", "gcs"}
)

// setDefaults registers every key so that environment overrides apply even
// when the file omits them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)

	v.SetDefault("engine.delimiter", schema.DefaultDelimiter)
	v.SetDefault("engine.rules_file", "")
	v.SetDefault("engine.inference_sample_limit", schema.InferenceSampleLimit)
	v.SetDefault("engine.type_sample_limit", schema.TypeSampleLimit)
	v.SetDefault("engine.required_threshold", schema.RequiredThreshold)
	v.SetDefault("engine.check_proposed_type", false)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")

	v.SetDefault("source.kind", "")
	v.SetDefault("source.path", "")
	v.SetDefault("source.uri", "")
	v.SetDefault("source.database", "")
	v.SetDefault("source.collections", []string{})
	v.SetDefault("source.bucket", "")
	v.SetDefault("source.prefix", "")
	v.SetDefault("source.region", "")
	v.SetDefault("source.endpoint", "")
	v.SetDefault("source.limit", 0)
	v.SetDefault("source.timeout", 30*time.Second)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.sampling_rate", 1.0)

	v.SetDefault("metrics.addr", "")
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// Defaults always decode.
		panic(err)
	}
	return cfg
}

// Load reads path (YAML, optional) and applies TABULA_* environment
// overrides on top of the defaults. The result is validated.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", path)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	cfg.Source.Kind = strings.ToLower(cfg.Source.Kind)
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if !oneOf(c.Store.Driver, storeDrivers) {
		return errors.Newf(errors.ErrorTypeConfig, "store.driver must be one of %v, got %q", storeDrivers, c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return errors.Newf(errors.ErrorTypeConfig, "store.dsn is required for driver %s", c.Store.Driver)
	}

	if !oneOf(c.Source.Kind, sourceKinds) {
		return errors.Newf(errors.ErrorTypeConfig, "source.kind must be one of %v, got %q", sourceKinds[1:], c.Source.Kind)
	}
	switch c.Source.Kind {
	case "file":
		if c.Source.Path == "" {
			return errors.New(errors.ErrorTypeConfig, "source.path is required for file sources")
		}
	case "mongo":
		if c.Source.URI == "" || c.Source.Database == "" {
			return errors.New(errors.ErrorTypeConfig, "source.uri and source.database are required for mongo sources")
		}
	case "s3", "gcs":
		if c.Source.Bucket == "" {
			return errors.Newf(errors.ErrorTypeConfig, "source.bucket is required for %s sources", c.Source.Kind)
		}
	}
	if c.Source.Limit < 0 {
		return errors.New(errors.ErrorTypeConfig, "source.limit cannot be negative")
	}

	if c.Engine.InferenceSampleLimit < 0 || c.Engine.TypeSampleLimit < 0 {
		return errors.New(errors.ErrorTypeConfig, "engine sample limits cannot be negative")
	}
	if c.Engine.RequiredThreshold < 0 || c.Engine.RequiredThreshold > 1 {
		return errors.New(errors.ErrorTypeConfig, "engine.required_threshold must be between 0 and 1")
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return errors.New(errors.ErrorTypeConfig, "tracing.sampling_rate must be between 0 and 1")
	}
	return nil
}

// Rules builds the heuristic tables: the rules file when set, otherwise the
// defaults, with the engine section's caps applied on top.
func (c *Config) Rules() (*schema.Rules, error) {
	rules := schema.DefaultRules()
	if c.Engine.RulesFile != "" {
		loaded, err := schema.LoadRules(c.Engine.RulesFile)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid rules file").
				WithDetail("path", c.Engine.RulesFile)
		}
		rules = loaded
	}

	if c.Engine.InferenceSampleLimit > 0 {
		rules.InferenceSampleLimit = c.Engine.InferenceSampleLimit
	}
	if c.Engine.TypeSampleLimit > 0 {
		rules.TypeSampleLimit = c.Engine.TypeSampleLimit
	}
	if c.Engine.RequiredThreshold > 0 {
		rules.RequiredThreshold = c.Engine.RequiredThreshold
	}
	if err := rules.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid engine settings")
	}
	return rules, nil
}

// EngineConfig returns the schema engine configuration.
func (c *Config) EngineConfig() (schema.EngineConfig, error) {
	rules, err := c.Rules()
	if err != nil {
		return schema.EngineConfig{}, err
	}
	return schema.EngineConfig{
		Delimiter:         c.Engine.Delimiter,
		Rules:             rules,
		CheckProposedType: c.Engine.CheckProposedType,
	}, nil
}

// LoggerConfig returns the logger configuration.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       c.Log.Level,
		Encoding:    c.Log.Encoding,
		Development: c.Log.Development,
	}
}

// TracingConfig returns the tracing bootstrap configuration.
func (c *Config) TracingConfig(version string) observability.TracingConfig {
	tc := observability.DefaultTracingConfig()
	tc.Enabled = c.Tracing.Enabled
	tc.ExporterType = c.Tracing.Exporter
	tc.SamplingRate = c.Tracing.SamplingRate
	if version != "" {
		tc.ServiceVersion = version
	}
	return tc
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
