// Package config loads service configuration from defaults, an
// optional YAML file, and WIKIEXPORT_-prefixed environment variables.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Store       StoreConfig       `mapstructure:"store"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Source      SourceConfig      `mapstructure:"source"`
	Export      ExportConfig      `mapstructure:"export"`
	Convert     ConvertConfig     `mapstructure:"convert"`
	ObjectStore ObjectStoreConfig `mapstructure:"object_store"`
}

// SourceConfig locates the record sets exports read from.
type SourceConfig struct {
	// PagesDir is the directory backing the pages source.
	PagesDir string `mapstructure:"pages_dir"`

	// ActivityDir is the directory backing the activity source.
	ActivityDir string `mapstructure:"activity_dir"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Structured bool   `mapstructure:"structured"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StoreConfig configures the durable job store.
type StoreConfig struct {
	// Path is the SQLite database file, or ":memory:".
	Path string `mapstructure:"path"`
}

// SchedulerConfig configures the periodic driver.
type SchedulerConfig struct {
	// Schedule is a cron expression or @every duration.
	Schedule string `mapstructure:"schedule"`

	// Cap bounds jobs dispatched per tick.
	Cap int `mapstructure:"cap"`
}

// ExportConfig tunes the stage executors.
type ExportConfig struct {
	// TransientRoot is where per-job export trees are written.
	TransientRoot string `mapstructure:"transient_root"`

	// BatchSize bounds snapshot listing and export reads per page.
	BatchSize int `mapstructure:"batch_size"`

	// PartSize is the multipart part size in bytes.
	PartSize int64 `mapstructure:"part_size"`

	// TTL is the job expiration deadline measured from creation.
	TTL time.Duration `mapstructure:"ttl"`

	// StallAfter fails in-progress jobs without a record update for
	// this long. Zero disables.
	StallAfter time.Duration `mapstructure:"stall_after"`

	// ListRate throttles source List calls per second. Zero means
	// unlimited.
	ListRate float64 `mapstructure:"list_rate"`
}

// ConvertConfig locates the external PDF conversion service. An empty
// endpoint disables PDF exports entirely: job creation rejects the pdf
// format instead of accepting work the export stage cannot finish.
type ConvertConfig struct {
	// Endpoint is the converter service base URL.
	Endpoint string `mapstructure:"endpoint"`

	// PollInterval is the readiness poll cadence of the export stage.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ObjectStoreConfig configures the S3-compatible artifact store.
type ObjectStoreConfig struct {
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	Profile        string `mapstructure:"profile"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// Load reads configuration. path is an optional config file; empty
// loads defaults plus environment overrides only.
func Load(ctx context.Context, path string) (*Config, error) {
	_ = ctx

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WIKIEXPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.structured", true)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("store.path", "wikiexport.db")

	v.SetDefault("scheduler.schedule", "@every 30s")
	v.SetDefault("scheduler.cap", 4)

	v.SetDefault("source.pages_dir", "")
	v.SetDefault("source.activity_dir", "")

	v.SetDefault("export.transient_root", "/tmp/wikiexport")
	v.SetDefault("export.batch_size", 100)
	v.SetDefault("export.part_size", 8<<20)
	v.SetDefault("export.ttl", "24h")
	v.SetDefault("export.stall_after", "1h")
	v.SetDefault("export.list_rate", 0)

	v.SetDefault("convert.endpoint", "")
	v.SetDefault("convert.poll_interval", "5s")

	v.SetDefault("object_store.bucket", "")
	v.SetDefault("object_store.region", "")
	v.SetDefault("object_store.endpoint", "")
	v.SetDefault("object_store.profile", "")
	v.SetDefault("object_store.force_path_style", false)
}
