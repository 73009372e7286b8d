// Package config loads db-ferry settings from a config file, the environment
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// ErrMissing wraps every missing required setting.
var ErrMissing = errors.New("missing required setting")

// Mode selects which settings are required.
type Mode string

const (
	ModeMigrate Mode = "migrate"
	ModePlan    Mode = "plan" // dry-run migration, never connects to the target
	ModeServe   Mode = "serve"
	ModeSync    Mode = "sync"
	ModePing    Mode = "ping"
)

type SourceConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
	Schema string `mapstructure:"schema"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Schema string `mapstructure:"schema"`
}

type SyncConfig struct {
	Direction        string   `mapstructure:"direction"`
	AllowDestructive bool     `mapstructure:"allow_destructive"`
	MirrorDeletes    bool     `mapstructure:"mirror_deletes"`
	BatchSize        int      `mapstructure:"batch_size"`
	Tables           []string `mapstructure:"tables"`
	ConflictColumn   string   `mapstructure:"conflict_column"`
}

type MigrateConfig struct {
	Tables         []string      `mapstructure:"tables"`
	SampleSize     int           `mapstructure:"sample_size"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Target  DBConfig      `mapstructure:"target"`
	Mirror  DBConfig      `mapstructure:"mirror"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Migrate MigrateConfig `mapstructure:"migrate"`

	StateDB     string        `mapstructure:"state_db"`
	ReportDir   string        `mapstructure:"report_dir"`
	LogFile     string        `mapstructure:"log_file"`
	LogLevel    string        `mapstructure:"log_level"`
	SeqURL      string        `mapstructure:"seq_url"`
	ListenAddr  string        `mapstructure:"listen_addr"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// Keys without a real default are still registered so that Unmarshal
	// picks them up from the environment.
	for _, key := range []string{"source.url", "source.api_key", "source.schema", "target.dsn", "target.schema", "mirror.dsn", "mirror.schema", "seq_url"} {
		v.SetDefault(key, "")
	}
	v.SetDefault("sync.tables", []string{})
	v.SetDefault("migrate.tables", []string{})
	v.SetDefault("target.driver", "mysql")
	v.SetDefault("mirror.driver", "mysql")
	v.SetDefault("sync.direction", "target_to_mirror")
	v.SetDefault("sync.allow_destructive", false)
	v.SetDefault("sync.mirror_deletes", false)
	v.SetDefault("sync.batch_size", 1000)
	v.SetDefault("sync.conflict_column", "id")
	v.SetDefault("migrate.sample_size", 1)
	v.SetDefault("migrate.retry_attempts", 3)
	v.SetDefault("migrate.retry_base_delay", time.Second)
	v.SetDefault("state_db", "db-ferry-state.db")
	v.SetDefault("report_dir", "reports")
	v.SetDefault("log_file", "db-ferry.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("http_timeout", 30*time.Second)
}

// Init points v at the config file (explicit path, or db-ferry.yaml next to
// the executable or in the working directory) and the environment. A missing
// default config file is not an error.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(ex))
		}
		v.AddConfigPath(".")
		v.SetConfigName("db-ferry")
		v.SetConfigType("yaml")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Short aliases for the sync settings.
	for key, env := range map[string]string{
		"sync.direction":         "SYNC_DIRECTION",
		"sync.allow_destructive": "ALLOW_DESTRUCTIVE",
		"sync.mirror_deletes":    "MIRROR_DELETES",
		"sync.batch_size":        "BATCH_SIZE",
		"sync.tables":            "SYNC_TABLES",
	} {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load decodes v into a Config. Comma-separated strings are accepted for the
// table lists so they can come from a single environment variable.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.Sync.Tables = splitList(c.Sync.Tables)
	c.Migrate.Tables = splitList(c.Migrate.Tables)
	return &c, nil
}

// Validate checks the settings a mode cannot run without.
func (c *Config) Validate(mode Mode) error {
	var errs []error
	missing := func(key string) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissing, key))
	}

	switch mode {
	case ModeMigrate:
		if c.Source.URL == "" {
			missing("source.url")
		}
		if c.Target.DSN == "" {
			missing("target.dsn")
		}
	case ModePlan:
		if c.Source.URL == "" {
			missing("source.url")
		}
	case ModeServe, ModeSync:
		if c.Target.DSN == "" {
			missing("target.dsn")
		}
		if c.Mirror.DSN == "" {
			missing("mirror.dsn")
		}
	}

	if c.Sync.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("sync.batch_size must be positive, got %d", c.Sync.BatchSize))
	}
	if c.Migrate.SampleSize <= 0 {
		errs = append(errs, fmt.Errorf("migrate.sample_size must be positive, got %d", c.Migrate.SampleSize))
	}
	return errors.Join(errs...)
}

// SchemaName returns the schema to introspect for a SQL store: the explicit
// setting, or for MySQL the database named in the DSN.
func (d DBConfig) SchemaName() string {
	if d.Schema != "" {
		return d.Schema
	}
	if d.Driver == "mysql" || d.Driver == "" {
		if cfg, err := mysql.ParseDSN(d.DSN); err == nil {
			return cfg.DBName
		}
	}
	return ""
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
