package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is prepended to every environment override, e.g. VISAFLOW_STORAGE_BACKEND
const EnvPrefix = "VISAFLOW"

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Autosave    AutosaveConfig    `mapstructure:"autosave"`
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	Documents   DocumentsConfig   `mapstructure:"documents"`
	Application ApplicationConfig `mapstructure:"application"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

// StorageConfig selects where the application record is kept
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=sqlite redis memory"`
	Key     string `mapstructure:"key" validate:"required"`
}

// DatabaseConfig holds sqlite configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// RedisConfig holds redis configuration
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db" validate:"gte=0"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"gte=0"`
}

// AutosaveConfig holds the background persistence interval; zero disables it
type AutosaveConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`
}

// SimulationConfig holds the simulated latency of each service call
type SimulationConfig struct {
	ValidationDelay time.Duration `mapstructure:"validation_delay" validate:"gte=0"`
	SubmissionDelay time.Duration `mapstructure:"submission_delay" validate:"gte=0"`
	ApprovalDelay   time.Duration `mapstructure:"approval_delay" validate:"gte=0"`
	GenerationDelay time.Duration `mapstructure:"generation_delay" validate:"gte=0"`
}

// DocumentsConfig holds upload limits and the summary output directory
type DocumentsConfig struct {
	OutputDir      string `mapstructure:"output_dir" validate:"required"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" validate:"gt=0"`
}

// ApplicationConfig holds the defaults stamped on new applications
type ApplicationConfig struct {
	DefaultCountry string `mapstructure:"default_country" validate:"required"`
	VisaType       string `mapstructure:"visa_type" validate:"required"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
}

var validate = validator.New()

// Load loads configuration from file and environment variables.
// An empty or missing configPath leaves the defaults in place.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadEnvFile exports the variables in a dotenv file that are not already
// set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.key", "visaflow-application")

	// Database defaults
	v.SetDefault("database.path", "data/visaflow.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "visaflow:")
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	v.SetDefault("autosave.interval", 30*time.Second)

	// Simulation defaults
	v.SetDefault("simulation.validation_delay", 1500*time.Millisecond)
	v.SetDefault("simulation.submission_delay", 1000*time.Millisecond)
	v.SetDefault("simulation.approval_delay", 800*time.Millisecond)
	v.SetDefault("simulation.generation_delay", 2000*time.Millisecond)

	// Documents defaults
	v.SetDefault("documents.output_dir", "generated")
	v.SetDefault("documents.max_upload_bytes", 5*1024*1024)

	// Application defaults
	v.SetDefault("application.default_country", "Australia")
	v.SetDefault("application.visa_type", "482")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stderr")
	v.SetDefault("logger.format", "console")
}

// bindEnvVars binds the variables that do not follow the prefixed naming
func bindEnvVars(v *viper.Viper) {
	// Shared credentials from the environment
	_ = v.BindEnv("redis.addr", EnvPrefix+"_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", EnvPrefix+"_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("logger.level", EnvPrefix+"_LOGGER_LEVEL", "LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q validation (value %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return err
	}

	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis backend")
		}
	}

	return nil
}

// fieldPath turns Config.Storage.Backend into storage.backend
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = toSnake(p)
	}
	return strings.Join(parts, ".")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
