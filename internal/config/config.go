package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "STAR_"

type Config struct {
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Metrics  MetricsConfig  `json:"metrics"`
	Log      LogConfig      `json:"log"`
	Registry RegistryConfig `json:"registry"`
}

type ServerConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// StorageConfig selects the backing store. Driver is one of "memory",
// "postgres" (lib/pq) or "pgx" (jackc/pgx stdlib).
type StorageConfig struct {
	Driver string `json:"driver"`
}

type DatabaseConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	User           string `json:"user"`
	Password       string `json:"password"`
	DBName         string `json:"dbname"`
	SSLMode        string `json:"sslmode"`
	MigrationsPath string `json:"migrations_path"`
	MaxOpenConns   int    `json:"max_open_conns"`
	MaxIdleConns   int    `json:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Stream   string `json:"stream"`
}

// MetricsConfig controls Prometheus exposure. /metrics is always served on
// the API listener. Enabled starts the pool collector and, when Address is
// set, a dedicated metrics listener.
type MetricsConfig struct {
	Enabled         bool     `json:"enabled"`
	Address         string   `json:"address"`
	CollectInterval Duration `json:"collect_interval"`
}

type LogConfig struct {
	Level string `json:"level"`
}

type RegistryConfig struct {
	LockTimeout          Duration `json:"lock_timeout"`
	ExpectedStars        uint64   `json:"expected_stars"`
	IndexRebuildInterval Duration `json:"index_rebuild_interval"`
	EventHistory         int      `json:"event_history"`
}

// Duration accepts either a Go duration string ("30s") or a number of seconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: Duration{30 * time.Second},
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			DBName:         "starnotary",
			SSLMode:        "disable",
			MigrationsPath: "migrations",
			MaxOpenConns:   100,
			MaxIdleConns:   50,
		},
		Redis: RedisConfig{
			Host:   "localhost",
			Port:   6379,
			Stream: "stars:events",
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			CollectInterval: Duration{30 * time.Second},
		},
		Log: LogConfig{
			Level: "info",
		},
		Registry: RegistryConfig{
			LockTimeout:          Duration{30 * time.Second},
			ExpectedStars:        100000,
			IndexRebuildInterval: Duration{time.Hour},
			EventHistory:         1000,
		},
	}
}

// LoadConfig reads defaults, then the JSON file at path if it exists, then
// a .env file and STAR_* environment variables.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			decoder := json.NewDecoder(file)
			if err := decoder.Decode(config); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.stringVar("SERVER_HOST", &c.Server.Host)
	e.intVar("SERVER_PORT", &c.Server.Port)
	e.durationVar("SERVER_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	e.stringVar("STORAGE_DRIVER", &c.Storage.Driver)

	e.stringVar("DB_HOST", &c.Database.Host)
	e.intVar("DB_PORT", &c.Database.Port)
	e.stringVar("DB_USER", &c.Database.User)
	e.stringVar("DB_PASSWORD", &c.Database.Password)
	e.stringVar("DB_NAME", &c.Database.DBName)
	e.stringVar("DB_SSLMODE", &c.Database.SSLMode)
	e.stringVar("DB_MIGRATIONS_PATH", &c.Database.MigrationsPath)

	e.boolVar("REDIS_ENABLED", &c.Redis.Enabled)
	e.stringVar("REDIS_HOST", &c.Redis.Host)
	e.intVar("REDIS_PORT", &c.Redis.Port)
	e.stringVar("REDIS_PASSWORD", &c.Redis.Password)
	e.intVar("REDIS_DB", &c.Redis.DB)
	e.stringVar("REDIS_STREAM", &c.Redis.Stream)

	e.boolVar("METRICS_ENABLED", &c.Metrics.Enabled)
	e.stringVar("METRICS_ADDRESS", &c.Metrics.Address)

	e.stringVar("LOG_LEVEL", &c.Log.Level)

	e.durationVar("LOCK_TIMEOUT", &c.Registry.LockTimeout)
	e.durationVar("INDEX_REBUILD_INTERVAL", &c.Registry.IndexRebuildInterval)

	return e.err
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres", "pgx":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	if c.Registry.LockTimeout.Duration <= 0 {
		return errors.New("registry lock timeout must be positive")
	}

	return nil
}

func (c *Config) UsesDatabase() bool {
	return c.Storage.Driver != "memory"
}

func (c *DatabaseConfig) GetDSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// envReader applies STAR_* overrides and keeps the first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(envPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
}

func (e *envReader) stringVar(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) intVar(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *envReader) boolVar(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *envReader) durationVar(key string, dst *Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	dst.Duration = d
}
