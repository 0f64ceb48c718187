// Package config loads settings from a YAML file, a .env file and GEOINDEX_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kass/go-geo-cellindex/pkg/cover"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/locations"
	"github.com/kass/go-geo-cellindex/pkg/logging"
	"github.com/kass/go-geo-cellindex/pkg/store"
)

// Storage drivers
const (
	DriverMemory       = "memory"
	DriverPostgres     = "postgres"
	DriverGormSQLite   = "gorm-sqlite"
	DriverGormPostgres = "gorm-postgres"
	DriverRedis        = "redis"
)

type Config struct {
	Log     logging.Config `yaml:"log"`
	Storage StorageConfig  `yaml:"storage"`
	Query   QueryConfig    `yaml:"query"`
	HTTP    HTTPConfig     `yaml:"http"`
	Dataset DatasetConfig  `yaml:"dataset"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
	// Snapshot is the file the memory driver is restored from and saved to.
	Snapshot string      `yaml:"snapshot"`
	Redis    RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type QueryConfig struct {
	Policy          string `yaml:"policy"`
	MaxRanges       int    `yaml:"max_ranges"`
	MaxLevel        int    `yaml:"max_level"`
	Refine          bool   `yaml:"refine"`
	ChunkSize       int    `yaml:"chunk_size"`
	ScanParallelism int    `yaml:"scan_parallelism"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatasetConfig struct {
	Seed  int64 `yaml:"seed"`
	Count int   `yaml:"count"`
}

func Default() Config {
	return Config{
		Log: logging.Config{Level: "info", Format: "console"},
		Storage: StorageConfig{
			Driver: DriverMemory,
			Table:  store.DefaultSchema.Table,
			Redis:  RedisConfig{Addr: "127.0.0.1:6379", Prefix: "geoindex"},
		},
		Query: QueryConfig{
			Policy:          cover.PolicyExact.String(),
			MaxRanges:       cover.DefaultMaxRanges,
			Refine:          true,
			ChunkSize:       locations.DefaultChunkSize,
			ScanParallelism: 8,
		},
		HTTP:    HTTPConfig{Addr: ":8080", AllowedOrigins: []string{"*"}},
		Dataset: DatasetConfig{Seed: 1234, Count: 1_000_000},
	}
}

// Load starts from Default, overlays the YAML file at path when path is not
// empty, then .env and the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errs.InvalidArgument(key, "%q is not an integer", v)
		}
		*dst = n
		return nil
	}

	str("GEOINDEX_LOG_LEVEL", &c.Log.Level)
	str("GEOINDEX_LOG_FORMAT", &c.Log.Format)
	str("GEOINDEX_STORAGE", &c.Storage.Driver)
	str("GEOINDEX_DSN", &c.Storage.DSN)
	str("GEOINDEX_SNAPSHOT", &c.Storage.Snapshot)
	str("GEOINDEX_REDIS_ADDR", &c.Storage.Redis.Addr)
	str("GEOINDEX_REDIS_PASSWORD", &c.Storage.Redis.Password)
	str("GEOINDEX_POLICY", &c.Query.Policy)
	str("GEOINDEX_HTTP_ADDR", &c.HTTP.Addr)

	if err := num("GEOINDEX_REDIS_DB", &c.Storage.Redis.DB); err != nil {
		return err
	}
	if err := num("GEOINDEX_MAX_RANGES", &c.Query.MaxRanges); err != nil {
		return err
	}
	if v := getenv("GEOINDEX_REFINE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errs.InvalidArgument("GEOINDEX_REFINE", "%q is not a boolean", v)
		}
		c.Query.Refine = b
	}
	if v := getenv("GEOINDEX_ALLOWED_ORIGINS"); v != "" {
		c.HTTP.AllowedOrigins = strings.Split(v, ",")
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverRedis:
	case DriverPostgres, DriverGormPostgres, DriverGormSQLite:
		if c.Storage.DSN == "" {
			return errs.InvalidArgument("storage.dsn", "required by driver %q", c.Storage.Driver)
		}
	default:
		return errs.InvalidArgument("storage.driver", "unknown driver %q", c.Storage.Driver)
	}

	if _, err := cover.ParsePolicy(c.Query.Policy); err != nil {
		return err
	}
	if c.Query.MaxRanges <= 0 {
		return errs.InvalidArgument("query.max_ranges", "%d must be positive", c.Query.MaxRanges)
	}
	return nil
}

// Schema is the default layout with the configured table name.
func (c Config) Schema() store.Schema {
	s := store.DefaultSchema
	if c.Storage.Table != "" {
		s.Table = c.Storage.Table
	}
	return s
}

// Locations converts the query section into service defaults.
func (c Config) Locations() (locations.Config, error) {
	policy, err := cover.ParsePolicy(c.Query.Policy)
	if err != nil {
		return locations.Config{}, err
	}
	return locations.Config{
		ChunkSize:       c.Query.ChunkSize,
		ScanParallelism: c.Query.ScanParallelism,
		Policy:          policy,
		MaxLevel:        c.Query.MaxLevel,
		MaxRanges:       c.Query.MaxRanges,
		Refine:          c.Query.Refine,
	}, nil
}
