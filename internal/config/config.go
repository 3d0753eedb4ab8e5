package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	AppPort     string `mapstructure:"app_port"`
	StoreDriver string `mapstructure:"store_driver"`

	MySQLHost string `mapstructure:"mysql_host"`
	MySQLPort string `mapstructure:"mysql_port"`
	MySQLDB   string `mapstructure:"mysql_db"`
	MySQLUser string `mapstructure:"mysql_user"`
	MySQLPass string `mapstructure:"mysql_pass"`

	SQLitePath string `mapstructure:"sqlite_path"`

	// RedisAddr may be empty for a single node; sessions then live in memory
	// and mutations run without the idempotency guard.
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`

	IdempTTLSecs int `mapstructure:"idempotency_ttl_seconds"`

	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`

	LogLevel         string `mapstructure:"log_level"`
	StatsSchedule    string `mapstructure:"stats_schedule"`
	MaxDocumentBytes int64  `mapstructure:"max_document_bytes"`
}

var defaults = map[string]any{
	"app_port":                "8080",
	"store_driver":            DriverMemory,
	"mysql_host":              "mysql",
	"mysql_port":              "3306",
	"mysql_db":                "ledger",
	"mysql_user":              "ledger",
	"mysql_pass":              "ledger",
	"sqlite_path":             "ledger.db",
	"redis_addr":              "redis:6379",
	"redis_db":                0,
	"idempotency_ttl_seconds": 300,
	"session_secret":          "",
	"session_ttl":             "24h",
	"log_level":               "info",
	"stats_schedule":          "@every 30s",
	"max_document_bytes":      10 << 20,
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"port":      "app_port",
	"store":     "store_driver",
	"log-level": "log_level",
}

// Load reads the environment (APP_PORT, STORE_DRIVER, …) over the defaults.
// Flags in fs, when set, win over both.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	return c, nil
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	case DriverMySQL:
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (memory, mysql, sqlite)", c.StoreDriver)
	}
	if len(c.SessionSecret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 bytes")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("invalid SESSION_TTL %s", c.SessionTTL)
	}
	if c.IdempTTLSecs <= 0 {
		return fmt.Errorf("invalid IDEMPOTENCY_TTL_SECONDS %d", c.IdempTTLSecs)
	}
	if c.MaxDocumentBytes <= 0 {
		return fmt.Errorf("invalid MAX_DOCUMENT_BYTES %d", c.MaxDocumentBytes)
	}
	return nil
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempTTLSecs) * time.Second
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime + loc=UTC keep DATETIME(6) columns round-tripping as UTC
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&loc=UTC&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
