package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

const secret = "0123456789abcdef0123"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", secret)
	c, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.AppPort != "8080" || c.StoreDriver != DriverMemory || c.SessionTTL != 24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.IdempotencyTTL() != 5*time.Minute || c.MaxDocumentBytes != 10<<20 || c.StatsSchedule != "@every 30s" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_EnvAndFlags(t *testing.T) {
	t.Setenv("SESSION_SECRET", secret)
	t.Setenv("STORE_DRIVER", "MySQL")
	t.Setenv("MYSQL_HOST", "db.internal")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("APP_PORT", "9000")

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.String("port", "", "")
	fs.String("log-level", "", "")
	if err := fs.Parse([]string{"--port=7070"}); err != nil {
		t.Fatal(err)
	}

	c, err := Load(fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.AppPort != "7070" {
		t.Fatalf("flag should win over env, got %q", c.AppPort)
	}
	if c.LogLevel != "info" {
		t.Fatalf("unset flag must not clear the default, got %q", c.LogLevel)
	}
	if c.StoreDriver != DriverMySQL || c.MySQLHost != "db.internal" || c.RedisDB != 3 || c.SessionTTL != 90*time.Minute {
		t.Fatalf("env not applied: %+v", c)
	}
	if c.RedisAddr != "" {
		t.Fatalf("empty REDIS_ADDR should disable redis, got %q", c.RedisAddr)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if dsn := c.MySQLDSN(); !strings.Contains(dsn, "@tcp(db.internal:3306)/ledger?") || !strings.Contains(dsn, "parseTime=true&loc=UTC") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			AppPort: "8080", StoreDriver: DriverMySQL,
			MySQLHost: "h", MySQLPort: "3306", MySQLDB: "d", MySQLUser: "u",
			SQLitePath: "x.db", SessionSecret: secret, SessionTTL: time.Hour,
			IdempTTLSecs: 60, MaxDocumentBytes: 1,
		}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"no port", func(c *Config) { c.AppPort = "" }, "APP_PORT"},
		{"unknown driver", func(c *Config) { c.StoreDriver = "postgres" }, "STORE_DRIVER"},
		{"mysql host", func(c *Config) { c.MySQLHost = "" }, "MySQL"},
		{"mysql port", func(c *Config) { c.MySQLPort = "not-a-port" }, "MYSQL_PORT"},
		{"sqlite path", func(c *Config) { c.StoreDriver = DriverSQLite; c.SQLitePath = "" }, "SQLITE_PATH"},
		{"short secret", func(c *Config) { c.SessionSecret = "short" }, "SESSION_SECRET"},
		{"session ttl", func(c *Config) { c.SessionTTL = 0 }, "SESSION_TTL"},
		{"idempotency ttl", func(c *Config) { c.IdempTTLSecs = 0 }, "IDEMPOTENCY_TTL_SECONDS"},
		{"document size", func(c *Config) { c.MaxDocumentBytes = 0 }, "MAX_DOCUMENT_BYTES"},
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("want error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
