package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables read by LoadConfig.
const (
	EnvMongoConn       = "MONGO_CONNECTION_STRING"
	EnvMongoDatabase   = "MONGO_DATABASE"
	EnvSQLConn         = "SQL_CONNECTION_STRING"
	EnvSQLitePath      = "SQLITE_PATH"
	EnvCacheSize       = "CACHE_SIZE"
	EnvDefaultProvider = "DEFAULT_PROVIDER"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFile         = "LOG_FILE"
	EnvWriteRateLimit  = "WRITE_RATE_LIMIT"
)

// LoadConfig loads application settings from environment variables
// (which should be populated by the .env file in main.go).
// Providers are added in the order mongo, sqlserver, sqlite, memory so the
// first configured backend becomes the default.
func LoadConfig() (*Config, error) {
	cfg := New()

	rate := 0.0
	if v := os.Getenv(EnvWriteRateLimit); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvWriteRateLimit, err)
		}
		rate = f
	}

	if conn := os.Getenv(EnvMongoConn); conn != "" {
		db := os.Getenv(EnvMongoDatabase)
		if db == "" {
			db = DefaultMongoDatabase
		}
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			Name: "mongo", Kind: "mongo", DSN: conn, Database: db,
		})
	}

	if conn := os.Getenv(EnvSQLConn); conn != "" {
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			Name: "sqlserver", Kind: "sql", Dialect: DialectSQLServer, DSN: conn, WritesPerSecond: rate,
		})
	}

	if path := os.Getenv(EnvSQLitePath); path != "" {
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			Name: "sqlite", Kind: "sql", Dialect: DialectSQLite, DSN: path, WritesPerSecond: rate,
		})
	}

	if v, ok := os.LookupEnv(EnvCacheSize); ok {
		size := 0
		if v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", EnvCacheSize, err)
			}
			size = n
		}
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			Name: "memory", Kind: "memory", CacheSize: size,
		})
	}

	cfg.DefaultProvider = os.Getenv(EnvDefaultProvider)
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	cfg.LogFile = os.Getenv(EnvLogFile)

	return cfg, nil
}
