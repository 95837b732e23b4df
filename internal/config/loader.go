package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rpattn/crmimport/internal/db"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string
}

// ImportConfig holds the import pipeline tunables.
type ImportConfig struct {
	Directory              string
	ChunkSize              int
	AsyncThresholdContacts int
	AsyncThresholdDeals    int
	MaxUploadBytes         int64
	JobTimeoutMinutes      int
}

// Config aggregates server, database and import settings.
type Config struct {
	Server   ServerConfig
	Database db.Config
	Import   ImportConfig
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: db.DefaultConfig(),
		Import: ImportConfig{
			Directory:              "./imports",
			ChunkSize:              100,
			AsyncThresholdContacts: 200,
			AsyncThresholdDeals:    100,
			MaxUploadBytes:         5 << 20,
			JobTimeoutMinutes:      30,
		},
	}
}

// Load reads config.yaml from configPath and applies environment overrides.
// Env vars are prefixed with CRM, e.g. CRM_DATABASE_HOST, CRM_SERVER_ADDR.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("CRM")

	keys := []string{
		"server.addr",
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"import.directory",
		"import.chunk_size",
		"import.async_threshold_contacts",
		"import.async_threshold_deals",
		"import.max_upload_bytes",
		"import.job_timeout_minutes",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("import.directory") {
		cfg.Import.Directory = v.GetString("import.directory")
	}
	if v.IsSet("import.chunk_size") {
		cfg.Import.ChunkSize = v.GetInt("import.chunk_size")
	}
	if v.IsSet("import.async_threshold_contacts") {
		cfg.Import.AsyncThresholdContacts = v.GetInt("import.async_threshold_contacts")
	}
	if v.IsSet("import.async_threshold_deals") {
		cfg.Import.AsyncThresholdDeals = v.GetInt("import.async_threshold_deals")
	}
	if v.IsSet("import.max_upload_bytes") {
		cfg.Import.MaxUploadBytes = v.GetInt64("import.max_upload_bytes")
	}
	if v.IsSet("import.job_timeout_minutes") {
		cfg.Import.JobTimeoutMinutes = v.GetInt("import.job_timeout_minutes")
	}

	return cfg, nil
}
