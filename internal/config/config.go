package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

const (
	DefaultModel          = "models/gemini-2.0-flash"
	DefaultInsecureSecret = "notemate-dev-secret-change-me"
)

type Config struct {
	Port                int              `json:"port"`
	Secret              string           `json:"secret"`
	Database            DatabaseConfig   `json:"database"`
	FileStore           FileStoreConfig  `json:"file_store"`
	MaxUploadSize       int64            `json:"max_upload_size"`
	AI                  AIConfig         `json:"ai"`
	RateLimitSeconds    int              `json:"rate_limit_seconds"`
	FileTokenTTLMinutes int              `json:"file_token_ttl_minutes"`
	Cleanup             CleanupConfig    `json:"cleanup"`
	CORSOrigins         []string         `json:"cors_origins"`
	LogConfig           logger.LogConfig `json:"log_config"`
}

type DatabaseConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
	DSN    string `json:"dsn"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider       string      `json:"provider"`
	Model          string      `json:"model"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	MaxInputChars  int         `json:"max_input_chars"`
	MaxHistory     int         `json:"max_history"`
	Data           interface{} `json:"data"`
}

type CleanupConfig struct {
	Cron         string `json:"cron"`
	GraceMinutes int    `json:"grace_minutes"`
}

// Load reads the optional JSON file at path, applies environment
// overrides and fills defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	applyEnv(cfg)
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InsecureSecret reports whether the session secret is the development default.
func (c *Config) InsecureSecret() bool {
	return c.Secret == DefaultInsecureSecret
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NOTEMATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("NOTEMATE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NOTEMATE_SECRET"); v != "" {
		cfg.Secret = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		data, _ := cfg.AI.Data.(map[string]interface{})
		if data == nil {
			data = map[string]interface{}{}
		}
		data["api_key"] = v
		cfg.AI.Data = data
	}
}

func applyDefaults(cfg *Config) error {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Secret == "" {
		cfg.Secret = DefaultInsecureSecret
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			cfg.Database.Path = "notemate.db"
		}
	case "postgres":
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres")
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.FileStore.Type == "local" && cfg.FileStore.Data == nil {
		cfg.FileStore.Data = map[string]interface{}{"dir": "uploads"}
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 50 * 1024 * 1024
	}
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = DefaultModel
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.AI.MaxInputChars <= 0 {
		cfg.AI.MaxInputChars = 12000
	}
	if cfg.AI.MaxHistory <= 0 {
		cfg.AI.MaxHistory = 20
	}
	if cfg.AI.Data == nil {
		cfg.AI.Data = map[string]interface{}{}
	}
	switch {
	case cfg.RateLimitSeconds == 0:
		cfg.RateLimitSeconds = 1
	case cfg.RateLimitSeconds < 0:
		cfg.RateLimitSeconds = 0
	}
	if cfg.FileTokenTTLMinutes <= 0 {
		cfg.FileTokenTTLMinutes = 60
	}
	if cfg.Cleanup.Cron == "" {
		cfg.Cleanup.Cron = "0 * * * *"
	}
	if cfg.Cleanup.GraceMinutes <= 0 {
		cfg.Cleanup.GraceMinutes = 60
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	return nil
}
