package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	Wrapper     WrapperConfig    `json:"wrapper"`
	FileStore   FileStoreConfig  `json:"file_store"`
	Ingest      IngestConfig     `json:"ingest"`
	CORSOrigins []string         `json:"cors_origins"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// WrapperConfig configures the AI wrapper client. Every model call in this
// project goes through the wrapper; no handler talks to a provider directly.
type WrapperConfig struct {
	BaseURL          string  `json:"base_url"`
	Key              string  `json:"key"`
	TimeoutSeconds   int     `json:"timeout_seconds"`
	MaxRetries       int     `json:"max_retries"`
	BaseDelaySeconds float64 `json:"base_delay_seconds"`
	ChatModel        string  `json:"chat_model"`
	EmbeddingModel   string  `json:"embedding_model"`
	EmbeddingDim     int     `json:"embedding_dim"`
	EmbedBatchSize   int     `json:"embed_batch_size"`
	CacheSize        int     `json:"cache_size"`
	CacheTTLMinutes  int     `json:"cache_ttl_minutes"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type IngestConfig struct {
	MaxUploadBytes   int64  `json:"max_upload_bytes"`
	MaxTextChars     int    `json:"max_text_chars"`
	SweepSchedule    string `json:"sweep_schedule"`
	SweepAfterMinute int    `json:"sweep_after_minutes"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && (cfg.Database.Host == "" || cfg.Database.DBName == "") {
		return nil, fmt.Errorf("database.dsn or database.host/db_name are required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Wrapper.BaseURL == "" {
		return nil, fmt.Errorf("wrapper.base_url is required")
	}
	if cfg.Wrapper.Key == "" {
		return nil, fmt.Errorf("wrapper.key is required")
	}
	if cfg.Wrapper.TimeoutSeconds == 0 {
		cfg.Wrapper.TimeoutSeconds = 30
	}
	if cfg.Wrapper.MaxRetries == 0 {
		cfg.Wrapper.MaxRetries = 3
	}
	if cfg.Wrapper.BaseDelaySeconds == 0 {
		cfg.Wrapper.BaseDelaySeconds = 1.0
	}
	if cfg.Wrapper.ChatModel == "" {
		cfg.Wrapper.ChatModel = "routeway/glm-4.5-air:free"
	}
	if cfg.Wrapper.EmbeddingModel == "" {
		cfg.Wrapper.EmbeddingModel = "gemini/gemini-embedding-001"
	}
	if cfg.Wrapper.EmbeddingDim == 0 {
		cfg.Wrapper.EmbeddingDim = 1536
	}
	if cfg.Wrapper.EmbedBatchSize == 0 {
		cfg.Wrapper.EmbedBatchSize = 100
	}
	if cfg.FileStore.Type == "" {
		return nil, fmt.Errorf("file_store.type is required")
	}
	if cfg.Ingest.MaxUploadBytes == 0 {
		cfg.Ingest.MaxUploadBytes = 20 * 1024 * 1024
	}
	if cfg.Ingest.MaxTextChars == 0 {
		cfg.Ingest.MaxTextChars = 5_000_000
	}
	if cfg.Ingest.SweepSchedule == "" {
		cfg.Ingest.SweepSchedule = "*/10 * * * *"
	}
	if cfg.Ingest.SweepAfterMinute == 0 {
		cfg.Ingest.SweepAfterMinute = 60
	}
	return &cfg, nil
}
