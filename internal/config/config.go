package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server        Server        `mapstructure:"server"`
	Redis         Redis         `mapstructure:"redis"`
	Database      Database      `mapstructure:"database"`
	Storage       Storage       `mapstructure:"storage"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Embeddings    Embeddings    `mapstructure:"embeddings"`
	Fetcher       Fetcher       `mapstructure:"fetcher"`
	Chunking      Chunking      `mapstructure:"chunking"`
	Pipeline      Pipeline      `mapstructure:"pipeline"`
	Usage         Usage         `mapstructure:"usage"`
	MCP           MCP           `mapstructure:"mcp"`
}

// Server holds HTTP API configuration.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	ScrapePath      string        `mapstructure:"scrape_path"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Redis holds the API key store connection.
type Redis struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Database holds the SQLite file used for file rows and usage logs.
type Database struct {
	Path string `mapstructure:"path"`
}

// Storage holds S3/MinIO storage configuration.
type Storage struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Elasticsearch holds ES connection configuration for chunk documents.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Dims      int      `mapstructure:"dims"`
}

// Embeddings holds embedding provider configuration.
type Embeddings struct {
	Provider   string `mapstructure:"provider"` // "openai" or "dmr"
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	SocketPath string `mapstructure:"socket_path"`
	Model      string `mapstructure:"model"`
}

// Fetcher holds page fetching configuration.
type Fetcher struct {
	Engine     string        `mapstructure:"engine"` // "browser" or "static"
	Timeout    time.Duration `mapstructure:"timeout"`
	UserAgent  string        `mapstructure:"user_agent"`
	ChromePath string        `mapstructure:"chrome_path"`
}

// Chunking holds the defaults applied when a request omits them.
type Chunking struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// Pipeline holds orchestration policy.
type Pipeline struct {
	OnFailure string `mapstructure:"on_failure"` // "keep" or "cleanup"
}

// Usage holds usage logger configuration.
type Usage struct {
	QueueSize int `mapstructure:"queue_size"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

const (
	OnFailureKeep    = "keep"
	OnFailureCleanup = "cleanup"
)

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ScrapePath:      "/scrape",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Redis: Redis{
			Addr:      "localhost:6379",
			KeyPrefix: "api_keys:",
		},
		Database: Database{
			Path: "supavec.db",
		},
		Storage: Storage{
			Endpoint:        "localhost:9000",
			Bucket:          "supavec-files",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		Elasticsearch: Elasticsearch{
			Addresses: []string{"http://localhost:9200"},
			Index:     "supavec-documents",
			Dims:      1536,
		},
		Embeddings: Embeddings{
			Provider: "openai",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "text-embedding-3-small",
		},
		Fetcher: Fetcher{
			Engine:    "browser",
			Timeout:   80 * time.Second, // page-load timeout of a single fetch
			UserAgent: "supavec/1.0",
		},
		Chunking: Chunking{
			Size:    1500,
			Overlap: 20,
		},
		Pipeline: Pipeline{
			OnFailure: OnFailureKeep,
		},
		Usage: Usage{
			QueueSize: 256,
		},
		MCP: MCP{
			Name:    "supavec",
			Version: "1.0.0",
		},
	}
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Fetcher.Engine {
	case "browser", "static":
	default:
		return fmt.Errorf("fetcher.engine must be browser or static, got %q", c.Fetcher.Engine)
	}
	switch c.Embeddings.Provider {
	case "openai", "dmr":
	default:
		return fmt.Errorf("embeddings.provider must be openai or dmr, got %q", c.Embeddings.Provider)
	}
	switch c.Pipeline.OnFailure {
	case OnFailureKeep, OnFailureCleanup:
	default:
		return fmt.Errorf("pipeline.on_failure must be keep or cleanup, got %q", c.Pipeline.OnFailure)
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	return nil
}
