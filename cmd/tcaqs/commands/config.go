package commands

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"tcaqs/internal/db"
	"tcaqs/internal/pipeline"
	"tcaqs/internal/reconcile"
	"tcaqs/internal/scrapers/bazaar"
	"tcaqs/lib/configutil"
)

type FetchConfig struct {
	BaseUrl        string `json:"base_url"`
	Concurrency    int    `json:"concurrency"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// DumpDir keeps a copy of every http exchange for debugging.
	DumpDir string `json:"dump_dir"`
}

type Config struct {
	Database db.Config `json:"database"`

	// Sources is the directory of <id>.html listing documents.
	Sources string `json:"sources"`
	// Servers is the servers.json metadata table.
	Servers string `json:"servers"`

	Workers                int    `json:"workers"`
	ChunkSize              int    `json:"chunk_size"`
	BatchSize              int    `json:"batch_size"`
	DocumentTimeoutSeconds int    `json:"document_timeout_seconds"`
	ErrorLog               string `json:"error_log"`

	Fetch FetchConfig `json:"fetch"`
}

func (c Config) DocumentTimeout() time.Duration {
	return time.Duration(c.DocumentTimeoutSeconds) * time.Second
}

var defaultConfig = Config{
	Database:               db.Config{File: "characters.db"},
	Sources:                "scrap",
	Servers:                "data/servers.json",
	ChunkSize:              pipeline.DefaultChunkSize,
	BatchSize:              reconcile.DefaultBatchSize,
	DocumentTimeoutSeconds: 30,
	ErrorLog:               "processing-errors.txt",
	Fetch: FetchConfig{
		BaseUrl:        bazaar.DefaultBaseUrl,
		Concurrency:    4,
		TimeoutSeconds: 30,
	},
}

func loadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig(path, defaultConfig)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file found, using defaults", "path", path)
		return defaultConfig, nil
	}
	return cfg, err
}
