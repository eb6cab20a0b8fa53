package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       App       `mapstructure:"app"`
	Embedding Embedding `mapstructure:"embedding"`
	RAG       RAG       `mapstructure:"rag"`
	OpenAlex  OpenAlex  `mapstructure:"openalex"`
	Zotero    Zotero    `mapstructure:"zotero"`
	DataLab   DataLab   `mapstructure:"datalab"`
}

// App holds general application configuration
type App struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
}

// Embedding holds embedding endpoint configuration
type Embedding struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Timeout string `mapstructure:"timeout"`
}

// RAG holds vector database configuration
type RAG struct {
	DBPath string `mapstructure:"db_path"`
}

// OpenAlex holds scholarly-metadata service configuration
type OpenAlex struct {
	BaseURL  string `mapstructure:"base_url"`
	Mailto   string `mapstructure:"mailto"`
	CacheDir string `mapstructure:"cache_dir"`
}

// Zotero holds reference-manager service configuration
type Zotero struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	UserID  string `mapstructure:"user_id"`
}

// DataLab holds PDF layout service configuration
type DataLab struct {
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	CacheDir string `mapstructure:"cache_dir"`
}

// Load reads configuration from file, .env, and environment, in that
// order of increasing precedence; .env only sets variables not already
// present in the environment.
func Load(cfgFile string) (*Config, error) {
	// .env is optional; environment variables win over file values
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".papers")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("PAPERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.data_dir", "")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("embedding.base_url", "http://localhost:8089")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.timeout", "180s")
	v.SetDefault("rag.db_path", "")
	v.SetDefault("openalex.base_url", "https://api.openalex.org")
	v.SetDefault("openalex.mailto", "")
	v.SetDefault("zotero.base_url", "https://api.zotero.org")
	v.SetDefault("datalab.base_url", "https://www.datalab.to")
}

// applyEnvOverrides wires the three env overrides the core consults.
// They take precedence over everything else.
func applyEnvOverrides(cfg *Config) {
	if dir := os.Getenv("PAPERS_DATA_DIR"); dir != "" {
		cfg.App.DataDir = dir
	}
	if dir := os.Getenv("PAPERS_DATALAB_CACHE_DIR"); dir != "" {
		cfg.DataLab.CacheDir = dir
	}
	if p := os.Getenv("PAPERS_RAG_DB"); p != "" {
		cfg.RAG.DBPath = p
	}
}

// DataDir resolves the data root: configured value, else the user config
// dir, else a dot directory in the working directory.
func (c *Config) DataDir() string {
	if c.App.DataDir != "" {
		return c.App.DataDir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "papers")
	}
	return ".papers"
}

// RagDBPath resolves the vector database directory.
func (c *Config) RagDBPath() string {
	if c.RAG.DBPath != "" {
		return c.RAG.DBPath
	}
	return filepath.Join(c.DataDir(), "rag")
}

// DataLabCacheDir resolves the PDF extraction cache root.
func (c *Config) DataLabCacheDir() string {
	if c.DataLab.CacheDir != "" {
		return c.DataLab.CacheDir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "papers", "datalab")
	}
	return filepath.Join(".papers", "datalab")
}
