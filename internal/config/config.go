// Package config provides configuration loading and structs for the Precedex server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Vectorizer VectorizerConfig `yaml:"vectorizer"`
	Search     SearchConfig     `yaml:"search"`
	Intake     IntakeConfig     `yaml:"intake"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the durable stores.
type StorageConfig struct {
	DatabasePath  string `yaml:"database_path"`
	VectorLogPath string `yaml:"vector_log_path"`
	ModelPath     string `yaml:"model_path"`
	FilesDir      string `yaml:"files_dir"`
}

// VectorizerConfig holds vocabulary fitting settings.
type VectorizerConfig struct {
	DomainVocabularyPath string  `yaml:"domain_vocabulary_path"`
	MinDocFreq           int     `yaml:"min_doc_freq"`
	MaxDocRatio          float64 `yaml:"max_doc_ratio"`
}

// SearchConfig holds ranking settings.
type SearchConfig struct {
	DefaultTopK     int     `yaml:"default_top_k"`
	MaxTopK         int     `yaml:"max_top_k"`
	DefaultMinScore float64 `yaml:"default_min_score"`
	SnippetLength   int     `yaml:"snippet_length"`
}

// IntakeConfig holds corpus drop-directory watch settings.
type IntakeConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (c *IntakeConfig) RecursiveOrDefault() bool {
	if c.Recursive != nil {
		return *c.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorLogPath = expandPath(cfg.Storage.VectorLogPath, configDir)
	cfg.Storage.ModelPath = expandPath(cfg.Storage.ModelPath, configDir)
	cfg.Storage.FilesDir = expandPath(cfg.Storage.FilesDir, configDir)
	if cfg.Vectorizer.DomainVocabularyPath != "" {
		cfg.Vectorizer.DomainVocabularyPath = expandPath(cfg.Vectorizer.DomainVocabularyPath, configDir)
	}
	for i := range cfg.Intake.Directories {
		cfg.Intake.Directories[i] = expandPath(cfg.Intake.Directories[i], configDir)
	}

	return &cfg, nil
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
