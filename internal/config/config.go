package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	HistoryDBPath string `yaml:"history_db_path"`
	DumpDir       string `yaml:"dump_dir"`
	KeyColumn     string `yaml:"key_column"`
	Quoting       string `yaml:"quoting"`
	LineTerm      string `yaml:"line_terminator"`
	LogLevel      string `yaml:"log_level"`
	Output        string `yaml:"output"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/csvmerge3/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		KeyColumn: "[auto]",
		Quoting:   "minimal",
		LineTerm:  "native",
		LogLevel:  "info",
		Output:    "table",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// Load ~/.config/csvmerge3/config.yaml if it exists
	if err := loadYAMLConfig(cfg); err != nil {
		// YAML config is optional, so we don't fail if it doesn't exist
	}

	// Override with environment variables
	if dbPath := getEnvOrFile("CSVMERGE3_HISTORY_DB", "CSVMERGE3_HISTORY_DB_FILE"); dbPath != "" {
		cfg.HistoryDBPath = dbPath
	}
	if dumpDir := os.Getenv("CSVMERGE3_DUMP_DIR"); dumpDir != "" {
		cfg.DumpDir = dumpDir
	}
	if keyColumn := os.Getenv("CSVMERGE3_KEY"); keyColumn != "" {
		cfg.KeyColumn = keyColumn
	}
	if quoting := os.Getenv("CSVMERGE3_QUOTING"); quoting != "" {
		cfg.Quoting = quoting
	}
	if lineTerm := os.Getenv("CSVMERGE3_LINETERMINATOR"); lineTerm != "" {
		cfg.LineTerm = lineTerm
	}
	if logLevel := os.Getenv("CSVMERGE3_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if output := os.Getenv("CSVMERGE3_OUTPUT"); output != "" {
		cfg.Output = output
	}

	// Set defaults if not configured
	if cfg.HistoryDBPath == "" {
		// Check for project-local history database first
		if _, err := os.Stat(".csvmerge3/history.db"); err == nil {
			cfg.HistoryDBPath = ".csvmerge3/history.db"
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			cfg.HistoryDBPath = filepath.Join(homeDir, ".local", "share", "csvmerge3", "history.db")
		}
	}

	if cfg.DumpDir == "" {
		if cfg.HistoryDBPath == ".csvmerge3/history.db" {
			cfg.DumpDir = ".csvmerge3/dumps"
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			cfg.DumpDir = filepath.Join(homeDir, ".local", "share", "csvmerge3", "dumps")
		}
	}

	return cfg, nil
}

// loadYAMLConfig loads configuration from ~/.config/csvmerge3/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "csvmerge3", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return string(data)
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, just check cwd
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Clean paths for reliable comparison
	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		// Stop if we've reached home directory
		if dir == homeDir {
			break
		}

		// Get parent directory
		parent := filepath.Dir(dir)

		// Stop if we've reached the filesystem root
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
