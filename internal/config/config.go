package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// PlantNet contains configuration for the PlantNet identification API.
type PlantNet struct {
	APIKey             string  `toml:"api_key"`
	BaseURL            string  `toml:"base_url"`
	Project            string  `toml:"project"`
	Organ              string  `toml:"organ"`
	Language           string  `toml:"language"`
	MaxResults         int     `toml:"max_results"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	RequestsPerSecond  float64 `toml:"requests_per_second"`
	RetryAttempts      int     `toml:"retry_attempts"`
	RetryBaseDelayMS   int     `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS    int     `toml:"retry_max_delay_ms"`
	BreakerFailures    int     `toml:"breaker_failures"`
	BreakerOpenSeconds int     `toml:"breaker_open_seconds"`
}

// Identification contains configuration for directory scans.
type Identification struct {
	Extensions    []string `toml:"extensions"`
	MinConfidence float64  `toml:"min_confidence"`
	LedgerName    string   `toml:"ledger_name"`
}

// Naming contains configuration shared by rename and group.
type Naming struct {
	IncludeUnidentified bool `toml:"include_unidentified"`
}

// Cache contains configuration for the recognition answer cache.
type Cache struct {
	Enabled bool   `toml:"enabled"` // Default: true
	Path    string `toml:"path"`    // Default: ~/.cache/flora/recognition.db
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Identification bool   `toml:"identification"`
	Organization   bool   `toml:"organization"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for flora.
//
// Configuration sections by subsystem:
//   - Paths: log directory
//   - PlantNet: recognition service credentials, pacing and retry policy
//   - Identification: image extensions, confidence floor, default ledger name
//   - Naming: whether unidentified images take part in rename and group
//   - Cache: recognition answer cache
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths          Paths          `toml:"paths"`
	PlantNet       PlantNet       `toml:"plantnet"`
	Identification Identification `toml:"identification"`
	Naming         Naming         `toml:"naming"`
	Cache          Cache          `toml:"cache"`
	Notifications  Notifications  `toml:"notifications"`
	Logging        Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("flora.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// IsImage reports whether name carries one of the configured image extensions.
func (c *Config) IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, allowed := range c.Identification.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// LedgerPath returns the ledger location for dir when none is given explicitly.
func (c *Config) LedgerPath(dir string) string {
	return filepath.Join(dir, c.Identification.LedgerName)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCachePath() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "flora", "recognition.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/flora/recognition.db"
	}
	return filepath.Join(home, ".cache", "flora", "recognition.db")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
