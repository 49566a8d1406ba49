package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable. The PlantNet API key is
// optional here; the identification pipeline requires it.
func (c *Config) Validate() error {
	if err := c.validatePlantNet(); err != nil {
		return err
	}
	if err := c.validateIdentification(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePlantNet() error {
	if err := ensurePositiveMap(map[string]int{
		"plantnet.max_results":          c.PlantNet.MaxResults,
		"plantnet.timeout_seconds":      c.PlantNet.TimeoutSeconds,
		"plantnet.retry_attempts":       c.PlantNet.RetryAttempts,
		"plantnet.retry_max_delay_ms":   c.PlantNet.RetryMaxDelayMS,
		"plantnet.breaker_failures":     c.PlantNet.BreakerFailures,
		"plantnet.breaker_open_seconds": c.PlantNet.BreakerOpenSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.PlantNet.RetryBaseDelayMS < 0 {
		return errors.New("plantnet.retry_base_delay_ms must be >= 0")
	}
	if c.PlantNet.RetryBaseDelayMS > c.PlantNet.RetryMaxDelayMS {
		return errors.New("plantnet.retry_base_delay_ms must not exceed plantnet.retry_max_delay_ms")
	}
	if c.PlantNet.RequestsPerSecond < 0 {
		return errors.New("plantnet.requests_per_second must be >= 0 (0 disables pacing)")
	}
	if !strings.HasPrefix(c.PlantNet.BaseURL, "http://") && !strings.HasPrefix(c.PlantNet.BaseURL, "https://") {
		return fmt.Errorf("plantnet.base_url must be an http(s) URL, got %q", c.PlantNet.BaseURL)
	}
	return nil
}

func (c *Config) validateIdentification() error {
	if c.Identification.MinConfidence < 0 || c.Identification.MinConfidence > 1 {
		return errors.New("identification.min_confidence must be between 0 and 1")
	}
	if filepath.Base(c.Identification.LedgerName) != c.Identification.LedgerName {
		return errors.New("identification.ledger_name must be a file name, not a path")
	}
	if !strings.EqualFold(filepath.Ext(c.Identification.LedgerName), ".csv") {
		return errors.New("identification.ledger_name must end in .csv")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.Enabled && strings.TrimSpace(c.Cache.Path) == "" {
		return errors.New("cache.path must be set when cache.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
