package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlantNet()
	c.normalizeIdentification()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePlantNet() {
	c.PlantNet.APIKey = strings.TrimSpace(c.PlantNet.APIKey)
	if c.PlantNet.APIKey == "" {
		// Plant_Net_API is the variable name older installs keep in their .env file.
		for _, name := range []string{"PLANTNET_API_KEY", "Plant_Net_API"} {
			if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
				c.PlantNet.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	c.PlantNet.BaseURL = strings.TrimRight(strings.TrimSpace(c.PlantNet.BaseURL), "/")
	if c.PlantNet.BaseURL == "" {
		c.PlantNet.BaseURL = defaultPlantNetBaseURL
	}
	c.PlantNet.Project = strings.ToLower(strings.TrimSpace(c.PlantNet.Project))
	if c.PlantNet.Project == "" {
		c.PlantNet.Project = defaultPlantNetProject
	}
	c.PlantNet.Organ = strings.ToLower(strings.TrimSpace(c.PlantNet.Organ))
	if c.PlantNet.Organ == "" {
		c.PlantNet.Organ = defaultPlantNetOrgan
	}
	c.PlantNet.Language = strings.ToLower(strings.TrimSpace(c.PlantNet.Language))
	if c.PlantNet.Language == "" {
		c.PlantNet.Language = defaultPlantNetLanguage
	}
}

func (c *Config) normalizeIdentification() {
	exts := make([]string, 0, len(c.Identification.Extensions))
	seen := make(map[string]struct{}, len(c.Identification.Extensions))
	for _, ext := range c.Identification.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultExtensions...)
	}
	c.Identification.Extensions = exts
	c.Identification.LedgerName = strings.TrimSpace(c.Identification.LedgerName)
	if c.Identification.LedgerName == "" {
		c.Identification.LedgerName = defaultLedgerName
	}
}

func (c *Config) normalizeCache() error {
	var err error
	if strings.TrimSpace(c.Cache.Path) == "" {
		c.Cache.Path = defaultCachePath()
	}
	if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
