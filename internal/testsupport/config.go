package testsupport

import (
	"path/filepath"
	"testing"

	"flora/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.PlantNet.APIKey = "test"
	cfgVal.PlantNet.RequestsPerSecond = 0
	cfgVal.PlantNet.RetryBaseDelayMS = 0
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Cache.Path = filepath.Join(base, "cache", "recognition.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPlantNetURL points the PlantNet client at a test server.
func WithPlantNetURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.PlantNet.BaseURL = url
	}
}

// WithAPIKey sets the PlantNet API key on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.PlantNet.APIKey = key
	}
}

// WithIncludeUnidentified toggles the sentinel rename/group policy.
func WithIncludeUnidentified(include bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Naming.IncludeUnidentified = include
	}
}

// WithCache enables or disables the recognition cache.
func WithCache(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Enabled = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
