package config

const (
	defaultConfigPath             = "~/.config/flora/config.toml"
	defaultLogDir                 = "~/.local/share/flora/logs"
	defaultPlantNetBaseURL        = "https://my-api.plantnet.org"
	defaultPlantNetProject        = "all"
	defaultPlantNetOrgan          = "auto"
	defaultPlantNetLanguage       = "en"
	defaultPlantNetMaxResults     = 5
	defaultPlantNetTimeout        = 30
	defaultRequestsPerSecond      = 2
	defaultRetryAttempts          = 3
	defaultRetryBaseDelayMS       = 1000
	defaultRetryMaxDelayMS        = 10000
	defaultBreakerFailures        = 5
	defaultBreakerOpenSeconds     = 60
	defaultLedgerName             = "results.csv"
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultMinConfidence          = 0.0
	defaultIncludeUnidentified    = false
	defaultRecognitionCacheEnable = true
)

var defaultExtensions = []string{".jpg", ".jpeg", ".png"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		PlantNet: PlantNet{
			BaseURL:            defaultPlantNetBaseURL,
			Project:            defaultPlantNetProject,
			Organ:              defaultPlantNetOrgan,
			Language:           defaultPlantNetLanguage,
			MaxResults:         defaultPlantNetMaxResults,
			TimeoutSeconds:     defaultPlantNetTimeout,
			RequestsPerSecond:  defaultRequestsPerSecond,
			RetryAttempts:      defaultRetryAttempts,
			RetryBaseDelayMS:   defaultRetryBaseDelayMS,
			RetryMaxDelayMS:    defaultRetryMaxDelayMS,
			BreakerFailures:    defaultBreakerFailures,
			BreakerOpenSeconds: defaultBreakerOpenSeconds,
		},
		Identification: Identification{
			Extensions:    append([]string(nil), defaultExtensions...),
			MinConfidence: defaultMinConfidence,
			LedgerName:    defaultLedgerName,
		},
		Naming: Naming{
			IncludeUnidentified: defaultIncludeUnidentified,
		},
		Cache: Cache{
			Enabled: defaultRecognitionCacheEnable,
			Path:    defaultCachePath(),
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Identification: true,
			Organization:   true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
