package main

import (
	"fmt"
	"log/slog"
	"time"

	"flora/internal/config"
	"flora/internal/logging"
	"flora/internal/recogcache"
	"flora/internal/services/plantnet"
)

// recognizer bundles the configured recognizer with its optional cache.
type recognizer struct {
	plantnet.Recognizer
	cache *recogcache.Recognizer
	store *recogcache.Store
}

func (r *recognizer) Close() {
	if r != nil && r.store != nil {
		_ = r.store.Close()
	}
}

func newRecognizer(cfg *config.Config, logger *slog.Logger, noCache bool) (*recognizer, error) {
	client, err := plantnet.New(plantnet.Config{
		APIKey:             cfg.PlantNet.APIKey,
		BaseURL:            cfg.PlantNet.BaseURL,
		Project:            cfg.PlantNet.Project,
		Organ:              cfg.PlantNet.Organ,
		Language:           cfg.PlantNet.Language,
		MaxResults:         cfg.PlantNet.MaxResults,
		TimeoutSeconds:     cfg.PlantNet.TimeoutSeconds,
		RequestsPerSecond:  cfg.PlantNet.RequestsPerSecond,
		BreakerFailures:    cfg.PlantNet.BreakerFailures,
		BreakerOpenSeconds: cfg.PlantNet.BreakerOpenSeconds,
	},
		plantnet.WithLogger(logger),
		plantnet.WithRetryMaxAttempts(cfg.PlantNet.RetryAttempts),
		plantnet.WithRetryBackoff(
			time.Duration(cfg.PlantNet.RetryBaseDelayMS)*time.Millisecond,
			time.Duration(cfg.PlantNet.RetryMaxDelayMS)*time.Millisecond,
		),
	)
	if err != nil {
		return nil, err
	}

	r := &recognizer{Recognizer: client}
	if noCache || !cfg.Cache.Enabled {
		return r, nil
	}
	store, err := recogcache.Open(cfg.Cache.Path)
	if err != nil {
		logging.WarnWithContext(logger, "recognition cache unavailable", "recognition_cache_open_failed",
			logging.String("path", cfg.Cache.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache.path or run with --no-cache"),
			logging.String(logging.FieldImpact, "every image is sent to PlantNet"),
		)
		return r, nil
	}
	r.store = store
	r.cache = recogcache.NewRecognizer(client, store, recogcache.Scope{
		Project:    cfg.PlantNet.Project,
		Organ:      cfg.PlantNet.Organ,
		Language:   cfg.PlantNet.Language,
		MaxResults: cfg.PlantNet.MaxResults,
	}, logger)
	r.Recognizer = r.cache
	return r, nil
}

func openCache(cfg *config.Config) (*recogcache.Store, error) {
	store, err := recogcache.Open(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("open recognition cache: %w", err)
	}
	return store, nil
}
