package recogcache

import (
	"context"
	"log/slog"
	"sync/atomic"

	"flora/internal/logging"
	"flora/internal/services/plantnet"
	"flora/internal/species"
)

// Recognizer serves answers from the Store and forwards misses to the wrapped
// recognizer. Only successful answers are stored, including "no match".
type Recognizer struct {
	inner  plantnet.Recognizer
	store  *Store
	scope  Scope
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRecognizer decorates inner with the cache in store. Hits never reach
// inner, so credential problems only surface on a miss.
func NewRecognizer(inner plantnet.Recognizer, store *Store, scope Scope, logger *slog.Logger) *Recognizer {
	return &Recognizer{
		inner:  inner,
		store:  store,
		scope:  scope.normalized(),
		logger: logging.NewComponentLogger(logger, "recogcache"),
	}
}

// Identify implements plantnet.Recognizer.
func (r *Recognizer) Identify(ctx context.Context, filename string, data []byte) ([]species.Result, error) {
	key := Key(data, r.scope)
	logger := logging.WithContext(ctx, r.logger)

	cached, ok, err := r.store.Get(ctx, key)
	if err != nil {
		logging.WarnWithContext(logger, "recognition cache read failed; querying service", "recognition_cache_read_failed",
			logging.String("image", filename),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'flora cache clear' if the cache database is corrupt"),
			logging.String(logging.FieldImpact, "service quota is spent on an image that may already be cached"),
		)
	}
	if ok {
		r.hits.Add(1)
		logger.Debug("recognition cache hit", logging.String("image", filename))
		for i := range cached {
			cached[i].ImageFilename = filename
		}
		return cached, nil
	}

	r.misses.Add(1)
	results, err := r.inner.Identify(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	if err := r.store.Put(ctx, key, r.scope, results); err != nil {
		logging.WarnWithContext(logger, "recognition cache write failed", "recognition_cache_write_failed",
			logging.String("image", filename),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache.path permissions and free space"),
			logging.String(logging.FieldImpact, "the next run will query the service again for this image"),
		)
	}
	return results, nil
}

// Hits returns the number of answers served from the cache.
func (r *Recognizer) Hits() int64 { return r.hits.Load() }

// Misses returns the number of answers fetched from the wrapped recognizer.
func (r *Recognizer) Misses() int64 { return r.misses.Load() }
