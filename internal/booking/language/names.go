// Package language resolves language ids to the labels shown in notifications.
package language

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

const keyPrefix = "tolkbooking:language:"

// Source is the authoritative label lookup, normally the booking store.
type Source interface {
	LanguageName(ctx context.Context, languageID int64) (string, error)
}

// Cache is a string key/value cache with expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Names serves language labels from cache, falling back to the source.
// Cache failures are logged and bypassed.
type Names struct {
	source Source
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewNames creates a new Names. A nil cache disables caching.
func NewNames(source Source, cache Cache, ttl time.Duration, logger *slog.Logger) *Names {
	return &Names{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Name returns the label for id.
func (n *Names) Name(ctx context.Context, id int64) (string, error) {
	key := keyPrefix + strconv.FormatInt(id, 10)

	if n.cache != nil {
		name, ok, err := n.cache.Get(ctx, key)
		if err != nil {
			n.logger.Warn("Language cache read failed", slog.Int64("language_id", id), slog.Any("error", err))
		} else if ok {
			return name, nil
		}
	}

	name, err := n.source.LanguageName(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			n.logger.Error("Failed to load language", slog.Int64("language_id", id), slog.Any("error", err))
		}
		return "", err
	}

	if n.cache != nil {
		if err := n.cache.Set(ctx, key, name, n.ttl); err != nil {
			n.logger.Warn("Language cache write failed", slog.Int64("language_id", id), slog.Any("error", err))
		}
	}
	return name, nil
}
