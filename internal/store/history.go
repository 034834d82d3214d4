package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adhit-r/fairmind-sub003/internal/model"
)

// DefaultHistoryLimit caps history pages when the caller gives no limit.
const DefaultHistoryLimit = 20

// RecentFetcher fetches prior runs from the remote service. *remote.Client
// implements it.
type RecentFetcher interface {
	RecentSimulations(ctx context.Context, orgID string) ([]model.RunHistoryEntry, error)
}

// CachedHistory serves remote history, refreshing the local cache on every
// successful fetch and falling back to it when the remote call fails.
type CachedHistory struct {
	remote RecentFetcher
	cache  Store
	logger *slog.Logger
}

var _ HistoryStore = (*CachedHistory)(nil)

// NewCachedHistory creates a HistoryStore over remote with cache as fallback.
// cache may be nil, in which case remote failures are returned as-is.
func NewCachedHistory(remote RecentFetcher, cache Store, logger *slog.Logger) *CachedHistory {
	return &CachedHistory{remote: remote, cache: cache, logger: logger}
}

// Recent returns up to limit entries for orgID.
func (h *CachedHistory) Recent(ctx context.Context, orgID string, limit int) (History, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	entries, err := h.remote.RecentSimulations(ctx, orgID)
	if err == nil {
		if h.cache != nil {
			if cerr := h.cache.CacheHistory(ctx, orgID, entries); cerr != nil {
				h.logger.Warn("failed to cache history", "org_id", orgID, "error", cerr)
			}
		}
		if len(entries) > limit {
			entries = entries[:limit]
		}
		return History{Entries: entries}, nil
	}

	if h.cache == nil {
		return History{}, fmt.Errorf("fetch history: %w", err)
	}

	h.logger.Warn("remote history unavailable, serving cache", "org_id", orgID, "error", err)
	cached, cerr := h.cache.CachedHistory(ctx, orgID, limit)
	if cerr != nil {
		return History{}, fmt.Errorf("fetch history: %w (cache: %v)", err, cerr)
	}
	return History{Entries: cached, Cached: true}, nil
}
