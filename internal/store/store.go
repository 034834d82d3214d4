package store

import (
	"context"
	"errors"

	"github.com/adhit-r/fairmind-sub003/internal/model"
)

var (
	// ErrNotFound is returned when a run summary is not found.
	ErrNotFound = errors.New("run summary not found")

	// ErrInvalidTransition is returned when a summary is finished twice or
	// finished with a non-terminal status.
	ErrInvalidTransition = errors.New("invalid run status transition")
)

// HistoryStore supplies prior runs for display. It is read-only from the
// orchestrator's point of view.
type HistoryStore interface {
	Recent(ctx context.Context, orgID string, limit int) (History, error)
}

// History is a page of prior runs. Cached is set when the entries were served
// from the local cache because the remote service could not be reached.
type History struct {
	Entries []model.RunHistoryEntry `json:"entries"`
	Cached  bool                    `json:"cached"`
}

// Store defines local persistence: the history cache and run summaries.
type Store interface {
	CacheHistory(ctx context.Context, orgID string, entries []model.RunHistoryEntry) error
	CachedHistory(ctx context.Context, orgID string, limit int) ([]model.RunHistoryEntry, error)

	CreateRunSummary(ctx context.Context, s *model.RunSummary) error
	FinishRunSummary(ctx context.Context, s *model.RunSummary) error
	GetRunSummary(ctx context.Context, id string) (*model.RunSummary, error)
	ListRunSummaries(ctx context.Context, limit, offset int) ([]*model.RunSummary, int, error)

	Close() error
}
