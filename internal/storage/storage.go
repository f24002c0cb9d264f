// Package storage defines the journal interface and its SQLite implementation.
package storage

import (
	"context"
	"time"

	"homeboard/internal/model"
)

// Storage records upstream health and which notifications were sent.
type Storage interface {
	RecordCheck(ctx context.Context, c *model.SourceCheck) error
	ListChecks(ctx context.Context, limit int) ([]model.SourceCheck, error)
	LatestChecks(ctx context.Context) ([]model.SourceCheck, error)
	LastFailures(ctx context.Context) ([]model.SourceCheck, error)
	PruneChecks(ctx context.Context, before time.Time) (int64, error)

	MarkSent(ctx context.Context, key string) error
	IsSent(ctx context.Context, key string) (bool, error)

	Close() error
}
