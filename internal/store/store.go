package store

import (
	"context"

	"github.com/seantiz/conductor/internal/model"
)

const (
	// DefaultCapacity is the number of history records retained.
	DefaultCapacity = 1000

	// MaxListLimit bounds a single List call.
	MaxListLimit = 500
)

// HistoryStore is an append-only, capped, durable log of finished executions.
type HistoryStore interface {
	// Append persists rec as the newest entry and evicts the oldest entries
	// beyond capacity. The record is durable once Append returns nil.
	Append(ctx context.Context, rec model.HistoryRecord) error
	// List returns up to limit records, most recent first. limit is clamped
	// to [0, MaxListLimit].
	List(ctx context.Context, limit int) ([]model.HistoryRecord, error)
	// All returns the full retained log, most recent first.
	All(ctx context.Context) ([]model.HistoryRecord, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// ClampLimit clamps a requested list size to [0, MaxListLimit].
func ClampLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
