// Package storage defines the persistence interfaces for content
// processing state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/studyflow/processor/internal/core/domain"
)

// ErrContentNotFound is returned when a content item doesn't exist.
var ErrContentNotFound = errors.New("content not found")

// ContentRepository is the single source of truth for pipeline progress.
// State is read-modify-written per item; the repository never interprets
// stage semantics.
type ContentRepository interface {
	// Create persists a fresh processing state.
	Create(ctx context.Context, state *domain.ContentProcessingState) error

	// Get retrieves the processing state for a content item.
	Get(ctx context.Context, contentID string) (*domain.ContentProcessingState, error)

	// Update persists the full stage map and derived status.
	Update(ctx context.Context, state *domain.ContentProcessingState) error

	// ListPausedForQuota returns up to limit content items paused with a
	// quota-exceeded reason, oldest first.
	ListPausedForQuota(ctx context.Context, limit int) ([]*domain.ContentProcessingState, error)

	// CountPausedForQuota counts quota-paused content, for observability.
	CountPausedForQuota(ctx context.Context) (int, error)

	// SoftDelete marks a content item deleted without removing it.
	SoftDelete(ctx context.Context, contentID string) error

	// ListExpired returns up to limit soft-deleted items whose deletion
	// predates the retention cutoff.
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*domain.ContentProcessingState, error)

	// Purge permanently removes a content item.
	Purge(ctx context.Context, contentID string) error
}
