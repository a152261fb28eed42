package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/studyflow/processor/internal/core/domain"
	"github.com/studyflow/processor/internal/infra/storage"
)

// ContentRepo implements storage.ContentRepository using PostgreSQL.
// Stage statuses are stored as a JSONB map so schema churn in stage
// metadata never needs a migration.
type ContentRepo struct {
	db *DB
}

// NewContentRepo creates a new PostgreSQL content repository.
func NewContentRepo(db *DB) *ContentRepo {
	return &ContentRepo{db: db}
}

type contentRow struct {
	ContentID string       `db:"content_id"`
	UserID    string       `db:"user_id"`
	Stages    []byte       `db:"stages"`
	Status    string       `db:"status"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
	DeletedAt sql.NullTime `db:"deleted_at"`
}

func (r contentRow) toDomain() (*domain.ContentProcessingState, error) {
	var stages map[domain.Stage]*domain.StageStatus
	if err := json.Unmarshal(r.Stages, &stages); err != nil {
		return nil, fmt.Errorf("decode stages for %s: %w", r.ContentID, err)
	}

	state := &domain.ContentProcessingState{
		ContentID: r.ContentID,
		UserID:    r.UserID,
		Stages:    stages,
		Status:    domain.ContentStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		state.DeletedAt = &t
	}
	return state, nil
}

// Create persists a fresh processing state.
func (r *ContentRepo) Create(ctx context.Context, state *domain.ContentProcessingState) error {
	stages, err := json.Marshal(state.Stages)
	if err != nil {
		return fmt.Errorf("encode stages: %w", err)
	}

	query := `
		INSERT INTO content_processing (content_id, user_id, stages, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	if _, err := r.db.ExecContext(ctx, query, state.ContentID, state.UserID, stages, string(state.Status)); err != nil {
		return fmt.Errorf("failed to create content state: %w", err)
	}
	return nil
}

// Get retrieves the processing state for a content item.
func (r *ContentRepo) Get(ctx context.Context, contentID string) (*domain.ContentProcessingState, error) {
	query := `
		SELECT content_id, user_id, stages, status, created_at, updated_at, deleted_at
		FROM content_processing
		WHERE content_id = $1
	`

	var row contentRow
	err := r.db.GetContext(ctx, &row, query, contentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content state: %w", err)
	}
	return row.toDomain()
}

// Update persists the full stage map and derived status.
func (r *ContentRepo) Update(ctx context.Context, state *domain.ContentProcessingState) error {
	stages, err := json.Marshal(state.Stages)
	if err != nil {
		return fmt.Errorf("encode stages: %w", err)
	}

	query := `
		UPDATE content_processing
		SET stages = $2, status = $3, updated_at = NOW()
		WHERE content_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, state.ContentID, stages, string(state.Status))
	if err != nil {
		return fmt.Errorf("failed to update content state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrContentNotFound
	}
	return nil
}

// ListPausedForQuota returns up to limit quota-paused items, oldest first.
// The ordering means items paused the longest are retried first.
func (r *ContentRepo) ListPausedForQuota(
	ctx context.Context,
	limit int,
) ([]*domain.ContentProcessingState, error) {
	query := `
		SELECT content_id, user_id, stages, status, created_at, updated_at, deleted_at
		FROM content_processing
		WHERE status = 'paused' AND deleted_at IS NULL
		ORDER BY updated_at ASC
		LIMIT $1
	`

	var rows []contentRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list paused content: %w", err)
	}

	states := make([]*domain.ContentProcessingState, 0, len(rows))
	for _, row := range rows {
		state, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		if state.PausedQuotaInfo() == nil {
			continue // paused for a non-quota reason
		}
		states = append(states, state)
	}
	return states, nil
}

// CountPausedForQuota counts quota-paused content.
func (r *ContentRepo) CountPausedForQuota(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM content_processing
		WHERE status = 'paused' AND deleted_at IS NULL
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count paused content: %w", err)
	}
	return count, nil
}

// SoftDelete marks a content item deleted.
func (r *ContentRepo) SoftDelete(ctx context.Context, contentID string) error {
	query := `
		UPDATE content_processing
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE content_id = $1 AND deleted_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, contentID); err != nil {
		return fmt.Errorf("failed to soft delete content: %w", err)
	}
	return nil
}

// ListExpired returns soft-deleted items past the retention cutoff.
func (r *ContentRepo) ListExpired(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*domain.ContentProcessingState, error) {
	query := `
		SELECT content_id, user_id, stages, status, created_at, updated_at, deleted_at
		FROM content_processing
		WHERE deleted_at IS NOT NULL AND deleted_at < $1
		ORDER BY deleted_at ASC
		LIMIT $2
	`

	var rows []contentRow
	if err := r.db.SelectContext(ctx, &rows, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to list expired content: %w", err)
	}

	states := make([]*domain.ContentProcessingState, 0, len(rows))
	for _, row := range rows {
		state, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// Purge permanently removes a content item.
func (r *ContentRepo) Purge(ctx context.Context, contentID string) error {
	query := `DELETE FROM content_processing WHERE content_id = $1`
	if _, err := r.db.ExecContext(ctx, query, contentID); err != nil {
		return fmt.Errorf("failed to purge content: %w", err)
	}
	return nil
}
