package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/studyflow/processor/internal/infra/storage"
)

// ArtifactRepo implements storage.ArtifactRepository using PostgreSQL.
type ArtifactRepo struct {
	db *DB
}

// NewArtifactRepo creates a new PostgreSQL artifact repository.
func NewArtifactRepo(db *DB) *ArtifactRepo {
	return &ArtifactRepo{db: db}
}

// SaveArtifact upserts one artifact. Re-running a stage overwrites its
// previous output.
func (r *ArtifactRepo) SaveArtifact(ctx context.Context, contentID, kind, payload string) error {
	query := `
		INSERT INTO content_artifacts (id, content_id, kind, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (content_id, kind)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), contentID, kind, payload); err != nil {
		return fmt.Errorf("failed to save %s artifact: %w", kind, err)
	}
	return nil
}

// GetArtifact returns the payload of one artifact.
func (r *ArtifactRepo) GetArtifact(ctx context.Context, contentID, kind string) (string, error) {
	query := `
		SELECT payload FROM content_artifacts
		WHERE content_id = $1 AND kind = $2
	`
	var payload string
	err := r.db.GetContext(ctx, &payload, query, contentID, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrArtifactNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s artifact: %w", kind, err)
	}
	return payload, nil
}

// DeleteArtifacts removes every artifact of a content item.
func (r *ArtifactRepo) DeleteArtifacts(ctx context.Context, contentID string) error {
	query := `DELETE FROM content_artifacts WHERE content_id = $1`
	if _, err := r.db.ExecContext(ctx, query, contentID); err != nil {
		return fmt.Errorf("failed to delete artifacts: %w", err)
	}
	return nil
}
