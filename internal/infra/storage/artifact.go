package storage

import (
	"context"
	"errors"
)

// ErrArtifactNotFound is returned when a content item has no artifact of
// the requested kind.
var ErrArtifactNotFound = errors.New("artifact not found")

// Artifact kinds. "source" is the ingested raw text; the rest are stage
// outputs.
const (
	ArtifactSource     = "source"
	ArtifactTranscript = "transcript"
	ArtifactSummary    = "summary"
	ArtifactFlashcards = "flashcards"
	ArtifactQuiz       = "quiz"
	ArtifactEmbedding  = "embedding"
)

// ArtifactRepository stores stage inputs and outputs. One artifact per
// (content, kind); saving again overwrites.
type ArtifactRepository interface {
	SaveArtifact(ctx context.Context, contentID, kind, payload string) error
	GetArtifact(ctx context.Context, contentID, kind string) (string, error)
	DeleteArtifacts(ctx context.Context, contentID string) error
}
