package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/studyflow/processor/internal/ai/catalog"
	"github.com/studyflow/processor/internal/ai/provider"
	"github.com/studyflow/processor/internal/infra/storage"
)

// contentSource adapts the artifact repository to pipeline.Source. Later
// stages read the cleaned transcript when the transcription stage has
// produced one, otherwise the raw ingested text.
type contentSource struct {
	artifacts storage.ArtifactRepository
}

func (s *contentSource) LoadText(ctx context.Context, contentID string) (string, error) {
	text, err := s.artifacts.GetArtifact(ctx, contentID, storage.ArtifactTranscript)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, storage.ErrArtifactNotFound) {
		return "", err
	}
	return s.artifacts.GetArtifact(ctx, contentID, storage.ArtifactSource)
}

func (s *contentSource) StoreArtifact(ctx context.Context, contentID, kind, payload string) error {
	return s.artifacts.SaveArtifact(ctx, contentID, kind, payload)
}

// vectorEmbedder implements pipeline.Embedder over the provider's
// embedding endpoint. Embedding models are not part of generation
// discovery, so the task profile's primary is used directly.
type vectorEmbedder struct {
	provider  provider.Embedder
	artifacts storage.ArtifactRepository
}

func (e *vectorEmbedder) IndexContent(ctx context.Context, contentID string, text string) error {
	model := catalog.ProfileFor(catalog.TaskEmbedding).Primary

	vector, err := e.provider.EmbedContent(ctx, model, text)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	return e.artifacts.SaveArtifact(ctx, contentID, storage.ArtifactEmbedding, string(payload))
}
