package memory

import (
	"context"
	"sync"

	"github.com/studyflow/processor/internal/infra/storage"
)

// ArtifactRepo implements storage.ArtifactRepository in memory.
type ArtifactRepo struct {
	mu    sync.RWMutex
	items map[string]map[string]string // contentID -> kind -> payload
}

// NewArtifactRepo creates an in-memory artifact repository.
func NewArtifactRepo() *ArtifactRepo {
	return &ArtifactRepo{items: make(map[string]map[string]string)}
}

func (r *ArtifactRepo) SaveArtifact(_ context.Context, contentID, kind, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.items[contentID] == nil {
		r.items[contentID] = make(map[string]string)
	}
	r.items[contentID][kind] = payload
	return nil
}

func (r *ArtifactRepo) GetArtifact(_ context.Context, contentID, kind string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payload, ok := r.items[contentID][kind]
	if !ok {
		return "", storage.ErrArtifactNotFound
	}
	return payload, nil
}

func (r *ArtifactRepo) DeleteArtifacts(_ context.Context, contentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, contentID)
	return nil
}
