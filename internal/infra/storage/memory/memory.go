// Package memory provides an in-memory ContentRepository for tests and
// database-less runs.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/studyflow/processor/internal/core/domain"
	"github.com/studyflow/processor/internal/infra/storage"
)

// ContentRepo implements storage.ContentRepository in memory.
type ContentRepo struct {
	mu    sync.RWMutex
	items map[string]*domain.ContentProcessingState
}

// NewContentRepo creates an empty in-memory repository.
func NewContentRepo() *ContentRepo {
	return &ContentRepo{items: make(map[string]*domain.ContentProcessingState)}
}

// clone deep-copies a state so callers never share mutable stage maps
// with the store, matching read-modify-write semantics of the SQL repo.
func clone(state *domain.ContentProcessingState) *domain.ContentProcessingState {
	data, _ := json.Marshal(state)
	var out domain.ContentProcessingState
	_ = json.Unmarshal(data, &out)
	return &out
}

func (r *ContentRepo) Create(ctx context.Context, state *domain.ContentProcessingState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[state.ContentID] = clone(state)
	return nil
}

func (r *ContentRepo) Get(ctx context.Context, contentID string) (*domain.ContentProcessingState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.items[contentID]
	if !ok {
		return nil, storage.ErrContentNotFound
	}
	return clone(state), nil
}

func (r *ContentRepo) Update(ctx context.Context, state *domain.ContentProcessingState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[state.ContentID]; !ok {
		return storage.ErrContentNotFound
	}
	next := clone(state)
	next.UpdatedAt = time.Now().UTC()
	r.items[state.ContentID] = next
	return nil
}

func (r *ContentRepo) ListPausedForQuota(
	ctx context.Context,
	limit int,
) ([]*domain.ContentProcessingState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var paused []*domain.ContentProcessingState
	for _, state := range r.items {
		if state.DeletedAt != nil || state.Status != domain.ContentPaused {
			continue
		}
		if state.PausedQuotaInfo() == nil {
			continue
		}
		paused = append(paused, clone(state))
	}

	sort.Slice(paused, func(i, j int) bool {
		return paused[i].UpdatedAt.Before(paused[j].UpdatedAt)
	})
	if limit > 0 && len(paused) > limit {
		paused = paused[:limit]
	}
	return paused, nil
}

func (r *ContentRepo) CountPausedForQuota(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, state := range r.items {
		if state.DeletedAt == nil && state.Status == domain.ContentPaused {
			count++
		}
	}
	return count, nil
}

func (r *ContentRepo) SoftDelete(ctx context.Context, contentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.items[contentID]
	if !ok {
		return storage.ErrContentNotFound
	}
	if state.DeletedAt == nil {
		now := time.Now().UTC()
		state.DeletedAt = &now
	}
	return nil
}

func (r *ContentRepo) ListExpired(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*domain.ContentProcessingState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []*domain.ContentProcessingState
	for _, state := range r.items {
		if state.DeletedAt != nil && state.DeletedAt.Before(cutoff) {
			expired = append(expired, clone(state))
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].DeletedAt.Before(*expired[j].DeletedAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (r *ContentRepo) Purge(ctx context.Context, contentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, contentID)
	return nil
}
