package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ragqa/internal/domain"
)

// DocumentLister is the backend call the registry syncs from.
type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]domain.DocumentID, error)
}

// Registry is the ordered, deduplicated set of documents known to the client.
// It only grows; the backend is re-synced through List.
type Registry struct {
	mu     sync.RWMutex
	ids    []domain.DocumentID
	index  map[domain.DocumentID]struct{}
	lister DocumentLister
	group  singleflight.Group
	log    *zap.Logger
}

func NewRegistry(lister DocumentLister, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{lister: lister, index: make(map[domain.DocumentID]struct{}), log: log}
}

// List fetches the corpus from the backend and merges it in. Concurrent calls
// share one request. On failure the registry is left as it was.
func (r *Registry) List(ctx context.Context) ([]domain.DocumentID, error) {
	_, err, shared := r.group.Do("list", func() (any, error) {
		ids, err := r.lister.ListDocuments(ctx)
		if err != nil {
			return nil, err
		}
		added := r.merge(ids)
		r.log.Info("documents listed", zap.Int("received", len(ids)), zap.Int("added", added))
		return nil, nil
	})
	if err != nil {
		r.log.Warn("document listing failed", zap.Bool("shared", shared), zap.Error(err))
		return r.Documents(), err
	}
	return r.Documents(), nil
}

// Register inserts id if absent. Empty ids are ignored.
func (r *Registry) Register(id domain.DocumentID) {
	if id == "" {
		return
	}
	if r.merge([]domain.DocumentID{id}) > 0 {
		r.log.Info("document registered", zap.String("doc_id", string(id)))
	}
}

func (r *Registry) merge(ids []domain.DocumentID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	added := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := r.index[id]; ok {
			continue
		}
		r.index[id] = struct{}{}
		r.ids = append(r.ids, id)
		added++
	}
	return added
}

// Documents returns a copy of the known ids in first-seen order.
func (r *Registry) Documents() []domain.DocumentID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.DocumentID, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *Registry) Contains(id domain.DocumentID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[id]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
