package session

import (
	"sync"

	"ragqa/internal/domain"
)

// Selection is the active question scope. The zero scope searches every document.
type Selection struct {
	mu       sync.RWMutex
	scope    domain.Scope
	registry *Registry
}

func NewSelection(registry *Registry) *Selection {
	return &Selection{registry: registry}
}

// Select scopes questions to id, which must be a registered document.
// An empty id selects the whole corpus.
func (s *Selection) Select(id domain.DocumentID) error {
	if id != "" && !s.registry.Contains(id) {
		return domain.ErrUnknownDocument
	}
	s.mu.Lock()
	s.scope = domain.ScopeOf(id)
	s.mu.Unlock()
	return nil
}

// Clear goes back to searching the whole corpus.
func (s *Selection) Clear() {
	s.mu.Lock()
	s.scope = domain.AnyDocument
	s.mu.Unlock()
}

func (s *Selection) Current() domain.Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}
