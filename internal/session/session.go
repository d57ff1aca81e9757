// Package session holds the client orchestration core: the document
// registry, the selection, the upload controller and the query router.
// Each component owns and is the only writer of its own state.
package session

import (
	"context"

	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/logger"
)

// Options tune session policies.
type Options struct {
	// SelectUploaded makes a successfully uploaded document the active scope.
	// Kept from the web client; pending product confirmation.
	SelectUploaded bool
	Overlap        OverlapPolicy
	Logger         *zap.Logger
}

// Session aggregates the per-session state.
type Session struct {
	Registry  *Registry
	Selection *Selection
	Uploads   *UploadController
	Queries   *QueryRouter
}

// Snapshot is a consistent-enough copy of session state for rendering.
type Snapshot struct {
	Documents []domain.DocumentID
	Scope     domain.Scope
	Candidate string
	Upload    domain.UploadState
	Query     domain.QueryState
}

func New(backend domain.Backend, opts Options) *Session {
	registry := NewRegistry(backend, logger.Module(opts.Logger, "registry"))
	selection := NewSelection(registry)
	return &Session{
		Registry:  registry,
		Selection: selection,
		Uploads:   NewUploadController(backend, registry, selection, opts.SelectUploaded, logger.Module(opts.Logger, "upload")),
		Queries:   NewQueryRouter(backend, registry, opts.Overlap, logger.Module(opts.Logger, "query")),
	}
}

// Refresh re-syncs the registry with the backend corpus.
func (s *Session) Refresh(ctx context.Context) ([]domain.DocumentID, error) {
	return s.Registry.List(ctx)
}

// Choose sets the upload candidate.
func (s *Session) Choose(file domain.File) { s.Uploads.Choose(file) }

// Upload sends the upload candidate.
func (s *Session) Upload(ctx context.Context) (domain.DocumentID, error) {
	return s.Uploads.Upload(ctx)
}

// Select scopes questions to id; an empty id searches every document.
func (s *Session) Select(id domain.DocumentID) error { return s.Selection.Select(id) }

// AskSelected asks question within the current selection.
func (s *Session) AskSelected(ctx context.Context, question string) (domain.AnswerResult, error) {
	return s.Queries.Ask(ctx, question, s.Selection.Current())
}

// Abandon drops every in-flight operation, e.g. when the view goes away.
func (s *Session) Abandon() {
	s.Uploads.Abandon()
	s.Queries.Abandon()
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Documents: s.Registry.Documents(),
		Scope:     s.Selection.Current(),
		Upload:    s.Uploads.State(),
		Query:     s.Queries.State(),
	}
	if f, ok := s.Uploads.Candidate(); ok {
		snap.Candidate = f.Name
	}
	return snap
}
