package domain

import (
	"context"
	"io"
)

// DocumentID is the opaque identifier the backend assigns to an uploaded document.
type DocumentID string

// File is an upload candidate picked by the user.
type File struct {
	Name    string
	Content []byte
}

// Empty reports whether no usable file was picked.
func (f File) Empty() bool { return f.Name == "" && len(f.Content) == 0 }

// Endpoints used by the question routes.
const (
	EndpointAsk    = "/ask"
	EndpointAskAny = "/ask_any"
)

// AskRequest is a routed question ready to be sent to the backend.
type AskRequest struct {
	Endpoint   string
	Question   string
	DocumentID DocumentID
}

// NoAnswerPlaceholder replaces an empty answer returned by the backend.
const NoAnswerPlaceholder = "No answer received."

// AnswerResult is the outcome of a successful question.
type AnswerResult struct {
	Answer            string
	MatchedExcerpt    string
	MatchedDocumentID DocumentID
}

// Normalized applies the client-side defaults to a backend answer.
func (r AnswerResult) Normalized() AnswerResult {
	if r.Answer == "" {
		r.Answer = NoAnswerPlaceholder
	}
	return r
}

// HasExcerpt reports whether the backend cited a passage.
func (r AnswerResult) HasExcerpt() bool { return r.MatchedExcerpt != "" }

// HasDocument reports whether the backend named the matched document.
func (r AnswerResult) HasDocument() bool { return r.MatchedDocumentID != "" }

// Backend is the document QA service the client talks to.
type Backend interface {
	ListDocuments(ctx context.Context) ([]DocumentID, error)
	Upload(ctx context.Context, file File) (DocumentID, error)
	Ask(ctx context.Context, req AskRequest) (AnswerResult, error)
}

// ArtifactFetcher downloads the original file behind a document.
type ArtifactFetcher interface {
	ArtifactURL(id DocumentID) string
	FetchArtifact(ctx context.Context, id DocumentID, w io.Writer) (int64, error)
}
