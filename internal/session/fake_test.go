package session

import (
	"context"
	"sync"

	"ragqa/internal/domain"
)

type askReply struct {
	res domain.AnswerResult
	err error
}

// fakeBackend records calls. Asks block on a per-question release channel
// when one is registered, ignoring cancellation so late replies can be forced.
type fakeBackend struct {
	mu sync.Mutex

	docs    []domain.DocumentID
	listErr error
	lists   int

	uploadID   domain.DocumentID
	uploadErr  error
	uploads    []domain.File
	uploadGate chan struct{}

	asks    []domain.AskRequest
	answer  domain.AnswerResult
	askErr  error
	gates   map[string]chan askReply
	started chan string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{gates: make(map[string]chan askReply), started: make(chan string, 16)}
}

func (f *fakeBackend) ListDocuments(ctx context.Context) ([]domain.DocumentID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.DocumentID(nil), f.docs...), nil
}

func (f *fakeBackend) Upload(ctx context.Context, file domain.File) (domain.DocumentID, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, file)
	gate := f.uploadGate
	id, err := f.uploadID, f.uploadErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return id, err
}

func (f *fakeBackend) gate(question string) chan askReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan askReply, 1)
	f.gates[question] = ch
	return ch
}

func (f *fakeBackend) Ask(ctx context.Context, req domain.AskRequest) (domain.AnswerResult, error) {
	f.mu.Lock()
	f.asks = append(f.asks, req)
	gate := f.gates[req.Question]
	res, err := f.answer, f.askErr
	f.mu.Unlock()
	f.started <- req.Question
	if gate != nil {
		reply := <-gate
		return reply.res, reply.err
	}
	return res, err
}

func (f *fakeBackend) askCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.asks)
}

func (f *fakeBackend) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}
