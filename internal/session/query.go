package session

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ragqa/internal/domain"
)

// Asker is the backend call behind the query router.
type Asker interface {
	Ask(ctx context.Context, req domain.AskRequest) (domain.AnswerResult, error)
}

// OverlapPolicy decides what happens to a question asked while another is in flight.
type OverlapPolicy int

const (
	// Supersede cancels the earlier question; only the latest result is applied.
	Supersede OverlapPolicy = iota
	// Reject refuses the new question with ErrQueryInFlight.
	Reject
)

// Route picks the endpoint for a question: scoped when the scope names a
// document, global otherwise.
func Route(question string, scope domain.Scope) domain.AskRequest {
	if scope.IsAny() {
		return domain.AskRequest{Endpoint: domain.EndpointAskAny, Question: question}
	}
	return domain.AskRequest{Endpoint: domain.EndpointAsk, Question: question, DocumentID: scope.Document()}
}

// QueryRouter dispatches questions and owns the query state. Every question
// carries a sequence token; a result is applied only while its token is the
// latest one issued.
type QueryRouter struct {
	mu       sync.Mutex
	asker    Asker
	registry *Registry
	policy   OverlapPolicy
	state    domain.QueryState
	seq      uint64
	cancel   context.CancelFunc
	log      *zap.Logger
}

func NewQueryRouter(asker Asker, registry *Registry, policy OverlapPolicy, log *zap.Logger) *QueryRouter {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueryRouter{asker: asker, registry: registry, policy: policy, log: log}
}

// Ask validates, routes and dispatches question. Superseded or abandoned
// calls return ErrStaleResult and leave the state alone.
func (q *QueryRouter) Ask(ctx context.Context, question string, scope domain.Scope) (domain.AnswerResult, error) {
	text := strings.TrimSpace(question)
	if text == "" {
		return domain.AnswerResult{}, domain.ErrEmptyQuestion
	}
	if !scope.IsAny() && !q.registry.Contains(scope.Document()) {
		return domain.AnswerResult{}, domain.ErrUnknownDocument
	}
	req := Route(text, scope)

	q.mu.Lock()
	if q.state.Status == domain.QueryInFlight {
		if q.policy == Reject {
			q.mu.Unlock()
			return domain.AnswerResult{}, domain.ErrQueryInFlight
		}
		if q.cancel != nil {
			q.cancel()
		}
		q.log.Info("question superseded", zap.Uint64("token", q.seq))
	}
	q.seq++
	token := q.seq
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.state = domain.QueryState{Status: domain.QueryInFlight, Token: token, Question: text, Scope: scope}
	q.mu.Unlock()
	defer cancel()

	log := q.log.With(zap.Uint64("token", token), zap.String("scope", scope.String()), zap.String("endpoint", req.Endpoint))
	log.Info("question dispatched")

	res, err := q.asker.Ask(ctx, req)

	q.mu.Lock()
	defer q.mu.Unlock()
	if token != q.seq {
		log.Debug("stale answer discarded", zap.Uint64("latest", q.seq))
		return domain.AnswerResult{}, domain.ErrStaleResult
	}
	q.cancel = nil
	if err != nil {
		q.state = domain.QueryState{Status: domain.QueryFailed, Token: token, Question: text, Scope: scope, Reason: domain.UserMessage(err)}
		log.Warn("question failed", zap.Error(err))
		return domain.AnswerResult{}, err
	}
	res = res.Normalized()
	q.state = domain.QueryState{Status: domain.QueryAnswered, Token: token, Question: text, Scope: scope, Result: res}
	log.Info("question answered",
		zap.Bool("excerpt", res.HasExcerpt()),
		zap.String("matched_doc", string(res.MatchedDocumentID)))
	return res, nil
}

// Abandon drops interest in the in-flight question, if any.
func (q *QueryRouter) Abandon() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state.Status != domain.QueryInFlight {
		return
	}
	q.seq++
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.state = domain.QueryState{Status: domain.QueryIdle, Token: q.seq}
	q.log.Info("question abandoned")
}

// State returns the current query state.
func (q *QueryRouter) State() domain.QueryState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}
