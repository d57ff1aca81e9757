package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/presenter"
	"ragqa/internal/session"
)

type fakeBackend struct {
	docs     []domain.DocumentID
	uploadID domain.DocumentID
	uploaded []domain.File
	asked    []domain.AskRequest
	answer   domain.AnswerResult
	askErr   error
}

func (f *fakeBackend) ListDocuments(ctx context.Context) ([]domain.DocumentID, error) {
	return f.docs, nil
}

func (f *fakeBackend) Upload(ctx context.Context, file domain.File) (domain.DocumentID, error) {
	f.uploaded = append(f.uploaded, file)
	return f.uploadID, nil
}

func (f *fakeBackend) Ask(ctx context.Context, req domain.AskRequest) (domain.AnswerResult, error) {
	f.asked = append(f.asked, req)
	return f.answer, f.askErr
}

func newTestModel(t *testing.T, fb *fakeBackend) (Model, *session.Session) {
	t.Helper()
	sess := session.New(fb, session.Options{SelectUploaded: true})
	m := New(context.Background(), sess, presenter.New("http://qa.local"))
	m.readFile = func(path string) ([]byte, error) {
		if path == "missing.pdf" {
			return nil, errors.New("open missing.pdf: no such file or directory")
		}
		return []byte("%PDF " + path), nil
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model), sess
}

// run feeds msg to the model and then the message produced by the returned command.
func run(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	next, _ = next.(Model).Update(cmd())
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInitialRefreshListsDocuments(t *testing.T) {
	fb := &fakeBackend{docs: []domain.DocumentID{"a", "b"}}
	m, sess := newTestModel(t, fb)

	m = run(t, m, key("ctrl+r"))
	assert.Equal(t, []domain.DocumentID{"a", "b"}, sess.Snapshot().Documents)
	assert.Equal(t, "2 document(s) available.", m.status)
	assert.Contains(t, m.View(), "All documents")
}

func TestAskShowsAnswerAndArtifactLink(t *testing.T) {
	fb := &fakeBackend{answer: domain.AnswerResult{Answer: "40 tonnes", MatchedExcerpt: "Crane load is 40 tonnes.", MatchedDocumentID: "doc_3"}}
	m, _ := newTestModel(t, fb)
	m.question.SetValue("What is the crane load?")

	m = run(t, m, key("enter"))
	require.Len(t, fb.asked, 1)
	assert.Equal(t, domain.EndpointAskAny, fb.asked[0].Endpoint)

	content := m.renderResult()
	assert.Contains(t, content, "40 tonnes")
	assert.Contains(t, content, "Matched Context:")
	assert.Contains(t, content, "http://qa.local/static/doc_3.pdf")
	assert.Equal(t, "Answered.", m.status)
}

func TestAskEmptyQuestionDoesNotDispatch(t *testing.T) {
	fb := &fakeBackend{}
	m, _ := newTestModel(t, fb)
	m.question.SetValue("   ")

	next, cmd := m.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.Equal(t, domain.ErrEmptyQuestion.Message, next.(Model).status)
	assert.Empty(t, fb.asked)
}

func TestAskFailureShowsMessage(t *testing.T) {
	fb := &fakeBackend{askErr: domain.NewTransportError("ask", 500, "index unavailable", nil)}
	m, _ := newTestModel(t, fb)
	m.question.SetValue("why?")

	m = run(t, m, key("enter"))
	assert.Equal(t, "index unavailable", m.status)
	assert.Contains(t, m.renderResult(), "Failed to get answer: index unavailable")
}

func TestUploadSelectsNewDocument(t *testing.T) {
	fb := &fakeBackend{uploadID: "doc_42"}
	m, sess := newTestModel(t, fb)

	next, _ := m.Update(key("tab"))
	m = next.(Model)
	require.Equal(t, focusUpload, m.focus)
	m.path.SetValue("/tmp/manual.pdf")

	m = run(t, m, key("enter"))
	require.Len(t, fb.uploaded, 1)
	assert.Equal(t, "manual.pdf", fb.uploaded[0].Name)
	assert.Equal(t, "Uploaded: doc_42", m.status)
	assert.Empty(t, m.path.Value())

	snap := sess.Snapshot()
	assert.Equal(t, []domain.DocumentID{"doc_42"}, snap.Documents)
	assert.Equal(t, domain.ScopeOf("doc_42"), snap.Scope)
	assert.Equal(t, 1, m.docCursor)
}

func TestUploadWithoutPathIsValidationError(t *testing.T) {
	fb := &fakeBackend{uploadID: "x"}
	m, _ := newTestModel(t, fb)
	next, _ := m.Update(key("tab"))
	m = next.(Model)

	m = run(t, m, key("enter"))
	assert.Equal(t, domain.ErrNoFileSelected.Message, m.status)
	assert.Empty(t, fb.uploaded)
}

func TestUploadUnreadableFile(t *testing.T) {
	fb := &fakeBackend{uploadID: "x"}
	m, _ := newTestModel(t, fb)
	next, _ := m.Update(key("tab"))
	m = next.(Model)
	m.path.SetValue("missing.pdf")

	m = run(t, m, key("enter"))
	assert.Contains(t, m.status, "Upload failed:")
	assert.Empty(t, fb.uploaded)
}

func TestDocumentSelectionScopesQuestions(t *testing.T) {
	fb := &fakeBackend{docs: []domain.DocumentID{"a", "b"}, answer: domain.AnswerResult{Answer: "ok"}}
	m, sess := newTestModel(t, fb)
	m = run(t, m, key("ctrl+r"))

	for i := 0; i < 2; i++ {
		next, _ := m.Update(key("tab"))
		m = next.(Model)
	}
	require.Equal(t, focusDocuments, m.focus)

	next, _ := m.Update(key("down"))
	next, _ = next.(Model).Update(key("down"))
	next, _ = next.(Model).Update(key("enter"))
	m = next.(Model)
	assert.Equal(t, domain.ScopeOf("b"), sess.Snapshot().Scope)
	assert.Equal(t, "Questions scoped to b.", m.status)

	next, _ = m.Update(key("tab"))
	m = next.(Model)
	m.question.SetValue("scoped?")
	run(t, m, key("enter"))
	require.Len(t, fb.asked, 1)
	assert.Equal(t, domain.AskRequest{Endpoint: domain.EndpointAsk, Question: "scoped?", DocumentID: "b"}, fb.asked[0])
}

func TestStaleAnswerLeavesStatus(t *testing.T) {
	fb := &fakeBackend{}
	m, _ := newTestModel(t, fb)
	m.status = "Searching..."

	next, _ := m.Update(answerMsg{err: domain.ErrStaleResult})
	assert.Equal(t, "Searching...", next.(Model).status)
}

func TestRenderResultKeepsWholeExcerpt(t *testing.T) {
	fb := &fakeBackend{answer: domain.AnswerResult{Answer: "40 t", MatchedExcerpt: "Crane load is 40 t. See table 4 for outrigger limits"}}
	m, _ := newTestModel(t, fb)
	m.question.SetValue("crane load")

	m = run(t, m, key("enter"))
	content := m.renderResult()
	assert.Contains(t, content, "Crane load is 40 t.")
	assert.Contains(t, content, "See table 4 for outrigger limits")
	assert.Contains(t, markExcerpt("plain"), "plain")
}
