package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func newUploadFixture(selectUploaded bool) (*fakeBackend, *Registry, *Selection, *UploadController) {
	fb := newFakeBackend()
	r := NewRegistry(fb, nil)
	s := NewSelection(r)
	return fb, r, s, NewUploadController(fb, r, s, selectUploaded, nil)
}

func pdf(name string) domain.File {
	return domain.File{Name: name, Content: []byte("%PDF-1.7 " + name)}
}

func TestUploadWithoutFileIsValidationError(t *testing.T) {
	fb, _, _, u := newUploadFixture(true)

	_, err := u.Upload(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoFileSelected)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Zero(t, fb.uploadCount())
	assert.Equal(t, domain.UploadIdle, u.State().Status)
}

func TestUploadSuccessRegistersAndSelects(t *testing.T) {
	fb, r, s, u := newUploadFixture(true)
	fb.uploadID = "doc_42"
	u.Choose(pdf("crane.pdf"))

	id, err := u.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentID("doc_42"), id)
	assert.Equal(t, []domain.DocumentID{"doc_42"}, r.Documents())
	assert.Equal(t, domain.ScopeOf("doc_42"), s.Current())

	st := u.State()
	assert.Equal(t, domain.UploadSucceeded, st.Status)
	assert.Equal(t, domain.DocumentID("doc_42"), st.DocumentID)

	_, ok := u.Candidate()
	assert.False(t, ok, "candidate cleared after success")

	_, err = u.Upload(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoFileSelected)
	assert.Equal(t, 1, fb.uploadCount())
}

func TestUploadSameDocumentTwiceRegistersOnce(t *testing.T) {
	fb, r, _, u := newUploadFixture(true)
	fb.uploadID = "doc_7"

	for i := 0; i < 2; i++ {
		u.Choose(pdf("same.pdf"))
		_, err := u.Upload(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []domain.DocumentID{"doc_7"}, r.Documents())
}

func TestUploadWithoutSelectPolicyKeepsScope(t *testing.T) {
	fb, r, s, u := newUploadFixture(false)
	fb.uploadID = "doc_9"
	u.Choose(pdf("a.pdf"))

	_, err := u.Upload(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Contains("doc_9"))
	assert.True(t, s.Current().IsAny())
}

func TestUploadFailureLeavesRegistryAndSelection(t *testing.T) {
	fb, r, s, u := newUploadFixture(true)
	r.Register("existing")
	require.NoError(t, s.Select("existing"))
	fb.uploadErr = domain.NewTransportError("upload", 400, "Only PDF files are supported", nil)
	u.Choose(pdf("notes.txt"))

	_, err := u.Upload(context.Background())
	require.Error(t, err)

	st := u.State()
	assert.Equal(t, domain.UploadFailed, st.Status)
	assert.Equal(t, "Only PDF files are supported", st.Reason)
	assert.Equal(t, []domain.DocumentID{"existing"}, r.Documents())
	assert.Equal(t, domain.ScopeOf("existing"), s.Current())
	_, ok := u.Candidate()
	assert.True(t, ok, "candidate kept for retry")
}

func TestUploadGenericFailureMessage(t *testing.T) {
	fb, _, _, u := newUploadFixture(true)
	fb.uploadErr = errors.New("dial tcp: connection refused")
	u.Choose(pdf("a.pdf"))

	_, err := u.Upload(context.Background())
	require.Error(t, err)
	assert.Equal(t, "dial tcp: connection refused", u.State().Reason)
}

func waitForUploadStatus(t *testing.T, u *UploadController, want domain.UploadStatus) {
	t.Helper()
	require.Eventually(t, func() bool { return u.State().Status == want }, time.Second, 5*time.Millisecond)
}

func TestUploadWhileInFlightIsConcurrencyError(t *testing.T) {
	fb, _, _, u := newUploadFixture(true)
	fb.uploadID = "doc_1"
	fb.uploadGate = make(chan struct{})
	u.Choose(pdf("big.pdf"))

	done := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background())
		done <- err
	}()
	waitForUploadStatus(t, u, domain.UploadInFlight)

	_, err := u.Upload(context.Background())
	assert.ErrorIs(t, err, domain.ErrUploadInFlight)
	assert.Equal(t, domain.KindConcurrency, domain.KindOf(err))

	close(fb.uploadGate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, fb.uploadCount())
}

func TestUploadInFlightWinsOverMissingCandidate(t *testing.T) {
	fb, _, _, u := newUploadFixture(true)
	fb.uploadID = "doc_1"
	fb.uploadGate = make(chan struct{})
	u.Choose(pdf("big.pdf"))

	done := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background())
		done <- err
	}()
	waitForUploadStatus(t, u, domain.UploadInFlight)

	u.Discard()
	_, err := u.Upload(context.Background())
	assert.ErrorIs(t, err, domain.ErrUploadInFlight)

	close(fb.uploadGate)
	require.NoError(t, <-done)
	_, err = u.Upload(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoFileSelected)
	assert.Equal(t, 1, fb.uploadCount())
}

func TestUploadKeepsCandidateChosenMidFlight(t *testing.T) {
	fb, _, _, u := newUploadFixture(true)
	fb.uploadID = "doc_1"
	fb.uploadGate = make(chan struct{})
	u.Choose(pdf("first.pdf"))

	done := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background())
		done <- err
	}()
	waitForUploadStatus(t, u, domain.UploadInFlight)
	u.Choose(pdf("second.pdf"))
	close(fb.uploadGate)
	require.NoError(t, <-done)

	f, ok := u.Candidate()
	require.True(t, ok)
	assert.Equal(t, "second.pdf", f.Name)
}

func TestUploadAbandonDiscardsLateResult(t *testing.T) {
	fb, r, s, u := newUploadFixture(true)
	fb.uploadID = "late"
	fb.uploadGate = make(chan struct{})
	u.Choose(pdf("slow.pdf"))

	done := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background())
		done <- err
	}()
	waitForUploadStatus(t, u, domain.UploadInFlight)

	u.Abandon()
	assert.Equal(t, domain.UploadIdle, u.State().Status)
	close(fb.uploadGate)

	err := <-done
	assert.True(t, domain.IsStale(err))
	assert.Equal(t, domain.UploadIdle, u.State().Status)
	assert.Zero(t, r.Len())
	assert.True(t, s.Current().IsAny())
}
