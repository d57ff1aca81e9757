package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"ragqa/internal/domain"
)

// Uploader is the backend call behind the upload controller.
type Uploader interface {
	Upload(ctx context.Context, file domain.File) (domain.DocumentID, error)
}

// UploadController runs at most one upload at a time and folds its result
// into the registry and, when SelectUploaded is on, the selection.
type UploadController struct {
	mu             sync.Mutex
	uploader       Uploader
	registry       *Registry
	selection      *Selection
	selectUploaded bool
	state          domain.UploadState
	candidate      *domain.File
	seq            uint64
	cancel         context.CancelFunc
	log            *zap.Logger
}

func NewUploadController(uploader Uploader, registry *Registry, selection *Selection, selectUploaded bool, log *zap.Logger) *UploadController {
	if log == nil {
		log = zap.NewNop()
	}
	return &UploadController{
		uploader:       uploader,
		registry:       registry,
		selection:      selection,
		selectUploaded: selectUploaded,
		log:            log,
	}
}

// Choose makes file the upload candidate, replacing any previous one.
// An empty file clears the candidate.
func (u *UploadController) Choose(file domain.File) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if file.Empty() {
		u.candidate = nil
		return
	}
	f := file
	u.candidate = &f
}

// Discard clears the upload candidate.
func (u *UploadController) Discard() { u.Choose(domain.File{}) }

// Candidate returns the file that the next Upload would send.
func (u *UploadController) Candidate() (domain.File, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.candidate == nil {
		return domain.File{}, false
	}
	return *u.candidate, true
}

// Upload sends the candidate file. It fails fast with ErrUploadInFlight or
// ErrNoFileSelected, in that order, without touching the network. When the result arrives
// after Abandon it is dropped and ErrStaleResult is returned.
func (u *UploadController) Upload(ctx context.Context) (domain.DocumentID, error) {
	u.mu.Lock()
	if u.state.Status == domain.UploadInFlight {
		u.mu.Unlock()
		return "", domain.ErrUploadInFlight
	}
	if u.candidate == nil {
		u.mu.Unlock()
		return "", domain.ErrNoFileSelected
	}
	sent := u.candidate
	u.seq++
	token := u.seq
	ctx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.state = domain.UploadState{Status: domain.UploadInFlight, Token: token, FileName: sent.Name}
	u.mu.Unlock()
	defer cancel()

	log := u.log.With(zap.Uint64("token", token), zap.String("file", sent.Name))
	log.Info("upload started", zap.Int("bytes", len(sent.Content)))

	id, err := u.uploader.Upload(ctx, *sent)

	u.mu.Lock()
	defer u.mu.Unlock()
	if token != u.seq {
		log.Debug("upload result discarded")
		return "", domain.ErrStaleResult
	}
	u.cancel = nil
	if err != nil {
		u.state = domain.UploadState{Status: domain.UploadFailed, Token: token, FileName: sent.Name, Reason: domain.UserMessage(err)}
		log.Warn("upload failed", zap.Error(err))
		return "", err
	}

	u.state = domain.UploadState{Status: domain.UploadSucceeded, Token: token, FileName: sent.Name, DocumentID: id}
	u.registry.Register(id)
	if u.selectUploaded {
		if err := u.selection.Select(id); err != nil {
			log.Error("select uploaded document", zap.Error(err))
		}
	}
	// A file chosen while the upload ran stays selected.
	if u.candidate == sent {
		u.candidate = nil
	}
	log.Info("upload succeeded", zap.String("doc_id", string(id)))
	return id, nil
}

// Abandon drops interest in the in-flight upload, if any.
func (u *UploadController) Abandon() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state.Status != domain.UploadInFlight {
		return
	}
	u.seq++
	if u.cancel != nil {
		u.cancel()
		u.cancel = nil
	}
	u.state = domain.UploadState{Status: domain.UploadIdle, Token: u.seq}
	u.log.Info("upload abandoned")
}

// State returns the current upload state.
func (u *UploadController) State() domain.UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}
