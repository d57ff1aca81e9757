// Package presenter derives renderable view models from session state.
// Nothing here performs I/O.
package presenter

import (
	"fmt"

	"ragqa/internal/backend"
	"ragqa/internal/domain"
)

// ViewModel is what the view needs to render a question's outcome.
type ViewModel struct {
	Loading     bool
	Question    string
	Scope       string
	HasAnswer   bool
	Answer      string
	HasExcerpt  bool
	Excerpt     string
	HasDocument bool
	DocumentID  domain.DocumentID
	ArtifactURL string
	Error       string
}

// UploadView is what the view needs to render the upload control.
type UploadView struct {
	Busy   bool
	Status string
	Failed bool
}

// Presenter turns state into view models. The zero value builds artifact
// links relative to the server root.
type Presenter struct {
	baseURL string
}

func New(baseURL string) Presenter { return Presenter{baseURL: baseURL} }

// Present derives the result view from a query state.
func (p Presenter) Present(st domain.QueryState) ViewModel {
	vm := ViewModel{Question: st.Question, Scope: st.Scope.String()}
	switch st.Status {
	case domain.QueryInFlight:
		vm.Loading = true
	case domain.QueryFailed:
		vm.Error = "Failed to get answer: " + st.Reason
	case domain.QueryAnswered:
		res := st.Result.Normalized()
		vm.HasAnswer = true
		vm.Answer = res.Answer
		vm.HasExcerpt = res.HasExcerpt()
		vm.Excerpt = res.MatchedExcerpt
		if res.HasDocument() {
			vm.HasDocument = true
			vm.DocumentID = res.MatchedDocumentID
			vm.ArtifactURL = backend.ArtifactURL(p.baseURL, res.MatchedDocumentID)
		}
	}
	return vm
}

// PresentUpload derives the upload status line.
func (p Presenter) PresentUpload(st domain.UploadState) UploadView {
	switch st.Status {
	case domain.UploadInFlight:
		return UploadView{Busy: true, Status: fmt.Sprintf("Uploading %s...", st.FileName)}
	case domain.UploadSucceeded:
		return UploadView{Status: fmt.Sprintf("Uploaded: %s", st.DocumentID)}
	case domain.UploadFailed:
		return UploadView{Failed: true, Status: "Upload failed: " + st.Reason}
	default:
		return UploadView{}
	}
}
