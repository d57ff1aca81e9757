package domain

// UploadStatus enumerates the upload lifecycle.
type UploadStatus int

const (
	UploadIdle UploadStatus = iota
	UploadInFlight
	UploadSucceeded
	UploadFailed
)

func (s UploadStatus) String() string {
	switch s {
	case UploadInFlight:
		return "in_flight"
	case UploadSucceeded:
		return "succeeded"
	case UploadFailed:
		return "failed"
	default:
		return "idle"
	}
}

// UploadState is the settled view of the upload controller.
type UploadState struct {
	Status     UploadStatus
	Token      uint64
	FileName   string
	DocumentID DocumentID
	Reason     string
}

// QueryStatus enumerates the question lifecycle.
type QueryStatus int

const (
	QueryIdle QueryStatus = iota
	QueryInFlight
	QueryAnswered
	QueryFailed
)

func (s QueryStatus) String() string {
	switch s {
	case QueryInFlight:
		return "in_flight"
	case QueryAnswered:
		return "answered"
	case QueryFailed:
		return "failed"
	default:
		return "idle"
	}
}

// QueryState is the settled view of the query router.
type QueryState struct {
	Status   QueryStatus
	Token    uint64
	Question string
	Scope    Scope
	Result   AnswerResult
	Reason   string
}
