package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures returned by the session core.
type ErrorKind int

const (
	KindTransport ErrorKind = iota + 1
	KindValidation
	KindConcurrency
	KindStale
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindConcurrency:
		return "concurrency"
	case KindStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Message is safe to show to a user.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrNoFileSelected  = &Error{Kind: KindValidation, Message: "Please select a file to upload."}
	ErrEmptyQuestion   = &Error{Kind: KindValidation, Message: "Enter a question first."}
	ErrUnknownDocument = &Error{Kind: KindValidation, Message: "Selected document is not in the registry."}
	ErrUploadInFlight  = &Error{Kind: KindConcurrency, Message: "An upload is already in progress."}
	ErrQueryInFlight   = &Error{Kind: KindConcurrency, Message: "A question is already being answered."}
	// ErrStaleResult is returned to callers whose result was superseded or
	// abandoned. It is never shown to users.
	ErrStaleResult = &Error{Kind: KindStale, Message: "result discarded"}
)

// GenericTransportMessage is used when neither the backend nor the transport
// produced a usable message.
const GenericTransportMessage = "Request failed."

// TransportError is a network, status or decoding failure at the backend boundary.
type TransportError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err, picking the backend message when present.
func NewTransportError(op string, status int, backendMsg string, err error) *TransportError {
	msg := backendMsg
	switch {
	case msg != "":
	case status != 0:
		msg = fmt.Sprintf("request failed with status code %d", status)
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timed out"
	case err != nil:
		msg = err.Error()
	default:
		msg = GenericTransportMessage
	}
	return &TransportError{Op: op, Status: status, Message: msg, Err: err}
}

// KindOf classifies err. Unclassified errors count as transport failures.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransport
}

// IsStale reports whether err marks a discarded result.
func IsStale(err error) bool { return errors.Is(err, ErrStaleResult) }

// UserMessage returns the short human-readable text for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		if te.Message != "" {
			return te.Message
		}
		return GenericTransportMessage
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return GenericTransportMessage
}
