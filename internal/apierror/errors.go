// Package apierror defines the gateway's error taxonomy, shared by the
// image coordinator and chat relay so handlers can map any failure to
// the right HTTP status without re-deriving it.
package apierror

import "net/http"

// Kind is one of the error categories named by the gateway's contract.
type Kind string

const (
	KindBadRequest  Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindBadGateway  Kind = "bad_gateway"
	KindTimeout     Kind = "timeout"
	KindUpload      Kind = "upload_error"
	KindStorage     Kind = "storage_error"
	KindInternal    Kind = "internal_error"
)

// Error is a taxonomy-tagged error carrying enough context to render an
// OpenAI-shaped error body.
type Error struct {
	Kind    Kind
	Message string
	TaskID  string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status code to send for e, falling back to a
// kind-based default if Status was left unset.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadGateway:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindUpload, KindStorage, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// New builds an *Error of the given kind wrapping err (which may be nil).
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Timeout builds the image-generation timeout-continuation error.
func Timeout(taskID string) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: "Request timeout. The task is still processing and will be delivered to your callback URL if provided.",
		TaskID:  taskID,
	}
}

// BadGatewayStatus builds a BadGateway error that mirrors an upstream
// status code when one is available.
func BadGatewayStatus(message string, upstreamStatus int, err error) *Error {
	status := http.StatusBadGateway
	if upstreamStatus >= 400 {
		status = upstreamStatus
	}
	return &Error{Kind: KindBadGateway, Message: message, Err: err, Status: status}
}
