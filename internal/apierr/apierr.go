// Package apierr normalizes every failure a caller can see into one shape:
// {StatusCode, Message}. Transport failures, HTTP error statuses and
// client-side validation failures all become *Error.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind int

const (
	// KindNetwork means no response was received.
	KindNetwork Kind = iota + 1
	// KindHTTPStatus means the server answered with a 4xx or 5xx status.
	KindHTTPStatus
	// KindValidation means a form constraint failed before any request.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_error"
	case KindHTTPStatus:
		return "http_status_error"
	case KindValidation:
		return "validation_error"
	default:
		return "unknown_error"
	}
}

// Error is the normalized error. StatusCode is 0 for network and validation
// errors.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string

	// fromServer is set when Message came from the response body.
	fromServer bool
	err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.err }

// ErrorType is the log category of the error.
func (e *Error) ErrorType() string { return e.Kind.String() }

// ServerMessage reports whether the message was provided by the backend.
func (e *Error) ServerMessage() bool { return e.fromServer }

// Network wraps a transport failure.
func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Message: err.Error(), err: err}
}

// Validation wraps a client-side constraint failure.
func Validation(err error) *Error {
	return &Error{Kind: KindValidation, Message: err.Error(), err: err}
}

// FromResponse builds an error from a non-2xx response. The message is the
// body's "message" field; an array of messages is joined with "; ". Without
// one the status text is used.
func FromResponse(status int, body []byte) *Error {
	e := &Error{Kind: KindHTTPStatus, StatusCode: status}
	if msg, ok := extractMessage(body); ok {
		e.Message = msg
		e.fromServer = true
		return e
	}
	e.Message = http.StatusText(status)
	if e.Message == "" {
		e.Message = fmt.Sprintf("HTTP %d", status)
	}
	return e
}

func extractMessage(body []byte) (string, bool) {
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Message) == 0 {
		// plain text bodies are still a server message
		text := strings.TrimSpace(string(body))
		if text != "" && !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "<") {
			return text, true
		}
		return "", false
	}

	var single string
	if err := json.Unmarshal(payload.Message, &single); err == nil {
		return single, single != ""
	}
	var many []string
	if err := json.Unmarshal(payload.Message, &many); err == nil && len(many) > 0 {
		return strings.Join(many, "; "), true
	}
	return "", false
}

// As returns the normalized error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Normalize converts any error into *Error. Errors that are not already
// normalized are treated as network failures.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return Network(err)
}

// WithFallback returns a copy of err whose message is fallback unless the
// server supplied one or the error is a validation error.
func WithFallback(err error, fallback string) *Error {
	e := Normalize(err)
	if e == nil {
		return nil
	}
	if e.fromServer || e.Kind == KindValidation {
		return e
	}
	out := *e
	out.Message = fallback
	return &out
}

// IsStatus reports whether err is an HTTP status error with the given code.
func IsStatus(err error, status int) bool {
	e, ok := As(err)
	return ok && e.Kind == KindHTTPStatus && e.StatusCode == status
}
