package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies failures returned by the REST boundary.
type Kind int

const (
	KindServer Kind = iota
	KindAuthentication
	KindValidation
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	default:
		return "server"
	}
}

var (
	ErrAuthentication = errors.New("authentication failed")
	ErrValidation     = errors.New("request rejected")
	ErrNetwork        = errors.New("network error")
	ErrServer         = errors.New("server error")
)

// Error is a failed REST call. Message is the human-readable text taken from
// the server payload when present.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d", e.Kind, e.Status)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels so callers can write errors.Is(err, api.ErrAuthentication).
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Kind == KindAuthentication
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

// KindForStatus maps an HTTP status to an error kind.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindAuthentication
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindServer
	}
}

// errorFromResponse builds an Error from a non-2xx response body.
func errorFromResponse(status int, body []byte) *Error {
	return &Error{
		Kind:    KindForStatus(status),
		Status:  status,
		Message: messageFromBody(body),
	}
}

func messageFromBody(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return strings.TrimSpace(payload.Message)
	}
	return strings.TrimSpace(payload.Error)
}

// UserMessage returns the server-provided message carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// WithFallback returns err as an *Error whose Message is never empty. Errors
// that did not come from the REST boundary are classified as network errors.
func WithFallback(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		out := *apiErr
		if out.Message == "" {
			out.Message = fallback
		}
		return &out
	}
	return &Error{Kind: KindNetwork, Message: fallback, Err: err}
}
