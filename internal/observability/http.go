package observability

import (
	"net/http"

	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderDeviceID  = "X-Device-Id"
)

func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get(HeaderRequestID)
}

// EnsureRequestID returns the request id of r, assigning a fresh one when missing.
func EnsureRequestID(r *http.Request) string {
	if id := RequestIDFromRequest(r); id != "" {
		return id
	}
	id := uuid.NewString()
	r.Header.Set(HeaderRequestID, id)
	return id
}

// SetDeviceID stamps outbound requests with the client's device id.
func SetDeviceID(h http.Header, deviceID string) {
	if deviceID != "" {
		h.Set(HeaderDeviceID, deviceID)
	}
}
