package ws

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// DefaultBackOff retries forever with exponential spacing capped at 30s.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}
