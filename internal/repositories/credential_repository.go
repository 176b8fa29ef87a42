package repositories

import (
	"context"
	"errors"
	"sync"
)

// Credential entry keys. The Token Authority is the only writer.
const (
	KeyUser         = "user"
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// CredentialKeys lists every entry removed by Clear.
var CredentialKeys = []string{KeyUser, KeyAccessToken, KeyRefreshToken}

var ErrStoreClosed = errors.New("credential store closed")

// CredentialStore is an opaque key/value blob store that survives restarts.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context) error
	Close() error
}

// MemoryCredentialStore keeps credentials for the lifetime of the process.
type MemoryCredentialStore struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// NewMemoryCredentialStore returns an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{values: make(map[string]string)}
}

func (s *MemoryCredentialStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrStoreClosed
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryCredentialStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.values[key] = value
	return nil
}

func (s *MemoryCredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	for _, key := range CredentialKeys {
		delete(s.values, key)
	}
	return nil
}

func (s *MemoryCredentialStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
