package repositories

import (
	"context"
	"errors"

	"github.com/cockroachdb/pebble"
)

const pebbleKeyPrefix = "cred/"

// PebbleCredentialStore keeps credentials in an embedded pebble database.
type PebbleCredentialStore struct {
	db *pebble.DB
}

// OpenPebbleCredentialStore opens (or creates) a pebble database at dir.
// opts may be nil.
func OpenPebbleCredentialStore(dir string, opts *pebble.Options) (*PebbleCredentialStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	return &PebbleCredentialStore{db: db}, nil
}

func (s *PebbleCredentialStore) Get(_ context.Context, key string) (string, bool, error) {
	value, closer, err := s.db.Get(pebbleKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer closer.Close()
	return string(value), true, nil
}

func (s *PebbleCredentialStore) Set(_ context.Context, key, value string) error {
	return s.db.Set(pebbleKey(key), []byte(value), pebble.Sync)
}

func (s *PebbleCredentialStore) Clear(_ context.Context) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, key := range CredentialKeys {
		if err := batch.Delete(pebbleKey(key), nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (s *PebbleCredentialStore) Close() error {
	return s.db.Close()
}

func pebbleKey(key string) []byte {
	return []byte(pebbleKeyPrefix + key)
}
