package repositories

import (
	"fmt"

	"chat-client/internal/db"
)

// Credential store drivers beyond the SQL ones in package db.
const (
	DriverMemory = "memory"
	DriverPebble = "pebble"
)

// OpenCredentialStore opens the credential store for driver. dsn is a file or
// connection string for the SQL drivers and a directory for pebble.
func OpenCredentialStore(driver, dsn string) (CredentialStore, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryCredentialStore(), nil
	case DriverPebble:
		store, err := OpenPebbleCredentialStore(dsn, nil)
		if err != nil {
			return nil, fmt.Errorf("open pebble: %w", err)
		}
		return store, nil
	case db.DriverSQLite, db.DriverPostgres:
		sqlDB, err := db.Connect(driver, dsn)
		if err != nil {
			return nil, err
		}
		return NewSQLCredentialStore(sqlDB), nil
	default:
		return nil, fmt.Errorf("unsupported credential store driver %q", driver)
	}
}
