package database

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // The pure Go SQLite driver
)

// Service is the central struct for all database interactions. Reads go
// straight to the pool; writes are funnelled through Write, which serializes
// them behind a mutex and runs each one in its own transaction.
type Service struct {
	path    string
	db      *sql.DB
	writeMu sync.Mutex
}

// NewService opens the database file at path. Foreign keys must be on: the
// schema relies on cascades to clean up bookings, comments and roles.
func NewService(path string) (*Service, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to %s: %w", path, err)
	}

	return &Service{path: path, db: db}, nil
}

// Write executes fn inside a transaction while holding the write lock. If fn
// returns an error the transaction is rolled back and that error returned.
// fn must not call Write again.
func (s *Service) Write(fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// GetDB provides the connection pool for reads.
func (s *Service) GetDB() *sql.DB {
	return s.db
}

// Close closes the underlying pool.
func (s *Service) Close() error {
	return s.db.Close()
}
