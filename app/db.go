// Package app implements the StudyDrop API: metered AI study-tool
// endpoints, Stripe billing reconciliation, and the Postgres storage
// behind both.
package app

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/Skibfizz/studydrop-backend/app/config"

	_ "github.com/lib/pq"
)

// Store owns the database handle. It is constructed once at startup and
// passed into the API explicitly so tests can substitute a mock
// connection.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OpenStore connects to Postgres using the configured DSN.
func OpenStore(cfg *config.Config) (*Store, error) {
	d, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := d.Ping(); err != nil {
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	log.Println("Connected to Postgres")
	return &Store{db: d}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
