// Package pg implements the service's persistence interfaces over
// PostgreSQL. Two connections exist side by side: an elevated one opened
// with the service credential (role reads that must not be filtered by
// row-level policies) and a subject-scoped one for everything else.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgErrUniqueViolation = "23505"

	// Authentication failure classes; these mark a rejected connection
	// credential rather than a data problem.
	pgErrInvalidPassword  = "28P01"
	pgErrInvalidAuthSpec  = "28000"
	pgErrInsufficientPriv = "42501"
)

// Store wraps one database handle.
type Store struct {
	db *sql.DB
}

// Open connects with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle. Used by tests and by callers that
// manage the pool themselves.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func isCredentialError(err error) bool {
	pgErr, ok := maybePgError(err)
	if !ok {
		return false
	}
	switch pgErr.Code {
	case pgErrInvalidPassword, pgErrInvalidAuthSpec, pgErrInsufficientPriv:
		return true
	}
	return false
}
