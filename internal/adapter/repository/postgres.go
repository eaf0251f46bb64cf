// Package repository implements the persistence ports on PostgreSQL via
// pgx. One Store carries every repository; pipelines consume it through the
// narrow ports interfaces.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("repository: not found")

// ErrInvalidPattern is returned when a regex keyword fails to compile at
// write time.
var ErrInvalidPattern = errors.New("repository: invalid regex pattern")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Ping releases broken pooled connections before a pipeline tick.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation detects a create that lost the race to another worker.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
