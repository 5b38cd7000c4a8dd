package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements every store interface on a pgx pool
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new store instance
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// mapError translates driver errors into the models sentinels
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return models.ErrDuplicate
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return models.ErrTemplateConflict
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// inTx runs fn in a transaction, committing only when fn succeeds
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rowsAffected turns an empty update or delete into ErrNotFound
func rowsAffected(tag pgconn.CommandTag, err error, op string) error {
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
