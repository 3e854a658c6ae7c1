package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the PostgreSQL-backed TxRunner.
type Store struct {
	db *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// RunInTx begins a read-committed transaction, runs fn and commits.
//
// Capacity is protected by row locks rather than by isolation level:
// LockRoles/LockSubevents issue SELECT ... FOR UPDATE on the counted rows,
// so two registrations racing for the last slot of a role are serialised
// and the second one sees the first one's committed holder row.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, &pgUnit{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// pgUnit implements UnitOfWork on top of a single pgx transaction.
type pgUnit struct {
	tx pgx.Tx
}

var _ UnitOfWork = (*pgUnit)(nil)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}