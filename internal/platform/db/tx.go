package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxOption adjusts the options of a transaction started by WithTx.
type TxOption func(*pgx.TxOptions)

// ReadCommitted runs the transaction at READ COMMITTED. Invoice status changes
// lock their row with FOR UPDATE and re-read it after the lock is granted.
func ReadCommitted() TxOption {
	return func(o *pgx.TxOptions) {
		o.IsoLevel = pgx.ReadCommitted
	}
}

func txOptions(opts ...TxOption) pgx.TxOptions {
	o := pgx.TxOptions{IsoLevel: pgx.RepeatableRead}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithTx executes fn within a transaction, REPEATABLE READ unless an option
// says otherwise. fn's error rolls the transaction back and is returned as is.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error, opts ...TxOption) error {
	tx, err := pool.BeginTx(ctx, txOptions(opts...))
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	return nil
}
