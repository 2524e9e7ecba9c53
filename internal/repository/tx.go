package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// Transactor implements domain.Transactor on a Postgres pool
type Transactor struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewTransactor creates a new transactor
func NewTransactor(db *sqlx.DB, logger *slog.Logger) *Transactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transactor{db: db, logger: logger}
}

// WithinTx runs fn with a transaction attached to ctx. Repositories called
// with that ctx join the transaction. Nested calls reuse the outer one.
// Hooks registered with domain.AfterCommit run only after a successful commit.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx, hooks, _ := domain.WithCommitHooks(context.WithValue(ctx, txKey{}, tx))
	if err := fn(txCtx); err != nil {
		hooks.Discard()
		if rbErr := tx.Rollback(); rbErr != nil {
			t.logger.Error("failed to rollback transaction", slog.String("error", rbErr.Error()))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		hooks.Discard()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	hooks.Run()
	return nil
}

// conn returns the transaction carried by ctx, or db when there is none
func conn(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}
