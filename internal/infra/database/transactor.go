package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xavierca1/leadpool/internal/usecase"
)

// NewStore binds every repository to db, which may be the pool or a
// transaction.
func NewStore(db DBTX) usecase.Store {
	return usecase.Store{
		Leads:  NewLeadRepository(db),
		Ledger: NewFollowUpRepository(db),
		Staff:  NewStaffRepository(db),
	}
}

type Transactor struct {
	DB *sql.DB
}

func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{DB: db}
}

// WithinTransaction runs fn in a READ COMMITTED transaction. A non-nil error
// from fn, a panic, or a cancelled ctx rolls everything back.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, s usecase.Store) error) error {
	tx, err := t.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, NewStore(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	return nil
}
