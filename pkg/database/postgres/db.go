// Package pg provides shared postgres plumbing for the data stores.
package pg

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Serialization failures are retried at most this many times.
const maxSerializationRetries = 5

// ExecuteInTx runs fn within a new transaction at the requested isolation
// level, committing when fn succeeds and rolling back otherwise. Attempts that
// fail with a serialization failure are retried with a fresh transaction.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted // Postgres default
	}

	var err error
	for attempt := 0; attempt <= maxSerializationRetries; attempt++ {
		err = executeOnce(ctx, db, isolation, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return err
}

func executeOnce(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}

	// A rollback is always needed so sql.DB releases the connection.
	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrap(rollbackErr, "failed to rollback transaction")
		}
		return err
	}
	return tx.Commit()
}
