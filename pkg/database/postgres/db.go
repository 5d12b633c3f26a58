package pg

import (
	"context"
	"database/sql"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ExecuteInTx runs fn in a transaction that commits only when fn succeeds.
// LevelDefault is read committed, as in postgres itself.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return errors.Wrap(err, "error starting transaction")
	}

	if err := fn(tx); err != nil {
		return rollback(tx, err)
	}
	return tx.Commit()
}

// rollback releases the connection, keeping cause as the reported error
// unless the rollback itself fails.
func rollback(tx *sqlx.Tx, cause error) error {
	if err := tx.Rollback(); err != nil {
		return errors.Wrapf(err, "failed to rollback transaction after: %v", cause)
	}
	return cause
}

// CheckNoRows maps sql.ErrNoRows to outErr.
func CheckNoRows(inErr, outErr error) error {
	return mapErr(inErr, outErr, func(err error) bool {
		return errors.Is(err, sql.ErrNoRows)
	})
}

// CheckUniqueViolation maps a unique constraint violation to outErr.
func CheckUniqueViolation(inErr, outErr error) error {
	return mapErr(inErr, outErr, func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
	})
}

func mapErr(inErr, outErr error, match func(error) bool) error {
	if inErr != nil && match(inErr) {
		return outErr
	}
	return inErr
}
