package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/gideon-vouchers/voucher-server/pkg/database/postgres"
	"github.com/gideon-vouchers/voucher-server/pkg/database/query"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/activity"
)

const (
	tableName = "voucher__core_activity"

	allColumns = `id, activity_id, kind, wallet, mint, signature, state, error_message, created_at`

	schema = `
	CREATE TABLE IF NOT EXISTS ` + tableName + ` (
		id serial NOT NULL PRIMARY KEY,
		activity_id text NOT NULL UNIQUE,
		kind integer NOT NULL,
		wallet text NOT NULL,
		mint text NOT NULL,
		signature text NOT NULL UNIQUE,
		state integer NOT NULL,
		error_message text,
		created_at timestamp with time zone NOT NULL
	);
	CREATE INDEX IF NOT EXISTS ` + tableName + `_wallet_idx ON ` + tableName + ` (wallet);
	CREATE INDEX IF NOT EXISTS ` + tableName + `_mint_idx ON ` + tableName + ` (mint);
	`
)

// CreateSchema creates the activity table and its indexes if they don't
// exist yet.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

type model struct {
	Id sql.NullInt64 `db:"id"`

	ActivityId string `db:"activity_id"`
	Kind       uint8  `db:"kind"`

	Wallet    string `db:"wallet"`
	Mint      string `db:"mint"`
	Signature string `db:"signature"`

	State        uint8          `db:"state"`
	ErrorMessage sql.NullString `db:"error_message"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *activity.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		ActivityId: obj.ActivityId,
		Kind:       uint8(obj.Kind),

		Wallet:    obj.Wallet,
		Mint:      obj.Mint,
		Signature: obj.Signature,

		State: uint8(obj.State),
		ErrorMessage: sql.NullString{
			Valid:  len(obj.ErrorMessage) > 0,
			String: obj.ErrorMessage,
		},

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) *activity.Record {
	return &activity.Record{
		Id: uint64(obj.Id.Int64),

		ActivityId: obj.ActivityId,
		Kind:       activity.Kind(obj.Kind),

		Wallet:    obj.Wallet,
		Mint:      obj.Mint,
		Signature: obj.Signature,

		State:        activity.State(obj.State),
		ErrorMessage: obj.ErrorMessage.String,

		CreatedAt: obj.CreatedAt,
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(activity_id, kind, wallet, mint, signature, state, error_message, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING ` + allColumns

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		return tx.QueryRowxContext(
			ctx,
			query,
			m.ActivityId,
			m.Kind,
			m.Wallet,
			m.Mint,
			m.Signature,
			m.State,
			m.ErrorMessage,
			m.CreatedAt,
		).StructScan(m)
	})
	return pgutil.CheckUniqueViolation(err, activity.ErrAlreadyExists)
}

func (m *model) dbUpdate(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `UPDATE ` + tableName + `
			SET state = $2, error_message = $3
			WHERE activity_id = $1
			RETURNING ` + allColumns

		return tx.QueryRowxContext(
			ctx,
			query,
			m.ActivityId,
			m.State,
			m.ErrorMessage,
		).StructScan(m)
	})
	return pgutil.CheckNoRows(err, activity.ErrNotFound)
}

func dbGetByActivityId(ctx context.Context, db *sqlx.DB, activityId string) (*model, error) {
	var res model
	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE activity_id = $1
		LIMIT 1`

	err := db.GetContext(ctx, &res, query, activityId)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, activity.ErrNotFound)
	}
	return &res, nil
}

func dbGetBySignature(ctx context.Context, db *sqlx.DB, signature string) (*model, error) {
	var res model
	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE signature = $1
		LIMIT 1`

	err := db.GetContext(ctx, &res, query, signature)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, activity.ErrNotFound)
	}
	return &res, nil
}

func dbGetAllByWallet(ctx context.Context, db *sqlx.DB, wallet string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*model, error) {
	res := []*model{}

	q, opts := query.PaginateQuery(
		`SELECT `+allColumns+` FROM `+tableName+` WHERE (wallet = $1)`,
		[]interface{}{wallet},
		cursor,
		limit,
		direction,
	)

	err := db.SelectContext(ctx, &res, q, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, activity.ErrNotFound)
	}
	if len(res) == 0 {
		return nil, activity.ErrNotFound
	}
	return res, nil
}

func dbGetAllByMint(ctx context.Context, db *sqlx.DB, mint string) ([]*model, error) {
	res := []*model{}
	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE mint = $1
		ORDER BY id ASC`

	err := db.SelectContext(ctx, &res, query, mint)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, activity.ErrNotFound)
	}
	if len(res) == 0 {
		return nil, activity.ErrNotFound
	}
	return res, nil
}
