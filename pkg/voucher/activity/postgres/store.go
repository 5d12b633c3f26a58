package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/gideon-vouchers/voucher-server/pkg/database/query"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/activity"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres backed activity.Store
func New(db *sql.DB) activity.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements activity.Store.Put
func (s *store) Put(ctx context.Context, record *activity.Record) error {
	m, err := toModel(record)
	if err != nil {
		return err
	}

	if err := m.dbPut(ctx, s.db); err != nil {
		return err
	}

	fromModel(m).CopyTo(record)
	return nil
}

// Update implements activity.Store.Update
func (s *store) Update(ctx context.Context, record *activity.Record) error {
	m, err := toModel(record)
	if err != nil {
		return err
	}

	if err := m.dbUpdate(ctx, s.db); err != nil {
		return err
	}

	fromModel(m).CopyTo(record)
	return nil
}

// Get implements activity.Store.Get
func (s *store) Get(ctx context.Context, activityId string) (*activity.Record, error) {
	m, err := dbGetByActivityId(ctx, s.db, activityId)
	if err != nil {
		return nil, err
	}
	return fromModel(m), nil
}

// GetBySignature implements activity.Store.GetBySignature
func (s *store) GetBySignature(ctx context.Context, signature string) (*activity.Record, error) {
	m, err := dbGetBySignature(ctx, s.db, signature)
	if err != nil {
		return nil, err
	}
	return fromModel(m), nil
}

// GetAllByWallet implements activity.Store.GetAllByWallet
func (s *store) GetAllByWallet(ctx context.Context, wallet string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*activity.Record, error) {
	models, err := dbGetAllByWallet(ctx, s.db, wallet, cursor, limit, direction)
	if err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

// GetAllByMint implements activity.Store.GetAllByMint
func (s *store) GetAllByMint(ctx context.Context, mint string) ([]*activity.Record, error) {
	models, err := dbGetAllByMint(ctx, s.db, mint)
	if err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

func fromModels(models []*model) []*activity.Record {
	res := make([]*activity.Record, len(models))
	for i, m := range models {
		res[i] = fromModel(m)
	}
	return res
}
