package activity

import (
	"context"

	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/database/query"
)

var (
	ErrNotFound      = errors.New("activity record not found")
	ErrAlreadyExists = errors.New("activity record already exists")
)

type Store interface {
	// Put creates a new activity record.
	//
	// ErrAlreadyExists is returned if a record with the same activity id or
	// signature already exists.
	Put(ctx context.Context, record *Record) error

	// Update updates the state and error message of an existing record.
	//
	// ErrNotFound is returned if the record doesn't exist.
	Update(ctx context.Context, record *Record) error

	// Get gets a record by its activity id.
	//
	// ErrNotFound is returned if the record doesn't exist.
	Get(ctx context.Context, activityId string) (*Record, error)

	// GetBySignature gets a record by its transaction signature.
	//
	// ErrNotFound is returned if the record doesn't exist.
	GetBySignature(ctx context.Context, signature string) (*Record, error)

	// GetAllByWallet returns a page of records initiated by a wallet.
	//
	// ErrNotFound is returned if no records are found.
	GetAllByWallet(ctx context.Context, wallet string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// GetAllByMint returns every record affecting a mint, oldest first.
	//
	// ErrNotFound is returned if no records are found.
	GetAllByMint(ctx context.Context, mint string) ([]*Record, error)
}
