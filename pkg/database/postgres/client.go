package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const (
	defaultMaxOpenConnections = 10
	defaultMaxIdleConnections = 5
	defaultConnMaxLifetime    = 30 * time.Minute
	pingTimeout               = 10 * time.Second
)

// NewWithUrl opens a New Relic instrumented pgx pool for a postgres:// url
// and verifies it with a ping. Non-positive limits use the defaults.
func NewWithUrl(ctx context.Context, url string, maxOpenConnections, maxIdleConnections int) (*sql.DB, error) {
	db, err := sql.Open("nrpgx", url)
	if err != nil {
		return nil, errors.Wrap(err, "error opening connection pool")
	}

	if maxOpenConnections <= 0 {
		maxOpenConnections = defaultMaxOpenConnections
	}
	if maxIdleConnections <= 0 {
		maxIdleConnections = defaultMaxIdleConnections
	}
	db.SetMaxOpenConns(maxOpenConnections)
	db.SetMaxIdleConns(maxIdleConnections)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error pinging database")
	}
	return db, nil
}
