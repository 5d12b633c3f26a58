package test

import (
	"database/sql"
	"net/url"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	"github.com/gideon-vouchers/voucher-server/pkg/retry"
	"github.com/gideon-vouchers/voucher-server/pkg/retry/backoff"
)

const (
	containerRepository = "postgres"
	containerTag        = "16-alpine"

	// The container is reaped by docker even if the test binary dies.
	containerTTL = 2 * time.Minute

	pingInterval = 500 * time.Millisecond
	pingAttempts = 60
)

var credentials = url.UserPassword("localtest", "localpassword")

const database = "vouchers"

// StartPostgresDB runs a throwaway postgres container and returns a connected
// pool. closeFunc purges the container and is always safe to call.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	password, _ := credentials.Password()

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: containerRepository,
		Tag:        containerTag,
		Env: []string{
			"POSTGRES_USER=" + credentials.Username(),
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + database,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, func() {}, errors.Wrap(err, "failed to start postgres container")
	}

	purge := func() { _ = pool.Purge(resource) }
	_ = resource.Expire(uint(containerTTL.Seconds()))

	dsn := url.URL{
		Scheme:   "postgres",
		User:     credentials,
		Host:     resource.GetHostPort("5432/tcp"),
		Path:     "/" + database,
		RawQuery: "sslmode=disable",
	}

	_, err = retry.Retry(
		func() error {
			if db, err = sql.Open("pgx", dsn.String()); err != nil {
				return err
			}
			return db.Ping()
		},
		retry.Limit(pingAttempts),
		retry.Backoff(backoff.Constant(pingInterval), pingInterval),
	)
	if err != nil {
		purge()
		return nil, func() {}, errors.Wrap(err, "postgres container never became available")
	}

	return db, purge, nil
}
