package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/gideon-vouchers/voucher-server/pkg/voucher/activity"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/activity/tests"

	postgrestest "github.com/gideon-vouchers/voucher-server/pkg/database/postgres/test"

	_ "github.com/jackc/pgx/v4/stdlib"
)

var (
	testDB    *sql.DB
	testStore activity.Store
	teardown  func()
)

const (
	tableReset = `TRUNCATE ` + tableName + ` RESTART IDENTITY;`
)

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	testPool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	var cleanUpFunc func()
	db, cleanUpFunc, err := postgrestest.StartPostgresDB(testPool)
	if err != nil {
		log.WithError(err).Error("Error starting postgres image")
		os.Exit(1)
	}
	defer db.Close()

	if err := CreateSchema(context.Background(), db); err != nil {
		log.WithError(err).Error("Error creating test tables")
		cleanUpFunc()
		os.Exit(1)
	}

	testDB = db
	testStore = New(db)
	teardown = func() {
		if pc := recover(); pc != nil {
			cleanUpFunc()
			panic(pc)
		}

		if _, err := db.Exec(tableReset); err != nil {
			log.WithError(err).Error("Error resetting test tables")
			cleanUpFunc()
			os.Exit(1)
		}
	}

	code := m.Run()
	cleanUpFunc()
	os.Exit(code)
}

func TestActivityPostgresStore(t *testing.T) {
	tests.RunTests(t, testStore, teardown)
}

func TestCreateSchema_Idempotent(t *testing.T) {
	require.NoError(t, CreateSchema(context.Background(), testDB))
}
