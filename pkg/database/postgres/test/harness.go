package test

import (
	"database/sql"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
)

// Schema is the DDL a store's tests run against. Migrations live outside
// this repository, so tests own a copy of the tables they need.
type Schema struct {
	Create  string
	Destroy string
}

func (s Schema) reset(db *sql.DB) error {
	if _, err := db.Exec(s.Destroy); err != nil {
		return err
	}
	_, err := db.Exec(s.Create)
	return err
}

// RunMain starts a postgres container, applies schema, hands the connection
// to setup and exits with the result of m.Run. The teardown passed to setup
// recreates the schema and is intended to be deferred by each test.
func RunMain(m *testing.M, schema Schema, setup func(db *sql.DB, teardown func())) {
	log := logrus.StandardLogger().WithField("type", "postgres/test")

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("failed to create docker pool")
		os.Exit(1)
	}

	db, purge, err := StartPostgresDB(pool)
	if err != nil {
		log.WithError(err).Error("failed to start postgres container")
		os.Exit(1)
	}

	if _, err := db.Exec(schema.Create); err != nil {
		log.WithError(err).Error("failed to create test tables")
		purge()
		os.Exit(1)
	}

	setup(db, func() {
		if pc := recover(); pc != nil {
			purge()
			panic(pc)
		}

		if err := schema.reset(db); err != nil {
			log.WithError(err).Error("failed to reset test tables")
			purge()
			os.Exit(1)
		}
	})

	code := m.Run()
	db.Close()
	purge()
	os.Exit(code)
}
