package postgres

import (
	"database/sql"
	"testing"

	"github.com/code-payments/token-lifecycle/pkg/data/operation"
	"github.com/code-payments/token-lifecycle/pkg/data/operation/tests"

	postgrestest "github.com/code-payments/token-lifecycle/pkg/database/postgres/test"
)

var schema = postgrestest.Schema{
	Create: `
		CREATE TABLE tokenlifecycle__core_operation(
			id SERIAL NOT NULL PRIMARY KEY,

			operation_id TEXT NOT NULL UNIQUE,
			operation_type INTEGER NOT NULL,

			owner TEXT NOT NULL,
			mint TEXT NULL,
			counterparty TEXT NULL,
			quantity BIGINT NOT NULL CHECK (quantity >= 0),

			signature TEXT NULL,
			state INTEGER NOT NULL,

			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		);
	`,
	Destroy: `DROP TABLE tokenlifecycle__core_operation;`,
}

var (
	testStore operation.Store
	teardown  func()
)

func TestMain(m *testing.M) {
	postgrestest.RunMain(m, schema, func(db *sql.DB, reset func()) {
		testStore = New(db)
		teardown = reset
	})
}

func TestOperationPostgresStore(t *testing.T) {
	tests.RunTests(t, testStore, teardown)
}
