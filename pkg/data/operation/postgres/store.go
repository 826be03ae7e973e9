package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/token-lifecycle/pkg/data/operation"
	"github.com/code-payments/token-lifecycle/pkg/database/query"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres operation.Store
func New(db *sql.DB) operation.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// NewFromSqlx returns a new postgres operation.Store sharing an existing
// sqlx handle, as returned by pgutil.NewWithUsernameAndPassword.
func NewFromSqlx(db *sqlx.DB) operation.Store {
	return &store{
		db: db,
	}
}

// Put implements operation.Store.Put
func (s *store) Put(ctx context.Context, record *operation.Record) error {
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

// Get implements operation.Store.Get
func (s *store) Get(ctx context.Context, operationId string) (*operation.Record, error) {
	m, err := dbGetByOperationId(ctx, s.db, operationId)
	if err != nil {
		return nil, err
	}
	return fromModel(m), nil
}

// GetAllByOwner implements operation.Store.GetAllByOwner
func (s *store) GetAllByOwner(ctx context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*operation.Record, error) {
	models, err := dbGetAllByOwner(ctx, s.db, owner, cursor, limit, direction)
	if err != nil {
		return nil, err
	}

	res := make([]*operation.Record, len(models))
	for i, m := range models {
		res[i] = fromModel(m)
	}
	return res, nil
}

// CountByState implements operation.Store.CountByState
func (s *store) CountByState(ctx context.Context, owner string, state operation.State) (uint64, error) {
	return dbCountByState(ctx, s.db, owner, state)
}
