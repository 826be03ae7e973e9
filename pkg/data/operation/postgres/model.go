package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/token-lifecycle/pkg/data/operation"
	pgutil "github.com/code-payments/token-lifecycle/pkg/database/postgres"
	q "github.com/code-payments/token-lifecycle/pkg/database/query"
	"github.com/code-payments/token-lifecycle/pkg/pointer"
)

const (
	tableName = "tokenlifecycle__core_operation"

	allColumns = `id, operation_id, operation_type, owner, mint, counterparty, quantity, signature, state, created_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	OperationId string `db:"operation_id"`
	Type        uint8  `db:"operation_type"`

	Owner        string         `db:"owner"`
	Mint         sql.NullString `db:"mint"`
	Counterparty sql.NullString `db:"counterparty"`
	Quantity     uint64         `db:"quantity"`

	Signature sql.NullString `db:"signature"`
	State     uint8          `db:"state"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *operation.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		OperationId: obj.OperationId,
		Type:        uint8(obj.Type),

		Owner:        obj.Owner,
		Mint:         toNullString(obj.Mint),
		Counterparty: toNullString(obj.Counterparty),
		Quantity:     obj.Quantity,

		Signature: toNullString(obj.Signature),
		State:     uint8(obj.State),

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) *operation.Record {
	return &operation.Record{
		Id: uint64(obj.Id.Int64),

		OperationId: obj.OperationId,
		Type:        operation.Type(obj.Type),

		Owner:        obj.Owner,
		Mint:         pointer.IfValid(obj.Mint.Valid, obj.Mint.String),
		Counterparty: pointer.IfValid(obj.Counterparty.Valid, obj.Counterparty.String),
		Quantity:     obj.Quantity,

		Signature: pointer.IfValid(obj.Signature.Valid, obj.Signature.String),
		State:     operation.State(obj.State),

		CreatedAt: obj.CreatedAt,
	}
}

func toNullString(value *string) sql.NullString {
	return sql.NullString{
		Valid:  value != nil,
		String: *pointer.OrDefault(value, ""),
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(operation_id, operation_type, owner, mint, counterparty, quantity, signature, state, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING ` + allColumns

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		return tx.QueryRowxContext(
			ctx,
			query,
			m.OperationId,
			m.Type,
			m.Owner,
			m.Mint,
			m.Counterparty,
			m.Quantity,
			m.Signature,
			m.State,
			m.CreatedAt.UTC(),
		).StructScan(m)
	})
	return pgutil.CheckUniqueViolation(err, operation.ErrAlreadyExists)
}

func dbGetByOperationId(ctx context.Context, db *sqlx.DB, operationId string) (*model, error) {
	var res model
	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE operation_id = $1
	`

	err := db.GetContext(ctx, &res, query, operationId)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, operation.ErrNotFound)
	}
	return &res, nil
}

func dbGetAllByOwner(ctx context.Context, db *sqlx.DB, owner string, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	res := []*model{}

	opts := []interface{}{owner}
	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE (owner = $1)`

	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, operation.ErrNotFound)
	}

	if len(res) == 0 {
		return nil, operation.ErrNotFound
	}
	return res, nil
}

func dbCountByState(ctx context.Context, db *sqlx.DB, owner string, state operation.State) (uint64, error) {
	var res uint64
	query := `SELECT COUNT(*) FROM ` + tableName + `
		WHERE owner = $1 AND state = $2
	`

	err := db.GetContext(ctx, &res, query, owner, state)
	if err != nil {
		return 0, err
	}
	return res, nil
}
