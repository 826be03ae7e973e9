package operation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/code-payments/token-lifecycle/pkg/database/query"
)

var (
	ErrNotFound      = errors.New("operation record not found")
	ErrAlreadyExists = errors.New("operation record already exists")
)

type Store interface {
	// Put creates an operation record
	//
	// Returns ErrAlreadyExists if a record already exists for the operation id.
	Put(ctx context.Context, record *Record) error

	// Get finds the operation record for a given operation id
	//
	// Returns ErrNotFound if no record is found.
	Get(ctx context.Context, operationId string) (*Record, error)

	// GetAllByOwner pages through operation records for an owner, ordered by
	// the record id.
	//
	// Returns ErrNotFound if no records are found.
	GetAllByOwner(ctx context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// CountByState counts all operation records for an owner in a provided
	// state
	CountByState(ctx context.Context, owner string, state State) (uint64, error)
}
