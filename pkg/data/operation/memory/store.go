package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/code-payments/token-lifecycle/pkg/data/operation"
	"github.com/code-payments/token-lifecycle/pkg/database/query"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records []*operation.Record
}

// New returns a new in memory operation.Store
func New() operation.Store {
	return &store{}
}

// Put implements operation.Store.Put
func (s *store) Put(_ context.Context, data *operation.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findByOperationId(data.OperationId); item != nil {
		return operation.ErrAlreadyExists
	}

	s.last++
	data.Id = s.last
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	cloned := data.Clone()
	s.records = append(s.records, &cloned)
	return nil
}

// Get implements operation.Store.Get
func (s *store) Get(_ context.Context, operationId string) (*operation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByOperationId(operationId)
	if item == nil {
		return nil, operation.ErrNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// GetAllByOwner implements operation.Store.GetAllByOwner
func (s *store) GetAllByOwner(_ context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*operation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.findByOwner(owner)
	items = filterPaged(items, cursor, direction)

	if len(items) == 0 {
		return nil, operation.ErrNotFound
	} else if limit > 0 && uint64(len(items)) > limit {
		items = items[:limit]
	}
	return cloneSlice(items), nil
}

// CountByState implements operation.Store.CountByState
func (s *store) CountByState(_ context.Context, owner string, state operation.State) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for _, item := range s.findByOwner(owner) {
		if item.State == state {
			count++
		}
	}
	return count, nil
}

func (s *store) findByOperationId(operationId string) *operation.Record {
	for _, item := range s.records {
		if item.OperationId == operationId {
			return item
		}
	}
	return nil
}

func (s *store) findByOwner(owner string) []*operation.Record {
	var res []*operation.Record
	for _, item := range s.records {
		if item.Owner == owner {
			res = append(res, item)
		}
	}
	return res
}

func filterPaged(items []*operation.Record, cursor query.Cursor, direction query.Ordering) []*operation.Record {
	var res []*operation.Record
	for _, item := range items {
		if len(cursor) > 0 {
			if direction == query.Ascending && item.Id <= cursor.ToUint64() {
				continue
			}
			if direction == query.Descending && item.Id >= cursor.ToUint64() {
				continue
			}
		}
		res = append(res, item)
	}

	sort.Slice(res, func(i, j int) bool {
		if direction == query.Descending {
			return res[i].Id > res[j].Id
		}
		return res[i].Id < res[j].Id
	})
	return res
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = 0
	s.records = nil
}

func cloneSlice(items []*operation.Record) []*operation.Record {
	res := make([]*operation.Record, len(items))
	for i, item := range items {
		cloned := item.Clone()
		res[i] = &cloned
	}
	return res
}
