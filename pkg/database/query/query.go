// Package query defines store agnostic paging over records ordered by id.
package query

import (
	"github.com/pkg/errors"
)

// Ordering is the id order of a returned set of records.
type Ordering uint

const (
	Ascending Ordering = iota
	Descending
)

func ToOrdering(val string) (Ordering, error) {
	switch val {
	case "asc":
		return Ascending, nil
	case "desc":
		return Descending, nil
	default:
		return 0, errors.Errorf("unexpected ordering: %q", val)
	}
}

func ToOrderingWithFallback(val string, fallback Ordering) Ordering {
	res, err := ToOrdering(val)
	if err != nil {
		return fallback
	}
	return res
}

func (o Ordering) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// Page requests up to Limit records strictly after Cursor in Order.
type Page struct {
	Cursor Cursor
	Limit  uint64
	Order  Ordering
}

type Option func(*Page) error

func WithDirection(val Ordering) Option {
	return func(p *Page) error {
		p.Order = val
		return nil
	}
}

// WithLimit sets the page size. Zero keeps the default.
func WithLimit(val uint64) Option {
	return func(p *Page) error {
		if val > 0 {
			p.Limit = val
		}
		return nil
	}
}

func WithCursor(val Cursor) Option {
	return func(p *Page) error {
		p.Cursor = val
		return nil
	}
}

// WithBase58Cursor sets the cursor from its ToBase58 form. An empty value
// starts from the beginning.
func WithBase58Cursor(val string) Option {
	return func(p *Page) error {
		cursor, err := CursorFromBase58(val)
		if err != nil {
			return err
		}
		p.Cursor = cursor
		return nil
	}
}

// NewPage builds a page starting at defaultLimit records in ascending order.
// Limits above maxLimit are clamped.
func NewPage(defaultLimit, maxLimit uint64, opts ...Option) (*Page, error) {
	if defaultLimit == 0 || defaultLimit > maxLimit {
		return nil, errors.New("default limit must be within (0, max]")
	}

	p := &Page{
		Limit: defaultLimit,
		Order: Ascending,
	}
	for _, o := range opts {
		if err := o(p); err != nil {
			return nil, err
		}
	}

	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p, nil
}

// NextCursor returns the cursor for the following page when returned filled
// this one, given the id of the last record returned.
func (p *Page) NextCursor(returned int, lastId uint64) (Cursor, bool) {
	if returned == 0 || uint64(returned) < p.Limit {
		return nil, false
	}
	return ToCursor(lastId), true
}
