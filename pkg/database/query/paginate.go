package query

import "strconv"

// PaginateQuery appends cursor, ordering and limit clauses on the id column
// to query, which must already end in a parenthesized WHERE clause:
//
//	"SELECT ... WHERE (owner = $1)"
//
// becomes
//
//	"SELECT ... WHERE (owner = $1) AND id < $2 ORDER BY id DESC LIMIT $3"
func PaginateQuery(query string, args []interface{}, cursor Cursor, limit uint64, direction Ordering) (string, []interface{}) {
	if len(cursor) > 0 {
		op := " AND id > $"
		if direction == Descending {
			op = " AND id < $"
		}

		args = append(args, cursor.ToUint64())
		query += op + strconv.Itoa(len(args))
	}

	if direction == Descending {
		query += " ORDER BY id DESC"
	} else {
		query += " ORDER BY id ASC"
	}

	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	return query, args
}
