package query

import (
	"fmt"
	"strings"
)

const MaxPagingLimit = 1000

// PaginateQuery appends the cursor condition, ordering and limit to a query
// whose filter is fully parenthesized, e.g.
//
//	SELECT * FROM t WHERE (wallet = $1)
//
// becomes, with a cursor and Descending,
//
//	SELECT * FROM t WHERE (wallet = $1) AND id < $2 ORDER BY id DESC LIMIT $3
//
// A zero limit, or one above MaxPagingLimit, is capped at MaxPagingLimit.
func PaginateQuery(query string, opts []interface{}, cursor Cursor, limit uint64, direction Ordering) (string, []interface{}) {
	keyword, comparison := direction.sql()

	var sb strings.Builder
	sb.WriteString(query)

	if len(cursor) > 0 {
		opts = append(opts, cursor.ToUint64())
		fmt.Fprintf(&sb, " AND id %s $%d", comparison, len(opts))
	}

	if limit == 0 || limit > MaxPagingLimit {
		limit = MaxPagingLimit
	}
	opts = append(opts, limit)
	fmt.Fprintf(&sb, " ORDER BY id %s LIMIT $%d", keyword, len(opts))

	return sb.String(), opts
}
