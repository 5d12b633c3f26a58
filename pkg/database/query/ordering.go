package query

import (
	"strings"

	"github.com/pkg/errors"
)

// Ordering is the direction records are returned in, by row id.
type Ordering uint

const (
	Ascending Ordering = iota
	Descending
)

var orderingNames = map[Ordering]string{
	Ascending:  "asc",
	Descending: "desc",
}

// ToOrdering parses "asc" or "desc", ignoring case.
func ToOrdering(val string) (Ordering, error) {
	for o, name := range orderingNames {
		if strings.EqualFold(val, name) {
			return o, nil
		}
	}
	return 0, errors.Errorf("unexpected ordering: %q", val)
}

func (o Ordering) String() string {
	if name, ok := orderingNames[o]; ok {
		return name
	}
	return "unknown"
}

// sql returns the ORDER BY keyword and the cursor comparison operator.
func (o Ordering) sql() (keyword, comparison string) {
	if o == Ascending {
		return "ASC", ">"
	}
	return "DESC", "<"
}
