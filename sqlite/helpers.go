package sqlite

import (
	"fmt"
	"strings"
	"time"
)

// parseRFC3339 converts a timestamp column stored as RFC3339 text back
// into a time.Time. The field name is carried into the error so a bad
// row points at the offending column.
func parseRFC3339(value, fieldName string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", fieldName, err)
	}
	return t, nil
}

// appendPagination tacks LIMIT and OFFSET clauses onto a query under
// construction. Zero values mean "no clause".
func appendPagination(query *strings.Builder, args *[]any, limit, offset int) {
	if limit > 0 {
		query.WriteString(" LIMIT ?")
		*args = append(*args, limit)
	}
	if offset > 0 {
		query.WriteString(" OFFSET ?")
		*args = append(*args, offset)
	}
}
