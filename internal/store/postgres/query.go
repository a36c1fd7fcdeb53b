package postgres

import (
	"fmt"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// maxListLimit caps page size for list queries.
const maxListLimit = 500

// listQuery appends the time filters, newest-first ordering and paging of
// opts to base, which must already contain a WHERE clause.
func listQuery(base, timeCol string, opts domain.ListOpts) (string, []any) {
	query := base
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		query += " AND " + timeCol + " >= " + arg(*opts.Since)
	}
	if opts.Until != nil {
		query += " AND " + timeCol + " <= " + arg(*opts.Until)
	}
	query += " ORDER BY " + timeCol + " DESC"

	limit := opts.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	query += " LIMIT " + arg(limit)
	if opts.Offset > 0 {
		query += " OFFSET " + arg(opts.Offset)
	}
	return query, args
}
