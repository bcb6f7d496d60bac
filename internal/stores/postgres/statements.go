package postgres

import (
	"ammindex/internal/domain"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

var cursorUpsert = `INSERT INTO ` + cursorTable + ` (id, block_num, block_hash) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET block_num = EXCLUDED.block_num, block_hash = EXCLUDED.block_hash`

// INSERT ... ON CONFLICT (id) DO UPDATE for the changed fields.
// A Create keeps an existing row's values; deletes never reach the sinks.
func upsert(tc *domain.TableChange) (string, []any, bool) {
	if tc.Operation == domain.ChangeDelete {
		return "", nil, false
	}

	fields := make([]domain.Field, 0, len(tc.Fields))
	for _, f := range tc.Fields {
		if f.Name != "id" {
			fields = append(fields, f)
		}
	}

	cols := make([]string, 0, len(fields)+1)
	params := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)

	cols = append(cols, "id")
	params = append(params, "$1")
	args = append(args, tc.PK)

	for i, f := range fields {
		cols = append(cols, pq.QuoteIdentifier(f.Name))
		params = append(params, "$"+strconv.Itoa(i+2))
		args = append(args, f.NewValue)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pq.QuoteIdentifier(tc.Table))
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(params, ", "))
	b.WriteString(") ON CONFLICT (id) ")

	if tc.Operation == domain.ChangeCreate || len(fields) == 0 {
		b.WriteString("DO NOTHING")
		return b.String(), args, true
	}

	b.WriteString("DO UPDATE SET ")
	for i, c := range cols[1:] {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c)
		b.WriteString(" = EXCLUDED.")
		b.WriteString(c)
	}

	return b.String(), args, true
}
