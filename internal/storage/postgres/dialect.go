package postgres

import (
	"fmt"

	"github.com/dhishan/family-expense-tracker/internal/storage"
	"github.com/dhishan/family-expense-tracker/internal/storage/sqldoc"
)

type dialect struct{}

func (dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (dialect) Arg(v any) any { return v }

// Condition guards each cast with jsonb_typeof so documents holding a
// different JSON type for the field simply do not match.
func (dialect) Condition(f storage.Filter, ph string) string {
	typed := func(jsonType, cast string) string {
		return fmt.Sprintf("(CASE WHEN jsonb_typeof(data->'%[1]s') = '%[2]s' THEN (data->>'%[1]s')%[3]s END)",
			f.Field, jsonType, cast)
	}

	if f.Op == storage.Contains {
		return fmt.Sprintf("strpos(lower(%s), lower(%s::text)) > 0", typed("string", ""), ph)
	}

	op := sqldoc.Comparator(f.Op)
	switch f.Value.(type) {
	case float64:
		return fmt.Sprintf("%s %s %s::double precision", typed("number", "::double precision"), op, ph)
	case bool:
		return fmt.Sprintf("%s %s %s::boolean", typed("boolean", "::boolean"), op, ph)
	default:
		return fmt.Sprintf(`%s COLLATE "C" %s %s::text`, typed("string", ""), op, ph)
	}
}

func (dialect) OrderExpr(field string) string {
	return fmt.Sprintf("data->'%s'", field)
}

func (dialect) Page(limit, offset int) string {
	switch {
	case limit > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case offset > 0:
		return fmt.Sprintf("OFFSET %d", offset)
	default:
		return ""
	}
}
