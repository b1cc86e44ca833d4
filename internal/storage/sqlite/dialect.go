package sqlite

import (
	"fmt"

	"github.com/dhishan/family-expense-tracker/internal/storage"
	"github.com/dhishan/family-expense-tracker/internal/storage/sqldoc"
)

type dialect struct{}

func (dialect) Placeholder(int) string { return "?" }

// JSON booleans come back from json_extract as 1 and 0.
func (dialect) Arg(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func (dialect) Condition(f storage.Filter, ph string) string {
	path := fmt.Sprintf("'$.%s'", f.Field)
	extract := "json_extract(data, " + path + ")"
	typ := "json_type(data, " + path + ")"

	if f.Op == storage.Contains {
		return fmt.Sprintf("(%s = 'text' AND instr(lower(%s), lower(%s)) > 0)", typ, extract, ph)
	}

	var guard string
	switch f.Value.(type) {
	case string:
		guard = typ + " = 'text'"
	case float64:
		guard = typ + " IN ('integer', 'real')"
	case bool:
		guard = typ + " IN ('true', 'false')"
	}
	return fmt.Sprintf("(%s AND %s %s %s)", guard, extract, sqldoc.Comparator(f.Op), ph)
}

func (dialect) OrderExpr(field string) string {
	return fmt.Sprintf("json_extract(data, '$.%s')", field)
}

func (dialect) Page(limit, offset int) string {
	switch {
	case limit > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case offset > 0:
		return fmt.Sprintf("LIMIT -1 OFFSET %d", offset)
	default:
		return ""
	}
}
