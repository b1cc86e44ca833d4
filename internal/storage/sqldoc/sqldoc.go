// Package sqldoc translates storage queries into SQL over a single
// documents(collection, id, data) table. The sqlite and postgres backends
// supply a Dialect for JSON access.
package sqldoc

import (
	"fmt"
	"strings"

	"github.com/dhishan/family-expense-tracker/internal/storage"
)

// Dialect renders the engine specific parts of a statement.
type Dialect interface {
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string
	// Arg converts a normalized filter value to a driver argument.
	Arg(v any) any
	// Condition renders one filter against placeholder ph.
	Condition(f storage.Filter, ph string) string
	// OrderExpr renders the sort key for a field.
	OrderExpr(field string) string
	// Page renders LIMIT/OFFSET. Zero limit means unlimited.
	Page(limit, offset int) string
}

// Statement is a rendered query and its arguments.
type Statement struct {
	SQL  string
	Args []any
}

type builder struct {
	d    Dialect
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, b.d.Arg(v))
	return b.d.Placeholder(len(b.args))
}

func (b *builder) where(q storage.Query) string {
	conds := []string{"collection = " + b.bind(q.Collection)}
	for _, f := range q.Filters {
		conds = append(conds, b.d.Condition(f, b.bind(f.Value)))
	}
	return strings.Join(conds, " AND ")
}

// Select renders a query over a prepared storage.Query.
func Select(d Dialect, q storage.Query) Statement {
	b := &builder{d: d}
	var sb strings.Builder
	sb.WriteString("SELECT id, data FROM documents WHERE ")
	sb.WriteString(b.where(q))

	sb.WriteString(" ORDER BY ")
	for _, o := range q.Orders {
		sb.WriteString(d.OrderExpr(o.Field))
		if o.Direction == storage.Desc {
			sb.WriteString(" DESC, ")
		} else {
			sb.WriteString(" ASC, ")
		}
	}
	sb.WriteString("id ASC")

	if page := d.Page(q.Limit, q.Offset); page != "" {
		sb.WriteString(" ")
		sb.WriteString(page)
	}
	return Statement{SQL: sb.String(), Args: b.args}
}

// Count renders a count over a prepared storage.Query.
func Count(d Dialect, q storage.Query) Statement {
	b := &builder{d: d}
	sql := "SELECT COUNT(*) FROM documents WHERE " + b.where(q)
	return Statement{SQL: sql, Args: b.args}
}

// Comparator returns the SQL operator for a comparison op.
func Comparator(op storage.Op) string {
	switch op {
	case storage.Eq:
		return "="
	case storage.Gte, storage.Lte, storage.Gt, storage.Lt:
		return string(op)
	default:
		panic(fmt.Sprintf("sqldoc: no comparator for %q", op))
	}
}
