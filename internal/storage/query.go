package storage

import (
	"fmt"
	"regexp"
	"slices"
)

// Op is a filter comparison.
type Op string

const (
	Eq  Op = "=="
	Gte Op = ">="
	Lte Op = "<="
	Gt  Op = ">"
	Lt  Op = "<"
	// Contains is a case-insensitive substring match on string fields.
	Contains Op = "contains"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field     string
	Direction Direction
}

// Query selects documents of one collection. Results are ordered by Orders
// and then by document id ascending, so equal keys have a stable order.
type Query struct {
	Collection string
	Filters    []Filter
	Orders     []Order
	Offset     int
	Limit      int // 0 means unlimited
}

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// From starts a query on a collection.
func From(collection string) Query {
	return Query{Collection: collection}
}

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(slices.Clip(q.Filters), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) OrderBy(field string, dir Direction) Query {
	q.Orders = append(slices.Clip(q.Orders), Order{Field: field, Direction: dir})
	return q
}

func (q Query) WithOffset(n int) Query {
	q.Offset = n
	return q
}

func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Prepare validates the query and normalizes filter values to their JSON
// representation. Backends call it before translating the query.
func (q Query) Prepare() (Query, error) {
	if !fieldPattern.MatchString(q.Collection) {
		return q, fmt.Errorf("%w: collection %q", ErrInvalidField, q.Collection)
	}
	if q.Offset < 0 || q.Limit < 0 {
		return q, fmt.Errorf("negative offset or limit")
	}
	filters := make([]Filter, len(q.Filters))
	for i, f := range q.Filters {
		if !fieldPattern.MatchString(f.Field) {
			return q, fmt.Errorf("%w: %q", ErrInvalidField, f.Field)
		}
		v, err := Normalize(f.Value)
		if err != nil {
			return q, fmt.Errorf("filter %s: %w", f.Field, err)
		}
		switch v.(type) {
		case string, float64, bool:
		default:
			return q, fmt.Errorf("filter %s: unsupported value %T", f.Field, f.Value)
		}
		switch f.Op {
		case Eq, Gte, Lte, Gt, Lt:
		case Contains:
			if _, ok := v.(string); !ok {
				return q, fmt.Errorf("filter %s: contains needs a string", f.Field)
			}
		default:
			return q, fmt.Errorf("filter %s: unknown operator %q", f.Field, f.Op)
		}
		filters[i] = Filter{Field: f.Field, Op: f.Op, Value: v}
	}
	for _, o := range q.Orders {
		if !fieldPattern.MatchString(o.Field) {
			return q, fmt.Errorf("%w: %q", ErrInvalidField, o.Field)
		}
	}
	q.Filters = filters
	return q, nil
}

// ValidField reports whether name may be used as a document field.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}
