package backend

import (
	"net/url"
	"strconv"
)

// Query builds the filter portion of a REST data-API request. Filters use
// the operator.value encoding the hosted backend expects, for example
// "status=eq.pending" or "customer_name=ilike.*smith*".
type Query struct {
	values url.Values
}

func NewQuery() *Query {
	return &Query{values: url.Values{}}
}

func (q *Query) Select(columns string) *Query {
	q.values.Set("select", columns)
	return q
}

func (q *Query) Eq(column, value string) *Query {
	q.values.Set(column, "eq."+value)
	return q
}

func (q *Query) Ilike(column, pattern string) *Query {
	q.values.Set(column, "ilike."+pattern)
	return q
}

func (q *Query) Gte(column, value string) *Query {
	q.values.Set(column, "gte."+value)
	return q
}

func (q *Query) Lte(column, value string) *Query {
	q.values.Set(column, "lte."+value)
	return q
}

func (q *Query) In(column string, values string) *Query {
	q.values.Set(column, "in.("+values+")")
	return q
}

// Or sets a disjunctive filter group, e.g. "(first_name.ilike.*x*,last_name.ilike.*x*)".
func (q *Query) Or(group string) *Query {
	q.values.Set("or", group)
	return q
}

// Order sets the sort column. Descending when desc is true.
func (q *Query) Order(column string, desc bool) *Query {
	direction := ".asc"
	if desc {
		direction = ".desc"
	}
	q.values.Set("order", column+direction)
	return q
}

func (q *Query) Limit(n int) *Query {
	q.values.Set("limit", strconv.Itoa(n))
	return q
}

// Encode returns the query string without a leading "?".
func (q *Query) Encode() string {
	return q.values.Encode()
}
