package listbooks

import (
	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	queryType = "ListBooks"
)

// Query represents the intent to list books matching a filter.
type Query struct {
	Filter lending.BookFilter
}

// BuildQuery creates a new Query with the provided filter.
func BuildQuery(filter lending.BookFilter) Query {
	return Query{
		Filter: filter,
	}
}

// QueryType returns the query type.
func (q Query) QueryType() string {
	return queryType
}
