// Package listbooks implements the List Books query.
//
// All criteria of the filter must match. Books are ordered by creation time, ties broken
// by id, so paging through a stable catalog gives a stable order.
package listbooks
