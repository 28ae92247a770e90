// Package addbook implements the Add Book use case: validate the bibliographic fields
// and insert a new, available book. An image that was stored for a book that could not
// be added is released again.
package addbook
