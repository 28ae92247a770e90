// Package getbook implements the Get Book query: one book by id, read with eventual consistency.
package getbook
