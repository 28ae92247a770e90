package listbooks

import (
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Books is the query result: the matching books and how many there are.
type Books struct {
	Books []lending.Book
	Count int
}
