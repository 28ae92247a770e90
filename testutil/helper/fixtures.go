package helper

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// GivenUniqueID returns a fresh time-ordered id.
func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id
}

// FakeClock returns a fixed, microsecond-truncated point in time, matching what PostgreSQL stores.
func FakeClock() time.Time {
	return time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
}

// FixtureBook builds an available book with the given bibliographic data.
func FixtureBook(t testing.TB, title string, author string, genre string, year int, now time.Time) lending.Book {
	return lending.BuildBook(
		GivenUniqueID(t),
		lending.BookFields{Title: title, Author: author, Genre: genre, PublicationYear: year},
		"",
		now,
	)
}

// FixtureNineteenEightyFour builds the classic example book.
func FixtureNineteenEightyFour(t testing.TB, now time.Time) lending.Book {
	return FixtureBook(t, "1984", "Orwell", "Dystopia", 1949, now)
}
