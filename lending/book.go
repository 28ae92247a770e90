package lending

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MinPublicationYear is the earliest publication year the catalog accepts.
const MinPublicationYear = 1900

// Book is a catalog entry together with its current borrow flag.
type Book struct {
	ID              uuid.UUID
	Title           string
	Author          string
	Genre           string
	PublicationYear int
	ImageRef        string
	IsBorrowed      bool
	Version         VersionUint
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BookFields holds the bibliographic fields supplied when a book is added.
type BookFields struct {
	Title           string
	Author          string
	Genre           string
	PublicationYear int
}

// BookPatch holds a partial update. Nil fields are left untouched.
type BookPatch struct {
	Title           *string
	Author          *string
	Genre           *string
	PublicationYear *int
}

// IsEmpty reports whether the patch does not touch any field.
func (p BookPatch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.Genre == nil && p.PublicationYear == nil
}

// BuildBook creates a new, available book from already validated fields.
func BuildBook(id uuid.UUID, fields BookFields, imageRef string, createdAt time.Time) Book {
	return Book{
		ID:              id,
		Title:           strings.TrimSpace(fields.Title),
		Author:          strings.TrimSpace(fields.Author),
		Genre:           strings.TrimSpace(fields.Genre),
		PublicationYear: fields.PublicationYear,
		ImageRef:        imageRef,
		IsBorrowed:      false,
		Version:         0,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

// ValidateBookFields checks all fields of a new book.
// The upper bound of the publication year is the calendar year of now.
func ValidateBookFields(fields BookFields, now time.Time) error {
	verr := NewValidationError()

	requireText(verr, FieldTitle, fields.Title)
	requireText(verr, FieldAuthor, fields.Author)
	requireText(verr, FieldGenre, fields.Genre)
	checkPublicationYear(verr, fields.PublicationYear, now)

	return verr.OrNil()
}

// ValidateBookPatch checks only the fields present in the patch.
func ValidateBookPatch(patch BookPatch, now time.Time) error {
	verr := NewValidationError()

	if patch.Title != nil {
		requireText(verr, FieldTitle, *patch.Title)
	}

	if patch.Author != nil {
		requireText(verr, FieldAuthor, *patch.Author)
	}

	if patch.Genre != nil {
		requireText(verr, FieldGenre, *patch.Genre)
	}

	if patch.PublicationYear != nil {
		checkPublicationYear(verr, *patch.PublicationYear, now)
	}

	return verr.OrNil()
}

// ApplyPatch returns a copy of the book with the patch applied and whether anything changed.
func (b Book) ApplyPatch(patch BookPatch) (Book, bool) {
	patched := b
	changed := false

	if patch.Title != nil && strings.TrimSpace(*patch.Title) != b.Title {
		patched.Title = strings.TrimSpace(*patch.Title)
		changed = true
	}

	if patch.Author != nil && strings.TrimSpace(*patch.Author) != b.Author {
		patched.Author = strings.TrimSpace(*patch.Author)
		changed = true
	}

	if patch.Genre != nil && strings.TrimSpace(*patch.Genre) != b.Genre {
		patched.Genre = strings.TrimSpace(*patch.Genre)
		changed = true
	}

	if patch.PublicationYear != nil && *patch.PublicationYear != b.PublicationYear {
		patched.PublicationYear = *patch.PublicationYear
		changed = true
	}

	return patched, changed
}

func requireText(verr *ValidationError, field string, value string) {
	if strings.TrimSpace(value) == "" {
		verr.Add(field, RequiredMessage(field))
	}
}

func checkPublicationYear(verr *ValidationError, year int, now time.Time) {
	switch {
	case year < MinPublicationYear:
		verr.Add(FieldPublicationYear, minYearMessage())
	case year > now.Year():
		verr.Add(FieldPublicationYear, maxYearMessage(now.Year()))
	}
}
