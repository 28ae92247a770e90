package lending

// BookFilter selects books by equality on author, genre and publication year.
// All set criteria must match (logical AND). An empty filter matches every book.
type BookFilter struct {
	author          *string
	genre           *string
	publicationYear *int
}

// Author returns the author criterion and whether it is set.
func (f BookFilter) Author() (string, bool) {
	if f.author == nil {
		return "", false
	}

	return *f.author, true
}

// Genre returns the genre criterion and whether it is set.
func (f BookFilter) Genre() (string, bool) {
	if f.genre == nil {
		return "", false
	}

	return *f.genre, true
}

// PublicationYear returns the publication year criterion and whether it is set.
func (f BookFilter) PublicationYear() (int, bool) {
	if f.publicationYear == nil {
		return 0, false
	}

	return *f.publicationYear, true
}

// IsEmpty reports whether no criterion is set.
func (f BookFilter) IsEmpty() bool {
	return f.author == nil && f.genre == nil && f.publicationYear == nil
}

// Matches reports whether the book satisfies all set criteria.
func (f BookFilter) Matches(book Book) bool {
	if author, ok := f.Author(); ok && book.Author != author {
		return false
	}

	if genre, ok := f.Genre(); ok && book.Genre != genre {
		return false
	}

	if year, ok := f.PublicationYear(); ok && book.PublicationYear != year {
		return false
	}

	return true
}

/***** BookFilterBuilder *****/

// BookFilterBuilder builds a BookFilter step by step.
//
//	filter := BuildBookFilter().
//		WithAuthor("Orwell").
//		WithGenre("Dystopia").
//		Finalize()
type BookFilterBuilder struct {
	filter BookFilter
}

// BuildBookFilter starts an empty filter.
func BuildBookFilter() BookFilterBuilder {
	return BookFilterBuilder{}
}

// WithAuthor adds an author criterion.
func (b BookFilterBuilder) WithAuthor(author string) BookFilterBuilder {
	b.filter.author = &author
	return b
}

// WithGenre adds a genre criterion.
func (b BookFilterBuilder) WithGenre(genre string) BookFilterBuilder {
	b.filter.genre = &genre
	return b
}

// WithPublicationYear adds a publication year criterion.
func (b BookFilterBuilder) WithPublicationYear(year int) BookFilterBuilder {
	b.filter.publicationYear = &year
	return b
}

// Finalize returns the built filter.
func (b BookFilterBuilder) Finalize() BookFilter {
	return b.filter
}
