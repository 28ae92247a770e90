package memengine

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	logMsgConcurrencyConflict = "memengine: concurrency conflict detected"
	logMsgIntegrityFault      = "memengine: lending integrity fault detected"
	logAttrBookID             = "book_id"
	logAttrExpectedVersion    = "expected_version"
	logAttrActualVersion      = "actual_version"
	logAttrOpenEntries        = "open_entries"
	logAttrChangeKind         = "change_kind"
)

// Store is an in-memory catalog store and lending ledger.
type Store struct {
	slots  sync.Map // uuid.UUID -> *bookSlot
	logger lending.Logger
}

type bookSlot struct {
	mu      sync.Mutex
	book    *lending.Book
	entries []lending.LedgerEntry
}

// Option defines a functional option for configuring Store.
type Option func(*Store)

// WithLogger sets the logger for the Store.
func WithLogger(logger lending.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty Store.
func NewStore(options ...Option) *Store {
	s := &Store{}

	for _, option := range options {
		option(s)
	}

	return s
}

// InsertBook stores a new book.
func (s *Store) InsertBook(ctx context.Context, book lending.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := book
	candidate := &bookSlot{book: &stored}

	actual, loaded := s.slots.LoadOrStore(book.ID, candidate)
	if !loaded {
		return nil
	}

	slot := actual.(*bookSlot) //nolint:forcetypeassert // only *bookSlot values are stored
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.book != nil {
		return lending.ErrBookAlreadyExists
	}

	slot.book = &stored

	return nil
}

// GetBook returns the book with the given id or lending.ErrBookNotFound.
func (s *Store) GetBook(ctx context.Context, bookID uuid.UUID) (lending.Book, error) {
	if err := ctx.Err(); err != nil {
		return lending.Book{}, err
	}

	slot, ok := s.slot(bookID)
	if !ok {
		return lending.Book{}, lending.ErrBookNotFound
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.book == nil {
		return lending.Book{}, lending.ErrBookNotFound
	}

	return *slot.book, nil
}

// ListBooks returns all books matching the filter, ordered by creation time and id.
func (s *Store) ListBooks(ctx context.Context, filter lending.BookFilter) ([]lending.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	books := make([]lending.Book, 0)

	s.slots.Range(func(_, value any) bool {
		slot := value.(*bookSlot) //nolint:forcetypeassert // only *bookSlot values are stored

		slot.mu.Lock()
		if slot.book != nil && filter.Matches(*slot.book) {
			books = append(books, *slot.book)
		}
		slot.mu.Unlock()

		return true
	})

	sort.Slice(books, func(i, j int) bool {
		if !books[i].CreatedAt.Equal(books[j].CreatedAt) {
			return books[i].CreatedAt.Before(books[j].CreatedAt)
		}

		return bytes.Compare(books[i].ID[:], books[j].ID[:]) < 0
	})

	return books, nil
}

// UpdateBook replaces the bibliographic fields and the image ref of a book if its version still matches.
// The borrow flag is owned by the lending ledger and is never changed by an update.
func (s *Store) UpdateBook(ctx context.Context, book lending.Book, expectedVersion lending.VersionUint) (lending.Book, error) {
	if err := ctx.Err(); err != nil {
		return lending.Book{}, err
	}

	slot, ok := s.slot(book.ID)
	if !ok {
		return lending.Book{}, lending.ErrBookNotFound
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.book == nil {
		return lending.Book{}, lending.ErrBookNotFound
	}

	if slot.book.Version != expectedVersion {
		s.logConflict(book.ID, expectedVersion, slot.book.Version)
		return lending.Book{}, lending.ErrConcurrencyConflict
	}

	updated := *slot.book
	updated.Title = book.Title
	updated.Author = book.Author
	updated.Genre = book.Genre
	updated.PublicationYear = book.PublicationYear
	updated.ImageRef = book.ImageRef
	updated.UpdatedAt = book.UpdatedAt
	updated.Version++

	slot.book = &updated

	return updated, nil
}

// DeleteBook removes a book if its version still matches. Its ledger entries are kept.
func (s *Store) DeleteBook(ctx context.Context, bookID uuid.UUID, expectedVersion lending.VersionUint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	slot, ok := s.slot(bookID)
	if !ok {
		return lending.ErrBookNotFound
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.book == nil {
		return lending.ErrBookNotFound
	}

	if slot.book.Version != expectedVersion {
		s.logConflict(bookID, expectedVersion, slot.book.Version)
		return lending.ErrConcurrencyConflict
	}

	slot.book = nil

	return nil
}

// LoadLoanState returns a consistent snapshot of the book and its open ledger entries.
func (s *Store) LoadLoanState(ctx context.Context, bookID uuid.UUID) (lending.LoanState, error) {
	if err := ctx.Err(); err != nil {
		return lending.LoanState{}, err
	}

	slot, ok := s.slot(bookID)
	if !ok {
		return lending.LoanState{}, nil
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.book == nil {
		return lending.LoanState{}, nil
	}

	return lending.LoanState{
		BookExists:  true,
		Book:        *slot.book,
		OpenEntries: openEntriesOf(slot.entries),
	}, nil
}

// ApplyLoanChange atomically flips the borrow flag and opens or closes the ledger entry,
// provided the book still has the expected version.
func (s *Store) ApplyLoanChange(ctx context.Context, change lending.LoanChange) (lending.Book, error) {
	if err := ctx.Err(); err != nil {
		return lending.Book{}, err
	}

	if err := change.Validate(); err != nil {
		return lending.Book{}, err
	}

	slot, ok := s.slot(change.BookID)
	if !ok {
		return lending.Book{}, lending.ErrConcurrencyConflict
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.book == nil {
		// removed after the decision was made; the retry will see it is gone
		return lending.Book{}, lending.ErrConcurrencyConflict
	}

	if slot.book.Version != change.ExpectedVersion {
		s.logConflict(change.BookID, change.ExpectedVersion, slot.book.Version)
		return lending.Book{}, lending.ErrConcurrencyConflict
	}

	switch change.Kind {
	case lending.LoanChangeBorrow:
		if open := openEntriesOf(slot.entries); len(open) > 0 {
			s.logIntegrityFault(change, len(open))
			return lending.Book{}, lending.ErrIntegrityFault
		}

		slot.entries = append(slot.entries, change.Entry)

	case lending.LoanChangeReturn:
		closed := false

		for i := range slot.entries {
			if slot.entries[i].ID == change.Entry.ID && slot.entries[i].IsOpen() {
				slot.entries[i].ReturnedAt = change.Entry.ReturnedAt
				slot.entries[i].ReturnedBy = change.Entry.ReturnedBy
				closed = true

				break
			}
		}

		if !closed {
			s.logIntegrityFault(change, len(openEntriesOf(slot.entries)))
			return lending.Book{}, lending.ErrIntegrityFault
		}
	}

	updated := *slot.book
	updated.IsBorrowed = change.BorrowedFlag()
	updated.UpdatedAt = change.OccurredAt
	updated.Version++
	slot.book = &updated

	return updated, nil
}

// LedgerEntries returns all ledger entries of a book ordered by borrow time, also for removed books.
func (s *Store) LedgerEntries(ctx context.Context, bookID uuid.UUID) ([]lending.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slot, ok := s.slot(bookID)
	if !ok {
		return []lending.LedgerEntry{}, nil
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	entries := make([]lending.LedgerEntry, len(slot.entries))
	copy(entries, slot.entries)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].BorrowedAt.Before(entries[j].BorrowedAt)
	})

	return entries, nil
}

func (s *Store) slot(bookID uuid.UUID) (*bookSlot, bool) {
	value, ok := s.slots.Load(bookID)
	if !ok {
		return nil, false
	}

	return value.(*bookSlot), true //nolint:forcetypeassert // only *bookSlot values are stored
}

func openEntriesOf(entries []lending.LedgerEntry) []lending.LedgerEntry {
	open := make([]lending.LedgerEntry, 0, 1)

	for _, entry := range entries {
		if entry.IsOpen() {
			open = append(open, entry)
		}
	}

	return open
}

func (s *Store) logConflict(bookID uuid.UUID, expected lending.VersionUint, actual lending.VersionUint) {
	if s.logger != nil {
		s.logger.Info(
			logMsgConcurrencyConflict,
			logAttrBookID, bookID.String(),
			logAttrExpectedVersion, expected,
			logAttrActualVersion, actual,
		)
	}
}

func (s *Store) logIntegrityFault(change lending.LoanChange, openEntries int) {
	if s.logger != nil {
		s.logger.Error(
			logMsgIntegrityFault,
			logAttrBookID, change.BookID.String(),
			logAttrChangeKind, string(change.Kind),
			logAttrOpenEntries, openEntries,
		)
	}
}
