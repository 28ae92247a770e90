package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine/internal/adapters"
)

// querier is satisfied by both the connection adapter and an open transaction.
type querier interface {
	Query(ctx context.Context, query string) (adapters.DBRows, error)
}

func bookColumns(qualifier string) []any {
	cols := []string{
		colID, colTitle, colAuthor, colGenre, colPublicationYear,
		colImageRef, colIsBorrowed, colVersion, colCreatedAt, colUpdatedAt,
	}

	selected := make([]any, 0, len(cols))
	for _, col := range cols {
		if qualifier == "" {
			selected = append(selected, goqu.C(col))
			continue
		}

		selected = append(selected, goqu.T(qualifier).Col(col))
	}

	return selected
}

// InsertBook stores a new book. A duplicate id yields lending.ErrBookAlreadyExists.
func (s *Store) InsertBook(ctx context.Context, book lending.Book) error {
	observer, ctx := s.observe(ctx, operationInsertBook, book.ID.String())

	sqlQuery, _, buildErr := s.builder().
		Insert(s.booksTable).
		Rows(goqu.Record{
			colID:              book.ID.String(),
			colTitle:           book.Title,
			colAuthor:          book.Author,
			colGenre:           book.Genre,
			colPublicationYear: book.PublicationYear,
			colImageRef:        book.ImageRef,
			colIsBorrowed:      book.IsBorrowed,
			colVersion:         book.Version,
			colCreatedAt:       book.CreatedAt,
			colUpdatedAt:       book.UpdatedAt,
		}).
		ToSQL()
	if buildErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrOperation, operationInsertBook)
		observer.failure(errorTypeBuildQuery)

		return errors.Join(lending.ErrBuildingQueryFailed, buildErr)
	}

	start := time.Now()

	if _, execErr := s.db.Exec(ctx, sqlQuery); execErr != nil {
		if isUniqueViolation(execErr) {
			observer.failure(errorTypeDatabaseExec)
			return lending.ErrBookAlreadyExists
		}

		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		observer.failure(errorTypeDatabaseExec)

		return errors.Join(lending.ErrExecutingFailed, execErr)
	}

	s.logQueryWithDuration(ctx, sqlQuery, operationInsertBook, time.Since(start))
	observer.success()

	return nil
}

// GetBook returns the book with the given id or lending.ErrBookNotFound.
func (s *Store) GetBook(ctx context.Context, bookID uuid.UUID) (lending.Book, error) {
	observer, ctx := s.observe(ctx, operationGetBook, bookID.String())

	sqlQuery, _, buildErr := s.builder().
		From(s.booksTable).
		Select(bookColumns("")...).
		Where(goqu.C(colID).Eq(bookID.String())).
		ToSQL()
	if buildErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrOperation, operationGetBook)
		observer.failure(errorTypeBuildQuery)

		return lending.Book{}, errors.Join(lending.ErrBuildingQueryFailed, buildErr)
	}

	books, err := s.queryBooks(ctx, s.db, sqlQuery, operationGetBook)
	if err != nil {
		observer.finish(err)
		return lending.Book{}, err
	}

	if len(books) == 0 {
		observer.failure(errorTypeNotFound)
		return lending.Book{}, lending.ErrBookNotFound
	}

	observer.success()

	return books[0], nil
}

// ListBooks returns all books matching every set filter criterion, ordered by creation time and id.
func (s *Store) ListBooks(ctx context.Context, filter lending.BookFilter) ([]lending.Book, error) {
	observer, ctx := s.observe(ctx, operationListBooks, "")

	selectStmt := s.builder().
		From(s.booksTable).
		Select(bookColumns("")...).
		Order(goqu.C(colCreatedAt).Asc(), goqu.C(colID).Asc())

	if author, ok := filter.Author(); ok {
		selectStmt = selectStmt.Where(goqu.C(colAuthor).Eq(author))
	}

	if genre, ok := filter.Genre(); ok {
		selectStmt = selectStmt.Where(goqu.C(colGenre).Eq(genre))
	}

	if year, ok := filter.PublicationYear(); ok {
		selectStmt = selectStmt.Where(goqu.C(colPublicationYear).Eq(year))
	}

	sqlQuery, _, buildErr := selectStmt.ToSQL()
	if buildErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrOperation, operationListBooks)
		observer.failure(errorTypeBuildQuery)

		return nil, errors.Join(lending.ErrBuildingQueryFailed, buildErr)
	}

	books, err := s.queryBooks(ctx, s.db, sqlQuery, operationListBooks)
	if err != nil {
		observer.finish(err)
		return nil, err
	}

	observer.success()
	s.logOperation(ctx, operationListBooks, logAttrBookCount, len(books))

	return books, nil
}

// UpdateBook replaces the bibliographic fields and the image ref of a book if its version still matches.
// The borrow flag is owned by the lending ledger and is never changed by an update.
func (s *Store) UpdateBook(ctx context.Context, book lending.Book, expectedVersion lending.VersionUint) (lending.Book, error) {
	observer, ctx := s.observe(ctx, operationUpdateBook, book.ID.String())

	sqlQuery, _, buildErr := s.builder().
		Update(s.booksTable).
		Set(goqu.Record{
			colTitle:           book.Title,
			colAuthor:          book.Author,
			colGenre:           book.Genre,
			colPublicationYear: book.PublicationYear,
			colImageRef:        book.ImageRef,
			colUpdatedAt:       book.UpdatedAt,
			colVersion:         goqu.L(incrementVersion),
		}).
		Where(
			goqu.C(colID).Eq(book.ID.String()),
			goqu.C(colVersion).Eq(expectedVersion),
		).
		Returning(bookColumns("")...).
		ToSQL()
	if buildErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrOperation, operationUpdateBook)
		observer.failure(errorTypeBuildQuery)

		return lending.Book{}, errors.Join(lending.ErrBuildingQueryFailed, buildErr)
	}

	books, err := s.queryBooks(ctx, s.db, sqlQuery, operationUpdateBook)
	if err != nil {
		observer.finish(err)
		return lending.Book{}, err
	}

	if len(books) == 0 {
		err = s.missingOrConflict(ctx, book.ID, expectedVersion)
		observer.finish(err)

		return lending.Book{}, err
	}

	observer.success()

	return books[0], nil
}

// DeleteBook removes a book if its version still matches. Its ledger entries are kept.
func (s *Store) DeleteBook(ctx context.Context, bookID uuid.UUID, expectedVersion lending.VersionUint) error {
	observer, ctx := s.observe(ctx, operationDeleteBook, bookID.String())

	sqlQuery, _, buildErr := s.builder().
		Delete(s.booksTable).
		Where(
			goqu.C(colID).Eq(bookID.String()),
			goqu.C(colVersion).Eq(expectedVersion),
		).
		ToSQL()
	if buildErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrOperation, operationDeleteBook)
		observer.failure(errorTypeBuildQuery)

		return errors.Join(lending.ErrBuildingQueryFailed, buildErr)
	}

	start := time.Now()

	result, execErr := s.db.Exec(ctx, sqlQuery)
	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		observer.failure(errorTypeDatabaseExec)

		return errors.Join(lending.ErrExecutingFailed, execErr)
	}

	s.logQueryWithDuration(ctx, sqlQuery, operationDeleteBook, time.Since(start))

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr, logAttrOperation, operationDeleteBook)
		observer.failure(errorTypeRowsAffected)

		return errors.Join(lending.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	if rowsAffected == 0 {
		err := s.missingOrConflict(ctx, bookID, expectedVersion)
		observer.finish(err)

		return err
	}

	observer.success()

	return nil
}

// missingOrConflict tells a vanished book apart from a stale version after a compare-and-set matched no row.
func (s *Store) missingOrConflict(ctx context.Context, bookID uuid.UUID, expectedVersion lending.VersionUint) error {
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return err
	}

	s.logInfo(ctx, logMsgConcurrencyConflict, logAttrBookID, bookID.String(), logAttrExpectedVersion, expectedVersion)

	return lending.ErrConcurrencyConflict
}

// queryBooks runs a statement that yields book rows and reads all of them before closing.
func (s *Store) queryBooks(ctx context.Context, q querier, sqlQuery sqlQueryString, action string) ([]lending.Book, error) {
	start := time.Now()

	rows, queryErr := q.Query(ctx, sqlQuery)
	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(lending.ErrQueryingFailed, queryErr)
	}
	defer s.closeRows(ctx, rows)

	books := make([]lending.Book, 0)

	for rows.Next() {
		book, scanErr := scanBook(rows)
		if scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr, logAttrOperation, action)
			return nil, errors.Join(lending.ErrScanningDBRowFailed, scanErr)
		}

		books = append(books, book)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(lending.ErrQueryingFailed, rowsErr)
	}

	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	return books, nil
}

type bookRow struct {
	id              uuid.UUID
	title           string
	author          string
	genre           string
	publicationYear int64
	imageRef        string
	isBorrowed      bool
	version         int64
	createdAt       time.Time
	updatedAt       time.Time
}

func (r *bookRow) targets() []any {
	return []any{
		&r.id, &r.title, &r.author, &r.genre, &r.publicationYear,
		&r.imageRef, &r.isBorrowed, &r.version, &r.createdAt, &r.updatedAt,
	}
}

func (r *bookRow) toBook() lending.Book {
	return lending.Book{
		ID:              r.id,
		Title:           r.title,
		Author:          r.author,
		Genre:           r.genre,
		PublicationYear: int(r.publicationYear),
		ImageRef:        r.imageRef,
		IsBorrowed:      r.isBorrowed,
		Version:         lending.VersionUint(r.version), //nolint:gosec // version is a non-negative counter
		CreatedAt:       r.createdAt.UTC(),
		UpdatedAt:       r.updatedAt.UTC(),
	}
}

func scanBook(rows adapters.DBRows) (lending.Book, error) {
	var row bookRow

	if err := rows.Scan(row.targets()...); err != nil {
		return lending.Book{}, err
	}

	return row.toBook(), nil
}

// nullableTime converts a scanned nullable timestamp into the domain representation.
func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	value := t.Time.UTC()

	return &value
}

func nullableUUID(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}

	value := id.UUID

	return &value
}
