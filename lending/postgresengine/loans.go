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

// LoadLoanState returns the book together with its open ledger entries, read in one statement.
// A missing book yields BookExists=false, not an error.
func (s *Store) LoadLoanState(ctx context.Context, bookID uuid.UUID) (lending.LoanState, error) {
	observer, ctx := s.observe(ctx, operationLoadLoanState, bookID.String())

	selected := bookColumns(aliasBook)
	selected = append(selected,
		goqu.T(aliasEntry).Col(colID),
		goqu.T(aliasEntry).Col(colUserID),
		goqu.T(aliasEntry).Col(colBorrowedAt),
	)

	sqlQuery, _, buildErr := s.builder().
		From(goqu.T(s.booksTable).As(aliasBook)).
		LeftJoin(
			goqu.T(s.ledgerTable).As(aliasEntry),
			goqu.On(
				goqu.T(aliasEntry).Col(colBookID).Eq(goqu.T(aliasBook).Col(colID)),
				goqu.T(aliasEntry).Col(colReturnedAt).IsNull(),
			),
		).
		Select(selected...).
		Where(goqu.T(aliasBook).Col(colID).Eq(bookID.String())).
		Order(goqu.T(aliasEntry).Col(colBorrowedAt).Asc()).
		ToSQL()
	if buildErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrOperation, operationLoadLoanState)
		observer.failure(errorTypeBuildQuery)

		return lending.LoanState{}, errors.Join(lending.ErrBuildingQueryFailed, buildErr)
	}

	start := time.Now()

	rows, queryErr := s.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		observer.failure(errorTypeDatabaseQuery)

		return lending.LoanState{}, errors.Join(lending.ErrQueryingFailed, queryErr)
	}
	defer s.closeRows(ctx, rows)

	state := lending.LoanState{OpenEntries: []lending.LedgerEntry{}}

	for rows.Next() {
		var (
			book       bookRow
			entryID    uuid.NullUUID
			userID     uuid.NullUUID
			borrowedAt sql.NullTime
		)

		targets := append(book.targets(), &entryID, &userID, &borrowedAt)
		if scanErr := rows.Scan(targets...); scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr, logAttrOperation, operationLoadLoanState)
			observer.failure(errorTypeRowScan)

			return lending.LoanState{}, errors.Join(lending.ErrScanningDBRowFailed, scanErr)
		}

		state.BookExists = true
		state.Book = book.toBook()

		if entryID.Valid {
			state.OpenEntries = append(
				state.OpenEntries,
				lending.BuildLedgerEntry(entryID.UUID, bookID, userID.UUID, borrowedAt.Time.UTC()),
			)
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
		observer.failure(errorTypeDatabaseQuery)

		return lending.LoanState{}, errors.Join(lending.ErrQueryingFailed, rowsErr)
	}

	s.logQueryWithDuration(ctx, sqlQuery, operationLoadLoanState, time.Since(start))
	observer.success()

	return state, nil
}

// ApplyLoanChange flips the borrow flag and opens or closes the ledger entry in one transaction,
// provided the book still has the expected version.
//
// A stale version yields lending.ErrConcurrencyConflict.
// A second open entry or a missing open entry yields lending.ErrIntegrityFault.
func (s *Store) ApplyLoanChange(ctx context.Context, change lending.LoanChange) (lending.Book, error) {
	observer, ctx := s.observe(ctx, operationApplyLoanChange, change.BookID.String())

	if err := change.Validate(); err != nil {
		observer.failure(errorTypeTransaction)
		return lending.Book{}, err
	}

	var updated lending.Book

	txErr := s.inTx(ctx, operationApplyLoanChange, func(tx adapters.DBTx) error {
		book, flagErr := s.flipBorrowedFlag(ctx, tx, change)
		if flagErr != nil {
			return flagErr
		}

		switch change.Kind {
		case lending.LoanChangeBorrow:
			if err := s.openEntry(ctx, tx, change); err != nil {
				return err
			}
		case lending.LoanChangeReturn:
			if err := s.closeEntry(ctx, tx, change); err != nil {
				return err
			}
		}

		updated = book

		return nil
	})
	if txErr != nil {
		observer.finish(txErr)
		return lending.Book{}, txErr
	}

	observer.success()
	s.logOperation(ctx, operationApplyLoanChange,
		logAttrBookID, change.BookID.String(),
		logAttrChangeKind, string(change.Kind),
		logAttrEntryID, change.Entry.ID.String(),
	)

	return updated, nil
}

func (s *Store) flipBorrowedFlag(ctx context.Context, tx adapters.DBTx, change lending.LoanChange) (lending.Book, error) {
	sqlQuery, _, buildErr := s.builder().
		Update(s.booksTable).
		Set(goqu.Record{
			colIsBorrowed: change.BorrowedFlag(),
			colUpdatedAt:  change.OccurredAt,
			colVersion:    goqu.L(incrementVersion),
		}).
		Where(
			goqu.C(colID).Eq(change.BookID.String()),
			goqu.C(colVersion).Eq(change.ExpectedVersion),
		).
		Returning(bookColumns("")...).
		ToSQL()
	if buildErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrOperation, operationApplyLoanChange)
		return lending.Book{}, errors.Join(lending.ErrBuildingQueryFailed, buildErr)
	}

	books, err := s.queryBooks(ctx, tx, sqlQuery, operationApplyLoanChange)
	if err != nil {
		return lending.Book{}, err
	}

	if len(books) == 0 {
		// the book changed or vanished after the decision; a retry reloads the state
		s.logInfo(ctx, logMsgConcurrencyConflict,
			logAttrBookID, change.BookID.String(),
			logAttrExpectedVersion, change.ExpectedVersion,
			logAttrChangeKind, string(change.Kind),
		)

		return lending.Book{}, lending.ErrConcurrencyConflict
	}

	return books[0], nil
}

func (s *Store) openEntry(ctx context.Context, tx adapters.DBTx, change lending.LoanChange) error {
	sqlQuery, _, buildErr := s.builder().
		Insert(s.ledgerTable).
		Rows(goqu.Record{
			colID:         change.Entry.ID.String(),
			colBookID:     change.BookID.String(),
			colUserID:     change.Entry.UserID.String(),
			colBorrowedAt: change.Entry.BorrowedAt,
		}).
		ToSQL()
	if buildErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrOperation, operationApplyLoanChange)
		return errors.Join(lending.ErrBuildingQueryFailed, buildErr)
	}

	start := time.Now()

	if _, execErr := tx.Exec(ctx, sqlQuery); execErr != nil {
		if isUniqueViolation(execErr) {
			s.logError(ctx, logMsgIntegrityFault, execErr,
				logAttrBookID, change.BookID.String(),
				logAttrChangeKind, string(change.Kind),
			)

			return errors.Join(lending.ErrIntegrityFault, execErr)
		}

		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)

		return errors.Join(lending.ErrExecutingFailed, execErr)
	}

	s.logQueryWithDuration(ctx, sqlQuery, operationApplyLoanChange, time.Since(start))

	return nil
}

func (s *Store) closeEntry(ctx context.Context, tx adapters.DBTx, change lending.LoanChange) error {
	sqlQuery, _, buildErr := s.builder().
		Update(s.ledgerTable).
		Set(goqu.Record{
			colReturnedAt: *change.Entry.ReturnedAt,
			colReturnedBy: change.Entry.ReturnedBy.String(),
		}).
		Where(
			goqu.C(colID).Eq(change.Entry.ID.String()),
			goqu.C(colBookID).Eq(change.BookID.String()),
			goqu.C(colReturnedAt).IsNull(),
		).
		ToSQL()
	if buildErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrOperation, operationApplyLoanChange)
		return errors.Join(lending.ErrBuildingQueryFailed, buildErr)
	}

	start := time.Now()

	result, execErr := tx.Exec(ctx, sqlQuery)
	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return errors.Join(lending.ErrExecutingFailed, execErr)
	}

	s.logQueryWithDuration(ctx, sqlQuery, operationApplyLoanChange, time.Since(start))

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr, logAttrOperation, operationApplyLoanChange)
		return errors.Join(lending.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	if rowsAffected != 1 {
		s.logError(ctx, logMsgIntegrityFault, lending.ErrIntegrityFault,
			logAttrBookID, change.BookID.String(),
			logAttrEntryID, change.Entry.ID.String(),
			logAttrOpenEntries, rowsAffected,
		)

		return lending.ErrIntegrityFault
	}

	return nil
}

// LedgerEntries returns all ledger entries of a book ordered by borrow time, also for removed books.
func (s *Store) LedgerEntries(ctx context.Context, bookID uuid.UUID) ([]lending.LedgerEntry, error) {
	observer, ctx := s.observe(ctx, operationLedgerEntries, bookID.String())

	sqlQuery, _, buildErr := s.builder().
		From(s.ledgerTable).
		Select(
			goqu.C(colID), goqu.C(colBookID), goqu.C(colUserID),
			goqu.C(colBorrowedAt), goqu.C(colReturnedAt), goqu.C(colReturnedBy),
		).
		Where(goqu.C(colBookID).Eq(bookID.String())).
		Order(goqu.C(colBorrowedAt).Asc(), goqu.C(colID).Asc()).
		ToSQL()
	if buildErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrOperation, operationLedgerEntries)
		observer.failure(errorTypeBuildQuery)

		return nil, errors.Join(lending.ErrBuildingQueryFailed, buildErr)
	}

	start := time.Now()

	rows, queryErr := s.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		observer.failure(errorTypeDatabaseQuery)

		return nil, errors.Join(lending.ErrQueryingFailed, queryErr)
	}
	defer s.closeRows(ctx, rows)

	entries := make([]lending.LedgerEntry, 0)

	for rows.Next() {
		var (
			entry      lending.LedgerEntry
			returnedAt sql.NullTime
			returnedBy uuid.NullUUID
		)

		if scanErr := rows.Scan(
			&entry.ID, &entry.BookID, &entry.UserID, &entry.BorrowedAt, &returnedAt, &returnedBy,
		); scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr, logAttrOperation, operationLedgerEntries)
			observer.failure(errorTypeRowScan)

			return nil, errors.Join(lending.ErrScanningDBRowFailed, scanErr)
		}

		entry.BorrowedAt = entry.BorrowedAt.UTC()
		entry.ReturnedAt = nullableTime(returnedAt)
		entry.ReturnedBy = nullableUUID(returnedBy)
		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
		observer.failure(errorTypeDatabaseQuery)

		return nil, errors.Join(lending.ErrQueryingFailed, rowsErr)
	}

	s.logQueryWithDuration(ctx, sqlQuery, operationLedgerEntries, time.Since(start))
	observer.success()

	return entries, nil
}
