package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/blobstore"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/addbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/borrowbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/removebook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/returnbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/updatebook"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/getbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/listbooks"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/loanhistory"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	filter, verr := filterFromQuery(r)
	if verr.HasErrors() {
		s.writeBookError(w, r, verr)
		return
	}

	result, err := s.handlers.ListBooks.Handle(r.Context(), listbooks.BuildQuery(filter))
	if err != nil {
		s.writeBookError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, success(msgBooksRetrieved, toBookDTOs(result.Books)))
}

// filterFromQuery builds the list filter from the author, genre and publication_year query parameters.
// Blank parameters are ignored.
func filterFromQuery(r *http.Request) (lending.BookFilter, *lending.ValidationError) {
	query := r.URL.Query()
	builder := lending.BuildBookFilter()
	verr := lending.NewValidationError()

	if author := strings.TrimSpace(query.Get(lending.FieldAuthor)); author != "" {
		builder = builder.WithAuthor(author)
	}

	if genre := strings.TrimSpace(query.Get(lending.FieldGenre)); genre != "" {
		builder = builder.WithGenre(genre)
	}

	if raw := strings.TrimSpace(query.Get(lending.FieldPublicationYear)); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add(lending.FieldPublicationYear, lending.IntegerMessage(lending.FieldPublicationYear))
		} else {
			builder = builder.WithPublicationYear(year)
		}
	}

	return builder.Finalize(), verr
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())

	in, cleanup, err := s.readInput(w, r)
	defer cleanup()

	if errors.Is(err, errBodyTooLarge) {
		s.writeImageTooLarge(w, r)
		return
	}

	verr := lending.NewValidationError()
	fields := lending.BookFields{
		Title:  in.textField(verr, lending.FieldTitle),
		Author: in.textField(verr, lending.FieldAuthor),
		Genre:  in.textField(verr, lending.FieldGenre),
	}

	fields.PublicationYear, _ = in.yearField(verr)

	if in.image == nil {
		verr.Add(lending.FieldImage, lending.RequiredMessage(lending.FieldImage))
	} else {
		s.checkImage(verr, in.image)
	}

	// messages already recorded above take precedence over the domain ones
	var domainErr *lending.ValidationError
	if errors.As(lending.ValidateBookFields(fields, s.now()), &domainErr) {
		verr.Merge(domainErr)
	}

	if verr.HasErrors() {
		s.writeBookError(w, r, verr)
		return
	}

	imageRef, ok := s.saveImage(w, r, in)
	if !ok {
		return
	}

	book, _, err := s.handlers.AddBook.Handle(r.Context(), addbook.BuildCommand(fields, imageRef, caller.UserID, s.now()))
	if err != nil {
		s.writeBookError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusCreated, success(msgBookAdded, toBookDTO(book)))
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := s.bookIDFromPath(w, r)
	if !ok {
		return
	}

	book, err := s.handlers.GetBook.Handle(r.Context(), getbook.BuildQuery(bookID))
	if err != nil {
		s.writeBookError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, success(msgBookRetrieved, toBookDTO(book)))
}

// handleUpdateBook applies a partial update. Only the submitted fields are validated and changed.
func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())

	bookID, ok := s.bookIDFromPath(w, r)
	if !ok {
		return
	}

	in, cleanup, err := s.readInput(w, r)
	defer cleanup()

	if errors.Is(err, errBodyTooLarge) {
		s.writeImageTooLarge(w, r)
		return
	}

	verr := lending.NewValidationError()
	patch := lending.BookPatch{}

	for field, target := range map[string]**string{
		lending.FieldTitle:  &patch.Title,
		lending.FieldAuthor: &patch.Author,
		lending.FieldGenre:  &patch.Genre,
	} {
		if _, present := in.values[field]; present {
			value := in.textField(verr, field)
			*target = &value
		}
	}

	if _, present := in.values[lending.FieldPublicationYear]; present {
		if year, valid := in.yearField(verr); valid {
			patch.PublicationYear = &year
		}
	}

	if in.image != nil {
		s.checkImage(verr, in.image)
	}

	var domainErr *lending.ValidationError
	if errors.As(lending.ValidateBookPatch(patch, s.now()), &domainErr) {
		verr.Merge(domainErr)
	}

	if verr.HasErrors() {
		s.writeBookError(w, r, verr)
		return
	}

	var newImageRef string
	if in.image != nil {
		if newImageRef, ok = s.saveImage(w, r, in); !ok {
			return
		}
	}

	book, _, err := s.handlers.UpdateBook.Handle(
		r.Context(),
		updatebook.BuildCommand(bookID, patch, newImageRef, caller.UserID, s.now()),
	)
	if err != nil {
		s.writeBookError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, success(msgBookUpdated, toBookDTO(book)))
}

func (s *Server) handleRemoveBook(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())

	bookID, ok := s.bookIDFromPath(w, r)
	if !ok {
		return
	}

	_, _, err := s.handlers.RemoveBook.Handle(r.Context(), removebook.BuildCommand(bookID, caller.UserID, s.now()))
	if err != nil {
		s.writeBookError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, success(msgBookDeleted, nil))
}

func (s *Server) handleBorrowBook(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())

	bookID, ok := s.bookIDFromPath(w, r)
	if !ok {
		return
	}

	book, _, err := s.handlers.BorrowBook.Handle(r.Context(), borrowbook.BuildCommand(bookID, caller.UserID, s.now()))
	if err != nil {
		s.writeBookError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, success(msgBookBorrowed, toBookDTO(book)))
}

func (s *Server) handleReturnBook(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())

	bookID, ok := s.bookIDFromPath(w, r)
	if !ok {
		return
	}

	book, _, err := s.handlers.ReturnBook.Handle(r.Context(), returnbook.BuildCommand(bookID, caller.UserID, s.now()))
	if err != nil {
		s.writeBookError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, success(msgBookReturned, toBookDTO(book)))
}

func (s *Server) handleLoanHistory(w http.ResponseWriter, r *http.Request) {
	bookID, ok := s.bookIDFromPath(w, r)
	if !ok {
		return
	}

	history, err := s.handlers.LoanHistory.Handle(r.Context(), loanhistory.BuildQuery(bookID))
	if err != nil {
		s.writeBookError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, success(msgLoanHistory, toLoanHistoryDTO(history)))
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")

	file, err := s.images.Open(ref)
	switch {
	case errors.Is(err, blobstore.ErrInvalidRef), errors.Is(err, blobstore.ErrBlobNotFound):
		s.writeJSON(w, r, http.StatusNotFound, failure(msgImageNotFound))
		return
	case err != nil:
		s.writeServerError(w, r, err)
		return
	}

	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		s.writeServerError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", blobstore.ContentType(ref))
	http.ServeContent(w, r, ref, info.ModTime(), file)
}

// bookIDFromPath parses the id path value. An unparseable id cannot name a book, so it is a 404.
func (s *Server) bookIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	bookID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, r, http.StatusNotFound, failure(msgBookNotFound))
		return uuid.Nil, false
	}

	return bookID, true
}

func (s *Server) saveImage(w http.ResponseWriter, r *http.Request, in input) (string, bool) {
	file, err := in.image.Open()
	if err != nil {
		s.writeServerError(w, r, err)
		return "", false
	}

	defer func() { _ = file.Close() }()

	ref, err := s.images.Save(r.Context(), file, in.image.Filename, s.maxUploadBytes)
	switch {
	case errors.Is(err, blobstore.ErrTooLarge):
		s.writeImageTooLarge(w, r)
		return "", false
	case errors.Is(err, blobstore.ErrUnsupportedType):
		verr := lending.NewValidationError()
		verr.Add(lending.FieldImage, imageTypeMessage())
		s.writeBookError(w, r, verr)

		return "", false
	case err != nil:
		s.writeServerError(w, r, err)
		return "", false
	}

	return ref, true
}

func (s *Server) writeImageTooLarge(w http.ResponseWriter, r *http.Request) {
	verr := lending.NewValidationError()
	verr.Add(lending.FieldImage, s.imageSizeMessage())
	s.writeBookError(w, r, verr)
}
