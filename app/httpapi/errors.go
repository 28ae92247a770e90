package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Response messages.
const (
	msgUserCreated        = "User Created Successfully"
	msgLoggedIn           = "User Logged in Successfully"
	msgLoggedOut          = "You Logged Out Successfully"
	msgBooksRetrieved     = "Books retrieved successfully"
	msgBookAdded          = "Book Added successfully"
	msgBookRetrieved      = "Book retrieved successfully"
	msgBookUpdated        = "Book updated successfully"
	msgBookDeleted        = "Book deleted successfully"
	msgBookBorrowed       = "Book borrowed successfully"
	msgBookReturned       = "Book returned successfully"
	msgLoanHistory        = "Loan history retrieved successfully"
	msgHealthy            = "OK"
	msgValidationError    = "Validation Error"
	msgAuthFailed         = "Authentication Failed"
	msgBadCredentials     = "Email & Password does not Match"
	msgUnauthenticated    = "Unauthenticated."
	msgBookNotFound       = "Book not found"
	msgImageNotFound      = "Image not found"
	msgAlreadyBorrowed    = "Book already borrowed"
	msgNotBorrowed        = "Book is not borrowed"
	msgCurrentlyBorrowed  = "Book is currently borrowed"
	msgNotTheBorrower     = "Book was borrowed by another user"
	msgConcurrentlyEdited = "Book was changed concurrently, please try again"
	msgPayloadTooLarge    = "Payload Too Large"
	msgServerError        = "Server Error"
	msgUnhealthy          = "Service Unavailable"
)

const (
	logMsgRequestHandled    = "http: request handled"
	logMsgRequestFailed     = "http: request failed"
	logMsgIntegrityFault    = "http: lending integrity fault"
	logMsgPanicRecovered    = "http: panic recovered"
	logMsgEncodingFailed    = "http: encoding response failed"
	logMsgHealthCheckFailed = "http: health check failed"
	logMsgMultipartCleanup  = "http: removing multipart temp files failed"
	logAttrMethod           = "method"
	logAttrPath             = "path"
	logAttrRoute            = "route"
	logAttrStatus           = "status"
	logAttrDurationMS       = "duration_ms"
	logAttrError            = "error"
	logAttrPanic            = "panic"
)

// writeBookError maps errors of the book routes to responses.
func (s *Server) writeBookError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *lending.ValidationError

	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, r, http.StatusUnprocessableEntity, failureWithErrors(msgValidationError, fieldErrors(verr)))
	case errors.Is(err, lending.ErrBookNotFound):
		s.writeJSON(w, r, http.StatusNotFound, failure(msgBookNotFound))
	case errors.Is(err, lending.ErrBookAlreadyBorrowed):
		s.writeJSON(w, r, http.StatusBadRequest, failure(msgAlreadyBorrowed))
	case errors.Is(err, lending.ErrBookNotBorrowed):
		s.writeJSON(w, r, http.StatusBadRequest, failure(msgNotBorrowed))
	case errors.Is(err, lending.ErrBookIsBorrowed):
		s.writeJSON(w, r, http.StatusBadRequest, failure(msgCurrentlyBorrowed))
	case errors.Is(err, lending.ErrNotTheBorrower):
		s.writeJSON(w, r, http.StatusBadRequest, failure(msgNotTheBorrower))
	case errors.Is(err, lending.ErrConcurrencyConflict):
		s.writeJSON(w, r, http.StatusConflict, failure(msgConcurrentlyEdited))
	case errors.Is(err, lending.ErrIntegrityFault):
		s.logError(r.Context(), logMsgIntegrityFault, logAttrPath, r.URL.Path, logAttrError, err.Error())
		s.writeJSON(w, r, http.StatusInternalServerError, failure(msgServerError))
	default:
		s.writeServerError(w, r, err)
	}
}

func (s *Server) writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, context.Canceled) {
		s.logError(r.Context(), logMsgRequestFailed, logAttrPath, r.URL.Path, logAttrError, err.Error())
	}

	s.writeJSON(w, r, http.StatusInternalServerError, failure(msgServerError))
}

// fieldErrors renders a ValidationError keyed by field, one list of messages per field.
func fieldErrors(verr *lending.ValidationError) map[string][]string {
	rendered := make(map[string][]string)

	for field, message := range verr.Fields() {
		rendered[field] = []string{message}
	}

	return rendered
}

// flatErrors renders a ValidationError as a plain list, ordered by field.
func flatErrors(verr *lending.ValidationError) []string {
	return verr.Messages()
}

func (s *Server) logInfo(ctx context.Context, msg string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.InfoContext(ctx, msg, args...)
	case s.logger != nil:
		s.logger.Info(msg, args...)
	}
}

func (s *Server) logError(ctx context.Context, msg string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.ErrorContext(ctx, msg, args...)
	case s.logger != nil:
		s.logger.Error(msg, args...)
	}
}
