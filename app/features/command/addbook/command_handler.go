package addbook

import (
	"context"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Store defines the interface needed by the CommandHandler.
type Store interface {
	InsertBook(ctx context.Context, book lending.Book) error
}

// CommandHandler validates and inserts new books.
type CommandHandler struct {
	store     Store
	publisher shell.NotificationPublisher
	releaser  shell.BlobReleaser
}

// Option configures a CommandHandler.
type Option func(*CommandHandler)

// WithNotificationPublisher announces added books.
func WithNotificationPublisher(publisher shell.NotificationPublisher) Option {
	return func(h *CommandHandler) {
		h.publisher = publisher
	}
}

// WithBlobReleaser releases the image of a book that could not be added.
func WithBlobReleaser(releaser shell.BlobReleaser) Option {
	return func(h *CommandHandler) {
		h.releaser = releaser
	}
}

// NewCommandHandler creates a new CommandHandler with optional configuration.
func NewCommandHandler(store Store, opts ...Option) CommandHandler {
	handler := CommandHandler{
		store: store,
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle adds the book and returns it. Inserting never conflicts, so there is no retry.
func (h CommandHandler) Handle(ctx context.Context, command Command) (lending.Book, shell.HandlerResult, error) {
	singleAttempt := shell.RetryMetrics{Attempts: 1, LastErrorType: shell.ErrorTypeNone}

	result := Decide(command)
	if err := result.HasError(); err != nil {
		shell.ReleaseBlob(h.releaser, command.ImageRef)
		singleAttempt.LastErrorType = shell.ErrorTypeOf(err)

		return lending.Book{}, shell.NewErrorResult(singleAttempt), err
	}

	if err := h.store.InsertBook(ctx, result.Effect); err != nil {
		shell.ReleaseBlob(h.releaser, command.ImageRef)
		singleAttempt.LastErrorType = shell.ErrorTypeOf(err)

		return lending.Book{}, shell.NewErrorResult(singleAttempt), err
	}

	shell.Notify(ctx, h.publisher, shell.NewNotification(
		shell.NotificationBookAdded, command.BookID, command.UserID, command.OccurredAt,
	))

	return result.Effect, shell.NewSuccessResult(singleAttempt), nil
}
