package updatebook

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Store defines the interface needed by the CommandHandler.
type Store interface {
	GetBook(ctx context.Context, bookID uuid.UUID) (lending.Book, error)
	UpdateBook(ctx context.Context, book lending.Book, expectedVersion lending.VersionUint) (lending.Book, error)
}

// CommandHandler orchestrates the workflow Validate -> Load -> Decide -> Update with retry on concurrency conflicts.
type CommandHandler struct {
	store        Store
	publisher    shell.NotificationPublisher
	releaser     shell.BlobReleaser
	retryOptions []shell.RetryOption
}

// Option configures a CommandHandler.
type Option func(*CommandHandler)

// WithRetryOptions sets a custom retry configuration for the handler.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(h *CommandHandler) {
		h.retryOptions = opts
	}
}

// WithNotificationPublisher announces updated books.
func WithNotificationPublisher(publisher shell.NotificationPublisher) Option {
	return func(h *CommandHandler) {
		h.publisher = publisher
	}
}

// WithBlobReleaser releases replaced images after commit and unused new images on failure.
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

// Handle updates the book and returns its new state.
// For an idempotent update the current state is returned.
func (h CommandHandler) Handle(ctx context.Context, command Command) (lending.Book, shell.HandlerResult, error) {
	if err := lending.ValidateBookPatch(command.Patch, command.OccurredAt); err != nil {
		shell.ReleaseBlob(h.releaser, command.NewImageRef)

		return lending.Book{}, shell.NewErrorResult(shell.RetryMetrics{Attempts: 1, LastErrorType: shell.ErrorTypeOther}), err
	}

	var (
		updated     lending.Book
		replacedRef string
		idempotent  bool
	)

	retryMetrics, err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		book, oldRef, noChange, execErr := h.executeCommand(retryCtx, command)
		updated, replacedRef, idempotent = book, oldRef, noChange

		return execErr
	}, h.retryOptions...)

	if err != nil {
		shell.ReleaseBlob(h.releaser, command.NewImageRef)

		return lending.Book{}, shell.NewErrorResult(retryMetrics), err
	}

	if idempotent {
		return updated, shell.NewIdempotentResult(retryMetrics), nil
	}

	if replacedRef != updated.ImageRef {
		shell.ReleaseBlob(h.releaser, replacedRef)
	}

	shell.Notify(ctx, h.publisher, shell.NewNotification(
		shell.NotificationBookUpdated, command.BookID, command.UserID, command.OccurredAt,
	))

	return updated, shell.NewSuccessResult(retryMetrics), nil
}

// executeCommand returns the updated book, the image ref it had before, and whether nothing changed.
func (h CommandHandler) executeCommand(ctx context.Context, command Command) (lending.Book, string, bool, error) {
	ctx = lending.WithStrongConsistency(ctx)

	book, err := h.store.GetBook(ctx, command.BookID)
	if err != nil {
		return lending.Book{}, "", false, err
	}

	result := Decide(book, command)

	if result.IsIdempotent() {
		return book, book.ImageRef, true, nil
	}

	updated, err := h.store.UpdateBook(ctx, result.Effect, book.Version)
	if err != nil {
		return lending.Book{}, "", false, err
	}

	return updated, book.ImageRef, false, nil
}
