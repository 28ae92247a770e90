package removebook

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Store defines the interface needed by the CommandHandler.
type Store interface {
	GetBook(ctx context.Context, bookID uuid.UUID) (lending.Book, error)
	DeleteBook(ctx context.Context, bookID uuid.UUID, expectedVersion lending.VersionUint) error
}

// CommandHandler orchestrates the workflow Load -> Decide -> Delete with retry on concurrency conflicts.
type CommandHandler struct {
	store        Store
	policy       Policy
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

// WithRejectWhileBorrowed refuses to remove borrowed books with lending.ErrBookIsBorrowed.
func WithRejectWhileBorrowed(enabled bool) Option {
	return func(h *CommandHandler) {
		h.policy.RejectWhileBorrowed = enabled
	}
}

// WithNotificationPublisher announces removed books.
func WithNotificationPublisher(publisher shell.NotificationPublisher) Option {
	return func(h *CommandHandler) {
		h.publisher = publisher
	}
}

// WithBlobReleaser releases the image of removed books.
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

// Handle removes the book and returns its last state.
func (h CommandHandler) Handle(ctx context.Context, command Command) (lending.Book, shell.HandlerResult, error) {
	var removed lending.Book

	retryMetrics, err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		book, execErr := h.executeCommand(retryCtx, command)
		removed = book

		return execErr
	}, h.retryOptions...)

	if err != nil {
		return lending.Book{}, shell.NewErrorResult(retryMetrics), err
	}

	shell.ReleaseBlob(h.releaser, removed.ImageRef)
	shell.Notify(ctx, h.publisher, shell.NewNotification(
		shell.NotificationBookRemoved, command.BookID, command.UserID, command.OccurredAt,
	))

	return removed, shell.NewSuccessResult(retryMetrics), nil
}

func (h CommandHandler) executeCommand(ctx context.Context, command Command) (lending.Book, error) {
	ctx = lending.WithStrongConsistency(ctx)

	book, err := h.store.GetBook(ctx, command.BookID)
	if err != nil {
		return lending.Book{}, err
	}

	result := Decide(book, h.policy)
	if decisionErr := result.HasError(); decisionErr != nil {
		return lending.Book{}, decisionErr
	}

	if err = h.store.DeleteBook(ctx, book.ID, book.Version); err != nil {
		return lending.Book{}, err
	}

	return book, nil
}
