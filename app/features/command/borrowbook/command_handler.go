package borrowbook

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Store defines the interface needed by the CommandHandler for catalog and ledger operations.
type Store interface {
	LoadLoanState(ctx context.Context, bookID uuid.UUID) (lending.LoanState, error)
	ApplyLoanChange(ctx context.Context, change lending.LoanChange) (lending.Book, error)
}

// CommandHandler orchestrates the workflow Load -> Decide -> Apply with retry on concurrency conflicts.
// External wrappers handle all observability concerns.
type CommandHandler struct {
	store        Store
	publisher    shell.NotificationPublisher
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

// WithNotificationPublisher announces successful borrows.
func WithNotificationPublisher(publisher shell.NotificationPublisher) Option {
	return func(h *CommandHandler) {
		h.publisher = publisher
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

// Handle borrows the book and returns its updated state.
func (h CommandHandler) Handle(ctx context.Context, command Command) (lending.Book, shell.HandlerResult, error) {
	var borrowed lending.Book

	retryMetrics, err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		book, execErr := h.executeCommand(retryCtx, command)
		borrowed = book

		return execErr
	}, h.retryOptions...)

	if err != nil {
		return lending.Book{}, shell.NewErrorResult(retryMetrics), err
	}

	shell.Notify(ctx, h.publisher, shell.NewNotification(
		shell.NotificationBookBorrowed, command.BookID, command.UserID, command.OccurredAt,
	))

	return borrowed, shell.NewSuccessResult(retryMetrics), nil
}

// executeCommand contains the core command processing logic that can be retried.
func (h CommandHandler) executeCommand(ctx context.Context, command Command) (lending.Book, error) {
	ctx = lending.WithStrongConsistency(ctx)

	state, err := h.store.LoadLoanState(ctx, command.BookID)
	if err != nil {
		return lending.Book{}, err
	}

	result := Decide(state, command)
	if decisionErr := result.HasError(); decisionErr != nil {
		return lending.Book{}, decisionErr
	}

	return h.store.ApplyLoanChange(ctx, result.Effect)
}
