package returnbook

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
type CommandHandler struct {
	store        Store
	policy       Policy
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

// WithOnlyBorrowerMayReturn rejects returns by anybody but the borrower with lending.ErrNotTheBorrower.
func WithOnlyBorrowerMayReturn(enabled bool) Option {
	return func(h *CommandHandler) {
		h.policy.OnlyBorrowerMayReturn = enabled
	}
}

// WithNotificationPublisher announces successful returns.
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

// Handle returns the book and returns its updated state.
func (h CommandHandler) Handle(ctx context.Context, command Command) (lending.Book, shell.HandlerResult, error) {
	var returned lending.Book

	retryMetrics, err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		book, execErr := h.executeCommand(retryCtx, command)
		returned = book

		return execErr
	}, h.retryOptions...)

	if err != nil {
		return lending.Book{}, shell.NewErrorResult(retryMetrics), err
	}

	shell.Notify(ctx, h.publisher, shell.NewNotification(
		shell.NotificationBookReturned, command.BookID, command.UserID, command.OccurredAt,
	))

	return returned, shell.NewSuccessResult(retryMetrics), nil
}

func (h CommandHandler) executeCommand(ctx context.Context, command Command) (lending.Book, error) {
	ctx = lending.WithStrongConsistency(ctx)

	state, err := h.store.LoadLoanState(ctx, command.BookID)
	if err != nil {
		return lending.Book{}, err
	}

	result := Decide(state, command, h.policy)
	if decisionErr := result.HasError(); decisionErr != nil {
		return lending.Book{}, decisionErr
	}

	return h.store.ApplyLoanChange(ctx, result.Effect)
}
