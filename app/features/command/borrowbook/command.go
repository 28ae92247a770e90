package borrowbook

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
)

const (
	commandType = "BorrowBook"
)

// Command represents the intent of a user to borrow a book.
// EntryID is the id of the ledger entry a successful borrow opens.
type Command struct {
	BookID     uuid.UUID
	UserID     uuid.UUID
	EntryID    uuid.UUID
	OccurredAt core.OccurredAt
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with a freshly generated ledger entry id.
func BuildCommand(bookID uuid.UUID, userID uuid.UUID, occurredAt time.Time) Command {
	return Command{
		BookID:     bookID,
		UserID:     userID,
		EntryID:    uuid.New(),
		OccurredAt: core.ToOccurredAt(occurredAt),
	}
}
