package addbook

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	commandType = "AddBook"
)

// Command represents the intent to add a book to the catalog.
type Command struct {
	BookID     uuid.UUID
	Fields     lending.BookFields
	ImageRef   string
	UserID     uuid.UUID
	OccurredAt core.OccurredAt
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with a freshly generated book id.
func BuildCommand(fields lending.BookFields, imageRef string, userID uuid.UUID, occurredAt time.Time) Command {
	return Command{
		BookID:     uuid.New(),
		Fields:     fields,
		ImageRef:   imageRef,
		UserID:     userID,
		OccurredAt: core.ToOccurredAt(occurredAt),
	}
}
