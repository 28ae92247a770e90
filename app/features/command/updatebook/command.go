package updatebook

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	commandType = "UpdateBook"
)

// Command represents the intent to change some fields of a book.
// NewImageRef is empty if the image stays as it is.
type Command struct {
	BookID      uuid.UUID
	Patch       lending.BookPatch
	NewImageRef string
	UserID      uuid.UUID
	OccurredAt  core.OccurredAt
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(
	bookID uuid.UUID,
	patch lending.BookPatch,
	newImageRef string,
	userID uuid.UUID,
	occurredAt time.Time,
) Command {
	return Command{
		BookID:      bookID,
		Patch:       patch,
		NewImageRef: newImageRef,
		UserID:      userID,
		OccurredAt:  core.ToOccurredAt(occurredAt),
	}
}
