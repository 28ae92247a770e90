package updatebook

import (
	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Decide applies the already validated patch to the current book.
func Decide(book lending.Book, command Command) core.DecisionResult[lending.Book] {
	patched, changed := book.ApplyPatch(command.Patch)

	if command.NewImageRef != "" && command.NewImageRef != book.ImageRef {
		patched.ImageRef = command.NewImageRef
		changed = true
	}

	if !changed {
		return core.IdempotentDecision[lending.Book]()
	}

	patched.UpdatedAt = command.OccurredAt

	return core.SuccessDecision(patched)
}
