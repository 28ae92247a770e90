package lending

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Field names used as keys in validation errors. They match the wire names of the HTTP API.
const (
	FieldTitle           = "title"
	FieldAuthor          = "author"
	FieldGenre           = "genre"
	FieldPublicationYear = "publication_year"
	FieldImage           = "image"
)

// ErrValidation matches every *ValidationError with errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError reports invalid input with one message per field.
// No mutation happens when a ValidationError is returned.
type ValidationError struct {
	fields map[string]string
}

// NewValidationError creates an empty ValidationError to collect field messages into.
func NewValidationError() *ValidationError {
	return &ValidationError{fields: make(map[string]string)}
}

// Add records a message for the field. The first message per field wins.
func (e *ValidationError) Add(field string, message string) {
	if _, exists := e.fields[field]; exists {
		return
	}

	e.fields[field] = message
}

// HasErrors reports whether any field message was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.fields) > 0
}

// OrNil returns the ValidationError as error if it has messages, otherwise nil.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}

	return e
}

// Merge copies the messages of other into e.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}

	for field, message := range other.fields {
		e.Add(field, message)
	}
}

// Fields returns a copy of the field messages.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.fields))
	for field, message := range e.fields {
		fields[field] = message
	}

	return fields
}

// Messages returns all messages ordered by field name.
func (e *ValidationError) Messages() []string {
	names := make([]string, 0, len(e.fields))
	for field := range e.fields {
		names = append(names, field)
	}

	sort.Strings(names)

	messages := make([]string, 0, len(names))
	for _, field := range names {
		messages = append(messages, e.fields[field])
	}

	return messages
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + strings.Join(e.Messages(), " ")
}

// Is makes errors.Is(err, ErrValidation) true for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func minYearMessage() string {
	return fmt.Sprintf("The %s field must be at least %d.", humanFieldName(FieldPublicationYear), MinPublicationYear)
}

func maxYearMessage(currentYear int) string {
	return fmt.Sprintf("The %s field must not be greater than %d.", humanFieldName(FieldPublicationYear), currentYear)
}

// IntegerMessage is the message for a field that must be an integer but is not.
func IntegerMessage(field string) string {
	return fmt.Sprintf("The %s field must be an integer.", humanFieldName(field))
}

// StringMessage is the message for a text field that was supplied with a non-text value.
func StringMessage(field string) string {
	return fmt.Sprintf("The %s field must be a string.", humanFieldName(field))
}

// RequiredMessage is the message for a missing or blank field.
func RequiredMessage(field string) string {
	return fmt.Sprintf("The %s field is required.", humanFieldName(field))
}

func humanFieldName(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
