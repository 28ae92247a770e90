package shell

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification names, also used as AMQP routing keys.
const (
	NotificationBookAdded    = "library.book.added"
	NotificationBookUpdated  = "library.book.updated"
	NotificationBookRemoved  = "library.book.removed"
	NotificationBookBorrowed = "library.book.borrowed"
	NotificationBookReturned = "library.book.returned"
)

const (
	logMsgNotification = "library notification"
	logAttrName        = "name"
	logAttrBookID      = "book_id"
	logAttrUserID      = "user_id"
	logAttrOccurredAt  = "occurred_at"
)

// Notification announces a committed catalog or lending mutation.
type Notification struct {
	Name       string    `json:"name"`
	BookID     uuid.UUID `json:"book_id"`
	UserID     uuid.UUID `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewNotification builds a Notification.
func NewNotification(name string, bookID uuid.UUID, userID uuid.UUID, occurredAt time.Time) Notification {
	return Notification{
		Name:       name,
		BookID:     bookID,
		UserID:     userID,
		OccurredAt: occurredAt,
	}
}

// NotificationPublisher delivers notifications on a best-effort basis.
// Publish must not fail the mutation that triggered it, so it has no error result;
// implementations log their failures.
type NotificationPublisher interface {
	Publish(ctx context.Context, notification Notification)
}

// BlobReleaser deletes blobs that are no longer referenced by any book.
// Release must not block and must not fail the mutation that triggered it.
type BlobReleaser interface {
	Release(ref string)
}

// Notify publishes the notification if a publisher is configured.
func Notify(ctx context.Context, publisher NotificationPublisher, notification Notification) {
	if publisher == nil {
		return
	}

	publisher.Publish(ctx, notification)
}

// ReleaseBlob hands the ref to the releaser if both are present.
func ReleaseBlob(releaser BlobReleaser, ref string) {
	if releaser == nil || ref == "" {
		return
	}

	releaser.Release(ref)
}

// LogPublisher is a NotificationPublisher that only writes notifications to the log.
// It is used when no message broker is configured.
type LogPublisher struct {
	logger           Logger
	contextualLogger ContextualLogger
}

// NewLogPublisher creates a LogPublisher. Either logger may be nil.
func NewLogPublisher(logger Logger, contextualLogger ContextualLogger) *LogPublisher {
	return &LogPublisher{
		logger:           logger,
		contextualLogger: contextualLogger,
	}
}

// Publish logs the notification at info level.
func (p *LogPublisher) Publish(ctx context.Context, notification Notification) {
	logInfo(ctx, p.logger, p.contextualLogger, logMsgNotification,
		logAttrName, notification.Name,
		logAttrBookID, notification.BookID.String(),
		logAttrUserID, notification.UserID.String(),
		logAttrOccurredAt, notification.OccurredAt.Format(time.RFC3339Nano),
	)
}
