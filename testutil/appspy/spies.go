package appspy

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
)

// NotificationPublisherSpy records published notifications.
type NotificationPublisherSpy struct {
	mu            sync.Mutex
	notifications []shell.Notification
}

// NewNotificationPublisherSpy creates an empty NotificationPublisherSpy.
func NewNotificationPublisherSpy() *NotificationPublisherSpy {
	return &NotificationPublisherSpy{}
}

// Publish implements shell.NotificationPublisher.
func (s *NotificationPublisherSpy) Publish(_ context.Context, notification shell.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = append(s.notifications, notification)
}

// Notifications returns a copy of everything published so far.
func (s *NotificationPublisherSpy) Notifications() []shell.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]shell.Notification(nil), s.notifications...)
}

// Names returns the names of everything published so far, in order.
func (s *NotificationPublisherSpy) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.notifications))
	for _, n := range s.notifications {
		names = append(names, n.Name)
	}

	return names
}

// BlobReleaserSpy records released blob refs.
type BlobReleaserSpy struct {
	mu       sync.Mutex
	released []string
}

// NewBlobReleaserSpy creates an empty BlobReleaserSpy.
func NewBlobReleaserSpy() *BlobReleaserSpy {
	return &BlobReleaserSpy{}
}

// Release implements shell.BlobReleaser.
func (s *BlobReleaserSpy) Release(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.released = append(s.released, ref)
}

// Released returns the released refs in order.
func (s *BlobReleaserSpy) Released() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.released...)
}
