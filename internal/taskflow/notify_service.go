package taskflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/colonyops/taskflow/internal/core/audit"
)

// NotificationService exposes the audit log as a per-user notification feed.
type NotificationService struct {
	store audit.Store
	log   zerolog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(store audit.Store, log zerolog.Logger) *NotificationService {
	return &NotificationService{
		store: store,
		log:   log.With().Str("component", "notify-service").Logger(),
	}
}

// List returns entries newest first.
func (s *NotificationService) List(ctx context.Context, filter audit.ListFilter) ([]audit.Entry, error) {
	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return entries, nil
}

// MarkRead flags a single entry as read.
func (s *NotificationService) MarkRead(ctx context.Context, id int64) error {
	if err := s.store.MarkRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return nil
}

// MarkAllRead flags every unread entry matching filter as read and returns
// how many were changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, filter audit.ListFilter) (int, error) {
	filter.UnreadOnly = true
	entries, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := s.MarkRead(ctx, e.ID); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

// UnreadCount returns the number of unread entries.
func (s *NotificationService) UnreadCount(ctx context.Context) (int64, error) {
	n, err := s.store.CountUnread(ctx)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}
