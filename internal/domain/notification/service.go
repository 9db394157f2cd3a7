package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RealtimePublisher pushes a freshly created notification to connected clients
type RealtimePublisher interface {
	NotifyNew(ctx context.Context, userID uuid.UUID, n *Notification, unreadCount int) error
}

// Service handles notification logic
type Service struct {
	repo     Repository
	realtime RealtimePublisher
}

// NewService creates notification service
func NewService(repo Repository, realtime RealtimePublisher) *Service {
	return &Service{repo: repo, realtime: realtime}
}

// Notify stores a notification for the user and pushes it to any live
// websocket connections. Failures are logged and swallowed: notification
// delivery never fails the operation that triggered it.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, message string) {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Message:   message,
		IsRead:    false,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, n); err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to store notification")
		return
	}

	if s.realtime != nil {
		unread, err := s.repo.CountUnreadByUser(ctx, userID)
		if err != nil {
			unread = 0
		}
		if err := s.realtime.NotifyNew(ctx, userID, n, unread); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("realtime notification push failed")
		}
	}
}

// List returns notifications for user, newest first
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// GetUnreadCount returns unread count
func (s *Service) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnreadByUser(ctx, userID)
}

// MarkAsRead marks a single notification as read. Scoped to the owner so one
// user cannot mark another's notifications.
func (s *Service) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

// MarkAllAsRead marks all of the user's notifications as read
func (s *Service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}
