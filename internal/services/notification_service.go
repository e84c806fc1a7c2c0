package services

import (
	"context"

	"leads-backend/internal/models"
)

// Publisher pushes a committed notification to live connections of its
// recipient. Delivery is best-effort; the inbox row is the record.
type Publisher interface {
	Publish(recipientID int, n *models.Notification)
}

type NotificationService struct {
	Store     NotificationStore
	Publisher Publisher
}

func NewNotificationService(store NotificationStore, publisher Publisher) *NotificationService {
	return &NotificationService{Store: store, Publisher: publisher}
}

// Inbox lists the caller's notifications newest first with the unread count
func (s *NotificationService) Inbox(ctx context.Context, actor models.Actor, unreadOnly bool) (*models.NotificationList, error) {
	items, err := s.Store.ListForRecipient(ctx, actor.ID, unreadOnly)
	if err != nil {
		return nil, err
	}
	unread, err := s.Store.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.Notification{}
	}
	return &models.NotificationList{Notifications: items, Unread: unread}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, actor models.Actor, id int) error {
	return s.Store.MarkRead(ctx, id, actor.ID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor models.Actor) (int, error) {
	return s.Store.MarkAllRead(ctx, actor.ID)
}

func (s *NotificationService) Delete(ctx context.Context, actor models.Actor, id int) error {
	return s.Store.Delete(ctx, id, actor.ID)
}

// Publish forwards notifications written by a lead transaction
func (s *NotificationService) Publish(notifications []*models.Notification) {
	if s == nil || s.Publisher == nil {
		return
	}
	for _, n := range notifications {
		s.Publisher.Publish(n.RecipientID, n)
	}
}
