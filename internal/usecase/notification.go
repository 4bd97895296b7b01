package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/arklim/skills-audit/internal/core/document"
	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/repository"
)

// NotificationService reads and acknowledges in-app notifications.
type NotificationService struct {
	store port.DocumentStore
}

func NewNotificationService(store port.DocumentStore) *NotificationService {
	return &NotificationService{store: store}
}

// List returns the notifications of uid, newest first.
func (s *NotificationService) List(ctx context.Context, uid string, unreadOnly bool) ([]domain.Notification, error) {
	q := document.Query{
		Collection: domain.CollectionNotifications,
		Filters:    []document.Filter{document.Eq(domain.FieldUserID, uid)},
		OrderBy:    []document.Order{document.Desc(domain.FieldCreatedAt)},
	}
	if unreadOnly {
		q.Filters = append(q.Filters, document.Eq(domain.FieldRead, false))
	}

	var out []domain.Notification
	err := forEach(ctx, s.store, q, func(doc *document.Document) error {
		out = append(out, domain.NotificationFromDocument(doc))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// MarkRead flags a notification of uid as read. Notifications of other users are reported as missing.
func (s *NotificationService) MarkRead(ctx context.Context, uid, id string) error {
	doc, err := s.store.Get(ctx, domain.CollectionNotifications, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("get notification %s: %w", id, err)
	}
	if doc.String(domain.FieldUserID) != uid {
		return ErrNotificationNotFound
	}
	if doc.Bool(domain.FieldRead) {
		return nil
	}
	if err := s.store.Update(ctx, domain.CollectionNotifications, id, map[string]any{domain.FieldRead: true}); err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}
