// Package notification tells users about finished preview jobs.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const collection = "notifications"

var ErrNotificationNotFound = errors.New("notification not found")

type Notifier interface {
	SendNotification(ctx context.Context, req *NotificationRequest) (*Notification, error)
	GetNotifications(ctx context.Context, filter *NotificationFilter) ([]*Notification, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) error
}

func newNotification(req *NotificationRequest, now time.Time) *Notification {
	n := &Notification{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Data:      req.Data,
		CreatedAt: now,
	}
	if req.TTL != nil {
		expiresAt := now.Add(*req.TTL)
		n.ExpiresAt = &expiresAt
	}
	return n
}

// FirestoreService stores notifications as documents in the notifications
// collection.
type FirestoreService struct {
	db *firestore.Client
}

func NewFirestoreService(db *firestore.Client) *FirestoreService {
	return &FirestoreService{db: db}
}

func (s *FirestoreService) SendNotification(ctx context.Context, req *NotificationRequest) (*Notification, error) {
	notification := newNotification(req, time.Now())

	_, err := s.db.Collection(collection).Doc(notification.ID).Set(ctx, notification)
	if err != nil {
		return nil, fmt.Errorf("failed to send notification: %w", err)
	}

	slog.Debug("Notification sent", "notification_id", notification.ID, "type", notification.Type)
	return notification, nil
}

func (s *FirestoreService) GetNotifications(ctx context.Context, filter *NotificationFilter) ([]*Notification, error) {
	query := s.db.Collection(collection).Where("user_id", "==", filter.UserID).OrderBy("created_at", firestore.Desc)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	now := time.Now()
	result := []*Notification{}
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get notifications: %w", err)
		}

		var notification Notification
		if err := doc.DataTo(&notification); err != nil {
			return nil, fmt.Errorf("failed to parse notification: %w", err)
		}

		if filter.matches(&notification, now) {
			result = append(result, &notification)
		}
	}

	return result, nil
}

func (s *FirestoreService) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	ref := s.db.Collection(collection).Doc(notificationID)

	doc, err := ref.Get(ctx)
	if err != nil {
		if !doc.Exists() {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("failed to get notification: %w", err)
	}
	owner, err := doc.DataAt("user_id")
	if err != nil || owner != userID {
		return ErrNotificationNotFound
	}

	_, err = ref.Update(ctx, []firestore.Update{
		{Path: "read", Value: true},
	})
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}

// NopService drops notifications. It is used when Firebase is not configured.
type NopService struct{}

func (NopService) SendNotification(_ context.Context, req *NotificationRequest) (*Notification, error) {
	return newNotification(req, time.Now()), nil
}

func (NopService) GetNotifications(context.Context, *NotificationFilter) ([]*Notification, error) {
	return []*Notification{}, nil
}

func (NopService) MarkAsRead(context.Context, string, string) error {
	return ErrNotificationNotFound
}
