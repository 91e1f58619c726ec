package notification

import "time"

type NotificationType string

const (
	TypeSuccess NotificationType = "success"
	TypeFail    NotificationType = "fail"
)

type Notification struct {
	ID        string                 `json:"id" firestore:"id"`
	UserID    string                 `json:"-" firestore:"user_id"`
	Type      NotificationType       `json:"type" firestore:"type"`
	Title     string                 `json:"title" firestore:"title"`
	Message   string                 `json:"message" firestore:"message"`
	Data      map[string]interface{} `json:"data,omitempty" firestore:"data,omitempty"`
	Read      bool                   `json:"read" firestore:"read"`
	CreatedAt time.Time              `json:"created_at" firestore:"created_at"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty" firestore:"expires_at,omitempty"`
}

type NotificationRequest struct {
	UserID  string
	Type    NotificationType
	Title   string
	Message string
	Data    map[string]interface{}
	TTL     *time.Duration
}

type NotificationFilter struct {
	UserID string
	Type   NotificationType
	Read   *bool
	Limit  int
}

func (f *NotificationFilter) matches(n *Notification, now time.Time) bool {
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.Read != nil && n.Read != *f.Read {
		return false
	}
	if n.ExpiresAt != nil && now.After(*n.ExpiresAt) {
		return false
	}
	return true
}
