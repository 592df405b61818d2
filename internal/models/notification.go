package models

import "time"

// NotificationKind is a client-side tag; the server never sets it.
type NotificationKind string

const (
	NotificationPending NotificationKind = "pending"
	NotificationLive    NotificationKind = "live"
)

type Actor struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type Notification struct {
	ID            string           `json:"_id,omitempty"`
	From          Actor            `json:"from"`
	Message       string           `json:"message"`
	Read          bool             `json:"read"`
	UserID        string           `json:"userId"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	SenderModel   Role             `json:"senderModel,omitempty"`
	ReceiverModel Role             `json:"receiverModel,omitempty"`
	Kind          NotificationKind `json:"type,omitempty"`
}

// Displayable reports whether the notification has the minimum shape the
// feed renders: an origin and a message.
func (n Notification) Displayable() bool {
	if n.From.ID == "" && n.From.Name == "" {
		return false
	}
	return n.Message != ""
}

// Timestamp is the instant used to order notifications for display.
func (n Notification) Timestamp() time.Time {
	if n.UpdatedAt.After(n.CreatedAt) {
		return n.UpdatedAt
	}
	return n.CreatedAt
}
