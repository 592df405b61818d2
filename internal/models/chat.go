package models

import "time"

// Role names the two kinds of chat participants. The values match the
// senderModel/receiverModel strings used on the wire.
type Role string

const (
	RoleClient Role = "User"
	RoleVendor Role = "Vendor"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleVendor
}

// Counter returns the role on the other side of a conversation.
func (r Role) Counter() Role {
	if r == RoleVendor {
		return RoleClient
	}
	return RoleVendor
}

type Message struct {
	ID             string    `json:"_id,omitempty"`
	ChatID         string    `json:"chatId"`
	MessageContent string    `json:"messageContent"`
	SenderID       string    `json:"senderId"`
	SenderModel    Role      `json:"senderModel"`
	SendedTime     time.Time `json:"sendedTime"`
	Seen           bool      `json:"seen"`
}

type Participant struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"profileImage,omitempty"`
	Role   Role   `json:"role"`
}

// Chat is the persisted conversation between one client and one vendor.
type Chat struct {
	ID            string    `json:"_id"`
	ClientID      string    `json:"senderId"`
	VendorID      string    `json:"receiverId"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type ChatSummary struct {
	Chat
	Client      Participant `json:"client"`
	Vendor      Participant `json:"vendor"`
	UnreadCount int         `json:"unreadCount"`
}

// Counterpart resolves the participant that is not selfID. Participants are
// stored as client/vendor sides regardless of who is asking.
func (s ChatSummary) Counterpart(selfID string) Participant {
	if s.ClientID == selfID {
		return s.Vendor
	}
	return s.Client
}

func (s ChatSummary) Includes(userID string) bool {
	return s.ClientID == userID || s.VendorID == userID
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func (p PaginationMeta) HasMore() bool {
	return p.Page < p.TotalPages
}
