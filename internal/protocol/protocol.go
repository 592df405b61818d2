// Package protocol defines the realtime event contract shared by the gateway
// and the client SDK. Every frame on the socket is a JSON Envelope.
package protocol

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
)

const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"

	EventRegister               = "register"
	EventJoinRoom               = "joinRoom"
	EventSendMessage            = "sendMessage"
	EventReceiveMessage         = "receiveMessage"
	EventMessagesSeen           = "messagesSeen"
	EventMessagesSeenUpdate     = "messagesSeenUpdate"
	EventTyping                 = "typing"
	EventStoppedTyping          = "stopped-typing"
	EventNotification           = "notification"
	EventMarkNotificationAsRead = "markNotificationAsRead"
	EventDeleteNotification     = "deleteNotification"

	// EventAck carries the reply to an envelope that asked for one.
	EventAck = "ack"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID int64           `json:"ackId,omitempty"`
}

func NewEnvelope(event string, payload any) (Envelope, error) {
	env := Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Data = data
	return env, nil
}

func (e Envelope) Decode(dst any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, dst)
}

type RegisterPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// JoinRoomPayload names the room and the other participant of the pair it
// belongs to. The gateway admits a join only when RoomID is the key of the
// caller and CounterpartID.
type JoinRoomPayload struct {
	RoomID        string `json:"roomId"`
	CounterpartID string `json:"counterpartId,omitempty"`
}

// RoomKey is the room shared by two participants: both ids concatenated in
// lexicographic order, so either side computes the same key.
func RoomKey(a, b string) string {
	if a == "" || b == "" {
		return ""
	}
	if b < a {
		return b + a
	}
	return a + b
}

type OutgoingMessage struct {
	MessageContent string      `json:"messageContent"`
	SenderID       string      `json:"senderId"`
	SenderModel    models.Role `json:"senderModel"`
	SendedTime     time.Time   `json:"sendedTime"`
}

type SendMessagePayload struct {
	SendMessage   OutgoingMessage `json:"sendMessage"`
	RoomID        string          `json:"roomId"`
	ReceiverID    string          `json:"receiverId"`
	ReceiverModel models.Role     `json:"receiverModel"`
}

type MessagesSeenPayload struct {
	ChatID     string   `json:"chatId"`
	RoomID     string   `json:"roomId"`
	UserID     string   `json:"userId"`
	MessageIDs []string `json:"messageIds"`
}

type MessagesSeenUpdatePayload struct {
	ChatID     string   `json:"chatId"`
	SeenBy     string   `json:"seenBy"`
	MessageIDs []string `json:"messageIds"`
}

type TypingPayload struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

type StoppedTypingPayload struct {
	RoomID string `json:"roomId"`
}

type NotificationIDPayload struct {
	NotificationID string `json:"notificationId"`
}

// AckError is the error-shaped acknowledgement. Error is always true on the
// wire so clients can tell it apart from a regular payload.
type AckError struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func NewAckError(message string) AckError {
	return AckError{Error: true, Message: message}
}

// ParseAckError reports whether an ack payload is error-shaped. Any error
// key that is not null, false, zero or an empty string counts. A string error
// doubles as the message when none is given.
func ParseAckError(data json.RawMessage) (AckError, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return AckError{}, false
	}
	var fields struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &fields); err != nil || !truthy(fields.Error) {
		return AckError{}, false
	}
	message := fields.Message
	if message == "" {
		var text string
		if json.Unmarshal(fields.Error, &text) == nil {
			message = text
		}
	}
	return AckError{Error: true, Message: message}, true
}

func truthy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}
