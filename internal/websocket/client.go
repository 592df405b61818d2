package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/metrics"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/services"
)

const (
	sendBuffer   = 32
	eventTimeout = 10 * time.Second
)

var errSlowClient = errors.New("client send buffer full")

// Conn is the part of a websocket connection the pumps use. The fiber
// websocket connection satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type ChatService interface {
	RegisterParticipant(ctx context.Context, actor services.Actor) error
	SendMessage(ctx context.Context, actor services.Actor, input services.SendMessageInput) (*services.ChatDelivery, error)
	MarkSeen(ctx context.Context, actor services.Actor, chatID string, messageIDs []string) ([]string, error)
}

type NotificationService interface {
	NotifyMessage(ctx context.Context, from services.Actor, recipientID string, recipientModel models.Role) (*models.Notification, error)
	Unread(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) (*models.Notification, error)
	Delete(ctx context.Context, userID, id string) error
}

// Client is one socket connection of an authenticated user.
type Client struct {
	ID    string
	hub   *Hub
	conn  Conn
	actor services.Actor

	// room is only touched by the hub goroutine.
	room string
	// joined and joinedPair are only touched by the read pump. joined is the
	// wire room id, joinedPair the hub room it maps to.
	joined     string
	joinedPair string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(hub *Hub, conn Conn, actor services.Actor) *Client {
	return &Client{
		ID:    uuid.NewString(),
		hub:   hub,
		conn:  conn,
		actor: actor,
		send:  make(chan []byte, sendBuffer),
	}
}

func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump handles inbound envelopes one at a time until the connection
// fails. Acks are therefore written in request order.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.hub.logger.Debug().Err(err).Str("conn", c.ID).Msg("discarding malformed frame")
			continue
		}

		eventCtx, cancel := context.WithTimeout(ctx, eventTimeout)
		err = c.handle(eventCtx, env)
		cancel()
		if err != nil {
			c.hub.logger.Warn().Err(err).Str("conn", c.ID).Msg("closing socket")
			return
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) handle(ctx context.Context, env protocol.Envelope) error {
	metrics.SocketEvents.WithLabelValues(eventLabel(env.Event)).Inc()

	switch env.Event {
	case protocol.EventRegister:
		return c.onRegister(ctx, env)
	case protocol.EventJoinRoom:
		return c.onJoinRoom(env)
	case protocol.EventSendMessage:
		return c.onSendMessage(ctx, env)
	case protocol.EventMessagesSeen:
		return c.onMessagesSeen(ctx, env)
	case protocol.EventTyping:
		return c.onTyping(env)
	case protocol.EventStoppedTyping:
		return c.onStoppedTyping(env)
	case protocol.EventMarkNotificationAsRead:
		return c.onMarkNotificationRead(ctx, env)
	case protocol.EventDeleteNotification:
		return c.onDeleteNotification(ctx, env)
	default:
		return c.fail(env.AckID, "unsupported event")
	}
}

func (c *Client) onRegister(ctx context.Context, env protocol.Envelope) error {
	var payload protocol.RegisterPayload
	if err := env.Decode(&payload); err != nil || payload.UserID == "" {
		return c.fail(env.AckID, "invalid register payload")
	}
	if payload.UserID != c.actor.ID {
		return c.fail(env.AckID, "user does not match token")
	}
	if name := strings.TrimSpace(payload.Name); name != "" {
		c.actor.Name = name
	}

	if err := c.hub.chats.RegisterParticipant(ctx, c.actor); err != nil {
		c.hub.logger.Error().Err(err).Str("user", c.actor.ID).Msg("register participant")
		return c.fail(env.AckID, "registration failed")
	}

	unread, err := c.hub.notifications.Unread(ctx, c.actor.ID)
	if err != nil {
		c.hub.logger.Error().Err(err).Str("user", c.actor.ID).Msg("load unread notifications")
	}
	if unread == nil {
		unread = []models.Notification{}
	}
	return c.ack(env.AckID, unread)
}

func (c *Client) onJoinRoom(env protocol.Envelope) error {
	var payload protocol.JoinRoomPayload
	if err := env.Decode(&payload); err != nil || payload.RoomID == "" {
		return c.fail(env.AckID, "invalid room")
	}
	if !isRoomOf(payload.RoomID, c.actor.ID, payload.CounterpartID) {
		return c.fail(env.AckID, "not a member of this room")
	}

	pair := pairKey(c.actor.ID, payload.CounterpartID)
	if err := c.hub.Join(c, pair); err != nil {
		return err
	}
	c.joined, c.joinedPair = payload.RoomID, pair
	return c.ack(env.AckID, payload)
}

func (c *Client) onSendMessage(ctx context.Context, env protocol.Envelope) error {
	var payload protocol.SendMessagePayload
	if err := env.Decode(&payload); err != nil {
		return c.fail(env.AckID, "invalid message payload")
	}
	outgoing := payload.SendMessage
	if outgoing.SenderID != "" && outgoing.SenderID != c.actor.ID {
		return c.fail(env.AckID, "sender does not match token")
	}
	if outgoing.SenderModel != "" && outgoing.SenderModel != c.actor.Role {
		return c.fail(env.AckID, "sender model does not match token")
	}
	if !isRoomOf(payload.RoomID, c.actor.ID, payload.ReceiverID) {
		return c.fail(env.AckID, "invalid room")
	}

	delivery, err := c.hub.chats.SendMessage(ctx, c.actor, services.SendMessageInput{
		Content:       outgoing.MessageContent,
		SentAt:        outgoing.SendedTime,
		ReceiverID:    payload.ReceiverID,
		ReceiverModel: payload.ReceiverModel,
	})
	if err != nil {
		return c.fail(env.AckID, sendErrorMessage(c, err))
	}
	metrics.MessagesSent.Inc()

	if err := c.ack(env.AckID, delivery.Message); err != nil {
		return err
	}
	if err := c.hub.PublishRoom(pairKey(c.actor.ID, payload.ReceiverID), c, protocol.EventReceiveMessage, delivery.Message); err != nil {
		return err
	}

	notification, err := c.hub.notifications.NotifyMessage(ctx, c.actor, delivery.RecipientID, delivery.RecipientModel)
	if err != nil {
		c.hub.logger.Error().Err(err).Str("user", delivery.RecipientID).Msg("create message notification")
		return nil
	}
	metrics.NotificationsCreated.Inc()
	return c.hub.PublishUser(delivery.RecipientID, protocol.EventNotification, notification)
}

func (c *Client) onMessagesSeen(ctx context.Context, env protocol.Envelope) error {
	var payload protocol.MessagesSeenPayload
	if err := env.Decode(&payload); err != nil || payload.ChatID == "" {
		return c.fail(env.AckID, "invalid seen payload")
	}
	if payload.UserID != "" && payload.UserID != c.actor.ID {
		return c.fail(env.AckID, "user does not match token")
	}
	if payload.RoomID != "" && payload.RoomID != c.joined {
		return c.fail(env.AckID, "not a member of this room")
	}

	changed, err := c.hub.chats.MarkSeen(ctx, c.actor, payload.ChatID, payload.MessageIDs)
	if err != nil {
		c.hub.logger.Warn().Err(err).Str("chat", payload.ChatID).Msg("mark messages seen")
		return c.fail(env.AckID, "failed to mark messages seen")
	}
	if err := c.ack(env.AckID, changed); err != nil {
		return err
	}
	if len(changed) == 0 || payload.RoomID == "" {
		return nil
	}
	metrics.MessagesSeen.Add(float64(len(changed)))

	return c.hub.PublishRoom(c.joinedPair, nil, protocol.EventMessagesSeenUpdate, protocol.MessagesSeenUpdatePayload{
		ChatID:     payload.ChatID,
		SeenBy:     c.actor.ID,
		MessageIDs: changed,
	})
}

func (c *Client) onTyping(env protocol.Envelope) error {
	var payload protocol.TypingPayload
	if err := env.Decode(&payload); err != nil || payload.RoomID == "" || payload.RoomID != c.joined {
		return nil
	}
	if payload.Username == "" {
		payload.Username = c.actor.Name
	}
	return c.hub.PublishRoom(c.joinedPair, c, protocol.EventTyping, payload)
}

func (c *Client) onStoppedTyping(env protocol.Envelope) error {
	var payload protocol.StoppedTypingPayload
	if err := env.Decode(&payload); err != nil || payload.RoomID == "" || payload.RoomID != c.joined {
		return nil
	}
	return c.hub.PublishRoom(c.joinedPair, c, protocol.EventStoppedTyping, payload)
}

func (c *Client) onMarkNotificationRead(ctx context.Context, env protocol.Envelope) error {
	var payload protocol.NotificationIDPayload
	if err := env.Decode(&payload); err != nil || payload.NotificationID == "" {
		return c.fail(env.AckID, "invalid notification id")
	}

	notification, err := c.hub.notifications.MarkRead(ctx, c.actor.ID, payload.NotificationID)
	if err != nil {
		return c.fail(env.AckID, notificationErrorMessage(err))
	}
	return c.ack(env.AckID, notification)
}

func (c *Client) onDeleteNotification(ctx context.Context, env protocol.Envelope) error {
	var payload protocol.NotificationIDPayload
	if err := env.Decode(&payload); err != nil || payload.NotificationID == "" {
		return c.fail(env.AckID, "invalid notification id")
	}

	if err := c.hub.notifications.Delete(ctx, c.actor.ID, payload.NotificationID); err != nil {
		return c.fail(env.AckID, notificationErrorMessage(err))
	}
	return c.ack(env.AckID, payload)
}

// ack replies to an envelope that asked for one. Envelopes without an ack id
// get no reply.
func (c *Client) ack(ackID int64, payload any) error {
	if ackID == 0 {
		return nil
	}
	encoded, err := encodeEvent(protocol.EventAck, payload, ackID)
	if err != nil {
		return err
	}
	if !c.enqueue(encoded) {
		return errSlowClient
	}
	return nil
}

func (c *Client) fail(ackID int64, message string) error {
	return c.ack(ackID, protocol.NewAckError(message))
}

// isRoomOf reports whether roomID is the room key of selfID and otherID.
func isRoomOf(roomID, selfID, otherID string) bool {
	return roomID != "" && otherID != "" && selfID != otherID && protocol.RoomKey(selfID, otherID) == roomID
}

// pairKey names the hub room of two participants. Wire room keys are plain
// concatenations and can collide across pairs; the separator keeps hub rooms
// distinct.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

func sendErrorMessage(c *Client, err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return "invalid message"
	case errors.Is(err, services.ErrForbidden):
		return "forbidden"
	default:
		c.hub.logger.Error().Err(err).Str("user", c.actor.ID).Msg("send message")
		return "failed to send message"
	}
}

func notificationErrorMessage(err error) string {
	if errors.Is(err, services.ErrNotFound) {
		return "notification not found"
	}
	return "failed to update notification"
}

func eventLabel(event string) string {
	switch event {
	case protocol.EventRegister, protocol.EventJoinRoom, protocol.EventSendMessage,
		protocol.EventMessagesSeen, protocol.EventTyping, protocol.EventStoppedTyping,
		protocol.EventMarkNotificationAsRead, protocol.EventDeleteNotification:
		return event
	}
	return "unknown"
}
