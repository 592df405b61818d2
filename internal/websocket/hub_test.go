package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/services"
)

type fakeConn struct {
	inbox     chan []byte
	outbox    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:  make(chan []byte, 16),
		outbox: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case payload := <-f.inbox:
		return websocket.TextMessage, payload, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return io.ErrClosedPipe
	default:
	}
	f.outbox <- data
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

type stubChats struct {
	mu         sync.Mutex
	registered []services.Actor
	sendErr    error
	seen       []string
	seenErr    error
}

func (s *stubChats) RegisterParticipant(_ context.Context, actor services.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = append(s.registered, actor)
	return nil
}

func (s *stubChats) SendMessage(_ context.Context, actor services.Actor, input services.SendMessageInput) (*services.ChatDelivery, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &services.ChatDelivery{
		Chat: &models.Chat{ID: "c1"},
		Message: &models.Message{
			ID:             "m1",
			ChatID:         "c1",
			MessageContent: input.Content,
			SenderID:       actor.ID,
			SenderModel:    actor.Role,
			SendedTime:     input.SentAt,
		},
		RecipientID:    input.ReceiverID,
		RecipientModel: input.ReceiverModel,
	}, nil
}

func (s *stubChats) MarkSeen(_ context.Context, _ services.Actor, _ string, _ []string) ([]string, error) {
	return s.seen, s.seenErr
}

type stubNotifications struct {
	unread []models.Notification
}

func (s *stubNotifications) NotifyMessage(_ context.Context, from services.Actor, recipientID string, model models.Role) (*models.Notification, error) {
	return &models.Notification{
		ID:            "n-new",
		From:          models.Actor{ID: from.ID, Name: from.Name},
		Message:       "New message from " + from.Name,
		UserID:        recipientID,
		ReceiverModel: model,
	}, nil
}

func (s *stubNotifications) Unread(context.Context, string) ([]models.Notification, error) {
	return s.unread, nil
}

func (s *stubNotifications) MarkRead(_ context.Context, userID, id string) (*models.Notification, error) {
	if id != "n1" {
		return nil, services.ErrNotFound
	}
	return &models.Notification{ID: id, UserID: userID, Read: true}, nil
}

func (s *stubNotifications) Delete(_ context.Context, _, id string) error {
	if id != "n1" {
		return services.ErrNotFound
	}
	return nil
}

type hubHarness struct {
	hub           *Hub
	chats         *stubChats
	notifications *stubNotifications
	ctx           context.Context
}

func newHubHarness(t *testing.T) *hubHarness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	chats := &stubChats{}
	notifications := &stubNotifications{}
	hub := NewHub(chats, notifications, zerolog.Nop())
	go hub.Run(ctx)

	return &hubHarness{hub: hub, chats: chats, notifications: notifications, ctx: ctx}
}

func (h *hubHarness) connect(t *testing.T, actor services.Actor) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	client := NewClient(h.hub, conn, actor)
	if err := h.hub.Register(client); err != nil {
		t.Fatalf("Register: %v", err)
	}
	go client.WritePump()
	go client.ReadPump(h.ctx)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

var (
	asha  = services.Actor{ID: "u1", Name: "Asha", Role: models.RoleClient}
	ravi  = services.Actor{ID: "u2", Name: "Ravi", Role: models.RoleClient}
	venue = services.Actor{ID: "v1", Name: "Lakeside Hall", Role: models.RoleVendor}
)

func send(t *testing.T, conn *fakeConn, event string, payload any, ackID int64) {
	t.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	env.AckID = ackID
	encoded, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	conn.inbox <- encoded
}

func next(t *testing.T, conn *fakeConn) protocol.Envelope {
	t.Helper()
	select {
	case payload := <-conn.outbox:
		var env protocol.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
	return protocol.Envelope{}
}

func expectSilence(t *testing.T, conn *fakeConn) {
	t.Helper()
	select {
	case payload := <-conn.outbox:
		t.Fatalf("unexpected frame: %s", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func expectAck(t *testing.T, conn *fakeConn, ackID int64) protocol.Envelope {
	t.Helper()
	env := next(t, conn)
	if env.Event != protocol.EventAck || env.AckID != ackID {
		t.Fatalf("expected ack %d, got %s/%d", ackID, env.Event, env.AckID)
	}
	return env
}

func expectAckError(t *testing.T, conn *fakeConn, ackID int64, message string) {
	t.Helper()
	env := expectAck(t, conn, ackID)
	ackErr, ok := protocol.ParseAckError(env.Data)
	if !ok || ackErr.Message != message {
		t.Fatalf("expected ack error %q, got %s", message, env.Data)
	}
}

func join(t *testing.T, conn *fakeConn, roomID, counterpartID string, ackID int64) {
	t.Helper()
	send(t, conn, protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomID: roomID, CounterpartID: counterpartID}, ackID)
	env := expectAck(t, conn, ackID)
	if _, failed := protocol.ParseAckError(env.Data); failed {
		t.Fatalf("join %s failed: %s", roomID, env.Data)
	}
}

func TestRegisterAcksUnreadNotifications(t *testing.T) {
	h := newHubHarness(t)
	h.notifications.unread = []models.Notification{{ID: "n1", Message: "New message from Lakeside Hall"}}
	conn := h.connect(t, services.Actor{ID: "u1", Role: models.RoleClient})

	send(t, conn, protocol.EventRegister, protocol.RegisterPayload{UserID: "u1", Name: "Asha"}, 1)
	env := expectAck(t, conn, 1)

	var pending []models.Notification
	if err := env.Decode(&pending); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "n1" {
		t.Fatalf("unexpected pending notifications: %+v", pending)
	}

	h.chats.mu.Lock()
	registered := h.chats.registered
	h.chats.mu.Unlock()
	if len(registered) != 1 || registered[0].Name != "Asha" {
		t.Fatalf("unexpected registered participants: %+v", registered)
	}

	send(t, conn, protocol.EventRegister, protocol.RegisterPayload{UserID: "u9"}, 2)
	expectAckError(t, conn, 2, "user does not match token")
}

func TestRegisterAcksEmptyListWithoutNotifications(t *testing.T) {
	h := newHubHarness(t)
	conn := h.connect(t, asha)

	send(t, conn, protocol.EventRegister, protocol.RegisterPayload{UserID: "u1"}, 1)
	env := expectAck(t, conn, 1)
	if string(env.Data) != "[]" {
		t.Fatalf("expected empty list, got %s", env.Data)
	}
}

func TestSendMessageFansOutToRoom(t *testing.T) {
	h := newHubHarness(t)
	client := h.connect(t, asha)
	vendor := h.connect(t, venue)
	other := h.connect(t, ravi)

	join(t, client, "u1v1", "v1", 1)
	join(t, vendor, "u1v1", "u1", 1)
	join(t, other, "u2v1", "v1", 1)

	sentAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	send(t, client, protocol.EventSendMessage, protocol.SendMessagePayload{
		SendMessage: protocol.OutgoingMessage{
			MessageContent: "Is the hall free on Friday?",
			SenderID:       "u1",
			SenderModel:    models.RoleClient,
			SendedTime:     sentAt,
		},
		RoomID:        "u1v1",
		ReceiverID:    "v1",
		ReceiverModel: models.RoleVendor,
	}, 2)

	ack := expectAck(t, client, 2)
	var stored models.Message
	if err := ack.Decode(&stored); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if stored.ID != "m1" || stored.ChatID != "c1" || !stored.SendedTime.Equal(sentAt) {
		t.Fatalf("unexpected ack message: %+v", stored)
	}

	received := next(t, vendor)
	if received.Event != protocol.EventReceiveMessage {
		t.Fatalf("expected receiveMessage, got %s", received.Event)
	}
	var pushed models.Message
	if err := received.Decode(&pushed); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pushed.ID != "m1" || pushed.SenderID != "u1" {
		t.Fatalf("unexpected pushed message: %+v", pushed)
	}

	notification := next(t, vendor)
	if notification.Event != protocol.EventNotification {
		t.Fatalf("expected notification, got %s", notification.Event)
	}
	var n models.Notification
	if err := notification.Decode(&n); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n.UserID != "v1" || n.From.ID != "u1" {
		t.Fatalf("unexpected notification: %+v", n)
	}

	expectSilence(t, client)
	expectSilence(t, other)
}

func TestSendMessageErrorIsAcked(t *testing.T) {
	h := newHubHarness(t)
	h.chats.sendErr = services.ErrInvalidInput
	client := h.connect(t, asha)
	vendor := h.connect(t, venue)
	join(t, vendor, "u1v1", "u1", 1)

	send(t, client, protocol.EventSendMessage, protocol.SendMessagePayload{
		SendMessage:   protocol.OutgoingMessage{MessageContent: " ", SenderID: "u1", SenderModel: models.RoleClient},
		RoomID:        "u1v1",
		ReceiverID:    "v1",
		ReceiverModel: models.RoleVendor,
	}, 7)

	expectAckError(t, client, 7, "invalid message")
	expectSilence(t, vendor)
}

func TestSendMessageRejectsSpoofedSender(t *testing.T) {
	h := newHubHarness(t)
	client := h.connect(t, asha)

	send(t, client, protocol.EventSendMessage, protocol.SendMessagePayload{
		SendMessage:   protocol.OutgoingMessage{MessageContent: "hi", SenderID: "u2", SenderModel: models.RoleClient},
		RoomID:        "u2v1",
		ReceiverID:    "v1",
		ReceiverModel: models.RoleVendor,
	}, 1)
	expectAckError(t, client, 1, "sender does not match token")

	send(t, client, protocol.EventSendMessage, protocol.SendMessagePayload{
		SendMessage:   protocol.OutgoingMessage{MessageContent: "hi", SenderID: "u1", SenderModel: models.RoleClient},
		RoomID:        "u2v1",
		ReceiverID:    "v1",
		ReceiverModel: models.RoleVendor,
	}, 2)
	expectAckError(t, client, 2, "invalid room")
}

func TestJoinRoomRejectsForeignRoom(t *testing.T) {
	h := newHubHarness(t)
	conn := h.connect(t, asha)

	send(t, conn, protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomID: "u2v1", CounterpartID: "v1"}, 1)
	expectAckError(t, conn, 1, "not a member of this room")

	send(t, conn, protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomID: "u1v1"}, 2)
	expectAckError(t, conn, 2, "not a member of this room")

	send(t, conn, protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomID: "u1u1", CounterpartID: "u1"}, 3)
	expectAckError(t, conn, 3, "not a member of this room")
}

func TestCollidingRoomKeysStayApart(t *testing.T) {
	h := newHubHarness(t)
	a := h.connect(t, services.Actor{ID: "a", Role: models.RoleClient})
	bc := h.connect(t, services.Actor{ID: "bc", Role: models.RoleVendor})
	ab := h.connect(t, services.Actor{ID: "ab", Role: models.RoleClient})

	join(t, a, "abc", "bc", 1)
	join(t, bc, "abc", "a", 1)
	join(t, ab, "abc", "c", 1)

	send(t, a, protocol.EventTyping, protocol.TypingPayload{Username: "A", RoomID: "abc"}, 0)
	if env := next(t, bc); env.Event != protocol.EventTyping {
		t.Fatalf("expected typing, got %s", env.Event)
	}
	expectSilence(t, ab)
}

func TestRoomEventsRequireJoinedRoom(t *testing.T) {
	h := newHubHarness(t)
	h.chats.seen = []string{"m1"}
	client := h.connect(t, asha)
	vendor := h.connect(t, venue)
	join(t, vendor, "u1v1", "u1", 1)

	send(t, client, protocol.EventTyping, protocol.TypingPayload{Username: "Asha", RoomID: "u1v1"}, 0)
	expectSilence(t, vendor)

	send(t, client, protocol.EventMessagesSeen, protocol.MessagesSeenPayload{
		ChatID:     "c1",
		RoomID:     "u1v1",
		MessageIDs: []string{"m1"},
	}, 2)
	expectAckError(t, client, 2, "not a member of this room")
	expectSilence(t, vendor)

	join(t, client, "u1v1", "v1", 3)
	send(t, client, protocol.EventMessagesSeen, protocol.MessagesSeenPayload{ChatID: "c1", RoomID: "u2v1", MessageIDs: []string{"m1"}}, 4)
	expectAckError(t, client, 4, "not a member of this room")
	expectSilence(t, vendor)
}

func TestJoinRoomLeavesPreviousRoom(t *testing.T) {
	h := newHubHarness(t)
	client := h.connect(t, asha)
	other := h.connect(t, ravi)
	vendor := h.connect(t, venue)

	join(t, client, "u1v1", "v1", 1)
	join(t, other, "u2v1", "v1", 1)
	join(t, vendor, "u1v1", "u1", 1)
	join(t, vendor, "u2v1", "u2", 2)

	send(t, client, protocol.EventTyping, protocol.TypingPayload{Username: "Asha", RoomID: "u1v1"}, 0)
	expectSilence(t, vendor)

	send(t, other, protocol.EventTyping, protocol.TypingPayload{RoomID: "u2v1"}, 0)
	env := next(t, vendor)
	if env.Event != protocol.EventTyping {
		t.Fatalf("expected typing, got %s", env.Event)
	}
	var typing protocol.TypingPayload
	if err := env.Decode(&typing); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if typing.Username != "Ravi" || typing.RoomID != "u2v1" {
		t.Fatalf("unexpected typing payload: %+v", typing)
	}

	send(t, other, protocol.EventStoppedTyping, protocol.StoppedTypingPayload{RoomID: "u2v1"}, 0)
	if env := next(t, vendor); env.Event != protocol.EventStoppedTyping {
		t.Fatalf("expected stopped-typing, got %s", env.Event)
	}
	expectSilence(t, other)
}

func TestMessagesSeenBroadcastsUpdate(t *testing.T) {
	h := newHubHarness(t)
	h.chats.seen = []string{"m1"}
	client := h.connect(t, asha)
	vendor := h.connect(t, venue)
	join(t, client, "u1v1", "v1", 1)
	join(t, vendor, "u1v1", "u1", 1)

	send(t, vendor, protocol.EventMessagesSeen, protocol.MessagesSeenPayload{
		ChatID:     "c1",
		RoomID:     "u1v1",
		UserID:     "v1",
		MessageIDs: []string{"m1", "m2"},
	}, 0)

	env := next(t, client)
	if env.Event != protocol.EventMessagesSeenUpdate {
		t.Fatalf("expected messagesSeenUpdate, got %s", env.Event)
	}
	var update protocol.MessagesSeenUpdatePayload
	if err := env.Decode(&update); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if update.ChatID != "c1" || update.SeenBy != "v1" || len(update.MessageIDs) != 1 || update.MessageIDs[0] != "m1" {
		t.Fatalf("unexpected update: %+v", update)
	}
}

func TestMessagesSeenWithoutChangesIsQuiet(t *testing.T) {
	h := newHubHarness(t)
	client := h.connect(t, asha)
	vendor := h.connect(t, venue)
	join(t, client, "u1v1", "v1", 1)
	join(t, vendor, "u1v1", "u1", 1)

	send(t, vendor, protocol.EventMessagesSeen, protocol.MessagesSeenPayload{ChatID: "c1", RoomID: "u1v1", MessageIDs: []string{"m9"}}, 0)
	expectSilence(t, client)

	h.chats.seenErr = services.ErrForbidden
	send(t, vendor, protocol.EventMessagesSeen, protocol.MessagesSeenPayload{ChatID: "c1", RoomID: "u1v1", MessageIDs: []string{"m9"}}, 3)
	expectAckError(t, vendor, 3, "failed to mark messages seen")
}

func TestNotificationEvents(t *testing.T) {
	h := newHubHarness(t)
	conn := h.connect(t, asha)

	send(t, conn, protocol.EventMarkNotificationAsRead, protocol.NotificationIDPayload{NotificationID: "n1"}, 1)
	env := expectAck(t, conn, 1)
	var n models.Notification
	if err := env.Decode(&n); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !n.Read || n.UserID != "u1" {
		t.Fatalf("unexpected notification: %+v", n)
	}

	send(t, conn, protocol.EventMarkNotificationAsRead, protocol.NotificationIDPayload{NotificationID: "missing"}, 2)
	expectAckError(t, conn, 2, "notification not found")

	send(t, conn, protocol.EventDeleteNotification, protocol.NotificationIDPayload{NotificationID: "n1"}, 3)
	expectAck(t, conn, 3)

	send(t, conn, protocol.EventDeleteNotification, protocol.NotificationIDPayload{}, 4)
	expectAckError(t, conn, 4, "invalid notification id")
}

func TestUnsupportedEventAndMalformedFrames(t *testing.T) {
	h := newHubHarness(t)
	conn := h.connect(t, asha)

	conn.inbox <- []byte("not json")
	send(t, conn, "shout", nil, 5)
	expectAckError(t, conn, 5, "unsupported event")
}

func TestIsRoomOf(t *testing.T) {
	tests := []struct {
		room  string
		self  string
		other string
		want  bool
	}{
		{room: "u1v1", self: "u1", other: "v1", want: true},
		{room: "u1v1", self: "v1", other: "u1", want: true},
		{room: "u1v1", self: "u2", other: "v1", want: false},
		{room: "u1v1", self: "u1", other: "", want: false},
		{room: "u1u1", self: "u1", other: "u1", want: false},
		{room: "", self: "u1", other: "v1", want: false},
		{room: "abc", self: "ab", other: "bc", want: false},
	}

	for _, tt := range tests {
		if got := isRoomOf(tt.room, tt.self, tt.other); got != tt.want {
			t.Errorf("isRoomOf(%q, %q, %q) = %v, want %v", tt.room, tt.self, tt.other, got, tt.want)
		}
	}

	if pairKey("a", "bc") == pairKey("ab", "c") {
		t.Errorf("pairKey collides for a/bc and ab/c")
	}
	if pairKey("u1", "v1") != pairKey("v1", "u1") {
		t.Errorf("pairKey depends on argument order")
	}
}

func TestHubStopClosesConnections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(&stubChats{}, &stubNotifications{}, zerolog.Nop())
	go hub.Run(ctx)

	conn := newFakeConn()
	client := NewClient(hub, conn, asha)
	if err := hub.Register(client); err != nil {
		t.Fatalf("Register: %v", err)
	}
	go client.WritePump()

	cancel()

	select {
	case <-conn.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("connection not closed after hub stop")
	}

	if err := hub.Register(NewClient(hub, newFakeConn(), ravi)); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected ErrHubClosed, got %v", err)
	}
}
