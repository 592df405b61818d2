// Package chat implements the client side of one-to-one conversations:
// room resolution, message list reconciliation, read receipts and typing
// state, orchestrated by View.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/api"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/clock"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/session"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/socket"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
)

var (
	ErrEmptyMessage = errors.New("chat: empty message")
	ErrUnassignedID = errors.New("chat: gateway ack carries no message id")
)

const (
	defaultPageSize    = 20
	defaultSettleDelay = 500 * time.Millisecond
	registerTimeout    = 10 * time.Second
)

// AckError is returned when the gateway rejects an emitted action.
type AckError struct {
	Message string
}

func (e *AckError) Error() string {
	return "chat: rejected by gateway: " + e.Message
}

// Socket is the part of socket.Manager a view uses.
type Socket interface {
	socket.Emitter
	Open() error
	Connected() bool
	Scope() *socket.Scope
}

type Backend interface {
	ChatLister
	ListMessages(ctx context.Context, chatID string, page, limit int) (api.MessagePage, error)
}

type View struct {
	sock    Socket
	session *session.Store
	backend Backend

	clock       clock.Clock
	logger      zerolog.Logger
	pageSize    int
	quietPeriod time.Duration
	settleDelay time.Duration
	onPending   func([]models.Notification)

	list      *MessageList
	chats     *ChatList
	rooms     *RoomResolver
	tracker   *ReadTracker
	typer     *Typer
	indicator Indicator

	mu          sync.Mutex
	mounted     bool
	scope       *socket.Scope
	ctx         context.Context
	cancel      context.CancelFunc
	counterpart models.Participant
	wg          sync.WaitGroup
}

type Option func(*View)

func WithClock(clk clock.Clock) Option {
	return func(v *View) { v.clock = clk }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(v *View) { v.logger = logger }
}

func WithPageSize(n int) Option {
	return func(v *View) {
		if n > 0 {
			v.pageSize = n
		}
	}
}

func WithQuietPeriod(d time.Duration) Option {
	return func(v *View) { v.quietPeriod = d }
}

func WithSettleDelay(d time.Duration) Option {
	return func(v *View) {
		if d > 0 {
			v.settleDelay = d
		}
	}
}

// WithPendingHandler receives the notifications returned by registration.
func WithPendingHandler(fn func([]models.Notification)) Option {
	return func(v *View) { v.onPending = fn }
}

func NewView(sock Socket, store *session.Store, backend Backend, opts ...Option) *View {
	v := &View{
		sock:        sock,
		session:     store,
		backend:     backend,
		clock:       clock.Real{},
		logger:      zerolog.Nop(),
		pageSize:    defaultPageSize,
		quietPeriod: DefaultQuietPeriod,
		settleDelay: defaultSettleDelay,
	}
	for _, opt := range opts {
		opt(v)
	}

	v.list = NewMessageList()
	v.chats = NewChatList(backend, 0)
	v.rooms = NewRoomResolver(store.Identity().UserID)
	v.tracker = NewReadTracker(sock, v.list.Messages, v.clock, v.settleDelay, v.logger)
	v.typer = NewTyper(sock, v.clock, v.quietPeriod, v.logger)
	return v
}

// Mount attaches the view's listeners and opens the shared connection. When
// the connection is already up, registration happens right away; otherwise
// it happens on connect.
func (v *View) Mount(ctx context.Context) error {
	identity := v.session.Identity()
	if identity.UserID == "" {
		return session.ErrAnonymous
	}

	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return nil
	}
	v.mounted = true
	v.ctx, v.cancel = context.WithCancel(context.Background())
	v.scope = v.sock.Scope()
	scope := v.scope
	v.mu.Unlock()

	v.rooms.SetSelf(identity.UserID)

	scope.On(protocol.EventConnect, func(protocol.Envelope) { v.spawn(v.sync) })
	scope.On(protocol.EventReceiveMessage, v.onReceive)
	scope.On(protocol.EventMessagesSeenUpdate, v.onSeenUpdate)
	scope.On(protocol.EventTyping, v.onTyping)
	scope.On(protocol.EventStoppedTyping, v.onStoppedTyping)

	if err := v.sock.Open(); err != nil {
		v.Unmount()
		return err
	}
	if v.sock.Connected() {
		v.spawn(v.sync)
	}
	return v.chats.Load(ctx)
}

// Unmount detaches every listener this view attached and stops its timers.
func (v *View) Unmount() {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = false
	scope := v.scope
	cancel := v.cancel
	v.scope = nil
	v.mu.Unlock()

	scope.Close()
	cancel()
	v.wg.Wait()
	v.typer.Stop()
	v.tracker.Stop()
}

// OpenChat makes chatID the active conversation. An empty chatID opens a
// conversation that has no messages yet.
func (v *View) OpenChat(ctx context.Context, chatID string, counterpart models.Participant) error {
	identity := v.session.Identity()
	if counterpart.ID == "" {
		return ErrNoActiveChat
	}

	room, changed := v.rooms.Resolve(counterpart.ID)
	v.mu.Lock()
	v.counterpart = counterpart
	v.mu.Unlock()

	v.list.Reset(chatID)
	v.tracker.Reset(chatID, room, identity.UserID)
	v.indicator.Reset(room)
	v.typer.SetRoom(room, identity.Name)

	if changed && v.sock.Connected() {
		v.joinRoom(ctx, room)
	}
	if chatID == "" {
		return nil
	}
	return v.loadPage(ctx)
}

// LoadOlder fetches the next page of history. It is a no-op when a fetch is
// already running or there is nothing left to load.
func (v *View) LoadOlder(ctx context.Context) error {
	err := v.loadPage(ctx)
	if errors.Is(err, ErrPageInFlight) || errors.Is(err, ErrNoMorePages) {
		return nil
	}
	return err
}

// Send emits the message and appends it once the gateway acknowledges it.
// Nothing is appended when the gateway rejects it.
func (v *View) Send(ctx context.Context, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}

	identity := v.session.Identity()
	v.mu.Lock()
	counterpart := v.counterpart
	v.mu.Unlock()
	if counterpart.ID == "" {
		return models.Message{}, ErrNoActiveChat
	}

	receiverModel := counterpart.Role
	if !receiverModel.Valid() {
		receiverModel = identity.Role.Counter()
	}
	payload := protocol.SendMessagePayload{
		SendMessage: protocol.OutgoingMessage{
			MessageContent: text,
			SenderID:       identity.UserID,
			SenderModel:    identity.Role,
			SendedTime:     v.clock.Now(),
		},
		RoomID:        v.rooms.Room(),
		ReceiverID:    counterpart.ID,
		ReceiverModel: receiverModel,
	}

	reply, err := v.sock.EmitWithAck(ctx, protocol.EventSendMessage, payload)
	if err != nil {
		return models.Message{}, err
	}
	if ackErr, ok := protocol.ParseAckError(reply); ok {
		return models.Message{}, &AckError{Message: ackErr.Message}
	}

	var msg models.Message
	if err := (protocol.Envelope{Data: reply}).Decode(&msg); err != nil {
		return models.Message{}, err
	}
	if msg.ID == "" {
		return models.Message{}, ErrUnassignedID
	}
	if v.list.Adopt(msg.ChatID) {
		v.tracker.Adopt(msg.ChatID)
	}
	v.list.Push(msg)
	v.recordLatest(msg, counterpart)
	v.typer.Stop()
	return msg, nil
}

func (v *View) Input(text string) {
	v.typer.Input(text)
}

func (v *View) Observe(ctx context.Context, batch []Visibility) []string {
	return v.tracker.Observe(ctx, batch)
}

func (v *View) SetVisible(visible bool) {
	v.tracker.SetVisible(visible)
}

func (v *View) Messages() []models.Message {
	return v.list.Messages()
}

func (v *View) State() LoadState {
	return v.list.State()
}

// Err returns the last history fetch error, if any.
func (v *View) Err() error {
	return v.list.Err()
}

func (v *View) ShouldScrollToBottom() bool {
	return v.list.ShouldScrollToBottom()
}

// TypingUser is the counterpart currently typing in the active room.
func (v *View) TypingUser() string {
	return v.indicator.User()
}

func (v *View) Room() string {
	return v.rooms.Room()
}

func (v *View) ChatID() string {
	return v.list.ChatID()
}

func (v *View) Chats() *ChatList {
	return v.chats
}

func (v *View) loadPage(ctx context.Context) error {
	req, err := v.list.BeginPage()
	if err != nil {
		return err
	}

	page, err := v.backend.ListMessages(ctx, req.ChatID, req.Page, v.pageSize)
	if err != nil {
		if staleErr := v.list.FailPage(req, err); staleErr != nil {
			return staleErr
		}
		v.logger.Warn().Err(err).Str("chat_id", req.ChatID).Int("page", req.Page).Msg("history fetch failed")
		return err
	}
	return v.list.ApplyPage(req, page.Messages, page.HasMore)
}

// sync registers the user and re-joins the active room. It runs on every
// connect, including reconnects.
func (v *View) sync(ctx context.Context) {
	identity := v.session.Identity()
	if identity.UserID == "" {
		return
	}

	regCtx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()
	pending, err := session.Register(regCtx, v.sock, identity)
	if err != nil {
		v.logger.Warn().Err(err).Msg("register failed")
	} else if v.onPending != nil {
		v.onPending(pending)
	}

	if room := v.rooms.Room(); room != "" {
		v.joinRoom(ctx, room)
	}
}

func (v *View) joinRoom(ctx context.Context, room string) {
	payload := protocol.JoinRoomPayload{RoomID: room, CounterpartID: v.rooms.Counterpart()}
	if err := v.sock.Emit(ctx, protocol.EventJoinRoom, payload); err != nil {
		v.logger.Warn().Err(err).Str("room_id", room).Msg("join room failed")
	}
}

func (v *View) spawn(fn func(ctx context.Context)) {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	ctx := v.ctx
	v.wg.Add(1)
	v.mu.Unlock()

	go func() {
		defer v.wg.Done()
		fn(ctx)
	}()
}

func (v *View) onReceive(env protocol.Envelope) {
	var msg models.Message
	if err := env.Decode(&msg); err != nil {
		v.logger.Warn().Err(err).Msg("decode receiveMessage")
		return
	}

	v.mu.Lock()
	counterpart := v.counterpart
	v.mu.Unlock()
	if counterpart.ID != "" && msg.SenderID == counterpart.ID && v.list.Adopt(msg.ChatID) {
		v.tracker.Adopt(msg.ChatID)
	}

	v.list.Push(msg)
	if msg.SenderID != counterpart.ID {
		counterpart = models.Participant{ID: msg.SenderID, Role: msg.SenderModel}
	}
	v.recordLatest(msg, counterpart)
}

// recordLatest moves the message's chat to the top of the sidebar, adding
// the chat when this is its first message.
func (v *View) recordLatest(msg models.Message, counterpart models.Participant) {
	if msg.ChatID == "" || v.chats.Apply(msg) {
		return
	}
	identity := v.session.Identity()
	self := models.Participant{ID: identity.UserID, Name: identity.Name, Role: identity.Role}
	summary := models.ChatSummary{Chat: models.Chat{
		ID:            msg.ChatID,
		LastMessage:   msg.MessageContent,
		LastMessageAt: msg.SendedTime,
		CreatedAt:     msg.SendedTime,
		UpdatedAt:     msg.SendedTime,
	}}
	summary.Client, summary.Vendor = self, counterpart
	if identity.Role == models.RoleVendor || counterpart.Role == models.RoleClient {
		summary.Client, summary.Vendor = counterpart, self
	}
	summary.ClientID, summary.VendorID = summary.Client.ID, summary.Vendor.ID
	v.chats.Add(summary)
}

func (v *View) onSeenUpdate(env protocol.Envelope) {
	var update protocol.MessagesSeenUpdatePayload
	if err := env.Decode(&update); err != nil {
		v.logger.Warn().Err(err).Msg("decode messagesSeenUpdate")
		return
	}

	selfID := v.session.Identity().UserID
	if update.ChatID != v.list.ChatID() || update.SeenBy == selfID {
		return
	}
	v.list.MarkOwnSeen(update.MessageIDs, selfID)
}

func (v *View) onTyping(env protocol.Envelope) {
	var p protocol.TypingPayload
	if err := env.Decode(&p); err != nil {
		return
	}
	v.indicator.Typing(p)
}

func (v *View) onStoppedTyping(env protocol.Envelope) {
	var p protocol.StoppedTypingPayload
	if err := env.Decode(&p); err != nil {
		return
	}
	v.indicator.Stopped(p)
}
