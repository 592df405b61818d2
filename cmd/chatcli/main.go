package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/api"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/chat"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/notifications"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/session"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/socket"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/config"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/logging"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/pkg/utils"
)

const renderInterval = 300 * time.Millisecond

func main() {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, true, os.Stderr)

	identity, err := resolveIdentity(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("PLANZO_TOKEN must hold a gateway token")
	}

	store := session.NewStore()
	store.Dispatch(session.Login{Identity: identity})

	manager := socket.NewManager(
		&socket.WebsocketTransport{URL: cfg.WSURL, Token: cfg.Token},
		socket.WithLogger(logger.With().Str("component", "socket").Logger()),
		socket.WithReconnectDelay(cfg.ReconnectDelay),
	)
	backend := api.NewClient(cfg.APIURL, cfg.Token)

	chatView := chat.NewView(manager, store, backend,
		chat.WithLogger(logger),
		chat.WithQuietPeriod(cfg.TypingQuietPeriod),
		chat.WithSettleDelay(cfg.SeenSettleDelay),
	)
	notificationView := notifications.NewView(manager, store, backend,
		notifications.WithLogger(logger),
		notifications.WithToastDuration(cfg.ToastDuration),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := notificationView.Mount(ctx); err != nil {
		logger.Fatal().Err(err).Msg("mount notifications")
	}
	if err := chatView.Mount(ctx); err != nil {
		logger.Error().Err(err).Msg("load conversations")
	}

	term := &terminal{
		out:     os.Stdout,
		self:    identity,
		chat:    chatView,
		notifs:  notificationView,
		printed: make(map[string]struct{}),
		toasts:  make(map[string]struct{}),
	}
	term.printf("signed in as %s (%s). /help for commands\n", identity.Name, identity.Role)

	go term.watch(ctx)
	term.repl(ctx, os.Stdin)

	stop()
	chatView.Unmount()
	notificationView.Unmount()
	notificationView.Feed().Wait()
	_ = manager.Close()
}

func resolveIdentity(cfg *config.ClientConfig) (session.Identity, error) {
	if cfg.Token == "" {
		return session.Identity{}, errors.New("missing token")
	}
	identity := session.Identity{
		UserID: cfg.UserID,
		Name:   cfg.Name,
		Role:   models.Role(cfg.Role),
		Token:  cfg.Token,
	}

	claims, err := utils.PeekClaims(cfg.Token)
	if err != nil {
		if identity.UserID == "" {
			return session.Identity{}, err
		}
		return identity, nil
	}
	if identity.UserID == "" {
		identity.UserID = claims.UserID
	}
	if identity.Name == "" {
		identity.Name = claims.Name
	}
	if claims.Role != "" {
		identity.Role = models.Role(claims.Role)
	}
	return identity, nil
}

type terminal struct {
	mu     sync.Mutex
	out    io.Writer
	self   session.Identity
	chat   *chat.View
	notifs *notifications.View

	// render state, guarded by mu
	printed   map[string]struct{}
	toasts    map[string]struct{}
	lastTyper string
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) repl(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := t.run(ctx, parseCommand(line)); quit {
				return
			}
		}
	}
}

func (t *terminal) run(ctx context.Context, cmd command) bool {
	switch cmd.name {
	case "quit", "exit":
		return true
	case "help":
		t.printf("%s\n", helpText)
	case "chats":
		t.listChats()
	case "more":
		if err := t.chat.Chats().Load(ctx); err != nil {
			t.printf("could not load conversations: %v\n", err)
		}
		t.listChats()
	case "open":
		chats := t.chat.Chats().Chats()
		i, ok := cmd.index(len(chats))
		if !ok {
			t.printf("usage: /open N (1-%d)\n", len(chats))
			return false
		}
		summary := chats[i]
		t.open(ctx, summary.ID, summary.Counterpart(t.self.UserID))
	case "new":
		if len(cmd.args) == 0 {
			t.printf("usage: /new ID [NAME]\n")
			return false
		}
		name := strings.TrimSpace(strings.TrimPrefix(cmd.text, cmd.args[0]))
		t.open(ctx, "", models.Participant{ID: cmd.args[0], Name: name, Role: t.self.Role.Counter()})
	case "older":
		if err := t.chat.LoadOlder(ctx); err != nil {
			t.printf("could not load older messages: %v\n", err)
			return false
		}
		t.redraw()
	case "notifs":
		t.listNotifications()
	case "read":
		if len(cmd.args) == 0 {
			t.printf("usage: /read ID\n")
			return false
		}
		if err := t.notifs.MarkRead(ctx, cmd.args[0]); err != nil {
			t.printf("%v\n", err)
		}
	case "del":
		if len(cmd.args) == 0 {
			t.printf("usage: /del ID\n")
			return false
		}
		if err := t.notifs.Delete(ctx, cmd.args[0]); err != nil {
			t.printf("%v\n", err)
		}
	case "clear":
		if err := t.notifs.ClearAll(ctx); err != nil {
			t.printf("could not clear notifications: %v\n", err)
		}
	case "say":
		t.say(ctx, cmd.text)
	default:
		t.printf("unknown command /%s\n", cmd.name)
	}
	return false
}

func (t *terminal) open(ctx context.Context, chatID string, counterpart models.Participant) {
	t.mu.Lock()
	t.printed = make(map[string]struct{})
	t.lastTyper = ""
	t.mu.Unlock()

	if err := t.chat.OpenChat(ctx, chatID, counterpart); err != nil {
		t.printf("could not open conversation: %v\n", err)
		return
	}
	t.chat.SetVisible(true)
	label := counterpart.Name
	if label == "" {
		label = counterpart.ID
	}
	t.printf("-- %s --\n", label)
	t.render(ctx)
}

func (t *terminal) say(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if t.chat.Room() == "" {
		t.printf("open a conversation first (/chats, /open N or /new ID)\n")
		return
	}

	t.chat.Input(text)
	if _, err := t.chat.Send(ctx, text); err != nil {
		var ackErr *chat.AckError
		if errors.As(err, &ackErr) {
			t.printf("not sent: %s\n", ackErr.Message)
			return
		}
		t.printf("not sent: %v\n", err)
		return
	}
	t.render(ctx)
}

func (t *terminal) listChats() {
	chats := t.chat.Chats().Chats()
	if len(chats) == 0 {
		t.printf("no conversations yet\n")
		return
	}
	for i, summary := range chats {
		cp := summary.Counterpart(t.self.UserID)
		unread := ""
		if summary.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", summary.UnreadCount)
		}
		t.printf("%2d. %s%s: %s\n", i+1, cp.Name, unread, summary.LastMessage)
	}
	if t.chat.Chats().HasMore() {
		t.printf("    /more for older conversations\n")
	}
}

func (t *terminal) listNotifications() {
	entries := t.notifs.Feed().Display()
	if len(entries) == 0 {
		t.printf("no notifications\n")
		return
	}
	for _, entry := range entries {
		mark := "*"
		if entry.Read {
			mark = " "
		}
		t.printf("%s %s  %s  %s\n", mark, entry.Key, entry.Timestamp().Local().Format("Jan 2 15:04"), entry.Message)
	}
}

// watch renders pushes that arrive between commands.
func (t *terminal) watch(ctx context.Context) {
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.render(ctx)
		}
	}
}

func (t *terminal) redraw() {
	t.mu.Lock()
	t.printed = make(map[string]struct{})
	t.mu.Unlock()
	t.render(context.Background())
}

// render prints messages, typing changes and toasts not shown yet. Every
// printed message counts as fully visible for read receipts.
func (t *terminal) render(ctx context.Context) {
	messages := t.chat.Messages()
	typer := t.chat.TypingUser()
	toasts := t.notifs.Toasts()
	t.chat.ShouldScrollToBottom()

	var visible []chat.Visibility

	t.mu.Lock()
	for i, msg := range messages {
		key := chat.RenderKey(i, msg)
		if _, done := t.printed[key]; done {
			continue
		}
		t.printed[key] = struct{}{}
		who := "you"
		if msg.SenderID != t.self.UserID {
			who = msg.SenderID
			visible = append(visible, chat.Visibility{MessageID: msg.ID, Ratio: 1})
		}
		seen := ""
		if msg.SenderID == t.self.UserID && msg.Seen {
			seen = " ✓"
		}
		fmt.Fprintf(t.out, "[%s] %s: %s%s\n", msg.SendedTime.Local().Format("15:04"), who, msg.MessageContent, seen)
	}
	if typer != t.lastTyper {
		if typer != "" {
			fmt.Fprintf(t.out, "   %s is typing...\n", typer)
		}
		t.lastTyper = typer
	}
	for _, toast := range toasts {
		if _, done := t.toasts[toast.ID]; done {
			continue
		}
		t.toasts[toast.ID] = struct{}{}
		fmt.Fprintf(t.out, ">> %s\n", toast.Notification.Message)
	}
	t.mu.Unlock()

	if len(visible) > 0 {
		t.chat.Observe(ctx, visible)
	}
}
