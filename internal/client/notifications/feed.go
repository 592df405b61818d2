// Package notifications keeps the signed-in user's notification feed in sync
// with the gateway.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/socket"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
)

var ErrNotFound = errors.New("notifications: no such notification")

const mutationTimeout = 10 * time.Second

// Entry is a feed item. Confirmed is false while a local change has not been
// acknowledged by the server; a failed mutation leaves it false. Key addresses
// the entry in MarkRead and Delete: the notification id, or a local key for
// notifications delivered without one.
type Entry struct {
	models.Notification
	Key       string
	Confirmed bool
}

type ReadMarker interface {
	MarkNotificationRead(ctx context.Context, id string) error
}

type Clearer interface {
	ClearNotifications(ctx context.Context) error
}

// SocketMarker marks notifications read over the realtime connection.
type SocketMarker struct {
	Emitter socket.Emitter
}

func (m SocketMarker) MarkNotificationRead(ctx context.Context, id string) error {
	return m.Emitter.Emit(ctx, protocol.EventMarkNotificationAsRead, protocol.NotificationIDPayload{NotificationID: id})
}

type Feed struct {
	marker  ReadMarker
	clearer Clearer
	emitter socket.Emitter
	logger  zerolog.Logger

	mu       sync.Mutex
	entries  []Entry
	localSeq int
	inFlight sync.WaitGroup
}

func NewFeed(marker ReadMarker, clearer Clearer, emitter socket.Emitter, logger zerolog.Logger) *Feed {
	return &Feed{marker: marker, clearer: clearer, emitter: emitter, logger: logger}
}

// Seed merges the notifications held by the server while the user was away.
func (f *Feed) Seed(list []models.Notification) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	added := 0
	for _, n := range list {
		n.Kind = models.NotificationPending
		if f.add(n) {
			added++
		}
	}
	return added
}

// Push appends a live notification.
func (f *Feed) Push(n models.Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.Kind = models.NotificationLive
	return f.add(n)
}

// MarkRead flips the read flag locally and sends the mutation without
// waiting for it. A failure is logged and the flag stays set. Entries without
// a server id are only changed locally.
func (f *Feed) MarkRead(ctx context.Context, key string) error {
	f.mu.Lock()
	i := f.indexOf(key)
	if i < 0 {
		f.mu.Unlock()
		return ErrNotFound
	}
	if f.entries[i].Read {
		f.mu.Unlock()
		return nil
	}
	f.entries[i].Read = true
	f.entries[i].Confirmed = false
	id := f.entries[i].ID
	if id == "" {
		f.mu.Unlock()
		return nil
	}
	f.inFlight.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.inFlight.Done()

		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mutationTimeout)
		defer cancel()
		if err := f.marker.MarkNotificationRead(mctx, id); err != nil {
			f.logger.Warn().Err(err).Str("notification_id", id).Msg("mark notification read failed")
			return
		}

		f.mu.Lock()
		if j := f.indexOf(id); j >= 0 {
			f.entries[j].Confirmed = true
		}
		f.mu.Unlock()
	}()
	return nil
}

// Delete removes the notification locally and tells the gateway when the
// notification has a server id.
func (f *Feed) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	i := f.indexOf(key)
	if i < 0 {
		f.mu.Unlock()
		return ErrNotFound
	}
	id := f.entries[i].ID
	f.entries = append(f.entries[:i], f.entries[i+1:]...)
	f.mu.Unlock()

	if id == "" {
		return nil
	}
	if err := f.emitter.Emit(ctx, protocol.EventDeleteNotification, protocol.NotificationIDPayload{NotificationID: id}); err != nil {
		f.logger.Warn().Err(err).Str("notification_id", id).Msg("delete notification emit failed")
	}
	return nil
}

// ClearAll deletes every notification on the server and empties the feed
// only once that succeeded.
func (f *Feed) ClearAll(ctx context.Context) error {
	if err := f.clearer.ClearNotifications(ctx); err != nil {
		return err
	}
	f.Clear()
	return nil
}

// Clear empties the feed without contacting the server.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
}

// Entries returns the feed in insertion order.
func (f *Feed) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Display returns the renderable entries, newest first.
func (f *Feed) Display() []Entry {
	f.mu.Lock()
	out := make([]Entry, 0, len(f.entries))
	for _, e := range f.entries {
		if e.Displayable() {
			out = append(out, e)
		}
	}
	f.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp().After(out[j].Timestamp())
	})
	return out
}

func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if !e.Read {
			n++
		}
	}
	return n
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Wait blocks until every mark-read mutation sent so far has finished.
func (f *Feed) Wait() {
	f.inFlight.Wait()
}

func (f *Feed) add(n models.Notification) bool {
	key := n.ID
	if key == "" {
		f.localSeq++
		key = fmt.Sprintf("local-%d", f.localSeq)
	} else if f.indexOf(key) >= 0 {
		return false
	}
	f.entries = append(f.entries, Entry{Notification: n, Key: key, Confirmed: true})
	return true
}

func (f *Feed) indexOf(key string) int {
	if key == "" {
		return -1
	}
	for i, e := range f.entries {
		if e.Key == key {
			return i
		}
	}
	return -1
}
