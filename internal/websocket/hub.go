// Package chatws is the gateway side of the realtime protocol: it owns the
// socket connections, the rooms they joined and the fan-out between them.
package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/metrics"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
)

var ErrHubClosed = errors.New("chat hub closed")

// Hub tracks connections per user and per room. All bookkeeping happens on
// the Run goroutine; other goroutines talk to it through channels.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	join       chan roomChange
	broadcast  chan *outbound

	chats         ChatService
	notifications NotificationService
	logger        zerolog.Logger

	done     chan struct{}
	doneOnce sync.Once
}

type roomChange struct {
	client *Client
	roomID string
}

// outbound is one encoded frame and its audience: every connection in roomID,
// or every connection of userID, minus except.
type outbound struct {
	roomID  string
	userID  string
	except  *Client
	payload []byte
}

func NewHub(chats ChatService, notifications NotificationService, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:       make(map[string]map[*Client]struct{}),
		rooms:         make(map[string]map[*Client]struct{}),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		join:          make(chan roomChange),
		broadcast:     make(chan *outbound, 64),
		chats:         chats,
		notifications: notifications,
		logger:        logger,
		done:          make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then closes every connection's send
// queue.
func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					client.close()
					metrics.SocketConnections.Dec()
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			h.rooms = make(map[string]map[*Client]struct{})
			return
		case client := <-h.register:
			set, ok := h.clients[client.actor.ID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.actor.ID] = set
			}
			set[client] = struct{}{}
			metrics.SocketConnections.Inc()
			h.logger.Debug().Str("conn", client.ID).Str("user", client.actor.ID).Msg("socket connected")
		case client := <-h.unregister:
			if h.remove(client) {
				h.logger.Debug().Str("conn", client.ID).Str("user", client.actor.ID).Msg("socket disconnected")
			}
		case change := <-h.join:
			h.moveToRoom(change.client, change.roomID)
		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Join moves client into roomID. A connection follows one conversation at a
// time, so the room it was in before is left.
func (h *Hub) Join(client *Client, roomID string) error {
	select {
	case h.join <- roomChange{client: client, roomID: roomID}:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// PublishRoom sends event to every connection in roomID except the given one.
func (h *Hub) PublishRoom(roomID string, except *Client, event string, payload any) error {
	return h.publish(&outbound{roomID: roomID, except: except}, event, payload)
}

// PublishUser sends event to every connection of userID.
func (h *Hub) PublishUser(userID string, event string, payload any) error {
	return h.publish(&outbound{userID: userID}, event, payload)
}

func (h *Hub) publish(message *outbound, event string, payload any) error {
	encoded, err := encodeEvent(event, payload, 0)
	if err != nil {
		return err
	}
	message.payload = encoded

	select {
	case h.broadcast <- message:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) moveToRoom(client *Client, roomID string) {
	if _, ok := h.clients[client.actor.ID][client]; !ok {
		return
	}
	if client.room == roomID {
		return
	}
	h.leaveRoom(client)

	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[*Client]struct{})
		h.rooms[roomID] = set
	}
	set[client] = struct{}{}
	client.room = roomID
}

func (h *Hub) leaveRoom(client *Client) {
	if client.room == "" {
		return
	}
	if set, ok := h.rooms[client.room]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.rooms, client.room)
		}
	}
	client.room = ""
}

func (h *Hub) remove(client *Client) bool {
	set, ok := h.clients[client.actor.ID]
	if !ok {
		return false
	}
	if _, exists := set[client]; !exists {
		return false
	}

	h.leaveRoom(client)
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.actor.ID)
	}
	client.close()
	metrics.SocketConnections.Dec()
	return true
}

func (h *Hub) deliver(message *outbound) {
	var set map[*Client]struct{}
	if message.roomID != "" {
		set = h.rooms[message.roomID]
	} else {
		set = h.clients[message.userID]
	}

	var slow []*Client
	for client := range set {
		if client == message.except {
			continue
		}
		if !client.enqueue(message.payload) {
			slow = append(slow, client)
		}
	}

	for _, client := range slow {
		h.logger.Warn().Str("conn", client.ID).Str("user", client.actor.ID).Msg("dropping slow socket")
		metrics.SocketDropped.Inc()
		h.remove(client)
	}
}

func encodeEvent(event string, payload any, ackID int64) ([]byte, error) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return nil, err
	}
	env.AckID = ackID
	return json.Marshal(env)
}
