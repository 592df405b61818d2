package chat

import (
	"sync"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
)

// RoomKey derives the broadcast room for a pair of participants.
func RoomKey(selfID, counterpartID string) string {
	return protocol.RoomKey(selfID, counterpartID)
}

// RoomResolver tracks the room for the currently selected counterpart.
type RoomResolver struct {
	mu          sync.Mutex
	selfID      string
	counterpart string
	room        string
}

func NewRoomResolver(selfID string) *RoomResolver {
	return &RoomResolver{selfID: selfID}
}

// Resolve selects counterpartID and reports whether the room key changed.
func (r *RoomResolver) Resolve(counterpartID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := RoomKey(r.selfID, counterpartID)
	changed := room != r.room
	r.counterpart = counterpartID
	r.room = room
	return room, changed
}

// SetSelf re-resolves the active room for a new local identity.
func (r *RoomResolver) SetSelf(selfID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.selfID = selfID
	room := RoomKey(selfID, r.counterpart)
	changed := room != r.room
	r.room = room
	return room, changed
}

func (r *RoomResolver) Room() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.room
}

func (r *RoomResolver) Counterpart() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counterpart
}
