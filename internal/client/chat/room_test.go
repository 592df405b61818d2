package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomKeyIsSymmetric(t *testing.T) {
	assert.Equal(t, RoomKey("u1", "v9"), RoomKey("v9", "u1"))
	assert.Equal(t, "u1v9", RoomKey("v9", "u1"))
	assert.Empty(t, RoomKey("u1", ""))
}

func TestRoomResolverReportsChanges(t *testing.T) {
	r := NewRoomResolver("u1")

	room, changed := r.Resolve("v1")
	assert.Equal(t, "u1v1", room)
	assert.True(t, changed)

	_, changed = r.Resolve("v1")
	assert.False(t, changed)

	room, changed = r.Resolve("a0")
	assert.Equal(t, "a0u1", room)
	assert.True(t, changed)
	assert.Equal(t, "a0", r.Counterpart())

	room, changed = r.SetSelf("u2")
	assert.Equal(t, "a0u2", room)
	assert.True(t, changed)
}
