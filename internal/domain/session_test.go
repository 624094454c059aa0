package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_RoomBinding(t *testing.T) {
	s := NewSession("c1", Identity{UserID: "u1", Username: "alice", Authenticated: true})

	assert.False(t, s.InRoom())
	assert.Equal(t, RoleNone, s.Role())

	s.JoinRoom("abc", RoleOwner)
	assert.True(t, s.InRoom())
	assert.Equal(t, "abc", s.CurrentRoom())
	assert.Equal(t, RoleOwner, s.Role())

	s.LeaveRoom()
	assert.False(t, s.InRoom())
	assert.Equal(t, "", s.CurrentRoom())
	assert.Equal(t, RoleNone, s.Role())
}

func TestShare_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&Share{}).Expired(now), "no expiry never expires")
	assert.True(t, (&Share{ExpiresAt: &past}).Expired(now))
	assert.False(t, (&Share{ExpiresAt: &future}).Expired(now))
}

func TestIdentity_DisplayName(t *testing.T) {
	assert.Equal(t, "anonymous", Identity{}.DisplayName())
	assert.Equal(t, "anonymous", Identity{Username: "ghost"}.DisplayName(), "unauthenticated username is ignored")
	assert.Equal(t, "alice", Identity{UserID: "u1", Username: "alice", Authenticated: true}.DisplayName())
}
