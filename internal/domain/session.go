package domain

import (
	"sync"
	"time"
)

// Role is a participant's role in a room. Decided once at join time and
// fixed until the connection leaves the room.
type Role string

const (
	RoleNone   Role = ""
	RoleOwner  Role = "owner"
	RoleViewer Role = "viewer"
)

// Identity is the result of resolving a connection credential. An
// unverifiable or absent credential yields the zero value (anonymous).
type Identity struct {
	UserID        string
	Username      string
	Authenticated bool
}

// DisplayName returns the name shown to other participants.
func (i Identity) DisplayName() string {
	if i.Authenticated && i.Username != "" {
		return i.Username
	}
	return "anonymous"
}

// Session is the per-connection state: who the connection is and which
// room, if any, it currently participates in.
type Session struct {
	ID           string
	identity     Identity
	role         Role
	shareToken   string
	CreatedAt    time.Time
	lastActiveAt time.Time
	mu           sync.RWMutex
}

// NewSession creates a session for a fresh connection.
func NewSession(id string, identity Identity) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		identity:     identity,
		CreatedAt:    now,
		lastActiveAt: now,
	}
}

// Identity returns the identity resolved at connect time.
func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// JoinRoom binds the session to a room with the given role.
func (s *Session) JoinRoom(shareToken string, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shareToken = shareToken
	s.role = role
	s.lastActiveAt = time.Now()
}

// LeaveRoom clears the room binding and role.
func (s *Session) LeaveRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shareToken = ""
	s.role = RoleNone
	s.lastActiveAt = time.Now()
}

// CurrentRoom returns the share token of the current room, if any.
func (s *Session) CurrentRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shareToken
}

// Role returns the role bound at join time, or RoleNone.
func (s *Session) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// InRoom reports whether the session is currently in a room.
func (s *Session) InRoom() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shareToken != ""
}

// UpdateActivity bumps the last-active timestamp.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}
