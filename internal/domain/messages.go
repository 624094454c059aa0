package domain

import (
	"encoding/json"
	"time"
)

// WebSocket message types from client.
const (
	MsgTypeJoin             = "join"
	MsgTypeLeave            = "leave"
	MsgTypeProgressUpdate   = "progress_update"
	MsgTypeGoalUpdate       = "goal_update"
	MsgTypeReflectionUpdate = "reflection_update"
	MsgTypeComment          = "comment"
	MsgTypeStatusUpdate     = "status_update"
	MsgTypePing             = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeJoinSuccess       = "join_success"
	MsgTypeJoinError         = "join_error"
	MsgTypeRoomUpdate        = "room_update"
	MsgTypeProgressUpdated   = "progress_updated"
	MsgTypeGoalUpdated       = "goal_updated"
	MsgTypeReflectionUpdated = "reflection_updated"
	MsgTypeNewComment        = "new_comment"
	MsgTypeStatusUpdated     = "status_updated"
	MsgTypeInitialData       = "initial_data"
	MsgTypeCommentRejected   = "comment_rejected"
	MsgTypeError             = "error"
	MsgTypePong              = "pong"
)

// Join rejection reasons surfaced via join_error.
const (
	JoinErrNotFound      = "not found"
	JoinErrDisabled      = "disabled"
	JoinErrExpired       = "expired"
	JoinErrWrongPassword = "wrong password"
)

// Actions carried by goal and reflection updates.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Error codes for malformed traffic.
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// MaxCommentLength bounds comment messages.
const MaxCommentLength = 200

// Room update kinds.
const (
	RoomUpdateJoined = "joined"
	RoomUpdateLeft   = "left"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type JoinMessage struct {
	Type       string `json:"type"`
	ShareToken string `json:"share_token"`
	Password   string `json:"password,omitempty"`
}

type LeaveMessage struct {
	Type       string `json:"type"`
	ShareToken string `json:"share_token"`
}

type ProgressUpdateMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type GoalUpdateMessage struct {
	Type    string          `json:"type"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type ReflectionUpdateMessage struct {
	Type    string          `json:"type"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type CommentMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type StatusUpdateMessage struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	Activity string `json:"activity"`
}

// Server -> Client messages

// RoomInfo is the room summary sent with join_success.
type RoomInfo struct {
	ShareToken  string `json:"share_token"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner"`
	ViewerCount int    `json:"viewer_count"`
	IsLive      bool   `json:"is_live"`
}

type JoinSuccessMessage struct {
	Type     string   `json:"type"`
	Role     Role     `json:"role"`
	RoomInfo RoomInfo `json:"room_info"`
}

type JoinErrorMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type RoomUpdateMessage struct {
	Type        string `json:"type"`
	UpdateType  string `json:"update_type"`
	ViewerCount int    `json:"viewer_count"`
	Message     string `json:"message,omitempty"`
}

// LiveUpdateMessage is the broadcast envelope for progress, goal and
// reflection updates. Ephemeral, never persisted.
type LiveUpdateMessage struct {
	Type      string          `json:"type"`
	Action    string          `json:"action,omitempty"`
	Data      json.RawMessage `json:"data"`
	From      string          `json:"from"`
	Timestamp time.Time       `json:"timestamp"`
}

type NewCommentMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	From      string    `json:"from"`
	IsOwner   bool      `json:"is_owner"`
	Timestamp time.Time `json:"timestamp"`
}

type StatusUpdatedMessage struct {
	Type      string    `json:"type"`
	From      string    `json:"from"`
	Status    string    `json:"status"`
	Activity  string    `json:"activity"`
	Timestamp time.Time `json:"timestamp"`
}

type InitialDataMessage struct {
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

type CommentRejectedMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

func NewJoinError(reason string) *JoinErrorMessage {
	return &JoinErrorMessage{
		Type:   MsgTypeJoinError,
		Reason: reason,
	}
}
