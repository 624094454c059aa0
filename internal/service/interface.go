package service

import (
	"context"
	"encoding/json"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/hub"
)

// LiveService validates and dispatches inbound live-sharing events.
type LiveService interface {
	HandleJoin(ctx context.Context, c *hub.Client, shareToken, password string) error
	HandleLeave(ctx context.Context, c *hub.Client, shareToken string) error
	HandleProgressUpdate(ctx context.Context, c *hub.Client, payload json.RawMessage) error
	HandleGoalUpdate(ctx context.Context, c *hub.Client, action string, payload json.RawMessage) error
	HandleReflectionUpdate(ctx context.Context, c *hub.Client, action string, payload json.RawMessage) error
	HandleComment(ctx context.Context, c *hub.Client, message string) error
	HandleStatusUpdate(ctx context.Context, c *hub.Client, status, activity string) error
	HandleDisconnect(ctx context.Context, c *hub.Client) error
	RoomStats() map[string]hub.RoomStats
}
