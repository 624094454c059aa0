package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/config"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/domain"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/hub"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/identity"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/service"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler is the connection gateway: it upgrades sockets, resolves
// the optional credential, and pumps inbound events into the service.
type WSHandler struct {
	hub      *hub.Hub
	service  service.LiveService
	resolver *identity.Resolver
	wsCfg    config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.LiveService, resolver *identity.Resolver, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		service:  svc,
		resolver: resolver,
		wsCfg:    wsCfg,
	}
}

// HandleWebSocket handles GET /live/ws. The connection is accepted
// even when the credential is missing or invalid: viewers need not
// authenticate, so an unverifiable token just means anonymous.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	who := h.resolver.Resolve(c.Query("token"))
	client := hub.NewClient(uuid.New().String(), h.hub, conn, who, h.wsCfg)
	client.SetDisconnectHandler(func(cl *hub.Client) {
		h.service.HandleDisconnect(context.Background(), cl)
	})

	h.hub.Register(client)

	l := log.L()
	l.Info().
		Str(log.FieldClientID, client.ID).
		Bool("authenticated", who.Authenticated).
		Msg("client connected")

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid message format"))
		return
	}

	ctx := context.Background()
	l := log.L()

	switch base.Type {
	case domain.MsgTypeJoin:
		var msg domain.JoinMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid join message"))
			return
		}
		if err := h.service.HandleJoin(ctx, client, msg.ShareToken, msg.Password); err != nil {
			l.Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("join failed")
		}

	case domain.MsgTypeLeave:
		var msg domain.LeaveMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid leave message"))
			return
		}
		if err := h.service.HandleLeave(ctx, client, msg.ShareToken); err != nil {
			l.Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("leave failed")
		}

	case domain.MsgTypeProgressUpdate:
		var msg domain.ProgressUpdateMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid progress_update message"))
			return
		}
		if err := h.service.HandleProgressUpdate(ctx, client, msg.Payload); err != nil {
			l.Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("progress update failed")
		}

	case domain.MsgTypeGoalUpdate:
		var msg domain.GoalUpdateMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid goal_update message"))
			return
		}
		if err := h.service.HandleGoalUpdate(ctx, client, msg.Action, msg.Payload); err != nil {
			l.Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("goal update failed")
		}

	case domain.MsgTypeReflectionUpdate:
		var msg domain.ReflectionUpdateMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid reflection_update message"))
			return
		}
		if err := h.service.HandleReflectionUpdate(ctx, client, msg.Action, msg.Payload); err != nil {
			l.Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("reflection update failed")
		}

	case domain.MsgTypeComment:
		var msg domain.CommentMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid comment message"))
			return
		}
		if err := h.service.HandleComment(ctx, client, msg.Message); err != nil {
			l.Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("comment failed")
		}

	case domain.MsgTypeStatusUpdate:
		var msg domain.StatusUpdateMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid status_update message"))
			return
		}
		if err := h.service.HandleStatusUpdate(ctx, client, msg.Status, msg.Activity); err != nil {
			l.Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("status update failed")
		}

	case domain.MsgTypePing:
		client.SendMessage(map[string]string{"type": domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type"))
	}
}
