package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/audit"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/cache"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/domain"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/hub"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/store"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/pkg/log"
)

type liveService struct {
	hub      *hub.Hub
	store    store.ShareStore
	cache    cache.ShareCache // nil disables caching
	cacheTTL time.Duration
	sf       singleflight.Group
}

// NewLiveService creates the event router for live sharing.
func NewLiveService(h *hub.Hub, st store.ShareStore, c cache.ShareCache, cacheTTL time.Duration) LiveService {
	return &liveService{
		hub:      h,
		store:    st,
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

// lookupShare fetches share metadata, collapsing concurrent lookups
// for the same token and consulting the cache inside its TTL.
func (s *liveService) lookupShare(ctx context.Context, shareToken string) (*domain.Share, error) {
	result, err, _ := s.sf.Do(shareToken, func() (interface{}, error) {
		if s.cache != nil {
			if share, err := s.cache.Get(ctx, shareToken); err == nil {
				return share, nil
			} else if !errors.Is(err, cache.ErrCacheMiss) {
				l := log.Ctx(ctx)
				l.Warn().Err(err).Str(log.FieldShareToken, shareToken).Msg("share cache read failed")
			}
		}

		share, err := s.store.GetByToken(ctx, shareToken)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			if err := s.cache.Set(ctx, share, s.cacheTTL); err != nil {
				l := log.Ctx(ctx)
				l.Warn().Err(err).Str(log.FieldShareToken, shareToken).Msg("share cache write failed")
			}
		}
		return share, nil
	})
	if err != nil {
		return nil, err
	}

	share, ok := result.(*domain.Share)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return share, nil
}

func (s *liveService) HandleJoin(ctx context.Context, c *hub.Client, shareToken, password string) error {
	l := log.Ctx(ctx)

	share, err := s.lookupShare(ctx, shareToken)
	if err != nil {
		if errors.Is(err, store.ErrShareNotFound) {
			audit.LogWithDetail(ctx, audit.ActionJoinRejected, c.ID, shareToken, domain.JoinErrNotFound, "join rejected")
			return c.SendMessage(domain.NewJoinError(domain.JoinErrNotFound))
		}
		l.Error().Err(err).Str(log.FieldShareToken, shareToken).Msg("share lookup failed")
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternalError, "failed to join room"))
	}

	if !share.IsActive {
		audit.LogWithDetail(ctx, audit.ActionJoinRejected, c.ID, shareToken, domain.JoinErrDisabled, "join rejected")
		return c.SendMessage(domain.NewJoinError(domain.JoinErrDisabled))
	}

	if share.Expired(time.Now()) {
		audit.LogWithDetail(ctx, audit.ActionJoinRejected, c.ID, shareToken, domain.JoinErrExpired, "join rejected")
		return c.SendMessage(domain.NewJoinError(domain.JoinErrExpired))
	}

	if share.RequiresPassword() {
		if bcrypt.CompareHashAndPassword([]byte(share.PasswordHash), []byte(password)) != nil {
			audit.LogWithDetail(ctx, audit.ActionJoinRejected, c.ID, shareToken, domain.JoinErrWrongPassword, "join rejected")
			return c.SendMessage(domain.NewJoinError(domain.JoinErrWrongPassword))
		}
	}

	identity := c.Session.Identity()
	role := domain.RoleViewer
	if identity.Authenticated && identity.UserID == share.OwnerID {
		role = domain.RoleOwner
	}

	// All checks passed. Only now does the connection give up its
	// current room; a rejected join leaves prior membership untouched.
	if c.Session.InRoom() {
		s.leaveCurrentRoom(ctx, c)
	}

	viewerCount, snapshot := s.hub.JoinRoom(share, c, role == domain.RoleOwner)
	c.Session.JoinRoom(shareToken, role)

	if err := c.SendMessage(&domain.JoinSuccessMessage{
		Type: domain.MsgTypeJoinSuccess,
		Role: role,
		RoomInfo: domain.RoomInfo{
			ShareToken:  shareToken,
			Title:       share.Title,
			Description: share.Description,
			Owner:       share.OwnerUsername,
			ViewerCount: viewerCount,
			IsLive:      snapshot.OwnerConnected,
		},
	}); err != nil {
		return err
	}

	if err := s.hub.Broadcast(shareToken, &domain.RoomUpdateMessage{
		Type:        domain.MsgTypeRoomUpdate,
		UpdateType:  domain.RoomUpdateJoined,
		ViewerCount: viewerCount,
		Message:     fmt.Sprintf("%s joined the room", identity.DisplayName()),
	}, c.ID); err != nil {
		l.Warn().Err(err).Str(log.FieldShareToken, shareToken).Msg("failed to broadcast room update")
	}

	if role == domain.RoleViewer {
		c.SendMessage(&domain.InitialDataMessage{
			Type:        domain.MsgTypeInitialData,
			Title:       share.Title,
			Description: share.Description,
			Settings:    share.Settings,
			Timestamp:   time.Now(),
		})

		if err := s.store.IncrementViewCount(ctx, shareToken); err != nil {
			l.Warn().Err(err).Str(log.FieldShareToken, shareToken).Msg("failed to increment view count")
		}
	}

	audit.LogWithDetail(ctx, audit.ActionJoin, c.ID, shareToken, string(role), "joined room")
	return nil
}

func (s *liveService) HandleLeave(ctx context.Context, c *hub.Client, shareToken string) error {
	if c.Session.CurrentRoom() != shareToken {
		// Already left, or never joined: idempotent no-op.
		return nil
	}
	s.leaveCurrentRoom(ctx, c)
	return nil
}

func (s *liveService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	if !c.Session.InRoom() {
		return nil
	}
	audit.Log(ctx, audit.ActionDisconnect, c.ID, c.Session.CurrentRoom(), "client disconnected")
	s.leaveCurrentRoom(ctx, c)
	return nil
}

// leaveCurrentRoom removes membership, notifies the remaining
// participants, and disposes the room if it became empty.
func (s *liveService) leaveCurrentRoom(ctx context.Context, c *hub.Client) {
	shareToken := c.Session.CurrentRoom()
	if shareToken == "" {
		return
	}

	role := c.Session.Role()
	identity := c.Session.Identity()

	var viewerCount int
	var removed bool
	if role == domain.RoleOwner {
		viewerCount, removed = s.hub.ClearOwnerConn(shareToken, c)
	} else {
		viewerCount, removed = s.hub.RemoveViewer(shareToken, c)
	}

	c.Session.LeaveRoom()

	if !removed {
		return
	}

	if err := s.hub.Broadcast(shareToken, &domain.RoomUpdateMessage{
		Type:        domain.MsgTypeRoomUpdate,
		UpdateType:  domain.RoomUpdateLeft,
		ViewerCount: viewerCount,
		Message:     fmt.Sprintf("%s left the room", identity.DisplayName()),
	}, c.ID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldShareToken, shareToken).Msg("failed to broadcast room update")
	}

	audit.Log(ctx, audit.ActionLeave, c.ID, shareToken, "left room")
}

// ownerRoom returns the sender's room if it is the room's owner.
// Content broadcasts from anyone else are dropped without a reply so
// the event surface is not confirmed to unauthorized callers.
func (s *liveService) ownerRoom(ctx context.Context, c *hub.Client, eventType string) (string, bool) {
	shareToken := c.Session.CurrentRoom()
	if shareToken == "" || c.Session.Role() != domain.RoleOwner {
		audit.LogWithDetail(ctx, audit.ActionUnauthorizedUpdate, c.ID, shareToken, eventType, "dropped content event from non-owner")
		return "", false
	}
	return shareToken, true
}

func (s *liveService) HandleProgressUpdate(ctx context.Context, c *hub.Client, payload json.RawMessage) error {
	shareToken, ok := s.ownerRoom(ctx, c, domain.MsgTypeProgressUpdate)
	if !ok {
		return nil
	}

	return s.hub.Broadcast(shareToken, &domain.LiveUpdateMessage{
		Type:      domain.MsgTypeProgressUpdated,
		Data:      payload,
		From:      c.Session.Identity().DisplayName(),
		Timestamp: s.hub.NextEventTime(shareToken),
	}, c.ID)
}

func (s *liveService) HandleGoalUpdate(ctx context.Context, c *hub.Client, action string, payload json.RawMessage) error {
	return s.handleActionUpdate(ctx, c, domain.MsgTypeGoalUpdate, domain.MsgTypeGoalUpdated, action, payload)
}

func (s *liveService) HandleReflectionUpdate(ctx context.Context, c *hub.Client, action string, payload json.RawMessage) error {
	return s.handleActionUpdate(ctx, c, domain.MsgTypeReflectionUpdate, domain.MsgTypeReflectionUpdated, action, payload)
}

func (s *liveService) handleActionUpdate(ctx context.Context, c *hub.Client, inType, outType, action string, payload json.RawMessage) error {
	shareToken, ok := s.ownerRoom(ctx, c, inType)
	if !ok {
		return nil
	}

	switch action {
	case domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete:
	case "":
		action = domain.ActionUpdate
	default:
		l := log.Ctx(ctx)
		l.Debug().Str("action", action).Str(log.FieldClientID, c.ID).Msg("dropped update with unknown action")
		return nil
	}

	return s.hub.Broadcast(shareToken, &domain.LiveUpdateMessage{
		Type:      outType,
		Action:    action,
		Data:      payload,
		From:      c.Session.Identity().DisplayName(),
		Timestamp: s.hub.NextEventTime(shareToken),
	}, c.ID)
}

func (s *liveService) HandleComment(ctx context.Context, c *hub.Client, message string) error {
	shareToken := c.Session.CurrentRoom()
	if shareToken == "" {
		return nil
	}

	trimmed := strings.TrimSpace(message)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > domain.MaxCommentLength {
		return c.SendMessage(&domain.CommentRejectedMessage{
			Type:   domain.MsgTypeCommentRejected,
			Reason: fmt.Sprintf("comment must be 1-%d characters", domain.MaxCommentLength),
		})
	}

	comment := &domain.NewCommentMessage{
		Type:      domain.MsgTypeNewComment,
		ID:        uuid.New().String(),
		Message:   trimmed,
		From:      c.Session.Identity().DisplayName(),
		IsOwner:   c.Session.Role() == domain.RoleOwner,
		Timestamp: s.hub.NextEventTime(shareToken),
	}

	audit.Log(ctx, audit.ActionComment, c.ID, shareToken, "comment broadcast")

	// Everyone sees the comment, including the sender: the echoed copy
	// carries the server-assigned id and timestamp.
	return s.hub.Broadcast(shareToken, comment, "")
}

func (s *liveService) HandleStatusUpdate(ctx context.Context, c *hub.Client, status, activity string) error {
	shareToken, ok := s.ownerRoom(ctx, c, domain.MsgTypeStatusUpdate)
	if !ok {
		return nil
	}

	return s.hub.Broadcast(shareToken, &domain.StatusUpdatedMessage{
		Type:      domain.MsgTypeStatusUpdated,
		From:      c.Session.Identity().DisplayName(),
		Status:    status,
		Activity:  activity,
		Timestamp: s.hub.NextEventTime(shareToken),
	}, c.ID)
}

func (s *liveService) RoomStats() map[string]hub.RoomStats {
	return s.hub.Stats()
}
