package audit

import (
	"context"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/pkg/log"
)

// Audit actions for the live-sharing subsystem.
const (
	ActionJoin               = "live.join"
	ActionJoinRejected       = "live.join_rejected"
	ActionLeave              = "live.leave"
	ActionDisconnect         = "live.disconnect"
	ActionUnauthorizedUpdate = "live.unauthorized_update"
	ActionComment            = "live.comment"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, clientID, shareToken, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldClientID, clientID).
		Str(log.FieldShareToken, shareToken).
		Msg(msg)
}

// LogWithDetail emits an audit log with an extra detail field.
func LogWithDetail(ctx context.Context, action, clientID, shareToken, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldClientID, clientID).
		Str(log.FieldShareToken, shareToken).
		Str(FieldDetail, detail).
		Msg(msg)
}
