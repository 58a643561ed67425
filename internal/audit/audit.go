package audit

import (
	"context"

	"github.com/weiawesome/tweet-graph/pkg/log"
)

// Audit actions for identity and graph changes.
const (
	ActionSignUp       = "user.sign_up"
	ActionSignIn       = "user.sign_in"
	ActionSignInFailed = "user.sign_in_failed"
	ActionSignOut      = "user.sign_out"
	ActionRefreshToken = "user.refresh_token"
	ActionRename       = "user.rename"
	ActionFollow       = "user.follow"
	ActionUnfollow     = "user.unfollow"
	ActionPostTweet    = "tweet.post"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithTarget emits an audit entry about an action on another entity.
func LogWithTarget(ctx context.Context, action string, userID, targetID int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Int64(FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID int64, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
