package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/rate-room/ratebot/status"
	"github.com/rate-room/ratebot/telemetry"
)

// ErrorClass groups Discord API failures by how the caller should treat them.
type ErrorClass int

const (
	// ErrorClassUnknown indicates the error type cannot be determined.
	ErrorClassUnknown ErrorClass = iota
	// ErrorClassGone means the target message or channel no longer exists.
	ErrorClassGone
	// ErrorClassPermission means the bot lacks access to the channel or action.
	ErrorClassPermission
	// ErrorClassRateLimited means Discord asked us to slow down.
	ErrorClassRateLimited
	// ErrorClassTransient covers network failures and 5xx answers.
	ErrorClassTransient
	// ErrorClassNotCached means the gateway state cache has no entry for the id.
	ErrorClassNotCached
	// ErrorClassCanceled means the caller's context ended.
	ErrorClassCanceled
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassGone:
		return "gone"
	case ErrorClassPermission:
		return "permission"
	case ErrorClassRateLimited:
		return "rate_limited"
	case ErrorClassTransient:
		return "transient"
	case ErrorClassNotCached:
		return "not_cached"
	case ErrorClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ClassifyError maps a discordgo error to an ErrorClass.
//
// JSON error codes win over HTTP status: a 404 carrying code 10008 (Unknown Message)
// and a bare 404 both mean the target is gone, while 50013 (Missing Permissions)
// arrives as 403.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassCanceled
	}
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return ErrorClassNotCached
	}

	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return ErrorClassRateLimited
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Message != nil {
			switch rest.Message.Code {
			case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
				return ErrorClassGone
			case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
				return ErrorClassPermission
			}
		}
		if rest.Response != nil {
			code := rest.Response.StatusCode
			switch {
			case code == http.StatusNotFound:
				return ErrorClassGone
			case code == http.StatusUnauthorized || code == http.StatusForbidden:
				return ErrorClassPermission
			case code == http.StatusTooManyRequests:
				return ErrorClassRateLimited
			case code >= 500:
				return ErrorClassTransient
			}
		}
		return ErrorClassUnknown
	}

	lower := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection reset",
		"connection refused",
		"timeout",
		"no such host",
		"broken pipe",
		"eof",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(lower, pattern) {
			return ErrorClassTransient
		}
	}
	return ErrorClassUnknown
}

// wrapErr counts a failed call and annotates it. Gone targets also wrap status.ErrGone
// so the status manager can treat them as already cleaned up.
func wrapErr(op string, err error) error {
	class := ClassifyError(err)
	telemetry.RecordPlatformError(op, class.String())
	if class == ErrorClassGone {
		return fmt.Errorf("discord %s: %w: %w", op, status.ErrGone, err)
	}
	return fmt.Errorf("discord %s (%s): %w", op, class, err)
}
