package goRecovery

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventMethodSelected = "recovery_method_selected"
	auditEventResetEmail     = "recovery_reset_email"
	auditEventOTPIssue       = "recovery_otp_issue"
	auditEventOTPConfirm     = "recovery_otp_confirm"
	auditEventPasswordSet    = "recovery_password_set"
	auditEventCancel         = "recovery_cancel"
)

// AuditErrorCode is the coarse failure class written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrValidation      AuditErrorCode = "validation_failed"
	auditErrProviderTimeout AuditErrorCode = "provider_timeout"
	auditErrProvider        AuditErrorCode = "provider_failure"
	auditErrEmptyResponse   AuditErrorCode = "provider_empty_response"
	auditErrState           AuditErrorCode = "illegal_state"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	sessionID string,
	subject string,
	channel string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SessionID: sessionID,
		Subject:   subject,
		Channel:   channel,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case IsValidation(err):
		return auditErrValidation
	case errors.Is(err, ErrEmptyTicket),
		errors.Is(err, ErrEmptyIdentity):
		return auditErrEmptyResponse
	case errors.Is(err, ErrProviderTimeout):
		return auditErrProviderTimeout
	case errors.Is(err, ErrProviderFailure):
		return auditErrProvider
	case IsState(err):
		return auditErrState
	default:
		return auditErrInternal
	}
}
