package goRecovery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/agriskills/goRecovery/internal/flows"
	"github.com/agriskills/goRecovery/internal/validate"
	"go.uber.org/zap"
)

const (
	opSelectMethod   = "select_method"
	opSubmitEmail    = "submit_email"
	opSubmitPhone    = "submit_phone"
	opSubmitOTP      = "submit_otp"
	opResendOTP      = "resend_otp"
	opSubmitPassword = "submit_password"
	opCancel         = "cancel"
)

type session struct {
	id              string
	generation      uint64
	stage           Stage
	method          Method
	email           string
	phone           string
	normalizedPhone string
	ticket          VerificationTicket
	identity        ConfirmedIdentity
	busy            bool
	outcome         Outcome
}

func newSession(generation uint64) session {
	return session{
		id:         newSessionID(),
		generation: generation,
		stage:      StageChoosing,
	}
}

// inflight is what a request captures before the lock is released.
type inflight struct {
	sessionID  string
	generation uint64
	method     Method
}

// Controller drives one recovery session through the flow. Mutating
// operations never overlap: while a provider request is outstanding every
// other mutating call except Cancel and Restart fails with ErrBusy.
//
// Controller methods are safe for concurrent use.
type Controller struct {
	engine *Engine
	hub    *eventHub

	mu sync.Mutex
	s  session
}

// SelectMethod picks the recovery channel.
func (c *Controller) SelectMethod(m Method) error {
	if c == nil || c.engine == nil {
		return ErrEngineNotReady
	}
	ctx := context.Background()

	c.mu.Lock()
	if err := c.guardLocked(opSelectMethod, StageChoosing); err != nil {
		c.mu.Unlock()
		return c.rejectState(err)
	}

	var next Stage
	switch m {
	case MethodEmail:
		next = StageEmailEntry
	case MethodPhone:
		next = StagePhoneEntry
	default:
		err := c.rejectInputLocked("method", ErrMethodInvalid)
		c.mu.Unlock()
		return err
	}
	if err := c.transitionLocked(opSelectMethod, next); err != nil {
		c.mu.Unlock()
		return c.rejectState(err)
	}
	c.s.method = m
	sessionID := c.s.id
	c.mu.Unlock()

	c.engine.metricInc(MetricMethodSelected)
	c.engine.emitAudit(ctx, auditEventMethodSelected, true, sessionID, "", m.String(), nil, nil)
	return nil
}

// SubmitEmail asks the provider to send a password-reset notification.
// On success the session exits with OutcomeEmailDispatched.
func (c *Controller) SubmitEmail(ctx context.Context, email string) error {
	if c == nil || c.engine == nil {
		return ErrEngineNotReady
	}
	e := c.engine

	c.mu.Lock()
	if err := c.guardLocked(opSubmitEmail, StageEmailEntry); err != nil {
		c.mu.Unlock()
		return c.rejectState(err)
	}
	address, verr := validate.Email(email, e.config.Validation.StrictEmail)
	if verr != nil {
		err := c.rejectInputLocked("email", verr)
		sessionID := c.s.id
		c.mu.Unlock()
		title := titleInvalidEmail
		if errors.Is(verr, ErrEmailRequired) {
			title = titleEnterEmail
		}
		c.notify(ctx, sessionID, LevelError, title, "")
		return err
	}
	req := c.beginLocked()
	c.mu.Unlock()

	err := flows.RunSendResetEmail(ctx, address, e.recoveryDeps(req.sessionID, req.method))

	c.mu.Lock()
	if serr := c.settleLocked(opSubmitEmail, req); serr != nil {
		c.mu.Unlock()
		return serr
	}
	if err != nil {
		c.publishErrorLocked(err)
		c.mu.Unlock()
		c.notify(ctx, req.sessionID, LevelError, titleError, providerMessage(err))
		return err
	}
	if terr := c.exitLocked(opSubmitEmail, OutcomeEmailDispatched); terr != nil {
		c.mu.Unlock()
		return c.rejectState(terr)
	}
	c.s.email = strings.TrimSpace(email)
	c.mu.Unlock()

	c.notify(ctx, req.sessionID, LevelSuccess, titleResetEmailSent, "")
	return nil
}

// SubmitPhone normalizes phone and asks the provider for a one-time-code
// challenge. On success the ticket is stored and the session moves to
// StageOTPEntry.
func (c *Controller) SubmitPhone(ctx context.Context, phone string) error {
	if c == nil || c.engine == nil {
		return ErrEngineNotReady
	}
	e := c.engine

	c.mu.Lock()
	if err := c.guardLocked(opSubmitPhone, StagePhoneEntry); err != nil {
		c.mu.Unlock()
		return c.rejectState(err)
	}
	normalized, verr := validate.Phone(phone, e.config.Phone.DefaultCountryCode)
	if verr != nil {
		err := c.rejectInputLocked("phone", verr)
		sessionID := c.s.id
		c.mu.Unlock()
		c.notify(ctx, sessionID, LevelError, titleInvalidPhone, "")
		return err
	}
	req := c.beginLocked()
	c.mu.Unlock()

	ticket, err := flows.RunIssueOTP(ctx, normalized, e.recoveryDeps(req.sessionID, req.method))

	c.mu.Lock()
	if serr := c.settleLocked(opSubmitPhone, req); serr != nil {
		c.mu.Unlock()
		return serr
	}
	if err != nil {
		c.publishErrorLocked(err)
		c.mu.Unlock()
		c.notify(ctx, req.sessionID, LevelError, titleError, providerMessage(err))
		return err
	}
	if terr := c.transitionLocked(opSubmitPhone, StageOTPEntry); terr != nil {
		c.mu.Unlock()
		return c.rejectState(terr)
	}
	c.s.phone = strings.TrimSpace(phone)
	c.s.normalizedPhone = normalized
	c.s.ticket = VerificationTicket(ticket)
	c.mu.Unlock()

	c.notify(ctx, req.sessionID, LevelSuccess, titleOTPSent, "")
	return nil
}

// SubmitOTP confirms code against the stored ticket. On success the
// identity is stored and the session moves to StagePasswordReset. A failed
// confirmation keeps the ticket so the user can try another code.
func (c *Controller) SubmitOTP(ctx context.Context, code string) error {
	if c == nil || c.engine == nil {
		return ErrEngineNotReady
	}
	e := c.engine

	c.mu.Lock()
	if err := c.guardLocked(opSubmitOTP, StageOTPEntry); err != nil {
		c.mu.Unlock()
		return c.rejectState(err)
	}
	if c.s.ticket == "" {
		err := c.stateErrorLocked(opSubmitOTP, ErrTicketMissing)
		c.mu.Unlock()
		return c.rejectState(err)
	}
	trimmed, verr := validate.OTP(code)
	if verr != nil {
		err := c.rejectInputLocked("otp", verr)
		sessionID := c.s.id
		c.mu.Unlock()
		c.notify(ctx, sessionID, LevelError, titleEnterOTP, "")
		return err
	}
	ticket := c.s.ticket
	req := c.beginLocked()
	c.mu.Unlock()

	identity, err := flows.RunConfirmOTP(ctx, string(ticket), trimmed, e.recoveryDeps(req.sessionID, req.method))

	c.mu.Lock()
	if serr := c.settleLocked(opSubmitOTP, req); serr != nil {
		c.mu.Unlock()
		return serr
	}
	if err != nil {
		c.publishErrorLocked(err)
		c.mu.Unlock()
		c.notify(ctx, req.sessionID, LevelError, titleInvalidOTP, providerMessage(err))
		return err
	}
	c.s.identity = ConfirmedIdentity(identity)
	if terr := c.transitionLocked(opSubmitOTP, StagePasswordReset); terr != nil {
		c.s.identity = ConfirmedIdentity{}
		c.mu.Unlock()
		return c.rejectState(terr)
	}
	c.mu.Unlock()
	return nil
}

// ResendOTP issues a fresh challenge for the phone already accepted by
// SubmitPhone. On success the new ticket replaces the old one; the stage
// does not change.
func (c *Controller) ResendOTP(ctx context.Context) error {
	if c == nil || c.engine == nil {
		return ErrEngineNotReady
	}
	e := c.engine

	c.mu.Lock()
	if err := c.guardLocked(opResendOTP, StageOTPEntry); err != nil {
		c.mu.Unlock()
		return c.rejectState(err)
	}
	phone := c.s.normalizedPhone
	req := c.beginLocked()
	c.mu.Unlock()

	ticket, err := flows.RunIssueOTP(ctx, phone, e.recoveryDeps(req.sessionID, req.method))

	c.mu.Lock()
	if serr := c.settleLocked(opResendOTP, req); serr != nil {
		c.mu.Unlock()
		return serr
	}
	if err != nil {
		c.publishErrorLocked(err)
		c.mu.Unlock()
		c.notify(ctx, req.sessionID, LevelError, titleError, providerMessage(err))
		return err
	}
	c.s.ticket = VerificationTicket(ticket)
	c.mu.Unlock()

	c.notify(ctx, req.sessionID, LevelSuccess, titleOTPSent, "")
	return nil
}

// SubmitPassword replaces the credential of the confirmed identity. On
// success the session exits with OutcomePasswordReset.
func (c *Controller) SubmitPassword(ctx context.Context, password, confirm string) error {
	if c == nil || c.engine == nil {
		return ErrEngineNotReady
	}
	e := c.engine

	c.mu.Lock()
	if err := c.guardLocked(opSubmitPassword, StagePasswordReset); err != nil {
		c.mu.Unlock()
		return c.rejectState(err)
	}
	if c.s.identity.IsZero() {
		err := c.stateErrorLocked(opSubmitPassword, ErrIdentityMissing)
		c.mu.Unlock()
		return c.rejectState(err)
	}
	if verr := validate.PasswordPair(password, confirm, e.config.Validation.MinPasswordLength); verr != nil {
		err := c.rejectInputLocked("password", verr)
		sessionID := c.s.id
		c.mu.Unlock()
		c.notify(ctx, sessionID, LevelError, passwordTitle(verr), "")
		return err
	}
	identity := c.s.identity
	req := c.beginLocked()
	c.mu.Unlock()

	err := flows.RunSetCredential(ctx, flows.Identity(identity), password, e.recoveryDeps(req.sessionID, req.method))

	c.mu.Lock()
	if serr := c.settleLocked(opSubmitPassword, req); serr != nil {
		c.mu.Unlock()
		return serr
	}
	if err != nil {
		c.publishErrorLocked(err)
		c.mu.Unlock()
		c.notify(ctx, req.sessionID, LevelError, titleError, providerMessage(err))
		return err
	}
	if terr := c.exitLocked(opSubmitPassword, OutcomePasswordReset); terr != nil {
		c.mu.Unlock()
		return c.rejectState(terr)
	}
	c.s.identity = ConfirmedIdentity{}
	c.mu.Unlock()

	c.notify(ctx, req.sessionID, LevelSuccess, titlePasswordUpdated, "")
	return nil
}

// Cancel ends the session with OutcomeCancelled. It is accepted while a
// request is outstanding; that request's result is discarded when it
// arrives. No provider call is made.
func (c *Controller) Cancel() error {
	if c == nil || c.engine == nil {
		return ErrEngineNotReady
	}

	c.mu.Lock()
	if c.s.stage == StageExited {
		err := c.stateErrorLocked(opCancel, ErrSessionClosed)
		c.mu.Unlock()
		return c.rejectState(err)
	}
	c.s.generation++
	if c.s.busy {
		c.setBusyLocked(false)
	}
	if err := c.exitLocked(opCancel, OutcomeCancelled); err != nil {
		c.mu.Unlock()
		return c.rejectState(err)
	}
	c.s.ticket = ""
	c.s.identity = ConfirmedIdentity{}
	sessionID := c.s.id
	method := c.s.method
	c.mu.Unlock()

	c.engine.metricInc(MetricFlowCancelled)
	c.engine.emitAudit(context.Background(), auditEventCancel, true, sessionID, "", method.String(), nil, nil)
	return nil
}

// Restart discards the current session, exited or not, and opens a fresh
// one in StageChoosing under a new session ID.
func (c *Controller) Restart() {
	if c == nil || c.engine == nil {
		return
	}

	c.mu.Lock()
	from := c.s.stage
	c.s = newSession(c.s.generation + 1)
	ev := c.eventLocked(EventStageChanged)
	ev.From = from
	c.hub.publish(ev)
	sessionID := c.s.id
	c.mu.Unlock()

	c.engine.metricInc(MetricFlowStarted)
	c.engine.logger.Debug("recovery session restarted", zap.String("session_id", sessionID))
}

// Stage returns the current stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.stage
}

// Busy reports whether a provider request is outstanding.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.busy
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.id
}

func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.outcome
}

// Snapshot returns a consistent copy of the session without secrets.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionID:       c.s.id,
		Generation:      c.s.generation,
		Stage:           c.s.stage,
		Method:          c.s.method,
		Email:           c.s.email,
		Phone:           c.s.phone,
		NormalizedPhone: c.s.normalizedPhone,
		Ticket:          c.s.ticket,
		Subject:         c.s.identity.Subject,
		Busy:            c.s.busy,
		Outcome:         c.s.outcome,
	}
}

// Subscribe returns a channel of controller events and a function that
// closes it. A non-positive buffer selects Config.Events.SubscriberBuffer.
// Events that do not fit the buffer are dropped.
//
// A Controller not obtained from [Engine.Start] returns a closed channel.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	if c == nil || c.engine == nil || c.hub == nil {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	if buffer <= 0 {
		buffer = c.engine.config.Events.SubscriberBuffer
	}
	return c.hub.subscribe(buffer)
}

// guardLocked rejects the call unless the session is open, idle and in want.
func (c *Controller) guardLocked(op string, want Stage) error {
	switch {
	case c.s.stage == StageExited:
		return c.stateErrorLocked(op, ErrSessionClosed)
	case c.s.busy:
		return c.stateErrorLocked(op, ErrBusy)
	case c.s.stage != want:
		return c.stateErrorLocked(op, ErrIllegalTransition)
	}
	return nil
}

func (c *Controller) beginLocked() inflight {
	c.setBusyLocked(true)
	return inflight{
		sessionID:  c.s.id,
		generation: c.s.generation,
		method:     c.s.method,
	}
}

// settleLocked clears busy for a returning request, or reports that the
// session it belonged to is gone.
func (c *Controller) settleLocked(op string, req inflight) error {
	if c.s.generation != req.generation {
		c.engine.metricInc(MetricStaleResultDiscarded)
		c.engine.logger.Debug("discarding stale provider result",
			zap.String("session_id", req.sessionID),
			zap.String("op", op),
			zap.Uint64("generation", req.generation),
			zap.Uint64("current_generation", c.s.generation),
		)
		return &StateError{Op: op, Stage: c.s.stage, Err: ErrStaleResult}
	}
	c.setBusyLocked(false)
	return nil
}

// transitionLocked is the only place stage changes, apart from Restart
// replacing the whole session.
func (c *Controller) transitionLocked(op string, to Stage) error {
	from := c.s.stage
	if !CanTransition(from, to) {
		return c.stateErrorLocked(op, ErrIllegalTransition)
	}
	c.s.stage = to

	ev := c.eventLocked(EventStageChanged)
	ev.From = from
	c.hub.publish(ev)

	c.engine.logger.Debug("recovery stage changed",
		zap.String("session_id", c.s.id),
		zap.String("op", op),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	return nil
}

func (c *Controller) exitLocked(op string, outcome Outcome) error {
	c.s.outcome = outcome
	if err := c.transitionLocked(op, StageExited); err != nil {
		c.s.outcome = OutcomeNone
		return err
	}
	ev := c.eventLocked(EventExited)
	c.hub.publish(ev)
	return nil
}

func (c *Controller) setBusyLocked(busy bool) {
	c.s.busy = busy
	c.hub.publish(c.eventLocked(EventBusyChanged))
}

func (c *Controller) publishErrorLocked(err error) {
	ev := c.eventLocked(EventError)
	ev.Err = err
	c.hub.publish(ev)
}

func (c *Controller) eventLocked(kind EventKind) Event {
	return Event{
		Kind:       kind,
		SessionID:  c.s.id,
		Generation: c.s.generation,
		From:       c.s.stage,
		To:         c.s.stage,
		Busy:       c.s.busy,
		Outcome:    c.s.outcome,
		At:         time.Now(),
	}
}

func (c *Controller) stateErrorLocked(op string, err error) *StateError {
	return &StateError{Op: op, Stage: c.s.stage, Err: err}
}

func (c *Controller) rejectInputLocked(field string, err error) error {
	verr := &ValidationError{Field: field, Err: err}
	c.engine.metricInc(MetricValidationRejected)
	c.publishErrorLocked(verr)
	return verr
}

// rejectState records a caller contract violation. These are never shown
// to the user.
func (c *Controller) rejectState(err error) error {
	c.engine.metricInc(MetricStateRejected)
	c.engine.logger.Debug("recovery operation rejected", zap.Error(err))
	return err
}

func (c *Controller) notify(ctx context.Context, sessionID string, level NotificationLevel, title, detail string) {
	c.engine.notifier.Notify(ctx, Notification{
		SessionID: sessionID,
		Level:     level,
		Title:     title,
		Detail:    detail,
	})
}

func providerMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}

func passwordTitle(err error) string {
	switch {
	case errors.Is(err, ErrPasswordMismatch):
		return titlePasswordMismatch
	case errors.Is(err, ErrPasswordTooShort):
		return titlePasswordShort
	default:
		return titleEnterPassword
	}
}
