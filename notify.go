package goRecovery

import (
	"context"

	"go.uber.org/zap"
)

// NotificationLevel tells the presentation layer how to style a message.
type NotificationLevel uint8

const (
	LevelSuccess NotificationLevel = iota
	LevelError
)

func (l NotificationLevel) String() string {
	if l == LevelError {
		return "error"
	}
	return "success"
}

// Notification is a user-facing message. Title is short ("OTP sent"),
// Detail carries the provider's message when there is one.
type Notification struct {
	SessionID string
	Level     NotificationLevel
	Title     string
	Detail    string
}

// NotificationSink surfaces messages to the user. Notify is called
// synchronously after the session state is committed and outside any lock.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification)
}

const (
	titleEnterEmail       = "Enter email"
	titleInvalidEmail     = "Invalid email"
	titleResetEmailSent   = "Reset email sent"
	titleInvalidPhone     = "Invalid phone"
	titleOTPSent          = "OTP sent"
	titleEnterOTP         = "Enter OTP"
	titleInvalidOTP       = "Invalid OTP"
	titleEnterPassword    = "Enter password"
	titlePasswordMismatch = "Passwords do not match"
	titlePasswordShort    = "Password too short"
	titlePasswordUpdated  = "Password updated"
	titleError            = "Error"
)

// NoOpNotifier drops every notification.
type NoOpNotifier struct{}

func (NoOpNotifier) Notify(context.Context, Notification) {}

// ChannelNotifier buffers notifications in a channel. When the buffer is
// full Notify waits for ctx.
type ChannelNotifier struct {
	ch chan Notification
}

func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelNotifier{ch: make(chan Notification, buffer)}
}

func (n *ChannelNotifier) Notify(ctx context.Context, msg Notification) {
	select {
	case n.ch <- msg:
	case <-ctx.Done():
	}
}

func (n *ChannelNotifier) Notifications() <-chan Notification {
	return n.ch
}

// LogNotifier writes notifications through zap. Useful for headless hosts.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, msg Notification) {
	fields := []zap.Field{
		zap.String("session_id", msg.SessionID),
		zap.String("title", msg.Title),
	}
	if msg.Detail != "" {
		fields = append(fields, zap.String("detail", msg.Detail))
	}
	if msg.Level == LevelError {
		n.logger.Warn("notification", fields...)
		return
	}
	n.logger.Info("notification", fields...)
}
