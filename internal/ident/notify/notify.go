// Package notify delivers the one-time values a user must receive out of
// band: registration verification tokens, password reset tokens and MFA codes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is one outgoing notification.
type Message struct {
	Channel Channel
	To      string
	Subject string
	Body    string
}

// Sender delivers messages over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

var ErrNoSender = errors.New("notify: no sender for channel")

// Dispatcher renders notifications and routes them to the sender of their
// channel.
type Dispatcher struct {
	Email Sender
	SMS   Sender

	// LinkBase, when set, turns tokens into links: LinkBase + "?token=" + token.
	LinkBase string
}

func (d *Dispatcher) route(ctx context.Context, msg Message) error {
	var s Sender
	switch msg.Channel {
	case ChannelEmail:
		s = d.Email
	case ChannelSMS:
		s = d.SMS
	}
	if s == nil {
		return fmt.Errorf("%w %q", ErrNoSender, msg.Channel)
	}
	if err := s.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify %s: %w", msg.Channel, err)
	}
	return nil
}

func (d *Dispatcher) tokenLine(path, token string) string {
	if d.LinkBase == "" {
		return token
	}
	return strings.TrimSuffix(d.LinkBase, "/") + path + "?token=" + token
}

// Verification sends the registration verification token.
func (d *Dispatcher) Verification(ctx context.Context, to, token string) error {
	return d.route(ctx, Message{
		Channel: ChannelEmail,
		To:      to,
		Subject: "Confirm your email address",
		Body:    "Use this to confirm your registration:\n\n" + d.tokenLine("/register/confirm", token) + "\n",
	})
}

// PasswordReset sends a password reset token.
func (d *Dispatcher) PasswordReset(ctx context.Context, to, token string) error {
	return d.route(ctx, Message{
		Channel: ChannelEmail,
		To:      to,
		Subject: "Reset your password",
		Body:    "Use this to choose a new password:\n\n" + d.tokenLine("/password-reset", token) + "\n\nIf you did not ask for a reset, ignore this message.\n",
	})
}

// MfaCode sends an out-of-band verification code over email or SMS.
func (d *Dispatcher) MfaCode(ctx context.Context, channel Channel, to, code string) error {
	msg := Message{Channel: channel, To: to}
	switch channel {
	case ChannelSMS:
		msg.Body = "Your verification code is " + code
	default:
		msg.Subject = "Your verification code"
		msg.Body = "Your verification code is " + code + "\n"
	}
	return d.route(ctx, msg)
}
