package notify

import (
	"context"
	"crypto/tls"
	"errors"

	mail "github.com/go-mail/mail"
)

// TLS modes understood by SMTPSender.
const (
	TLSModeStartTLS = "starttls"
	TLSModeSSL      = "ssl"
	TLSModeNone     = "none"
)

// SMTPSender delivers email through an SMTP relay.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLSMode  string
}

func (s *SMTPSender) message(msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m
}

func (s *SMTPSender) dialer() *mail.Dialer {
	d := mail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	d.TLSConfig = &tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12}
	switch s.TLSMode {
	case TLSModeSSL:
		d.SSL = true
	case TLSModeNone:
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	return d
}

// Send dials the relay and delivers msg. The context is only checked before
// dialing; go-mail has no cancellable send.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if msg.Channel != ChannelEmail {
		return errors.New("smtp: only email messages can be sent")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.dialer().DialAndSend(s.message(msg))
}

var _ Sender = (*SMTPSender)(nil)
