package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// LogSender writes messages to the request logger instead of delivering them.
// It stands in for channels without a configured provider. The body, which
// carries the secret, is only logged at debug level.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	l := slogx.FromContext(ctx)
	l.Info("notification not delivered, no provider configured",
		slog.String("channel", string(msg.Channel)),
		slog.String("to", Mask(msg.To)),
		slog.String("subject", msg.Subject),
	)
	l.Debug("notification body", slog.String("channel", string(msg.Channel)), slog.String("body", msg.Body))
	return nil
}

// Mask hides most of an address for logs: "alice@example.com" becomes
// "a****@example.com" and "+61400111222" becomes "********1222".
func Mask(addr string) string {
	if local, domain, ok := strings.Cut(addr, "@"); ok {
		if len(local) <= 1 {
			return "*@" + domain
		}
		return local[:1] + strings.Repeat("*", len(local)-1) + "@" + domain
	}
	if len(addr) <= 4 {
		return strings.Repeat("*", len(addr))
	}
	return strings.Repeat("*", len(addr)-4) + addr[len(addr)-4:]
}

var _ Sender = LogSender{}
