package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	"github.com/jordan-wright/email"

	"github.com/hive-corporation/nightwatch/internal/config"
)

// EmailNotifier delivers one HTML message per notification over SMTP.
// The relay is expected to be an internal, unauthenticated MTA.
type EmailNotifier struct {
	host   string
	port   int
	from   string
	useTLS bool
}

func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		host:   cfg.Host,
		port:   cfg.Port,
		from:   cfg.From,
		useTLS: cfg.UseTLS,
	}
}

func (e *EmailNotifier) Enabled() bool {
	return e.host != "" && e.from != ""
}

func (e *EmailNotifier) SendHTML(ctx context.Context, app, subject, htmlBody string, to []string) error {
	if len(to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := email.NewEmail()
	msg.From = e.from
	msg.To = to
	msg.Subject = subject
	msg.HTML = []byte(htmlBody)

	addr := net.JoinHostPort(e.host, strconv.Itoa(e.port))
	var err error
	if e.useTLS {
		err = msg.SendWithStartTLS(addr, nil, &tls.Config{ServerName: e.host})
	} else {
		err = msg.Send(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to send mail for %s: %w", app, err)
	}
	return nil
}
