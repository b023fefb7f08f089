package dispatch

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/opencourt/courtwatch/internal/model"
)

// SMTPConfig holds mail transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether the transport is fully configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

// SMTPDispatcher delivers digests by email.
type SMTPDispatcher struct {
	cfg  SMTPConfig
	log  zerolog.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPDispatcher returns an email dispatcher.
func NewSMTPDispatcher(cfg SMTPConfig, log zerolog.Logger) *SMTPDispatcher {
	return &SMTPDispatcher{cfg: cfg, log: log, send: smtp.SendMail}
}

// SendDigest implements Dispatcher.
func (d *SMTPDispatcher) SendDigest(_ context.Context, dg *model.Digest) error {
	subject := fmt.Sprintf("Court openings: %d new window", len(dg.Windows))
	if len(dg.Windows) != 1 {
		subject += "s"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", d.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", dg.Recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(RenderDigest(dg))

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	auth := smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	if err := d.send(addr, auth, d.cfg.From, []string{dg.Recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", dg.Recipient, err)
	}
	d.log.Info().
		Str("recipient", dg.Recipient).
		Str("subscription", dg.SubscriptionID).
		Int("windows", len(dg.Windows)).
		Msg("digest email sent")
	return nil
}
