// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	netmail "net/mail"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/types"
)

const dialTimeout = 10 * time.Second

// Envelope is a rendered message ready for the transport
type Envelope struct {
	From    string
	To      string
	Subject string
	Body    []byte
}

// DeliverFunc hands an envelope to the transport
type DeliverFunc func(context.Context, *Envelope) error

var _ MailerInterface = (*Mailer)(nil)

type Mailer struct {
	cfg     *Config
	deliver DeliverFunc

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (m *Mailer) Send(ctx context.Context, n types.Notification) error {
	ctx, span := m.tracer.Start(ctx, "mail.Mailer.Send")
	defer span.End()

	env, err := m.Render(n)
	if err != nil {
		return err
	}

	if err := m.deliver(ctx, env); err != nil {
		return fmt.Errorf("failed to deliver %s mail: %w", n.Kind, err)
	}

	m.logger.Debugf("delivered %s mail", n.Kind)

	return nil
}

// Render builds the full MIME message for a notification
func (m *Mailer) Render(n types.Notification) (*Envelope, error) {
	msg, ok := messages[n.Kind]
	if !ok {
		return nil, fmt.Errorf("no template for notification kind %q", n.Kind)
	}

	to, err := netmail.ParseAddress(n.Recipient)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}

	link, err := m.link(msg.path, n)
	if err != nil {
		return nil, err
	}

	var html bytes.Buffer
	err = msg.body.Execute(&html, struct {
		Link  string
		Token string
		Data  map[string]string
	}{link, n.Token, n.Data})
	if err != nil {
		return nil, fmt.Errorf("failed to render %s template: %w", n.Kind, err)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.Write(html.Bytes())

	return &Envelope{
		From:    m.cfg.From,
		To:      to.Address,
		Subject: msg.subject,
		Body:    b.Bytes(),
	}, nil
}

func (m *Mailer) link(path string, n types.Notification) (string, error) {
	base, err := url.Parse(strings.TrimSuffix(m.cfg.PublicURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid public URL: %w", err)
	}

	if n.Kind == types.NotificationInvitation {
		// the invitation id travels in the token slot
		return base.JoinPath(path, n.Token, "accept").String(), nil
	}

	u := base.JoinPath(path)
	u.RawQuery = url.Values{"token": {n.Token}}.Encode()

	return u.String(), nil
}

// smtpDeliver dials the configured relay, upgrades with STARTTLS when
// enabled and authenticates when credentials are set
func (m *Mailer) smtpDeliver(ctx context.Context, env *Envelope) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if m.cfg.StartTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return fmt.Errorf("smtp server %s does not support STARTTLS", addr)
		}
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}

	if m.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return err
		}
	}

	if err := c.Mail(env.From); err != nil {
		return err
	}
	if err := c.Rcpt(env.To); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(env.Body); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.Quit()
}

// WithDeliver swaps the SMTP transport, used by tests
func (m *Mailer) WithDeliver(deliver DeliverFunc) *Mailer {
	m.deliver = deliver
	return m
}

func NewMailer(cfg *Config, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Mailer {
	m := new(Mailer)

	m.cfg = cfg
	m.deliver = m.smtpDeliver

	m.tracer = tracer
	m.monitor = monitor
	m.logger = logger

	return m
}
