package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"lager_lending_tool/config"
)

// Notifier delivers admin notifications. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Nop drops every notification; used when mail is disabled.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }

var ErrNotConfigured = errors.New("smtp host, sender or recipients missing")

// Mailer sends plain-text mail to the configured admin recipients over SMTP with STARTTLS.
type Mailer struct {
	cfg     config.SMTPConfig
	timeout time.Duration
	send    func(ctx context.Context, from string, to []string, msg []byte) error
	now     func() time.Time
}

// New returns a Mailer, or Nop when mail is disabled in config.
func New(cfg config.SMTPConfig) Notifier {
	if !cfg.Enabled {
		return Nop{}
	}
	m := &Mailer{cfg: cfg, timeout: 10 * time.Second, now: time.Now}
	m.send = m.smtpSend
	return m
}

func (m *Mailer) Notify(ctx context.Context, subject, body string) error {
	to := recipients(m.cfg.To)
	if m.cfg.Host == "" || m.cfg.From == "" || len(to) == 0 {
		return ErrNotConfigured
	}
	if m.cfg.AppName != "" {
		subject = fmt.Sprintf("[%s] %s", m.cfg.AppName, subject)
	}
	msg := m.compose(subject, body, to)
	return m.send(ctx, m.cfg.From, to, msg)
}

func recipients(list []string) []string {
	out := make([]string, 0, len(list))
	for _, addr := range list {
		if a := strings.TrimSpace(addr); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (m *Mailer) compose(subject, body string, to []string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}

func (m *Mailer) smtpSend(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.cfg.Username != "" && m.cfg.Password != "" {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
