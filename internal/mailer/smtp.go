package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/sutcoin/business/internal/config"
	"github.com/sutcoin/business/internal/model"
)

// Dispatcher delivers composed notifications over SMTP. A failure here is
// fatal to the whole submission: the mail is the only durable record of it.
type Dispatcher struct {
	cfg config.MailConfig
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(cfg config.MailConfig) *Dispatcher {
	return &Dispatcher{cfg: cfg}
}

// Send performs one SMTP transaction: connect, optional STARTTLS, optional
// AUTH, MAIL/RCPT/DATA, QUIT. The configured timeout bounds the connect and
// every subsequent read/write on the connection.
func (d *Dispatcher) Send(ctx context.Context, msg model.Notification) error {
	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	dialer := &net.Dialer{Timeout: d.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp connect to %s: %w", addr, err)
	}
	if d.cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(d.cfg.Timeout))
	}
	client, err := smtp.NewClient(conn, d.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if d.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: d.cfg.Host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if d.cfg.Username != "" && d.cfg.Password != "" {
		auth := smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(d.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(msg.Recipient); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(buildMessage(d.cfg.From, msg)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("DATA close: %w", err)
	}
	return client.Quit()
}

// buildMessage assembles the RFC 5322 envelope with an HTML body.
func buildMessage(from string, msg model.Notification) []byte {
	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=utf-8\r\n\r\n",
		from, msg.Recipient, msg.Subject, time.Now().Format(time.RFC1123Z),
	)
	return []byte(headers + msg.HTMLBody)
}
