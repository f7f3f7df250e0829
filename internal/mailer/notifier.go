// Package mailer composes and transmits notification emails with a single
// optional attachment over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/lcoppola/dropforward/internal/instrumentation"
	"github.com/lcoppola/dropforward/internal/logging"
)

// Config holds the SMTP transport settings.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string

	// TLS selects implicit TLS; when false STARTTLS is used.
	TLS bool
}

// Notifier sends emails through a configured SMTP transport. A Notifier with
// no transport host reports a definitive send failure rather than panicking;
// callers treat the missing delivery identifier as the failure signal.
type Notifier struct {
	cfg     Config
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	// dialTimeout bounds the initial connection.
	dialTimeout time.Duration
}

// NewNotifier returns a Notifier using the given transport settings.
// metrics may be nil.
func NewNotifier(cfg Config, logger *slog.Logger, metrics *instrumentation.Metrics) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	return &Notifier{
		cfg:         cfg,
		logger:      logging.WithComponent(logger, "mailer"),
		metrics:     metrics,
		dialTimeout: 30 * time.Second,
	}
}

// Send composes a message with the optional attachment and transmits it,
// returning the message's delivery identifier on success. The recipient list
// is comma separated.
func (n *Notifier) Send(ctx context.Context, from, to, subject, body, attachmentPath string) (string, error) {
	if n.cfg.Host == "" {
		return "", fmt.Errorf("mail transport not initialized")
	}

	recipients := splitRecipients(to)
	if len(recipients) == 0 {
		return "", fmt.Errorf("no recipients given")
	}

	messageID := fmt.Sprintf("%s@%s", uuid.NewString(), domainOf(from))
	msg, err := composeMessage(messageID, from, recipients, subject, body, attachmentPath)
	if err != nil {
		return "", fmt.Errorf("failed to compose message: %w", err)
	}

	if err := n.transmit(ctx, from, recipients, msg); err != nil {
		n.metrics.RecordMailSend(ctx, instrumentation.StatusError)
		return "", err
	}

	n.metrics.RecordMailSend(ctx, instrumentation.StatusSuccess)
	n.logger.Info("message sent",
		logging.Operation("send"),
		slog.String("message_id", messageID))
	return messageID, nil
}

func (n *Notifier) transmit(ctx context.Context, from string, to []*mail.Address, msg []byte) error {
	addr := net.JoinHostPort(n.cfg.Host, n.cfg.Port)

	var client *smtp.Client
	var err error
	if n.cfg.TLS {
		client, err = n.dialTLS(addr)
	} else {
		client, err = n.dialStartTLS(addr)
	}
	if err != nil {
		return err
	}
	defer client.Close()

	if n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt.Address); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt.Address, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := writer.Write(msg); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing message body: %w", err)
	}

	return client.Quit()
}

// dialTLS connects over an implicit TLS connection.
func (n *Notifier) dialTLS(addr string) (*smtp.Client, error) {
	tlsConfig := &tls.Config{ServerName: n.cfg.Host}

	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: n.dialTimeout}, "tcp", addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("TLS dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}
	return client, nil
}

// dialStartTLS connects in plain text and upgrades with STARTTLS.
func (n *Notifier) dialStartTLS(addr string) (*smtp.Client, error) {
	conn, err := net.DialTimeout("tcp", addr, n.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}

	tlsConfig := &tls.Config{ServerName: n.cfg.Host}
	if err := client.StartTLS(tlsConfig); err != nil {
		client.Close()
		return nil, fmt.Errorf("SMTP STARTTLS: %w", err)
	}
	return client, nil
}

func splitRecipients(to string) []*mail.Address {
	var out []*mail.Address
	for _, part := range strings.Split(to, ",") {
		addr := strings.TrimSpace(part)
		if addr != "" {
			out = append(out, &mail.Address{Address: addr})
		}
	}
	return out
}

func domainOf(address string) string {
	if _, domain, ok := strings.Cut(address, "@"); ok && domain != "" {
		return domain
	}
	return "localhost"
}
