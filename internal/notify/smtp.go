package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

const defaultDialTimeout = 10 * time.Second

type SMTPConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	From               string
	ReplyTo            string
	ImplicitTLS        bool
	StartTLS           bool
	InsecureSkipVerify bool
}

type sendFunc func(ctx context.Context, from string, rcpt []string, raw []byte) error

type SMTPMailer struct {
	cfg     SMTPConfig
	from    *mail.Address
	replyTo *mail.Address
	logger  *zap.Logger
	now     func() time.Time
	send    sendFunc
}

func NewSMTPMailer(cfg SMTPConfig, logger *zap.Logger) (*SMTPMailer, error) {
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse MAIL_FROM: %w", err)
	}
	m := &SMTPMailer{cfg: cfg, from: from, logger: logger, now: time.Now}
	if strings.TrimSpace(cfg.ReplyTo) != "" {
		if m.replyTo, err = mail.ParseAddress(cfg.ReplyTo); err != nil {
			return nil, fmt.Errorf("parse MAIL_REPLY_TO: %w", err)
		}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.send = m.sendSMTP
	return m, nil
}

func (m *SMTPMailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return wrapDelivery(fmt.Errorf("parse recipient: %w", err))
	}
	raw, err := m.compose(rcpt, subject, htmlBody)
	if err != nil {
		return wrapDelivery(err)
	}
	return wrapDelivery(m.sendWithSenderFallback(ctx, []string{rcpt.Address}, raw))
}

func (m *SMTPMailer) compose(to *mail.Address, subject, htmlBody string) ([]byte, error) {
	var h mail.Header
	h.SetDate(m.now())
	h.SetAddressList("From", []*mail.Address{m.from})
	h.SetAddressList("To", []*mail.Address{to})
	if m.replyTo != nil {
		h.SetAddressList("Reply-To", []*mail.Address{m.replyTo})
	}
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}
	h.Set("MIME-Version", "1.0")
	h.Set("X-Mailer", "countyportal")
	h.SetContentType("text/html", map[string]string{"charset": "UTF-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}
	if _, err := io.WriteString(w, htmlBody); err != nil {
		return nil, fmt.Errorf("write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message writer: %w", err)
	}
	return buf.Bytes(), nil
}

// sendWithSenderFallback retries once with the SMTP login as envelope sender
// when the relay refuses MAIL_FROM.
func (m *SMTPMailer) sendWithSenderFallback(ctx context.Context, rcpt []string, raw []byte) error {
	envelopeFrom := m.from.Address
	err := m.send(ctx, envelopeFrom, rcpt, raw)
	if err == nil {
		return nil
	}
	if !IsSenderPolicyError(err) {
		return err
	}
	authIdentity := strings.TrimSpace(m.cfg.User)
	if authIdentity != "" && strings.Contains(authIdentity, "@") && !strings.EqualFold(envelopeFrom, authIdentity) {
		m.logger.Warn("relay rejected envelope sender, retrying as login",
			zap.String("from", envelopeFrom), zap.String("login", authIdentity))
		retryErr := m.send(ctx, authIdentity, rcpt, raw)
		if retryErr == nil {
			return nil
		}
		if IsSenderPolicyError(retryErr) {
			return fmt.Errorf("%w: %v", ErrSenderRejected, retryErr)
		}
		return retryErr
	}
	return fmt.Errorf("%w: %v", ErrSenderRejected, err)
}

// dial connects, upgrades to TLS when configured and authenticates.
func (m *SMTPMailer) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	tlsConfig := &tls.Config{ServerName: m.cfg.Host, InsecureSkipVerify: m.cfg.InsecureSkipVerify}

	dialer := &net.Dialer{Timeout: defaultDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if m.cfg.ImplicitTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if m.cfg.StartTLS && !m.cfg.ImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				_ = client.Close()
				return nil, err
			}
		}
	}
	if m.cfg.User != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
			if err := client.Auth(auth); err != nil {
				_ = client.Close()
				return nil, err
			}
		}
	}
	return client, nil
}

// Probe checks that the relay accepts a connection and our credentials.
func (m *SMTPMailer) Probe(ctx context.Context) error {
	client, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Quit()
}

func (m *SMTPMailer) sendSMTP(ctx context.Context, from string, rcpt []string, raw []byte) error {
	client, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		return err
	}
	for _, r := range rcpt {
		if err := client.Rcpt(strings.TrimSpace(r)); err != nil {
			return err
		}
	}
	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(raw); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}
