// Package notify renders and delivers subscriber emails.
package notify

import (
	"context"

	"go.uber.org/zap"

	"countyportal/internal/config"
)

// Mailer delivers one HTML email. A nil error means the transport accepted it.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// Prober is implemented by transports that can check their relay without
// sending mail.
type Prober interface {
	Probe(ctx context.Context) error
}

// LogMailer only logs. It is the default when no SMTP relay is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return LogMailer{logger: logger}
}

func (m LogMailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	_ = ctx
	m.logger.Info("email suppressed by log mailer",
		zap.String("to", to), zap.String("subject", subject), zap.Int("body_bytes", len(htmlBody)))
	return nil
}

// NewMailer picks the transport named by MAIL_SENDER.
func NewMailer(cfg config.Config, logger *zap.Logger) (Mailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("mailer")
	switch cfg.MailSender {
	case "smtp":
		return NewSMTPMailer(SMTPConfig{
			Host:               cfg.SMTPHost,
			Port:               cfg.SMTPPort,
			User:               cfg.SMTPUser,
			Password:           cfg.SMTPPassword,
			From:               cfg.MailFrom,
			ReplyTo:            cfg.MailReplyTo,
			ImplicitTLS:        cfg.SMTPTLS,
			StartTLS:           cfg.SMTPStartTLS,
			InsecureSkipVerify: cfg.SMTPInsecureSkipVerify,
		}, log)
	default:
		return NewLogMailer(log), nil
	}
}
