package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/campaignwala/backend/internal/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SMTPMailer sends OTP emails through an SMTP relay.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	ttl    string
	logger *zap.Logger
	dial   func(m ...*gomail.Message) error
}

func NewSMTPMailer(cfg config.SMTPConfig, otp *config.OTPConfig, logger *zap.Logger) *SMTPMailer {
	m := &SMTPMailer{
		cfg:    cfg,
		ttl:    otp.CodeTTL.String(),
		logger: logger.Named("mailer"),
	}
	if cfg.Host != "" {
		d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
		m.dial = d.DialAndSend
	}
	return m
}

func (m *SMTPMailer) SendOTP(ctx context.Context, to, name, code string, purpose Purpose) error {
	if m.dial == nil {
		return ErrEmailNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.Sender)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subjectFor(purpose))
	msg.SetBody("text/plain", fmt.Sprintf("Hello %s,\n\nYour verification code is: %s\nIt is valid for %s.\n", name, code, m.ttl))
	msg.AddAlternative("text/html", fmt.Sprintf(
		`<p>Hello %s,</p><p>Your verification code is:</p><h2 style="letter-spacing:6px">%s</h2><p>It is valid for %s. Do not share it with anyone.</p>`,
		html.EscapeString(name), code, m.ttl))

	if err := m.dial(msg); err != nil {
		m.logger.Error("failed to send OTP email", zap.String("to", to), zap.String("purpose", string(purpose)), zap.Error(err))
		return fmt.Errorf("send email: %w", err)
	}

	m.logger.Info("OTP email sent", zap.String("to", to), zap.String("purpose", string(purpose)))
	return nil
}
