package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/smartshop/smartshop-backend/config"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"golang.org/x/time/rate"
)

var (
	ErrUnknownTemplate = errors.New("unknown mail template")
	ErrNoRecipient     = errors.New("mail recipient is empty")
)

// Sender delivers a named template to one recipient. Any error is a delivery failure.
type Sender interface {
	Send(ctx context.Context, template, recipient string, vars map[string]string) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends mail through an SMTP relay, throttled by a token bucket
type SMTPSender struct {
	cfg      config.MailConfig
	limiter  *rate.Limiter
	sendMail sendMailFunc
	devMode  bool
}

// NewSMTPSender creates the sender. Without SMTP credentials it runs in
// dev mode and only logs the rendered message.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	perSec := cfg.SendsPerSec
	if perSec <= 0 {
		perSec = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	devMode := cfg.Username == "" || cfg.Password == ""
	if devMode {
		logger.Warn("MAIL_USERNAME not configured, emails will be logged only")
	}

	return &SMTPSender{
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(perSec), burst),
		sendMail: smtp.SendMail,
		devMode:  devMode,
	}
}

func (s *SMTPSender) Send(ctx context.Context, template, recipient string, vars map[string]string) error {
	if strings.TrimSpace(recipient) == "" {
		return ErrNoRecipient
	}

	subject, body, err := Render(template, vars)
	if err != nil {
		return err
	}

	if s.devMode {
		logger.Info("[dev mode] email not sent", map[string]interface{}{
			"template":  template,
			"recipient": recipient,
			"subject":   subject,
		})
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mail rate limiter: %w", err)
	}

	msg := buildMessage(s.cfg.DefaultSender, recipient, subject, body)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := s.cfg.Host + ":" + s.cfg.Port

	if err := s.sendMail(addr, auth, s.cfg.DefaultSender, []string{recipient}, msg); err != nil {
		logger.Error("Failed to send email", err, map[string]interface{}{
			"template":  template,
			"recipient": recipient,
		})
		return fmt.Errorf("smtp send: %w", err)
	}

	logger.Info("Email sent", map[string]interface{}{
		"template":  template,
		"recipient": recipient,
	})
	return nil
}

var headerSanitizer = strings.NewReplacer("\r", " ", "\n", " ")

func buildMessage(from, to, subject, body string) []byte {
	subject = headerSanitizer.Replace(subject)
	return []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		from, to, subject, body,
	))
}
