package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ats/internal/config"
	"ats/internal/utils/helpers"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// ErrEmailTimeout — SMTP не ответил за отведённое время.
var ErrEmailTimeout = errors.New("email send timed out")

// Mailer — отправка транзакционного письма; возвращает Message-ID.
type Mailer interface {
	Send(ctx context.Context, to string, content helpers.EmailContent) (string, error)
}

// smtpDialer — то, что нужно от *gomail.Dialer; подменяется в тестах.
type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailService struct {
	dialer  smtpDialer
	from    string
	timeout time.Duration
}

// NewSMTPDialer собирает транспорт один раз при старте процесса.
func NewSMTPDialer(cfg *config.Config) *gomail.Dialer {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	d.SSL = cfg.SMTPSecure
	return d
}

func NewEmailService(dialer smtpDialer, from string, timeout time.Duration) *EmailService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EmailService{dialer: dialer, from: from, timeout: timeout}
}

func (s *EmailService) Send(ctx context.Context, to string, content helpers.EmailContent) (string, error) {
	msgID := fmt.Sprintf("<%s@%s>", uuid.NewString(), mailDomain(s.from))

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", content.Subject)
	m.SetHeader("Message-ID", msgID)
	m.SetBody("text/plain", content.Text)
	m.AddAlternative("text/html", content.HTML)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// gomail не принимает контекст, поэтому ограничиваем ожидание сами.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", err
		}
		return msgID, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrEmailTimeout
		}
		return "", ctx.Err()
	}
}

func mailDomain(from string) string {
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		return strings.Trim(from[i+1:], "> ")
	}
	return "localhost"
}
