// Package services отправляет транзакционные письма из очереди уведомлений.
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/smtp"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// ErrMalformed сообщение из очереди не удалось разобрать; повтор не поможет.
var ErrMalformed = errors.New("malformed notification")

// SenderService рендерит и отправляет письма.
type SenderService struct {
	transport smtp.Dialer
	appName   string
	appURL    string
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, transport smtp.Dialer, appName, appURL string) *SenderService {
	return &SenderService{
		transport: transport,
		appName:   appName,
		appURL:    strings.TrimRight(appURL, "/"),
		log:       log,
	}
}

// Send обрабатывает тело сообщения из очереди.
func (s *SenderService) Send(body []byte) error {
	const op = "services.sender.Send"

	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("failed to unmarshal message body", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}
	if n.Email == "" {
		return fmt.Errorf("%s: %w: empty recipient", op, ErrMalformed)
	}

	subject, text, err := s.Render(n)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.sendEmail([]string{n.Email}, subject, text)
}

// Render возвращает тему и текст письма для уведомления.
func (s *SenderService) Render(n models.Notification) (string, string, error) {
	name := n.Name
	if name == "" {
		name = "there"
	}

	switch n.Kind {
	case models.NotificationWelcome:
		return "Welcome to " + s.appName,
			fmt.Sprintf("Hi %s,\n\nThanks for signing up for %s. You can start building workflows at %s/dashboard.\n",
				name, s.appName, s.appURL), nil

	case models.NotificationPasswordReset:
		return "Reset your " + s.appName + " password",
			fmt.Sprintf("Hi %s,\n\nUse the link below to set a new password. It expires in one hour.\n\n%s/reset-password?token=%s\n\nIf you did not request this, ignore this email.\n",
				name, s.appURL, n.Token), nil

	case models.NotificationSubscriptionCreated:
		return "Your " + s.appName + " subscription is active",
			fmt.Sprintf("Hi %s,\n\nYour %s plan is now active. Manage billing at %s/dashboard/billing.\n",
				name, n.PlanName, s.appURL), nil

	case models.NotificationPaymentFailed:
		return "Payment failed for your " + s.appName + " subscription",
			fmt.Sprintf("Hi %s,\n\nWe could not process your latest payment. Please update your payment method at %s/dashboard/billing to keep access.\n",
				name, s.appURL), nil

	default:
		return "", "", fmt.Errorf("%w: unknown kind %q", ErrMalformed, n.Kind)
	}
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	err := smtp.Deliver(s.transport, smtp.Message{
		From:    s.transport.From(),
		To:      to,
		Subject: subject,
		Text:    bodyText,
	})
	if err != nil {
		s.log.Error("failed to send email", slog.String("subject", subject), sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to), slog.String("subject", subject))
	return nil
}
