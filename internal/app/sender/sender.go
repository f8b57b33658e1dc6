// Package sender воркер, который читает очередь уведомлений и отправляет письма.
package sender

import (
	"context"
	"errors"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/workflow-saas/internal/config"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/workflow-saas/internal/services/sender"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.NewSenderService(logger, transport, cfg.AppName, cfg.AppURL),
		logger:        logger,
	}, nil
}

// Handle обрабатывает сообщение. Битые сообщения подтверждаются и
// отбрасываются, чтобы не крутиться в очереди бесконечно.
func Handle(log *slog.Logger, send func([]byte) error) func([]byte) error {
	return func(body []byte) error {
		err := send(body)
		if errors.Is(err, senderservice.ErrMalformed) {
			log.Warn("dropping malformed notification", sl.Err(err))
			return nil
		}
		return err
	}
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.QueueEmail, Handle(a.logger, a.senderService.Send), a.logger)
	if err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", rabbitmq.QueueEmail), sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
