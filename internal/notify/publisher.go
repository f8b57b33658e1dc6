// Package notify ставит уведомления в очередь для воркера отправки писем.
package notify

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/workflow-saas/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// Publisher публикует уведомления в exchange notifications.
type Publisher struct {
	ch  rabbitmq.Channel
	log *slog.Logger
}

// New создаёт publisher поверх открытого канала. ch == nil даёт publisher,
// который только пишет уведомление в лог (брокер не настроен).
func New(ch rabbitmq.Channel, log *slog.Logger) *Publisher {
	return &Publisher{ch: ch, log: log}
}

// Publish отправляет уведомление с ключом маршрутизации email.
func (p *Publisher) Publish(ctx context.Context, n models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ch == nil {
		p.log.Debug("broker not configured, notification dropped",
			slog.String("kind", string(n.Kind)), slog.String("email", n.Email))
		return nil
	}
	return rabbitmq.PublishMessage(p.ch, rabbitmq.Exchange, rabbitmq.RoutingKeyEmail, n)
}
