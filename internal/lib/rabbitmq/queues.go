package rabbitmq

const (
	// Exchange direct-exchange для всех уведомлений.
	Exchange = "notifications"
	// RoutingKeyEmail ключ маршрутизации писем.
	RoutingKeyEmail = "email"
	// QueueEmail очередь, которую читает воркер отправки писем.
	QueueEmail = "notifications.email"

	prefetch = 10
)

// QueueConfig пара очередь/ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди, которые нужно объявить.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueEmail, RoutingKey: RoutingKeyEmail},
	}
}
