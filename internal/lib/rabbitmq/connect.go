// Package rabbitmq транспорт уведомлений между API и воркером отправки писем.
//
// API публикует письма (приветствие, сброс пароля, события оплаты) в direct-exchange
// notifications с ключом email. Воркер notification-sender читает очередь
// notifications.email и подтверждает каждое сообщение вручную: успешно
// отправленное подтверждается, упавшее возвращается в очередь. Обе стороны
// объявляют одинаковую топологию при старте, так что порядок запуска не важен.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Connect подключается к брокеру, делая до retries попыток с паузой delay.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	if retries < 1 {
		retries = 1
	}
	for i := range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		if i < retries-1 {
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel открывает канал с ограничением prefetch и объявляет топологию уведомлений.
// При ошибке канал закрывается.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := declareTopology(ch, queues); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}

// declareTopology объявляет durable direct-exchange и привязанные к нему durable очереди.
func declareTopology(ch *amqp.Channel, queues []QueueConfig) error {
	const (
		durable    = true
		autoDelete = false
		exclusive  = false
		internal   = false
		noWait     = false
	)

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeDirect, durable, autoDelete, internal, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.QueueName, durable, autoDelete, exclusive, noWait, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, Exchange, noWait, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", q.QueueName, q.RoutingKey, err)
		}
	}
	return nil
}
