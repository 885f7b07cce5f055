package queue

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"github.com/postline-app/PublishDispatcher/internal/config"
)

const (
	routingKeyWork = "publish.job"
	routingKeyWait = "publish.wait"
)

func amqpURL(cfg config.RabbitMQConfig) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.VHost)
}

// declareTopology sets up the work queue and its wait queue. Retries ride the
// broker: a job published to the wait queue with a per-message TTL
// dead-letters back into the work queue when the TTL expires, so no
// dispatcher instance ever sleeps on a retry.
func declareTopology(ch *amqp091.Channel, cfg config.RabbitMQConfig) error {
	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %q: %w", cfg.Exchange, err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("declare queue %q: %w", cfg.Queue, err)
	}
	if err := ch.QueueBind(cfg.Queue, routingKeyWork, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %q: %w", cfg.Queue, err)
	}

	if _, err := ch.QueueDeclare(
		cfg.WaitQueue,
		true,
		false,
		false,
		false,
		amqp091.Table{
			"x-dead-letter-exchange":    cfg.Exchange,
			"x-dead-letter-routing-key": routingKeyWork,
		},
	); err != nil {
		return fmt.Errorf("declare wait queue %q: %w", cfg.WaitQueue, err)
	}
	if err := ch.QueueBind(cfg.WaitQueue, routingKeyWait, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind wait queue %q: %w", cfg.WaitQueue, err)
	}

	return nil
}
