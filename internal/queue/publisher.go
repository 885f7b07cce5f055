package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/retry"

	"github.com/postline-app/PublishDispatcher/internal/config"
	"github.com/postline-app/PublishDispatcher/internal/model"
)

type Publisher struct {
	conn          *amqp091.Connection
	channel       *amqp091.Channel
	exchange      string
	contentType   string
	retryStrategy retry.Strategy
}

func NewPublisher(ctx context.Context, cfg config.RabbitMQConfig, strategy retry.Strategy) (*Publisher, error) {
	var conn *amqp091.Connection
	var err error

	err = retry.DoContext(ctx, strategy, func() error {
		conn, err = amqp091.Dial(amqpURL(cfg))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("error creating channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		return nil, err
	}

	return &Publisher{
		conn:          conn,
		channel:       ch,
		exchange:      cfg.Exchange,
		contentType:   "application/json",
		retryStrategy: strategy,
	}, nil
}

// PublishJob enqueues a job for immediate dispatch.
func (p *Publisher) PublishJob(ctx context.Context, job *model.PublishJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.JobID, err)
	}
	return p.publish(ctx, routingKeyWork, body, "")
}

// PublishRetry parks a job in the wait queue. The per-message TTL expires
// after delay and the broker dead-letters the job back into the work queue.
func (p *Publisher) PublishRetry(ctx context.Context, job *model.PublishJob, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.JobID, err)
	}
	expiration := strconv.FormatInt(delay.Milliseconds(), 10)
	return p.publish(ctx, routingKeyWait, body, expiration)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, body []byte, expiration string) error {
	return retry.DoContext(ctx, p.retryStrategy, func() error {
		return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
			ContentType:  p.contentType,
			DeliveryMode: amqp091.Persistent,
			Expiration:   expiration,
			Body:         body,
		})
	})
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
