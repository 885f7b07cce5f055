package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/postline-app/PublishDispatcher/internal/config"
	"github.com/postline-app/PublishDispatcher/internal/dispatcher"
	"github.com/postline-app/PublishDispatcher/internal/model"
	"github.com/postline-app/PublishDispatcher/internal/ports"
)

// JobHandler processes one job and decides its fate on the queue.
type JobHandler interface {
	HandleJob(ctx context.Context, job *model.PublishJob) (dispatcher.Decision, error)
}

// infraRetryDelay is how long a job waits before redelivery when the handler
// itself fails (storage or ledger trouble).
const infraRetryDelay = 5 * time.Second

type Consumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	cfg     config.RabbitMQConfig
}

func NewConsumer(ctx context.Context, cfg config.RabbitMQConfig, strategy retry.Strategy) (*Consumer, error) {
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

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 8
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set prefetch: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
	}, nil
}

// Run consumes the work queue until ctx is cancelled. Deliveries are acked
// manually: a settled job is acked, a job with pending channels is re-parked
// in the wait queue before the original delivery is acked, and a handler
// error parks the job in the wait queue with a fixed delay (falling back to
// nack-with-requeue only if even that publish fails).
func (c *Consumer) Run(ctx context.Context, handler JobHandler, publisher ports.JobPublisher) error {
	msgs, err := c.channel.Consume(
		c.cfg.Queue,
		"",    // consumer tag, broker-generated
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handleDelivery(ctx, d, handler, publisher)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp091.Delivery, handler JobHandler, publisher ports.JobPublisher) {
	var job model.PublishJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		zlog.Logger.Error().Err(err).Msg("malformed job payload, dropping")
		if nackErr := d.Nack(false, false); nackErr != nil {
			zlog.Logger.Error().Err(nackErr).Msg("nack malformed delivery")
		}
		return
	}

	decision, err := handler.HandleJob(ctx, &job)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", job.JobID).Msg("job handling failed, parking in wait queue")
		if pubErr := publisher.PublishRetry(ctx, &job, infraRetryDelay); pubErr != nil {
			zlog.Logger.Error().Err(pubErr).Str("job_id", job.JobID).Msg("park failed, requeueing")
			if nackErr := d.Nack(false, true); nackErr != nil {
				zlog.Logger.Error().Err(nackErr).Str("job_id", job.JobID).Msg("nack delivery")
			}
			return
		}
		if ackErr := d.Ack(false); ackErr != nil {
			zlog.Logger.Error().Err(ackErr).Str("job_id", job.JobID).Msg("ack delivery")
		}
		return
	}

	if !decision.Ack {
		if err := publisher.PublishRetry(ctx, &job, decision.RetryDelay); err != nil {
			zlog.Logger.Error().Err(err).Str("job_id", job.JobID).Msg("schedule retry failed, requeueing")
			if nackErr := d.Nack(false, true); nackErr != nil {
				zlog.Logger.Error().Err(nackErr).Str("job_id", job.JobID).Msg("nack delivery")
			}
			return
		}
	}

	if err := d.Ack(false); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", job.JobID).Msg("ack delivery")
	}
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			return err
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
