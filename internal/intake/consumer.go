package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"phraseindex/internal/config"
	"phraseindex/internal/logging"
)

// Consumer reads discovery messages from a durable queue, one unacknowledged
// delivery at a time.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	handler *Handler
	logger  *slog.Logger
}

// Dial connects to the broker and declares the intake queue.
func Dial(cfg *config.Config, handler *Handler, logger *slog.Logger) (*Consumer, error) {
	if cfg.Intake.AMQPURL == "" {
		return nil, errors.New("intake amqp_url is not configured")
	}
	conn, err := amqp.Dial(cfg.Intake.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := channel.QueueDeclare(cfg.Intake.Queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", cfg.Intake.Queue, err)
	}
	if err := channel.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{
		conn:    conn,
		channel: channel,
		queue:   cfg.Intake.Queue,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "intake"),
	}, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.logger.Info("intake consumer started", logging.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("intake delivery channel closed")
			}
			if err := c.handler.Settle(ctx, delivery.Body, delivery); err != nil {
				c.logger.Warn("acknowledge delivery failed", logging.Error(err))
			}
		}
	}
}

// Close shuts down the channel and connection.
func (c *Consumer) Close() error {
	var errs []error
	if c.channel != nil {
		errs = append(errs, c.channel.Close())
	}
	if c.conn != nil && !c.conn.IsClosed() {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}
