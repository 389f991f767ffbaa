package messagequeue

import (
	"context"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// RabbitMQService implements Publisher using RabbitMQ.
type RabbitMQService struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
}

// NewRabbitMQServiceConfig contains options for creating a new RabbitMQService.
type NewRabbitMQServiceConfig struct {
	URL    string
	Logger *zap.Logger
}

// NewRabbitMQService dials RabbitMQ and opens a channel.
func NewRabbitMQService(cfg NewRabbitMQServiceConfig) (*RabbitMQService, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open RabbitMQ channel: %w", err)
	}

	logger.Info("Connected to RabbitMQ")
	return &RabbitMQService{conn: conn, channel: ch, logger: logger}, nil
}

// Publish declares queueName as a durable queue and publishes a persistent message to it.
// amqp calls do not take a context, so ctx is only checked before publishing.
func (s *RabbitMQService) Publish(ctx context.Context, queueName string, contentType string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q, err := s.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	err = s.channel.Publish(
		"",     // exchange
		q.Name, // routing key (queue name)
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  contentType,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("publish to queue %s: %w", queueName, err)
	}
	s.logger.Debug("Published message", zap.String("queue", queueName), zap.Int("bytes", len(body)))
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (s *RabbitMQService) Close() error {
	var lastErr error
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.logger.Warn("Error closing RabbitMQ channel", zap.Error(err))
			lastErr = err
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Error closing RabbitMQ connection", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}
