package rabbitmq

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"

	"wenlock/internal/models"
)

// DefaultExchange is the fanout exchange user events are published to.
const DefaultExchange = "users.events"

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL      string
	Exchange string
	Logger   *zap.Logger // defaults to a no-op logger
}

// NewClient creates a new RabbitMQ client.
// It connects to RabbitMQ, opens a channel and declares the events exchange.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"fanout",     // kind: every subscriber gets every event
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	return &Client{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		logger:   cfg.Logger,
	}, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred during RabbitMQ client close: %v", errs)
	}
	return nil
}

// PublishUserEvent publishes a user lifecycle event to the exchange.
func (c *Client) PublishUserEvent(event models.UserEvent) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}

	msg, err := encodeEvent(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.channel.Publish(c.exchange, event.Type, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// ConsumeUserEvents subscribes a private, auto-deleted queue to the exchange
// and calls handler for every event until the connection closes. Messages
// are auto-acked; undecodable ones and handler failures are logged and
// dropped.
func (c *Client) ConsumeUserEvents(handler func(models.UserEvent) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	queue, err := c.channel.QueueDeclare(
		"",    // name: server-generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue for consuming: %w", err)
	}

	if err := c.channel.QueueBind(queue.Name, "", c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to %s: %w", c.exchange, err)
	}

	msgs, err := c.channel.Consume(
		queue.Name, // queue
		"",         // consumer tag
		true,       // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go c.dispatch(msgs, handler)

	return nil
}

func (c *Client) dispatch(msgs <-chan amqp.Delivery, handler func(models.UserEvent) error) {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	for msg := range msgs {
		event, err := decodeEvent(msg.Body)
		if err != nil {
			logger.Warn("dropping undecodable user event",
				zap.String("message_id", msg.MessageId),
				zap.Error(err),
			)
			continue
		}
		if err := handler(event); err != nil {
			logger.Error("user event handler failed",
				zap.String("type", event.Type),
				zap.String("user_id", event.UserID),
				zap.Error(err),
			)
		}
	}
}

func encodeEvent(event models.UserEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal user event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Type:         event.Type,
		Body:         body,
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
	}, nil
}

func decodeEvent(body []byte) (models.UserEvent, error) {
	var event models.UserEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return models.UserEvent{}, fmt.Errorf("failed to unmarshal user event: %w", err)
	}
	if event.Type == "" || event.UserID == "" {
		return models.UserEvent{}, fmt.Errorf("incomplete user event %q", body)
	}
	return event, nil
}
