package rabbitmq

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// Channel: подмножество *amqp.Channel, нужное для публикации.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Client держит соединение и канал RabbitMQ.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Dial подключается к брокеру и открывает канал.
func Dial(url string, logger *log.Entry) (*Client, error) {
	if logger == nil {
		logger = log.WithField("component", "rabbitmq")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close rabbitmq connection")
		}
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	logger.Info("rabbitmq connected")
	return &Client{conn: conn, channel: channel}, nil
}

// Channel возвращает AMQP канал.
func (c *Client) Channel() Channel {
	return c.channel
}

// Close закрывает канал и соединение.
func (c *Client) Close() error {
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
