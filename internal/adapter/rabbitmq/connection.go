package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/YelzhanWeb/printtrack/internal/config"
)

const (
	connectionName = "printtrack"
	heartbeat      = 10 * time.Second
)

var errConnectionClosed = errors.New("rabbitmq connection is closed")

// Connection is a broker connection that can be redialled after a drop.
type Connection interface {
	Channel() (Channel, error)
	Reconnect() error
	Close() error
}

// Channel exposes the topology and traffic calls the adapters need. Every
// exchange is a durable fanout.
type Channel interface {
	DeclareFanout(exchange string) error
	// DeclareQueue declares a durable queue, or a server-named exclusive
	// auto-delete queue when name is empty. deadLetter, if set, names the
	// exchange rejected messages are routed to.
	DeclareQueue(name, deadLetter string) (string, error)
	Bind(queue, exchange string) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	NotifyClose() <-chan *amqp.Error
	Close() error
}

type amqpConnection struct {
	url    string
	mu     sync.RWMutex
	conn   *amqp.Connection
	closed bool
}

type amqpChannel struct {
	ch *amqp.Channel
}

func Connect(cfg config.RabbitMQConfig) (Connection, error) {
	c := &amqpConnection{url: cfg.URL()}
	conn, err := c.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	c.conn = conn
	return c, nil
}

func (c *amqpConnection) dial() (*amqp.Connection, error) {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(connectionName)
	return amqp.DialConfig(c.url, amqp.Config{
		Heartbeat:  heartbeat,
		Properties: props,
	})
}

func (c *amqpConnection) Channel() (Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errConnectionClosed
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return &amqpChannel{ch: ch}, nil
}

// Reconnect redials the broker when the underlying connection was lost.
// It is a no-op while the connection is healthy.
func (c *amqpConnection) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnectionClosed
	}
	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}

	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("failed to reconnect to RabbitMQ: %w", err)
	}
	c.conn = conn
	return nil
}

func (c *amqpConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}

func (ch *amqpChannel) DeclareFanout(exchange string) error {
	return ch.ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil)
}

func (ch *amqpChannel) DeclareQueue(name, deadLetter string) (string, error) {
	var args amqp.Table
	if deadLetter != "" {
		args = amqp.Table{"x-dead-letter-exchange": deadLetter}
	}
	temporary := name == ""
	q, err := ch.ch.QueueDeclare(name, !temporary, temporary, temporary, false, args)
	if err != nil {
		return "", err
	}
	return q.Name, nil
}

func (ch *amqpChannel) Bind(queue, exchange string) error {
	return ch.ch.QueueBind(queue, "", exchange, false, nil)
}

func (ch *amqpChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return ch.ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

func (ch *amqpChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return ch.ch.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
}

func (ch *amqpChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	return ch.ch.Qos(prefetchCount, prefetchSize, global)
}

func (ch *amqpChannel) NotifyClose() <-chan *amqp.Error {
	return ch.ch.NotifyClose(make(chan *amqp.Error, 1))
}

func (ch *amqpChannel) Close() error {
	return ch.ch.Close()
}
