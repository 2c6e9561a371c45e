package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YelzhanWeb/printtrack/internal/adapter/logger"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

const reconnectDelay = 5 * time.Second

// ErrPermanent marks a handler failure that must not be redelivered.
var ErrPermanent = errors.New("permanent handler failure")

type consumer struct {
	conn     Connection
	exchange string
	queue    string
	prefetch int
	logger   logger.Logger
}

// NewConsumer subscribes to the event exchange. With an empty queue name a
// temporary exclusive queue is used and messages are auto-acknowledged;
// a named queue is durable, acknowledged per message and dead-lettered.
func NewConsumer(conn Connection, exchange, queue string, prefetch int, lgr logger.Logger) interfaces.EventConsumer {
	return &consumer{conn: conn, exchange: exchange, queue: queue, prefetch: prefetch, logger: lgr}
}

func (c *consumer) ConsumeEvents(ctx context.Context, handler interfaces.EventHandler) error {
	for {
		err := c.consume(ctx, handler)

		// Если контекст отменен или соединение закрыто намеренно - выходим
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err == nil {
			return nil
		}

		c.logger.Warn("consumer_disconnected", "Events consumer disconnected, reconnecting", "", map[string]interface{}{
			"error": err.Error(),
			"delay": reconnectDelay.String(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}

		if err := c.conn.Reconnect(); err != nil {
			c.logger.Error("rabbitmq_reconnect_failed", "Failed to reconnect to RabbitMQ", "", nil, err)
		}
	}
}

func (c *consumer) consume(ctx context.Context, handler interfaces.EventHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	// Отслеживаем закрытие канала
	closeChan := ch.NotifyClose()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	queue, autoAck, err := c.setupInfrastructure(ch)
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(queue, "", autoAck, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}

			err := handler(ctx, msg.Body)
			if autoAck {
				continue
			}
			var ackErr error
			switch {
			case err == nil:
				ackErr = msg.Ack(false)
			case errors.Is(err, ErrPermanent):
				// Отправляем в DLQ (requeue=false)
				ackErr = msg.Nack(false, false)
			default:
				ackErr = msg.Nack(false, !msg.Redelivered)
			}
			// The broker redelivers an unacknowledged message once the channel drops.
			if ackErr != nil {
				c.logger.Warn("ack_failed", "Failed to acknowledge message", "", map[string]interface{}{
					"delivery_tag": msg.DeliveryTag,
					"error":        ackErr.Error(),
				})
			}
		}
	}
}

// setupInfrastructure declares the exchange and the queue to read from. It
// reports whether the queue is temporary.
func (c *consumer) setupInfrastructure(ch Channel) (string, bool, error) {
	if err := ch.DeclareFanout(c.exchange); err != nil {
		return "", false, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if c.queue == "" {
		name, err := ch.DeclareQueue("", "")
		if err != nil {
			return "", false, fmt.Errorf("failed to declare queue: %w", err)
		}
		if err := ch.Bind(name, c.exchange); err != nil {
			return "", false, fmt.Errorf("failed to bind queue: %w", err)
		}
		return name, true, nil
	}

	// Declare DLQ exchange and queue
	dlqExchange := c.exchange + "_dlq"
	if err := ch.DeclareFanout(dlqExchange); err != nil {
		return "", false, fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}
	dlqQueue, err := ch.DeclareQueue(c.queue+"_dlq", "")
	if err != nil {
		return "", false, fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := ch.Bind(dlqQueue, dlqExchange); err != nil {
		return "", false, fmt.Errorf("failed to bind DLQ: %w", err)
	}

	name, err := ch.DeclareQueue(c.queue, dlqExchange)
	if err != nil {
		return "", false, fmt.Errorf("failed to declare queue %s: %w", c.queue, err)
	}
	if err := ch.Bind(name, c.exchange); err != nil {
		return "", false, fmt.Errorf("failed to bind queue %s: %w", c.queue, err)
	}
	return name, false, nil
}
