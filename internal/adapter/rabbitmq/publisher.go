package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

type publisher struct {
	conn     Connection
	exchange string
}

// NewPublisher publishes order events to a fanout exchange.
func NewPublisher(conn Connection, exchange string) interfaces.EventPublisher {
	return &publisher{conn: conn, exchange: exchange}
}

func (p *publisher) PublishStatusChanged(ctx context.Context, msg interfaces.StatusChangedMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	msg.Event = interfaces.EventStatusChanged
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return p.publish(ctx, msg.MessageID, msg.Event, msg.Timestamp, msg)
}

func (p *publisher) PublishSeverityChanged(ctx context.Context, msg interfaces.SeverityChangedMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	msg.Event = interfaces.EventSeverityChanged
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return p.publish(ctx, msg.MessageID, msg.Event, msg.Timestamp, msg)
}

func (p *publisher) publish(ctx context.Context, id, event string, ts time.Time, msg any) error {
	if err := p.conn.Reconnect(); err != nil {
		return err
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.DeclareFanout(p.exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    id,
		Type:         event,
		Timestamp:    ts,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}
