package interfaces

import (
	"context"
	"time"

	"cloud.google.com/go/civil"

	"github.com/YelzhanWeb/printtrack/internal/domain"
)

// Event names carried in the "event" field of every message.
const (
	EventStatusChanged   = "status_changed"
	EventSeverityChanged = "severity_changed"
)

// Сообщения RabbitMQ
type StatusChangedMessage struct {
	MessageID         string            `json:"message_id"`
	Event             string            `json:"event"`
	OrderNumber       string            `json:"order_number"`
	Action            domain.ActionID   `json:"action"`
	OldStatus         *domain.StatusKey `json:"old_status"`
	NewStatus         domain.StatusKey  `json:"new_status"`
	ActionDate        civil.Date        `json:"action_date"`
	Operator          string            `json:"operator"`
	Notes             string            `json:"notes,omitempty"`
	PreviousDwellDays int               `json:"previous_dwell_days"`
	PreviousSeverity  domain.Severity   `json:"previous_severity,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
}

type SeverityChangedMessage struct {
	MessageID   string           `json:"message_id"`
	Event       string           `json:"event"`
	OrderNumber string           `json:"order_number"`
	Status      domain.StatusKey `json:"status"`
	Old         domain.Severity  `json:"old_severity"`
	New         domain.Severity  `json:"new_severity"`
	StatusDays  int              `json:"status_days"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Интерфейсы Messaging (Adapter/RabbitMQ)
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, msg StatusChangedMessage) error
	PublishSeverityChanged(ctx context.Context, msg SeverityChangedMessage) error
}

type EventConsumer interface {
	ConsumeEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(ctx context.Context, body []byte) error
