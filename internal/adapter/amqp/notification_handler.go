package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/YelzhanWeb/printtrack/internal/adapter/logger"
	"github.com/YelzhanWeb/printtrack/internal/adapter/rabbitmq"
	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

type NotificationHandler struct {
	logger logger.Logger
	locale domain.Locale
	out    io.Writer
}

// NewNotificationHandler prints one line per event to out with status labels
// in locale.
func NewNotificationHandler(logger logger.Logger, locale domain.Locale, out io.Writer) *NotificationHandler {
	return &NotificationHandler{
		logger: logger,
		locale: locale,
		out:    out,
	}
}

type envelope struct {
	Event string `json:"event"`
}

func (h *NotificationHandler) HandleEvent(ctx context.Context, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse event", "", nil, err)
		return fmt.Errorf("%w: %v", rabbitmq.ErrPermanent, err)
	}

	switch env.Event {
	case interfaces.EventStatusChanged:
		var msg interfaces.StatusChangedMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			h.logger.Error("message_parse_failed", "Failed to parse status change", "", nil, err)
			return fmt.Errorf("%w: %v", rabbitmq.ErrPermanent, err)
		}
		h.statusChanged(msg)
	case interfaces.EventSeverityChanged:
		var msg interfaces.SeverityChangedMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			h.logger.Error("message_parse_failed", "Failed to parse severity change", "", nil, err)
			return fmt.Errorf("%w: %v", rabbitmq.ErrPermanent, err)
		}
		h.severityChanged(msg)
	default:
		h.logger.Warn("unknown_event", fmt.Sprintf("Ignoring event %q", env.Event), "", nil)
	}
	return nil
}

func (h *NotificationHandler) statusChanged(msg interfaces.StatusChangedMessage) {
	from := "-"
	if msg.OldStatus != nil {
		from = domain.LabelOf(*msg.OldStatus, h.locale)
	}
	to := domain.LabelOf(msg.NewStatus, h.locale)

	h.logger.Debug("notification_received", fmt.Sprintf("Received status change for order %s", msg.OrderNumber),
		msg.MessageID, map[string]interface{}{
			"order_number": msg.OrderNumber,
			"action":       msg.Action,
			"new_status":   msg.NewStatus,
		})

	// Print to console
	fmt.Fprintf(h.out, "Notification for order %s: '%s' -> '%s' on %s by %s\n",
		msg.OrderNumber, from, to, msg.ActionDate, msg.Operator)
	if msg.OldStatus != nil && msg.Action != domain.ActionUndo {
		fmt.Fprintf(h.out, "  left '%s' after %d day(s) (%s)\n", from, msg.PreviousDwellDays, msg.PreviousSeverity)
	}
}

func (h *NotificationHandler) severityChanged(msg interfaces.SeverityChangedMessage) {
	h.logger.Warn("sla_escalated", fmt.Sprintf("Order %s is now %s", msg.OrderNumber, msg.New), msg.MessageID, map[string]interface{}{
		"order_number": msg.OrderNumber,
		"status":       msg.Status,
		"old_severity": msg.Old,
		"new_severity": msg.New,
		"status_days":  msg.StatusDays,
	})

	fmt.Fprintf(h.out, "SLA alert for order %s: '%s' for %d day(s), %s -> %s\n",
		msg.OrderNumber, domain.LabelOf(msg.Status, h.locale), msg.StatusDays, msg.Old.Light(), msg.New.Light())
}
