package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	"github.com/YelzhanWeb/printtrack/internal/adapter/logger"
	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

// Sweepers heartbeat every 30 seconds; three missed beats count as offline.
const sweeperTimeout = 90 * time.Second

const exportConcurrency = 8

type Service struct {
	orders    interfaces.OrderRepository
	audit     interfaces.AuditRepository
	sweepers  interfaces.SweeperRepository
	locker    interfaces.OrderLocker
	publisher interfaces.EventPublisher
	clock     interfaces.Clock
	logger    logger.Logger
}

func NewService(
	orders interfaces.OrderRepository,
	audit interfaces.AuditRepository,
	sweepers interfaces.SweeperRepository,
	locker interfaces.OrderLocker,
	publisher interfaces.EventPublisher,
	clock interfaces.Clock,
	logger logger.Logger,
) *Service {
	return &Service{
		orders:    orders,
		audit:     audit,
		sweepers:  sweepers,
		locker:    locker,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

var _ interfaces.TrackingService = (*Service)(nil)

func (s *Service) CreateOrder(ctx context.Context, actor interfaces.Actor, cmd interfaces.CreateOrderCommand, locale domain.Locale) (*interfaces.OrderDetails, error) {
	if !actor.CanWrite() {
		return nil, ErrForbidden
	}
	today := s.clock.Today()

	// 1. Номер заказа: если не задан, выдаем следующий номер предложения
	number := strings.TrimSpace(cmd.Number)
	if number == "" {
		next, err := s.orders.NextQuoteNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate order number: %w", err)
		}
		number = next
	}

	// 2. Создание доменной сущности (валидация и запись создания)
	order, err := domain.NewOrder(domain.NewOrderParams{
		Number:       number,
		CustomerName: cmd.CustomerName,
		Product:      cmd.Product,
		OrderDate:    cmd.OrderDate,
		Operator:     actor.Name,
	}, today)
	if err != nil {
		return nil, err
	}

	// 3. Сохранение в БД (заказ, первая запись истории и аудит в одной транзакции)
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateNumber) {
			return nil, ErrDuplicateOrderNumber
		}
		s.logger.Error("db_transaction_failed", "Failed to create order", "", map[string]interface{}{
			"order_number": order.Number,
		}, err)
		return nil, err
	}
	s.logger.Info("order_created", fmt.Sprintf("Order %s created", order.Number), "", map[string]interface{}{
		"order_number": order.Number,
		"operator":     actor.Name,
	})

	s.refreshLight(ctx, order, today)

	first, _ := order.History.Entry(0)
	s.publishChange(ctx, order.Number, domain.Outcome{Entry: first})

	return s.details(order, today, locale, actor), nil
}

func (s *Service) GetOrder(ctx context.Context, actor interfaces.Actor, number string, locale domain.Locale) (*interfaces.OrderDetails, error) {
	order, err := s.load(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.details(order, s.clock.Today(), locale, actor), nil
}

func (s *Service) ApplyAction(ctx context.Context, actor interfaces.Actor, cmd interfaces.ApplyActionCommand, locale domain.Locale) (*interfaces.ChangeResult, error) {
	return s.change(ctx, actor, cmd.Number, locale, func(o *domain.Order, today civil.Date) (domain.Outcome, error) {
		return o.ApplyAction(domain.ActionCommand{
			Action:   cmd.Action,
			Date:     cmd.Date,
			Notes:    cmd.Notes,
			Operator: actor.Name,
		}, today)
	})
}

func (s *Service) Skip(ctx context.Context, actor interfaces.Actor, cmd interfaces.SkipCommand, locale domain.Locale) (*interfaces.ChangeResult, error) {
	return s.change(ctx, actor, cmd.Number, locale, func(o *domain.Order, today civil.Date) (domain.Outcome, error) {
		return o.Skip(domain.SkipCommand{
			Target:   cmd.Target,
			Date:     cmd.Date,
			Notes:    cmd.Notes,
			Operator: actor.Name,
		}, today)
	})
}

func (s *Service) Cancel(ctx context.Context, actor interfaces.Actor, cmd interfaces.CancelCommand, locale domain.Locale) (*interfaces.ChangeResult, error) {
	return s.change(ctx, actor, cmd.Number, locale, func(o *domain.Order, today civil.Date) (domain.Outcome, error) {
		return o.Cancel(domain.CancelCommand{
			Date:     cmd.Date,
			Reason:   cmd.Reason,
			Operator: actor.Name,
		}, today)
	})
}

func (s *Service) change(
	ctx context.Context,
	actor interfaces.Actor,
	number string,
	locale domain.Locale,
	op func(o *domain.Order, today civil.Date) (domain.Outcome, error),
) (*interfaces.ChangeResult, error) {
	if !actor.CanWrite() {
		return nil, ErrForbidden
	}
	today := s.clock.Today()

	var result *interfaces.ChangeResult
	err := s.withOrder(ctx, number, func(order *domain.Order) error {
		out, err := op(order, today)
		if err != nil {
			return err
		}

		saved, err := s.orders.AppendEntry(ctx, order, out.Entry, domain.AuditForOutcome(order.Number, out))
		if err != nil {
			return err
		}
		order.RecordEntryID(saved.ID)
		out.Entry = saved

		s.logger.Info("status_changed", fmt.Sprintf("Order %s moved from %s to %s", order.Number, out.Previous, saved.ToStatus), "", map[string]interface{}{
			"order_number":        order.Number,
			"action":              saved.Action,
			"operator":            saved.Operator,
			"previous_dwell_days": out.PreviousDwellDays,
			"previous_severity":   out.PreviousSeverity,
		})

		s.refreshLight(ctx, order, today)
		s.publishChange(ctx, order.Number, out)

		result = &interfaces.ChangeResult{Outcome: out, OrderDetails: *s.details(order, today, locale, actor)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UndoLast hard-deletes the newest history entry. The creation entry can
// never be removed.
func (s *Service) UndoLast(ctx context.Context, actor interfaces.Actor, cmd interfaces.UndoCommand, locale domain.Locale) (*interfaces.UndoResult, error) {
	if !actor.CanUndo() {
		return nil, ErrForbidden
	}
	today := s.clock.Today()

	var result *interfaces.UndoResult
	err := s.withOrder(ctx, cmd.Number, func(order *domain.Order) error {
		removed, err := order.UndoLast()
		if err != nil {
			return err
		}

		audit := domain.AuditForUndo(order.Number, removed, actor.Name, strings.TrimSpace(cmd.Reason))
		if err := s.orders.DeleteLastEntry(ctx, order, removed, audit); err != nil {
			return err
		}

		s.logger.Info("step_undone", fmt.Sprintf("Order %s returned to %s", order.Number, order.CurrentStatus), "", map[string]interface{}{
			"order_number": order.Number,
			"removed":      removed.ToStatus,
			"operator":     actor.Name,
		})

		s.refreshLight(ctx, order, today)
		s.publishStatus(ctx, interfaces.StatusChangedMessage{
			OrderNumber: order.Number,
			Action:      domain.ActionUndo,
			OldStatus:   &removed.ToStatus,
			NewStatus:   order.CurrentStatus,
			ActionDate:  today,
			Operator:    actor.Name,
			Notes:       audit.Reason,
		})

		result = &interfaces.UndoResult{Removed: removed, OrderDetails: *s.details(order, today, locale, actor)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AmendEntry edits the date or notes of one history entry. Statuses of
// existing entries never change.
func (s *Service) AmendEntry(ctx context.Context, actor interfaces.Actor, cmd interfaces.AmendEntryCommand, locale domain.Locale) (*interfaces.OrderDetails, error) {
	if !actor.CanWrite() {
		return nil, ErrForbidden
	}
	today := s.clock.Today()

	var result *interfaces.OrderDetails
	err := s.withOrder(ctx, cmd.Number, func(order *domain.Order) error {
		entry, err := order.Amend(cmd.EntryID, domain.Amendment{
			ActionDate: cmd.ActionDate,
			Notes:      cmd.Notes,
			FromStatus: cmd.FromStatus,
			ToStatus:   cmd.ToStatus,
		}, today)
		if err != nil {
			return err
		}

		audit := domain.AuditForAmend(order.Number, entry, actor.Name, strings.TrimSpace(cmd.Reason))
		if err := s.orders.UpdateEntry(ctx, order, entry, audit); err != nil {
			return err
		}

		s.logger.Info("history_amended", fmt.Sprintf("History entry %d of order %s amended", entry.ID, order.Number), "", map[string]interface{}{
			"order_number": order.Number,
			"entry_id":     entry.ID,
			"action_date":  entry.ActionDate.String(),
			"operator":     actor.Name,
		})

		s.refreshLight(ctx, order, today)
		result = s.details(order, today, locale, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateOrder changes descriptive fields only. Status and history are left
// to the workflow operations.
func (s *Service) UpdateOrder(ctx context.Context, actor interfaces.Actor, cmd interfaces.UpdateOrderCommand, locale domain.Locale) (*interfaces.OrderDetails, error) {
	if !actor.CanWrite() {
		return nil, ErrForbidden
	}
	today := s.clock.Today()

	var result *interfaces.OrderDetails
	err := s.withOrder(ctx, cmd.Number, func(order *domain.Order) error {
		fields, err := order.Update(cmd.Patch)
		if err != nil {
			return err
		}

		audit := domain.AuditForUpdate(order.Number, order.CurrentStatus, fields, actor.Name, strings.TrimSpace(cmd.Reason))
		if err := s.orders.UpdateAttributes(ctx, order, audit); err != nil {
			return err
		}

		s.logger.Info("order_updated", fmt.Sprintf("Order %s updated", order.Number), "", map[string]interface{}{
			"order_number": order.Number,
			"fields":       fields,
			"operator":     actor.Name,
		})

		s.refreshLight(ctx, order, today)
		result = s.details(order, today, locale, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteOrder removes an order and its history for good. Only the audit
// log keeps a trace of it.
func (s *Service) DeleteOrder(ctx context.Context, actor interfaces.Actor, cmd interfaces.DeleteOrderCommand) (*interfaces.DeleteResult, error) {
	if !actor.CanUndo() {
		return nil, ErrForbidden
	}
	number := strings.TrimSpace(cmd.Number)
	if strings.TrimSpace(cmd.ConfirmNumber) != number {
		return nil, ErrConfirmationMismatch
	}

	var result *interfaces.DeleteResult
	err := s.withOrder(ctx, number, func(order *domain.Order) error {
		audit := domain.AuditForDelete(order.Number, order.CurrentStatus, actor.Name, strings.TrimSpace(cmd.Reason))
		if err := s.orders.Delete(ctx, order, audit); err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		s.logger.Warn("order_deleted", fmt.Sprintf("Order %s deleted in %s", order.Number, order.CurrentStatus), "", map[string]interface{}{
			"order_number": order.Number,
			"status":       order.CurrentStatus,
			"operator":     actor.Name,
		})

		result = &interfaces.DeleteResult{OrderNumber: order.Number, DeletedStatus: order.CurrentStatus}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

const customerSearchLimit = 10

// SearchCustomers suggests known customer names for q. A blank query
// matches nothing.
func (s *Service) SearchCustomers(ctx context.Context, q string) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []string{}, nil
	}
	return s.orders.SearchCustomers(ctx, q, customerSearchLimit)
}

func (s *Service) ListOrders(ctx context.Context, filter domain.Filter, locale domain.Locale) ([]interfaces.OrderRow, error) {
	summaries, err := s.orders.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()

	rows := make([]interfaces.OrderRow, 0, len(summaries))
	for _, sum := range summaries {
		ev := sum.Evaluate(today)
		if !filter.Match(sum, ev.Severity) {
			continue
		}
		stage := domain.PrimaryStageOf(sum.Status)
		rows = append(rows, interfaces.OrderRow{
			Summary:     sum,
			StatusLabel: domain.LabelOf(sum.Status, locale),
			Stage:       stage,
			StageName:   domain.StageName(stage, locale),
			StatusDays:  ev.StatusDays,
			Severity:    ev.Severity,
			Light:       ev.Severity.Light(),
			Anomaly:     ev.Anomaly,
		})
	}
	return rows, nil
}

func (s *Service) Board(ctx context.Context, locale domain.Locale) (*interfaces.BoardView, error) {
	summaries, err := s.orders.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()

	view := &interfaces.BoardView{
		Board:       domain.Tally(summaries, today),
		AsOf:        today,
		StageNames:  make(map[domain.StageID]string),
		FilterNames: make(map[domain.FilterGroupID]string),
	}
	for _, st := range domain.PrimaryStages() {
		view.StageNames[st.ID] = domain.StageName(st.ID, locale)
	}
	view.StageNames[domain.StageUnclassified] = domain.StageName(domain.StageUnclassified, locale)
	for _, fg := range domain.FilterGroups() {
		view.FilterNames[fg.ID] = domain.FilterGroupName(fg.ID, locale)
	}
	return view, nil
}

func (s *Service) NextQuoteNumber(ctx context.Context) (string, error) {
	return s.orders.NextQuoteNumber(ctx)
}

func (s *Service) History(ctx context.Context, number string, locale domain.Locale) ([]domain.EntryView, error) {
	order, err := s.load(ctx, number)
	if err != nil {
		return nil, err
	}
	return domain.DescribeHistory(order, s.clock.Today(), locale), nil
}

func (s *Service) Audit(ctx context.Context, number string) ([]domain.AuditRecord, error) {
	if _, err := s.load(ctx, number); err != nil {
		return nil, err
	}
	return s.audit.ListAudit(ctx, number)
}

// ExportViews loads the full view of every order matching filter, keeping
// the listing order.
func (s *Service) ExportViews(ctx context.Context, filter domain.Filter, locale domain.Locale) ([]domain.OrderView, error) {
	summaries, err := s.orders.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()

	var numbers []string
	for _, sum := range summaries {
		if filter.Match(sum, sum.Evaluate(today).Severity) {
			numbers = append(numbers, sum.Number)
		}
	}

	views := make([]domain.OrderView, len(numbers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportConcurrency)
	for i, number := range numbers {
		g.Go(func() error {
			order, err := s.load(gctx, number)
			if err != nil {
				return err
			}
			views[i] = domain.Describe(order, today, locale, false)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Service) SweepersStatus(ctx context.Context) ([]interfaces.SweeperStatusResponse, error) {
	sweepers, err := s.sweepers.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	resp := make([]interfaces.SweeperStatusResponse, 0, len(sweepers))
	for _, sw := range sweepers {
		status := sw.Status
		if !sw.IsOnline(now, sweeperTimeout) {
			status = domain.SweeperStatusOffline
		}
		resp = append(resp, interfaces.SweeperStatusResponse{
			Name:            sw.Name,
			Status:          status,
			OrdersEvaluated: sw.OrdersEvaluated,
			LastSeen:        sw.LastSeen,
			LastSweepAt:     sw.LastSweepAt,
		})
	}
	return resp, nil
}

// withOrder runs fn on a freshly loaded order while holding its writer lock.
func (s *Service) withOrder(ctx context.Context, number string, fn func(*domain.Order) error) error {
	unlock, err := s.locker.Lock(ctx, number)
	if err != nil {
		if errors.Is(err, interfaces.ErrLockNotObtained) {
			return ErrOrderBusy
		}
		return fmt.Errorf("failed to lock order %s: %w", number, err)
	}
	defer unlock()

	order, err := s.load(ctx, number)
	if err != nil {
		return err
	}
	return fn(order)
}

func (s *Service) load(ctx context.Context, number string) (*domain.Order, error) {
	order, err := s.orders.FindByNumber(ctx, strings.TrimSpace(number))
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) details(order *domain.Order, today civil.Date, locale domain.Locale, actor interfaces.Actor) *interfaces.OrderDetails {
	return &interfaces.OrderDetails{
		Order:   domain.Describe(order, today, locale, actor.CanUndo()),
		History: domain.DescribeHistory(order, today, locale),
	}
}

// refreshLight updates the cached light columns. Failures are logged only;
// the sweeper repairs them on its next pass.
func (s *Service) refreshLight(ctx context.Context, order *domain.Order, today civil.Date) {
	sev, err := domain.SeverityOf(order.CurrentStatus, order.EnteredAt(), today)
	if err != nil {
		s.logger.Warn("data_anomaly", fmt.Sprintf("Order %s has a future status date", order.Number), "", map[string]interface{}{
			"order_number": order.Number,
			"entered_at":   order.EnteredAt().String(),
		})
	}
	days, _ := domain.ElapsedDays(order.EnteredAt(), today)
	if err := s.orders.UpdateLight(ctx, order.Number, sev, days); err != nil {
		s.logger.Error("db_error", "Failed to update status light", "", map[string]interface{}{
			"order_number": order.Number,
		}, err)
	}
}

func (s *Service) publishChange(ctx context.Context, number string, out domain.Outcome) {
	s.publishStatus(ctx, interfaces.StatusChangedMessage{
		OrderNumber:       number,
		Action:            out.Entry.Action,
		OldStatus:         out.Entry.FromStatus,
		NewStatus:         out.Entry.ToStatus,
		ActionDate:        out.Entry.ActionDate,
		Operator:          out.Entry.Operator,
		Notes:             out.Entry.Notes,
		PreviousDwellDays: out.PreviousDwellDays,
		PreviousSeverity:  out.PreviousSeverity,
	})
}

func (s *Service) publishStatus(ctx context.Context, msg interfaces.StatusChangedMessage) {
	if s.publisher == nil {
		return
	}
	// Не блокируем изменение из-за ошибки уведомления
	if err := s.publisher.PublishStatusChanged(ctx, msg); err != nil {
		s.logger.Error("rabbitmq_publish_failed", "Failed to publish status change", "", map[string]interface{}{
			"order_number": msg.OrderNumber,
		}, err)
	}
}
