package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YelzhanWeb/printtrack/internal/adapter/logger"
	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

const (
	heartbeatInterval = 30 * time.Second
	heartbeatTimeout  = 3 * heartbeatInterval
)

// Report summarises one sweep.
type Report struct {
	Evaluated int
	Escalated int
	Anomalies int
	Failed    int
}

type Service struct {
	orders      interfaces.OrderRepository
	sweepers    interfaces.SweeperRepository
	publisher   interfaces.EventPublisher
	clock       interfaces.Clock
	logger      logger.Logger
	name        string
	interval    time.Duration
	concurrency int
	wg          sync.WaitGroup
}

func NewService(
	orders interfaces.OrderRepository,
	sweepers interfaces.SweeperRepository,
	publisher interfaces.EventPublisher,
	clock interfaces.Clock,
	logger logger.Logger,
	name string,
	interval time.Duration,
	concurrency int,
) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		orders:      orders,
		sweepers:    sweepers,
		publisher:   publisher,
		clock:       clock,
		logger:      logger,
		name:        name,
		interval:    interval,
		concurrency: concurrency,
	}
}

var _ interfaces.SweepService = (*Service)(nil)

// Start registers the sweeper and launches the heartbeat and sweep loops.
// They stop when ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if err := s.register(ctx); err != nil {
		return err
	}

	s.logger.Info("sweeper_registered", fmt.Sprintf("Sweeper %s registered", s.name), "", map[string]interface{}{
		"interval":    s.interval.String(),
		"concurrency": s.concurrency,
	})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.heartbeatLoop(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.sweepLoop(ctx)
	}()
	return nil
}

func (s *Service) register(ctx context.Context) error {
	now := time.Now()
	sw, err := s.sweepers.FindByName(ctx, s.name)
	switch {
	case err == nil:
		// Запись существует: занимаем ее, если прежний экземпляр молчит
		if sw.IsOnline(now, heartbeatTimeout) {
			return fmt.Errorf("sweeper with name %s is already online", s.name)
		}
		sw.Status = domain.SweeperStatusOnline
		sw.LastSeen = now
		return s.sweepers.Update(ctx, sw)
	case errors.Is(err, interfaces.ErrNotFound):
		sw, err = domain.NewSweeper(s.name, now)
		if err != nil {
			return err
		}
		return s.sweepers.Create(ctx, sw)
	default:
		return err
	}
}

func (s *Service) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweepers.UpdateHeartbeat(ctx, s.name, time.Now()); err != nil {
				s.logger.Error("heartbeat_failed", "Failed to update heartbeat", "", nil, err)
			} else {
				s.logger.Debug("heartbeat_sent", "Heartbeat sent", "", nil)
			}
		}
	}
}

func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sweep_failed", "SLA sweep failed", "", nil, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep re-evaluates every active order once and stores the cached light.
// Orders that escalate past their cached severity produce an event.
func (s *Service) Sweep(ctx context.Context) (Report, error) {
	summaries, err := s.orders.ListSummaries(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list orders: %w", err)
	}
	today := s.clock.Today()

	var evaluated, escalated, anomalies, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, sum := range summaries {
		if sum.Status.IsTerminal() {
			continue
		}
		g.Go(func() error {
			ev := sum.Evaluate(today)
			evaluated.Add(1)

			if ev.Anomaly {
				anomalies.Add(1)
				s.logger.Warn("data_anomaly", fmt.Sprintf("Order %s entered %s in the future", sum.Number, sum.Status), "", map[string]interface{}{
					"order_number": sum.Number,
					"entered_at":   sum.EnteredAt.String(),
					"status_days":  ev.StatusDays,
				})
			}

			if err := s.orders.UpdateLight(gctx, sum.Number, ev.Severity, ev.StatusDays); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				s.logger.Error("db_error", "Failed to update status light", "", map[string]interface{}{
					"order_number": sum.Number,
				}, err)
				return nil
			}

			if ev.Severity.Worse(sum.CachedSeverity) {
				escalated.Add(1)
				s.publishEscalation(gctx, sum, ev)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{
		Evaluated: int(evaluated.Load()),
		Escalated: int(escalated.Load()),
		Anomalies: int(anomalies.Load()),
		Failed:    int(failed.Load()),
	}

	if err := s.sweepers.RecordSweep(ctx, s.name, report.Evaluated, time.Now()); err != nil {
		s.logger.Error("db_error", "Failed to record sweep", "", nil, err)
	}
	s.logger.Info("sweep_completed", "SLA sweep completed", "", map[string]interface{}{
		"as_of":     today.String(),
		"evaluated": report.Evaluated,
		"escalated": report.Escalated,
		"anomalies": report.Anomalies,
		"failed":    report.Failed,
	})
	return report, nil
}

func (s *Service) publishEscalation(ctx context.Context, sum domain.Summary, ev domain.Evaluation) {
	if s.publisher == nil {
		return
	}
	old := sum.CachedSeverity
	if old == "" {
		old = domain.SeverityNormal
	}
	msg := interfaces.SeverityChangedMessage{
		OrderNumber: sum.Number,
		Status:      sum.Status,
		Old:         old,
		New:         ev.Severity,
		StatusDays:  ev.StatusDays,
	}
	if err := s.publisher.PublishSeverityChanged(ctx, msg); err != nil {
		s.logger.Error("rabbitmq_publish_failed", "Failed to publish severity change", "", map[string]interface{}{
			"order_number": sum.Number,
		}, err)
	}
}

// Shutdown waits for the loops to stop and marks the sweeper offline. The
// caller cancels the context passed to Start first.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	sw, err := s.sweepers.FindByName(ctx, s.name)
	if err != nil {
		return err
	}
	sw.SetOffline()
	return s.sweepers.Update(ctx, sw)
}
