package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YelzhanWeb/printtrack/internal/adapter/locker"
	"github.com/YelzhanWeb/printtrack/internal/adapter/logger"
	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

var (
	admin  = interfaces.Actor{Name: "amy", Role: interfaces.RoleAdmin}
	viewer = interfaces.Actor{Name: "vic", Role: interfaces.RoleViewer}
)

type fixture struct {
	svc      *Service
	repo     *memRepo
	pub      *recordingPublisher
	sweepers *memSweepers
}

func newFixture(today string) *fixture {
	repo := newMemRepo()
	pub := &recordingPublisher{}
	sw := &memSweepers{}
	svc := NewService(repo, repo, sw, locker.NewLocal(), pub, interfaces.FixedClock(day(today)), logger.Nop())
	return &fixture{svc: svc, repo: repo, pub: pub, sweepers: sw}
}

func (f *fixture) create(t *testing.T, number, on string) {
	t.Helper()
	_, err := f.svc.CreateOrder(context.Background(), admin, interfaces.CreateOrderCommand{
		Number:       number,
		CustomerName: "Acme",
		OrderDate:    day(on),
	}, domain.LocaleEN)
	if err != nil {
		t.Fatalf("CreateOrder(%s) error: %v", number, err)
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture("2024-03-10")
	ctx := context.Background()

	details, err := f.svc.CreateOrder(ctx, admin, interfaces.CreateOrderCommand{CustomerName: "Acme"}, domain.LocaleEN)
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if details.Order.Number != "KC00001" {
		t.Fatalf("expected generated number KC00001, got %s", details.Order.Number)
	}
	if details.Order.Status != domain.StatusNewOrder || details.Order.OrderDate != day("2024-03-10") {
		t.Fatalf("unexpected view %+v", details.Order)
	}
	if len(details.History) != 1 || details.History[0].ToLabel != "New Order" {
		t.Fatalf("unexpected history %+v", details.History)
	}
	if len(f.pub.statuses) != 1 || f.pub.statuses[0].Action != domain.ActionCreate || f.pub.statuses[0].OldStatus != nil {
		t.Fatalf("expected one create event, got %+v", f.pub.statuses)
	}

	next, _ := f.svc.NextQuoteNumber(ctx)
	if next != "KC00002" {
		t.Fatalf("expected KC00002, got %s", next)
	}

	_, err = f.svc.CreateOrder(ctx, admin, interfaces.CreateOrderCommand{Number: "KC00001", CustomerName: "Other"}, domain.LocaleEN)
	if !errors.Is(err, ErrDuplicateOrderNumber) {
		t.Fatalf("expected ErrDuplicateOrderNumber, got %v", err)
	}

	_, err = f.svc.CreateOrder(ctx, viewer, interfaces.CreateOrderCommand{Number: "X1", CustomerName: "Acme"}, domain.LocaleEN)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for viewer, got %v", err)
	}

	_, err = f.svc.CreateOrder(ctx, admin, interfaces.CreateOrderCommand{Number: "X2", CustomerName: "Acme", OrderDate: day("2024-03-11")}, domain.LocaleEN)
	if !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("expected INVALID_DATE for future order date, got %v", err)
	}
}

func TestApplyAction(t *testing.T) {
	f := newFixture("2024-03-10")
	ctx := context.Background()
	f.create(t, "A1", "2024-03-01")

	res, err := f.svc.ApplyAction(ctx, admin, interfaces.ApplyActionCommand{Number: "A1", Action: domain.ActionToQuote}, domain.LocaleEN)
	if err != nil {
		t.Fatalf("ApplyAction error: %v", err)
	}
	if res.Order.Status != domain.StatusQuoteConfirming {
		t.Fatalf("expected QUOTE_CONFIRMING, got %s", res.Order.Status)
	}
	if res.Outcome.PreviousDwellDays != 9 || res.Outcome.PreviousSeverity != domain.SeverityCritical {
		t.Fatalf("unexpected outcome %+v", res.Outcome)
	}
	if res.Outcome.Entry.ID == 0 || res.Outcome.Entry.ActionDate != day("2024-03-10") {
		t.Fatalf("expected persisted entry dated today, got %+v", res.Outcome.Entry)
	}
	if !res.Order.CanUndo {
		t.Fatalf("admin should be offered undo")
	}

	audit, _ := f.svc.Audit(ctx, "A1")
	if len(audit) != 2 || audit[1].Action != domain.AuditStatusUpdate {
		t.Fatalf("unexpected audit %+v", audit)
	}
	if len(f.pub.statuses) != 2 || f.pub.statuses[1].PreviousDwellDays != 9 {
		t.Fatalf("unexpected events %+v", f.pub.statuses)
	}
	if f.repo.lights["A1"] != domain.SeverityNormal {
		t.Fatalf("expected light refreshed to normal, got %s", f.repo.lights["A1"])
	}
}

func TestApplyAction_Rejections(t *testing.T) {
	f := newFixture("2024-03-10")
	ctx := context.Background()
	f.create(t, "A1", "2024-03-01")

	cases := []struct {
		name  string
		actor interfaces.Actor
		cmd   interfaces.ApplyActionCommand
		want  error
	}{
		{"viewer", viewer, interfaces.ApplyActionCommand{Number: "A1", Action: domain.ActionToQuote}, ErrForbidden},
		{"unknown order", admin, interfaces.ApplyActionCommand{Number: "NOPE", Action: domain.ActionToQuote}, ErrOrderNotFound},
		{"action not offered", admin, interfaces.ApplyActionCommand{Number: "A1", Action: domain.ActionDraftSent}, domain.ErrUnknownAction},
		{"before previous step", admin, interfaces.ApplyActionCommand{Number: "A1", Action: domain.ActionToQuote, Date: day("2024-02-28")}, domain.ErrInvalidDate},
	}
	for _, tc := range cases {
		_, err := f.svc.ApplyAction(ctx, tc.actor, tc.cmd, domain.LocaleEN)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	details, _ := f.svc.GetOrder(ctx, admin, "A1", domain.LocaleEN)
	if details.Order.HistoryLength != 1 {
		t.Fatalf("rejected actions must not write history, got %d entries", details.Order.HistoryLength)
	}
}

func TestApplyAction_ConcurrentWriterBreaksChain(t *testing.T) {
	f := newFixture("2024-03-10")
	f.create(t, "A1", "2024-03-01")

	f.repo.onAppend = func(s *storedOrder) {
		last := s.entries[len(s.entries)-1]
		s.entries = append(s.entries, domain.HistoryEntry{
			ID:         999,
			FromStatus: &last.ToStatus,
			ToStatus:   domain.StatusCancelled,
			Action:     domain.ActionCancel,
			ActionDate: day("2024-03-10"),
		})
		f.repo.onAppend = nil
	}

	_, err := f.svc.ApplyAction(context.Background(), admin, interfaces.ApplyActionCommand{Number: "A1", Action: domain.ActionToQuote}, domain.LocaleEN)
	if !errors.Is(err, domain.ErrChainBroken) {
		t.Fatalf("expected CHAIN_BROKEN, got %v", err)
	}
}

func TestWriteWhileLocked(t *testing.T) {
	f := newFixture("2024-03-10")
	f.create(t, "A1", "2024-03-01")
	f.svc.locker = busyLocker{}

	_, err := f.svc.Cancel(context.Background(), admin, interfaces.CancelCommand{Number: "A1", Reason: "customer left"}, domain.LocaleEN)
	if !errors.Is(err, ErrOrderBusy) {
		t.Fatalf("expected ErrOrderBusy, got %v", err)
	}
}

func TestSkipAndCancel(t *testing.T) {
	f := newFixture("2024-03-10")
	ctx := context.Background()
	f.create(t, "A1", "2024-03-01")

	_, err := f.svc.Skip(ctx, admin, interfaces.SkipCommand{Number: "A1", Target: domain.StatusDraftRevising, Notes: "x"}, domain.LocaleEN)
	if !errors.Is(err, domain.ErrInvalidTarget) {
		t.Fatalf("expected INVALID_TARGET for revision target, got %v", err)
	}

	res, err := f.svc.Skip(ctx, admin, interfaces.SkipCommand{Number: "A1", Target: domain.StatusProducing, Notes: "repeat order", Date: day("2024-03-05")}, domain.LocaleEN)
	if err != nil {
		t.Fatalf("Skip error: %v", err)
	}
	if res.Order.Status != domain.StatusProducing || res.Outcome.Entry.Action != domain.ActionSkip {
		t.Fatalf("unexpected skip result %+v", res.Outcome)
	}

	_, err = f.svc.Cancel(ctx, admin, interfaces.CancelCommand{Number: "A1"}, domain.LocaleEN)
	if !errors.Is(err, domain.ErrMissingReason) {
		t.Fatalf("expected MISSING_REASON, got %v", err)
	}

	res, err = f.svc.Cancel(ctx, admin, interfaces.CancelCommand{Number: "A1", Reason: "customer withdrew"}, domain.LocaleEN)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if !res.Order.Terminal || res.Order.CanCancel || len(res.Order.Actions) != 0 {
		t.Fatalf("cancelled order should be terminal without actions: %+v", res.Order)
	}
}

func TestUndoLast(t *testing.T) {
	f := newFixture("2024-03-10")
	ctx := context.Background()
	f.create(t, "A1", "2024-03-01")

	_, err := f.svc.UndoLast(ctx, admin, interfaces.UndoCommand{Number: "A1"}, domain.LocaleEN)
	if !errors.Is(err, domain.ErrNothingToUndo) {
		t.Fatalf("expected NOTHING_TO_UNDO on fresh order, got %v", err)
	}

	if _, err := f.svc.ApplyAction(ctx, admin, interfaces.ApplyActionCommand{Number: "A1", Action: domain.ActionToQuote}, domain.LocaleEN); err != nil {
		t.Fatalf("ApplyAction error: %v", err)
	}

	_, err = f.svc.UndoLast(ctx, viewer, interfaces.UndoCommand{Number: "A1"}, domain.LocaleEN)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for viewer, got %v", err)
	}

	res, err := f.svc.UndoLast(ctx, admin, interfaces.UndoCommand{Number: "A1", Reason: "clicked by mistake"}, domain.LocaleEN)
	if err != nil {
		t.Fatalf("UndoLast error: %v", err)
	}
	if res.Order.Status != domain.StatusNewOrder || res.Removed.ToStatus != domain.StatusQuoteConfirming {
		t.Fatalf("unexpected undo result %+v", res)
	}
	if res.Order.EnteredAt != day("2024-03-01") {
		t.Fatalf("expected entered date restored to 2024-03-01, got %s", res.Order.EnteredAt)
	}

	audit, _ := f.svc.Audit(ctx, "A1")
	last := audit[len(audit)-1]
	if last.Action != domain.AuditUndoStep || last.Reason != "clicked by mistake" || *last.NewStatus != domain.StatusNewOrder {
		t.Fatalf("unexpected undo audit %+v", last)
	}
	ev := f.pub.statuses[len(f.pub.statuses)-1]
	if ev.Action != domain.ActionUndo || ev.NewStatus != domain.StatusNewOrder {
		t.Fatalf("unexpected undo event %+v", ev)
	}
}

func TestAmendEntry(t *testing.T) {
	f := newFixture("2024-03-10")
	ctx := context.Background()
	f.create(t, "A1", "2024-03-01")
	res, err := f.svc.ApplyAction(ctx, admin, interfaces.ApplyActionCommand{Number: "A1", Action: domain.ActionToQuote, Date: day("2024-03-04")}, domain.LocaleEN)
	if err != nil {
		t.Fatalf("ApplyAction error: %v", err)
	}
	id := res.Outcome.Entry.ID

	details, err := f.svc.AmendEntry(ctx, admin, interfaces.AmendEntryCommand{
		Number: "A1", EntryID: id, ActionDate: day("2024-03-06"), Notes: "sent by mail", Reason: "wrong date",
	}, domain.LocaleEN)
	if err != nil {
		t.Fatalf("AmendEntry error: %v", err)
	}
	if details.Order.EnteredAt != day("2024-03-06") || details.Order.StatusDays != 4 {
		t.Fatalf("unexpected view after amend %+v", details.Order)
	}
	if details.History[1].Notes != "sent by mail" {
		t.Fatalf("notes not amended: %+v", details.History[1])
	}

	other := domain.StatusCompleted
	_, err = f.svc.AmendEntry(ctx, admin, interfaces.AmendEntryCommand{Number: "A1", EntryID: id, ToStatus: &other}, domain.LocaleEN)
	if !errors.Is(err, domain.ErrStatusImmutable) {
		t.Fatalf("expected STATUS_IMMUTABLE, got %v", err)
	}

	_, err = f.svc.AmendEntry(ctx, admin, interfaces.AmendEntryCommand{Number: "A1", EntryID: id, ActionDate: day("2024-03-11")}, domain.LocaleEN)
	if !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("expected INVALID_DATE for future date, got %v", err)
	}
}

func TestListOrdersAndBoard(t *testing.T) {
	f := newFixture("2024-03-10")
	ctx := context.Background()
	f.create(t, "A1", "2024-03-01") // NEW_ORDER for 9 days: critical
	f.create(t, "A2", "2024-03-08") // 2 days: normal
	f.create(t, "A3", "2024-03-09")
	if _, err := f.svc.Cancel(ctx, admin, interfaces.CancelCommand{Number: "A3", Reason: "dup"}, domain.LocaleEN); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	rows, err := f.svc.ListOrders(ctx, domain.Filter{Severity: domain.SeverityCritical}, domain.LocaleEN)
	if err != nil {
		t.Fatalf("ListOrders error: %v", err)
	}
	if len(rows) != 1 || rows[0].Number != "A1" || rows[0].Light != "red" || rows[0].StatusDays != 9 {
		t.Fatalf("unexpected critical rows %+v", rows)
	}

	rows, _ = f.svc.ListOrders(ctx, domain.Filter{Stage: domain.StageCancelled}, domain.LocaleEN)
	if len(rows) != 1 || rows[0].Number != "A3" {
		t.Fatalf("unexpected cancelled rows %+v", rows)
	}

	board, err := f.svc.Board(ctx, domain.LocaleEN)
	if err != nil {
		t.Fatalf("Board error: %v", err)
	}
	if board.Total != 3 || board.Active != 2 {
		t.Fatalf("expected 3 total, 2 active, got %+v", board.Board)
	}
	if board.BySeverity[domain.SeverityCritical] != 1 || board.BySeverity[domain.SeverityNormal] != 1 {
		t.Fatalf("unexpected severity counts %+v", board.BySeverity)
	}
	if board.StageNames[domain.StageCancelled] == "" {
		t.Fatalf("stage names missing")
	}

	views, err := f.svc.ExportViews(ctx, domain.Filter{}, domain.LocaleEN)
	if err != nil || len(views) != 3 || views[0].Number != "A1" {
		t.Fatalf("unexpected export views %v %+v", err, views)
	}
}

func TestFutureDatedHistoryIsReported(t *testing.T) {
	f := newFixture("2024-03-10")
	o, err := domain.NewOrder(domain.NewOrderParams{Number: "F1", CustomerName: "Acme", OrderDate: day("2024-03-12")}, day("2024-03-12"))
	if err != nil {
		t.Fatalf("NewOrder error: %v", err)
	}
	f.repo.seed(o)

	details, err := f.svc.GetOrder(context.Background(), viewer, "F1", domain.LocaleEN)
	if err != nil {
		t.Fatalf("GetOrder error: %v", err)
	}
	if !details.Order.Anomaly || details.Order.StatusDays != -2 || details.Order.Severity != domain.SeverityNormal {
		t.Fatalf("expected anomaly with -2 days, got %+v", details.Order)
	}
	if details.Order.CanUndo {
		t.Fatalf("viewer must not be offered undo")
	}
}

func TestWorkflow(t *testing.T) {
	f := newFixture("2024-03-10")
	wf := f.svc.Workflow(domain.LocaleEN)
	if len(wf.Statuses) != len(domain.AllStatuses()) {
		t.Fatalf("expected %d statuses, got %d", len(domain.AllStatuses()), len(wf.Statuses))
	}
	for _, st := range wf.Statuses {
		if st.Key == domain.StatusDraftConfirming {
			if len(st.Actions) != 2 || !st.Actions[1].RequiresReason {
				t.Fatalf("unexpected DRAFT_CONFIRMING actions %+v", st.Actions)
			}
		}
		if st.Terminal && (len(st.Actions) != 0 || len(st.SkipTargets) != 0) {
			t.Fatalf("terminal status %s offers moves", st.Key)
		}
	}
	if len(wf.Stages) == 0 || len(wf.FilterGroups) != 3 {
		t.Fatalf("unexpected stages %+v / groups %+v", wf.Stages, wf.FilterGroups)
	}
}

func TestSweepersStatus(t *testing.T) {
	f := newFixture("2024-03-10")
	now := time.Now()
	fresh, _ := domain.NewSweeper("sweeper-1", now)
	stale, _ := domain.NewSweeper("sweeper-2", now.Add(-10*time.Minute))
	f.sweepers.list = []*domain.Sweeper{fresh, stale}

	resp, err := f.svc.SweepersStatus(context.Background())
	if err != nil {
		t.Fatalf("SweepersStatus error: %v", err)
	}
	if resp[0].Status != domain.SweeperStatusOnline || resp[1].Status != domain.SweeperStatusOffline {
		t.Fatalf("unexpected statuses %+v", resp)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture("2024-03-10")
	f.pub.fail = errors.New("broker down")
	f.create(t, "A1", "2024-03-01")

	if _, err := f.svc.ApplyAction(context.Background(), admin, interfaces.ApplyActionCommand{Number: "A1", Action: domain.ActionToQuote}, domain.LocaleEN); err != nil {
		t.Fatalf("ApplyAction should succeed without broker: %v", err)
	}
}
