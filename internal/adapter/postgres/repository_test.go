package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

// testDB connects to the database named by PRINTTRACK_TEST_DATABASE_URL and
// empties the tables. The database must be disposable.
func testDB(t *testing.T) DB {
	t.Helper()
	dsn := os.Getenv("PRINTTRACK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PRINTTRACK_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := ConnectDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(db.Close)

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec(ctx, `TRUNCATE orders, status_history, audit_log, sweepers RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

var today = civil.Date{Year: 2024, Month: time.March, Day: 20}

func createOrder(t *testing.T, repo interfaces.OrderRepository, number string, date civil.Date) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder(domain.NewOrderParams{
		Number:       number,
		CustomerName: "Acme Print",
		OrderDate:    date,
		Operator:     "alice",
	}, today)
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	if err := repo.Create(context.Background(), order); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return order
}

func TestOrderRepository_CreateAndReload(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	created := createOrder(t, repo, "KC00007", civil.Date{Year: 2024, Month: time.March, Day: 1})

	got, err := repo.FindByNumber(ctx, "KC00007")
	if err != nil {
		t.Fatalf("FindByNumber: %v", err)
	}
	if got.ID != created.ID || got.CurrentStatus != domain.StatusNewOrder {
		t.Errorf("got id=%d status=%s, want id=%d NEW_ORDER", got.ID, got.CurrentStatus, created.ID)
	}
	if got.History.Len() != 1 {
		t.Fatalf("history length = %d, want 1", got.History.Len())
	}
	first, _ := got.History.Entry(0)
	if first.FromStatus != nil || first.Action != domain.ActionCreate {
		t.Errorf("creation entry = %+v", first)
	}

	if err := repo.Create(ctx, mustNewOrder(t, "KC00007")); !errors.Is(err, interfaces.ErrDuplicateNumber) {
		t.Errorf("duplicate Create error = %v, want ErrDuplicateNumber", err)
	}
	if _, err := repo.FindByNumber(ctx, "missing"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("FindByNumber(missing) error = %v, want ErrNotFound", err)
	}

	next, err := repo.NextQuoteNumber(ctx)
	if err != nil {
		t.Fatalf("NextQuoteNumber: %v", err)
	}
	if next != "KC00008" {
		t.Errorf("NextQuoteNumber = %s, want KC00008", next)
	}
}

func mustNewOrder(t *testing.T, number string) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder(domain.NewOrderParams{Number: number, CustomerName: "Other"}, today)
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	return order
}

func TestOrderRepository_AppendUndoAmend(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	audit := NewAuditRepository(db)
	ctx := context.Background()

	order := createOrder(t, repo, "PO-1", civil.Date{Year: 2024, Month: time.March, Day: 1})

	out, err := order.ApplyAction(domain.ActionCommand{
		Action:   domain.ActionToQuote,
		Date:     civil.Date{Year: 2024, Month: time.March, Day: 4},
		Operator: "alice",
	}, today)
	if err != nil {
		t.Fatalf("ApplyAction: %v", err)
	}
	saved, err := repo.AppendEntry(ctx, order, out.Entry, domain.AuditForOutcome(order.Number, out))
	if err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}
	order.RecordEntryID(saved.ID)

	sums, err := repo.ListSummaries(ctx)
	if err != nil {
		t.Fatalf("ListSummaries: %v", err)
	}
	if len(sums) != 1 || sums[0].Status != domain.StatusQuoteConfirming || sums[0].EnteredAt != out.Entry.ActionDate {
		t.Fatalf("summaries = %+v", sums)
	}

	amended, err := order.Amend(saved.ID, domain.Amendment{
		ActionDate: civil.Date{Year: 2024, Month: time.March, Day: 5},
		Notes:      "customer called",
	}, today)
	if err != nil {
		t.Fatalf("Amend: %v", err)
	}
	if err := repo.UpdateEntry(ctx, order, amended, domain.AuditForAmend(order.Number, amended, "alice", "typo")); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}

	reloaded, err := repo.FindByNumber(ctx, order.Number)
	if err != nil {
		t.Fatalf("FindByNumber: %v", err)
	}
	last, _ := reloaded.History.Last()
	if last.ActionDate != amended.ActionDate || last.Notes != "customer called" {
		t.Errorf("amended entry = %+v", last)
	}

	removed, err := reloaded.UndoLast()
	if err != nil {
		t.Fatalf("UndoLast: %v", err)
	}
	if err := repo.DeleteLastEntry(ctx, reloaded, removed, domain.AuditForUndo(order.Number, removed, "root", "mistake")); err != nil {
		t.Fatalf("DeleteLastEntry: %v", err)
	}

	final, err := repo.FindByNumber(ctx, order.Number)
	if err != nil {
		t.Fatalf("FindByNumber: %v", err)
	}
	if final.CurrentStatus != domain.StatusNewOrder || final.History.Len() != 1 {
		t.Errorf("after undo status=%s len=%d", final.CurrentStatus, final.History.Len())
	}

	records, err := audit.ListAudit(ctx, order.Number)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	want := []domain.AuditAction{domain.AuditCreate, domain.AuditStatusUpdate, domain.AuditEditHistory, domain.AuditUndoStep}
	if len(records) != len(want) {
		t.Fatalf("audit records = %d, want %d", len(records), len(want))
	}
	for i, rec := range records {
		if rec.Action != want[i] {
			t.Errorf("audit[%d] = %s, want %s", i, rec.Action, want[i])
		}
	}
}

func TestOrderRepository_AmendCreationEntryMovesOrderDate(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := createOrder(t, repo, "PO-4", civil.Date{Year: 2024, Month: time.March, Day: 10})

	cases := []struct {
		name string
		date civil.Date
	}{
		{"earlier", civil.Date{Year: 2024, Month: time.March, Day: 2}},
		{"later", civil.Date{Year: 2024, Month: time.March, Day: 15}},
	}
	for _, tc := range cases {
		first, _ := order.History.Entry(0)
		amended, err := order.Amend(first.ID, domain.Amendment{ActionDate: tc.date, Notes: first.Notes}, today)
		if err != nil {
			t.Fatalf("%s: Amend: %v", tc.name, err)
		}
		if err := repo.UpdateEntry(ctx, order, amended, domain.AuditForAmend(order.Number, amended, "alice", "wrong date")); err != nil {
			t.Fatalf("%s: UpdateEntry: %v", tc.name, err)
		}

		sums, err := repo.ListSummaries(ctx)
		if err != nil {
			t.Fatalf("%s: ListSummaries: %v", tc.name, err)
		}
		if len(sums) != 1 || sums[0].OrderDate != tc.date || sums[0].EnteredAt != tc.date {
			t.Errorf("%s: summaries = %+v, want order date %s", tc.name, sums, tc.date)
		}
	}
}

func TestOrderRepository_UpdateDeleteSearch(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	audit := NewAuditRepository(db)
	ctx := context.Background()

	order := createOrder(t, repo, "PO-5", civil.Date{Year: 2024, Month: time.March, Day: 1})
	createOrder(t, repo, "PO-6", civil.Date{Year: 2024, Month: time.March, Day: 2})

	qty := 250
	name := "Globex 100%"
	fields, err := order.Update(domain.OrderPatch{CustomerName: &name, Quantity: &qty})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := repo.UpdateAttributes(ctx, order, domain.AuditForUpdate(order.Number, order.CurrentStatus, fields, "alice", "")); err != nil {
		t.Fatalf("UpdateAttributes: %v", err)
	}
	reloaded, err := repo.FindByNumber(ctx, order.Number)
	if err != nil {
		t.Fatalf("FindByNumber: %v", err)
	}
	if reloaded.CustomerName != name || reloaded.Product.Quantity != qty {
		t.Errorf("reloaded = %+v", reloaded)
	}

	searches := []struct {
		q    string
		want []string
	}{
		{"print", []string{"Acme Print"}},
		{"E", []string{"Acme Print", "Globex 100%"}},
		{"%", []string{"Globex 100%"}},
		{"_", nil},
	}
	for _, tc := range searches {
		got, err := repo.SearchCustomers(ctx, tc.q, 10)
		if err != nil {
			t.Fatalf("SearchCustomers(%q): %v", tc.q, err)
		}
		if len(got) != len(tc.want) {
			t.Errorf("SearchCustomers(%q) = %v, want %v", tc.q, got, tc.want)
			continue
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("SearchCustomers(%q)[%d] = %s, want %s", tc.q, i, got[i], tc.want[i])
			}
		}
	}

	if err := repo.Delete(ctx, reloaded, domain.AuditForDelete(order.Number, reloaded.CurrentStatus, "root", "duplicate")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.FindByNumber(ctx, order.Number); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("FindByNumber after delete error = %v, want ErrNotFound", err)
	}
	records, err := audit.ListAudit(ctx, order.Number)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	want := []domain.AuditAction{domain.AuditCreate, domain.AuditUpdateOrder, domain.AuditDeleteOrder}
	if len(records) != len(want) {
		t.Fatalf("audit records = %d, want %d", len(records), len(want))
	}
	for i, rec := range records {
		if rec.Action != want[i] {
			t.Errorf("audit[%d] = %s, want %s", i, rec.Action, want[i])
		}
	}
	if err := repo.Delete(ctx, reloaded, domain.AuditForDelete(order.Number, reloaded.CurrentStatus, "root", "again")); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestOrderRepository_StaleWriterIsRejected(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	createOrder(t, repo, "PO-2", civil.Date{Year: 2024, Month: time.March, Day: 1})

	first, err := repo.FindByNumber(ctx, "PO-2")
	if err != nil {
		t.Fatalf("FindByNumber: %v", err)
	}
	stale, err := repo.FindByNumber(ctx, "PO-2")
	if err != nil {
		t.Fatalf("FindByNumber: %v", err)
	}

	out, err := first.Cancel(domain.CancelCommand{Reason: "customer withdrew", Operator: "alice"}, today)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := repo.AppendEntry(ctx, first, out.Entry, domain.AuditForOutcome(first.Number, out)); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}

	// stale was loaded before the cancel and still starts from NEW_ORDER.
	out, err = stale.ApplyAction(domain.ActionCommand{Action: domain.ActionToQuote, Operator: "bob"}, today)
	if err != nil {
		t.Fatalf("ApplyAction: %v", err)
	}
	_, err = repo.AppendEntry(ctx, stale, out.Entry, domain.AuditForOutcome(stale.Number, out))
	if domain.KindOf(err) != domain.KindChainBroken {
		t.Errorf("stale AppendEntry error = %v, want %s", err, domain.KindChainBroken)
	}
}

func TestOrderRepository_UpdateLight(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	createOrder(t, repo, "PO-3", civil.Date{Year: 2024, Month: time.January, Day: 2})

	if err := repo.UpdateLight(ctx, "PO-3", domain.SeverityCritical, 78); err != nil {
		t.Fatalf("UpdateLight: %v", err)
	}
	sums, err := repo.ListSummaries(ctx)
	if err != nil {
		t.Fatalf("ListSummaries: %v", err)
	}
	if len(sums) != 1 || sums[0].CachedSeverity != domain.SeverityCritical {
		t.Errorf("summaries = %+v", sums)
	}

	if err := repo.UpdateLight(ctx, "missing", domain.SeverityNormal, 0); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("UpdateLight(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSweeperRepository_Lifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewSweeperRepository(db)
	ctx := context.Background()
	now := time.Date(2024, time.March, 20, 9, 0, 0, 0, time.UTC)

	s, err := domain.NewSweeper("sweeper-1", now)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdateHeartbeat(ctx, "sweeper-1", now.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}
	if err := repo.RecordSweep(ctx, "sweeper-1", 12, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("RecordSweep: %v", err)
	}

	got, err := repo.FindByName(ctx, "sweeper-1")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if got.OrdersEvaluated != 12 {
		t.Errorf("OrdersEvaluated = %d, want 12", got.OrdersEvaluated)
	}

	got.SetOffline()
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 || all[0].Status != domain.SweeperStatusOffline {
		t.Errorf("ListAll = %+v", all)
	}

	if _, err := repo.FindByName(ctx, "nobody"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("FindByName(nobody) error = %v, want ErrNotFound", err)
	}
}
