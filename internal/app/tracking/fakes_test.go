package tracking

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

// storedOrder mirrors the orders row. orderDate is its own column and is
// only moved by writes that touch the creation entry.
type storedOrder struct {
	meta      domain.Order
	orderDate civil.Date
	entries   []domain.HistoryEntry
}

// memRepo keeps orders in memory and performs the same last-entry checks as
// the postgres repository.
type memRepo struct {
	mu       sync.Mutex
	orders   map[string]*storedOrder
	audit    []domain.AuditRecord
	lights   map[string]domain.Severity
	nextID   int64
	onAppend func(s *storedOrder)
}

func newMemRepo() *memRepo {
	return &memRepo{orders: map[string]*storedOrder{}, lights: map[string]domain.Severity{}}
}

func (r *memRepo) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.Number]; ok {
		return interfaces.ErrDuplicateNumber
	}
	r.nextID++
	order.ID = r.nextID
	first, _ := order.History.Entry(0)
	r.nextID++
	first.ID = r.nextID
	first.OrderID = order.ID
	order.RecordEntryID(first.ID)

	meta := *order
	meta.History = domain.Ledger{}
	r.orders[order.Number] = &storedOrder{meta: meta, orderDate: first.ActionDate, entries: []domain.HistoryEntry{first}}
	r.audit = append(r.audit, domain.AuditRecord{OrderNumber: order.Number, Action: domain.AuditCreate, NewStatus: &first.ToStatus, Operator: first.Operator})
	return nil
}

func (r *memRepo) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.orders[number]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	o := s.meta
	if err := o.Restore(append([]domain.HistoryEntry(nil), s.entries...)); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *memRepo) NextQuoteNumber(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	highest := 0
	for number := range r.orders {
		if !strings.HasPrefix(number, "KC") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(number, "KC")); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("KC%05d", highest+1), nil
}

func (r *memRepo) ListSummaries(ctx context.Context) ([]domain.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Summary, 0, len(r.orders))
	for number, s := range r.orders {
		last := s.entries[len(s.entries)-1]
		out = append(out, domain.Summary{
			Number:         number,
			CustomerName:   s.meta.CustomerName,
			ProductName:    s.meta.Product.ProductName,
			Status:         last.ToStatus,
			EnteredAt:      last.ActionDate,
			OrderDate:      s.orderDate,
			CachedSeverity: r.lights[number],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *memRepo) AppendEntry(ctx context.Context, order *domain.Order, entry domain.HistoryEntry, audit domain.AuditRecord) (domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.orders[order.Number]
	if r.onAppend != nil {
		r.onAppend(s)
	}
	last := s.entries[len(s.entries)-1]
	if entry.FromStatus == nil || *entry.FromStatus != last.ToStatus {
		return domain.HistoryEntry{}, domain.Errorf(domain.KindChainBroken, "order %s is now in %s", order.Number, last.ToStatus)
	}
	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = time.Now()
	s.entries = append(s.entries, entry)
	r.audit = append(r.audit, audit)
	return entry, nil
}

func (r *memRepo) DeleteLastEntry(ctx context.Context, order *domain.Order, removed domain.HistoryEntry, audit domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.orders[order.Number]
	if s.entries[len(s.entries)-1].ID != removed.ID {
		return domain.Errorf(domain.KindChainBroken, "the last step of order %s changed meanwhile", order.Number)
	}
	s.entries = s.entries[:len(s.entries)-1]
	r.audit = append(r.audit, audit)
	return nil
}

func (r *memRepo) UpdateEntry(ctx context.Context, order *domain.Order, entry domain.HistoryEntry, audit domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.orders[order.Number]
	for i := range s.entries {
		if s.entries[i].ID == entry.ID {
			s.entries[i] = entry
			if entry.FromStatus == nil {
				s.orderDate = entry.ActionDate
			}
			r.audit = append(r.audit, audit)
			return nil
		}
	}
	return domain.Errorf(domain.KindEntryNotFound, "entry %d", entry.ID)
}

func (r *memRepo) UpdateAttributes(ctx context.Context, order *domain.Order, audit domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.orders[order.Number]
	if !ok {
		return interfaces.ErrNotFound
	}
	s.meta.CustomerName = order.CustomerName
	s.meta.Product = order.Product
	r.audit = append(r.audit, audit)
	return nil
}

func (r *memRepo) Delete(ctx context.Context, order *domain.Order, audit domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.Number]; !ok {
		return interfaces.ErrNotFound
	}
	r.audit = append(r.audit, audit)
	delete(r.orders, order.Number)
	delete(r.lights, order.Number)
	return nil
}

func (r *memRepo) SearchCustomers(ctx context.Context, q string, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	names := []string{}
	for _, s := range r.orders {
		name := s.meta.CustomerName
		if seen[name] || !strings.Contains(strings.ToLower(name), strings.ToLower(q)) {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

func (r *memRepo) UpdateLight(ctx context.Context, number string, severity domain.Severity, statusDays int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[number]; !ok {
		return interfaces.ErrNotFound
	}
	r.lights[number] = severity
	return nil
}

func (r *memRepo) ListAudit(ctx context.Context, orderNumber string) ([]domain.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditRecord
	for _, a := range r.audit {
		if a.OrderNumber == orderNumber {
			out = append(out, a)
		}
	}
	return out, nil
}

// seed stores an order whose history was built directly with the domain.
func (r *memRepo) seed(o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := o.History.Entries()
	for i := range entries {
		r.nextID++
		entries[i].ID = r.nextID
	}
	meta := *o
	meta.History = domain.Ledger{}
	r.orders[o.Number] = &storedOrder{meta: meta, orderDate: entries[0].ActionDate, entries: entries}
}

type memSweepers struct {
	list []*domain.Sweeper
}

func (m *memSweepers) Create(ctx context.Context, s *domain.Sweeper) error {
	m.list = append(m.list, s)
	return nil
}

func (m *memSweepers) FindByName(ctx context.Context, name string) (*domain.Sweeper, error) {
	for _, s := range m.list {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (m *memSweepers) Update(ctx context.Context, s *domain.Sweeper) error { return nil }

func (m *memSweepers) UpdateHeartbeat(ctx context.Context, name string, at time.Time) error {
	return nil
}

func (m *memSweepers) RecordSweep(ctx context.Context, name string, evaluated int, at time.Time) error {
	return nil
}

func (m *memSweepers) ListAll(ctx context.Context) ([]*domain.Sweeper, error) { return m.list, nil }

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []interfaces.StatusChangedMessage
	fail     error
}

func (p *recordingPublisher) PublishStatusChanged(ctx context.Context, msg interfaces.StatusChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.statuses = append(p.statuses, msg)
	return nil
}

func (p *recordingPublisher) PublishSeverityChanged(ctx context.Context, msg interfaces.SeverityChangedMessage) error {
	return p.fail
}

type busyLocker struct{}

func (busyLocker) Lock(ctx context.Context, orderNumber string) (func(), error) {
	return nil, interfaces.ErrLockNotObtained
}

func day(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
