package interfaces

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"

	"github.com/YelzhanWeb/printtrack/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateNumber = errors.New("order number already exists")
	ErrLockNotObtained = errors.New("order is locked by another writer")
)

// Интерфейсы Репозиториев (Adapter/Postgres)
//
// Every mutating method runs in one transaction that locks the order row and
// checks the stored last entry against the in-memory chain before writing.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByNumber(ctx context.Context, number string) (*domain.Order, error)
	NextQuoteNumber(ctx context.Context) (string, error)
	ListSummaries(ctx context.Context) ([]domain.Summary, error)
	AppendEntry(ctx context.Context, order *domain.Order, entry domain.HistoryEntry, audit domain.AuditRecord) (domain.HistoryEntry, error)
	DeleteLastEntry(ctx context.Context, order *domain.Order, removed domain.HistoryEntry, audit domain.AuditRecord) error
	UpdateEntry(ctx context.Context, order *domain.Order, entry domain.HistoryEntry, audit domain.AuditRecord) error
	UpdateLight(ctx context.Context, number string, severity domain.Severity, statusDays int) error
	// UpdateAttributes stores the descriptive fields of order.
	UpdateAttributes(ctx context.Context, order *domain.Order, audit domain.AuditRecord) error
	// Delete removes the order with its history. The audit record is kept.
	Delete(ctx context.Context, order *domain.Order, audit domain.AuditRecord) error
	// SearchCustomers returns up to limit distinct customer names containing q.
	SearchCustomers(ctx context.Context, q string, limit int) ([]string, error)
}

type AuditRepository interface {
	ListAudit(ctx context.Context, orderNumber string) ([]domain.AuditRecord, error)
}

type SweeperRepository interface {
	Create(ctx context.Context, sweeper *domain.Sweeper) error
	FindByName(ctx context.Context, name string) (*domain.Sweeper, error)
	Update(ctx context.Context, sweeper *domain.Sweeper) error
	UpdateHeartbeat(ctx context.Context, name string, at time.Time) error
	RecordSweep(ctx context.Context, name string, evaluated int, at time.Time) error
	ListAll(ctx context.Context) ([]*domain.Sweeper, error)
}

// OrderLocker serialises writers of one order across instances.
type OrderLocker interface {
	Lock(ctx context.Context, orderNumber string) (unlock func(), err error)
}

// Clock supplies "today" for date validation and SLA evaluation.
type Clock interface {
	Today() civil.Date
}

// UTCClock reads the wall clock in UTC.
type UTCClock struct{}

func (UTCClock) Today() civil.Date { return civil.DateOf(time.Now().UTC()) }

// FixedClock always returns the same day.
type FixedClock civil.Date

func (c FixedClock) Today() civil.Date { return civil.Date(c) }
