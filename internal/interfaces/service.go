package interfaces

import (
	"context"
	"time"

	"cloud.google.com/go/civil"

	"github.com/YelzhanWeb/printtrack/internal/domain"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleViewer
}

// Actor is the operator on whose behalf a request runs. Capabilities are
// derived from Role only.
type Actor struct {
	Name string
	Role Role
}

func (a Actor) CanWrite() bool { return a.Role == RoleAdmin && a.Name != "" }

// CanUndo gates the destructive undo of the last step.
func (a Actor) CanUndo() bool { return a.CanWrite() }

// Команды для сервисов
type CreateOrderCommand struct {
	Number       string
	CustomerName string
	Product      domain.ProductAttributes
	OrderDate    civil.Date
}

type ApplyActionCommand struct {
	Number string
	Action domain.ActionID
	Date   civil.Date
	Notes  string
}

type SkipCommand struct {
	Number string
	Target domain.StatusKey
	Date   civil.Date
	Notes  string
}

type CancelCommand struct {
	Number string
	Date   civil.Date
	Reason string
}

type UndoCommand struct {
	Number string
	Reason string
}

type AmendEntryCommand struct {
	Number     string
	EntryID    int64
	ActionDate civil.Date
	Notes      string
	FromStatus *domain.StatusKey
	ToStatus   *domain.StatusKey
	Reason     string
}

type UpdateOrderCommand struct {
	Number string
	Patch  domain.OrderPatch
	Reason string
}

// DeleteOrderCommand must repeat the order number in ConfirmNumber.
type DeleteOrderCommand struct {
	Number        string
	ConfirmNumber string
	Reason        string
}

// Интерфейсы Сервисов (Business Logic)
type TrackingService interface {
	CreateOrder(ctx context.Context, actor Actor, cmd CreateOrderCommand, locale domain.Locale) (*OrderDetails, error)
	GetOrder(ctx context.Context, actor Actor, number string, locale domain.Locale) (*OrderDetails, error)
	ApplyAction(ctx context.Context, actor Actor, cmd ApplyActionCommand, locale domain.Locale) (*ChangeResult, error)
	Skip(ctx context.Context, actor Actor, cmd SkipCommand, locale domain.Locale) (*ChangeResult, error)
	Cancel(ctx context.Context, actor Actor, cmd CancelCommand, locale domain.Locale) (*ChangeResult, error)
	UndoLast(ctx context.Context, actor Actor, cmd UndoCommand, locale domain.Locale) (*UndoResult, error)
	AmendEntry(ctx context.Context, actor Actor, cmd AmendEntryCommand, locale domain.Locale) (*OrderDetails, error)
	UpdateOrder(ctx context.Context, actor Actor, cmd UpdateOrderCommand, locale domain.Locale) (*OrderDetails, error)
	DeleteOrder(ctx context.Context, actor Actor, cmd DeleteOrderCommand) (*DeleteResult, error)
	SearchCustomers(ctx context.Context, q string) ([]string, error)
	ListOrders(ctx context.Context, filter domain.Filter, locale domain.Locale) ([]OrderRow, error)
	Board(ctx context.Context, locale domain.Locale) (*BoardView, error)
	NextQuoteNumber(ctx context.Context) (string, error)
	History(ctx context.Context, number string, locale domain.Locale) ([]domain.EntryView, error)
	Audit(ctx context.Context, number string) ([]domain.AuditRecord, error)
	ExportViews(ctx context.Context, filter domain.Filter, locale domain.Locale) ([]domain.OrderView, error)
	Workflow(locale domain.Locale) WorkflowDescription
	SweepersStatus(ctx context.Context) ([]SweeperStatusResponse, error)
}

type SweepService interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Ответы Tracking Service
type OrderDetails struct {
	Order   domain.OrderView   `json:"order"`
	History []domain.EntryView `json:"history"`
}

type ChangeResult struct {
	Outcome domain.Outcome `json:"outcome"`
	OrderDetails
}

type DeleteResult struct {
	OrderNumber   string           `json:"order_number"`
	DeletedStatus domain.StatusKey `json:"deleted_status"`
}

type UndoResult struct {
	Removed domain.HistoryEntry `json:"removed"`
	OrderDetails
}

type OrderRow struct {
	domain.Summary
	StatusLabel string          `json:"status_label"`
	Stage       domain.StageID  `json:"stage"`
	StageName   string          `json:"stage_name"`
	StatusDays  int             `json:"status_days"`
	Severity    domain.Severity `json:"severity"`
	Light       string          `json:"light"`
	Anomaly     bool            `json:"anomaly"`
}

type BoardView struct {
	domain.Board
	AsOf        civil.Date                      `json:"as_of"`
	StageNames  map[domain.StageID]string       `json:"stage_names"`
	FilterNames map[domain.FilterGroupID]string `json:"filter_names"`
}

type SweeperStatusResponse struct {
	Name            string               `json:"sweeper_name"`
	Status          domain.SweeperStatus `json:"status"`
	OrdersEvaluated int64                `json:"orders_evaluated"`
	LastSeen        time.Time            `json:"last_seen"`
	LastSweepAt     *time.Time           `json:"last_sweep_at,omitempty"`
}

// WorkflowDescription dumps the registry and graph for renderers.
type WorkflowDescription struct {
	Locale       domain.Locale     `json:"locale"`
	Statuses     []StatusInfo      `json:"statuses"`
	Stages       []StageInfo       `json:"stages"`
	FilterGroups []FilterGroupInfo `json:"filter_groups"`
}

type StatusInfo struct {
	Key          domain.StatusKey       `json:"key"`
	Label        string                 `json:"label"`
	Stage        domain.StageID         `json:"stage"`
	FilterGroups []domain.FilterGroupID `json:"filter_groups"`
	Thresholds   domain.Thresholds      `json:"thresholds"`
	Terminal     bool                   `json:"terminal"`
	Revision     bool                   `json:"revision"`
	Actions      []domain.ActionView    `json:"actions"`
	SkipTargets  []domain.StatusKey     `json:"skip_targets"`
}

type StageInfo struct {
	ID      domain.StageID     `json:"id"`
	Name    string             `json:"name"`
	Members []domain.StatusKey `json:"members"`
}

type FilterGroupInfo struct {
	ID      domain.FilterGroupID `json:"id"`
	Name    string               `json:"name"`
	Members []domain.StatusKey   `json:"members"`
}
