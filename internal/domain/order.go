package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
)

// Order represents a print order and its status history
type Order struct {
	ID            int64             `json:"id"`
	Number        string            `json:"order_number"`
	CustomerName  string            `json:"customer_name"`
	Product       ProductAttributes `json:"product"`
	CurrentStatus StatusKey         `json:"current_status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	History       Ledger            `json:"-"`
}

// ProductAttributes are the descriptive fields of an order. None of them
// take part in the workflow.
type ProductAttributes struct {
	ProductionType   string      `json:"production_type,omitempty"`
	ProductName      string      `json:"product_name,omitempty"`
	ProductCode      string      `json:"product_code,omitempty"`
	PatternCode      string      `json:"pattern_code,omitempty"`
	Quantity         int         `json:"quantity,omitempty"`
	Factory          string      `json:"factory,omitempty"`
	ExpectedDelivery *civil.Date `json:"expected_delivery,omitempty"`
	Notes            string      `json:"notes,omitempty"`
}

type NewOrderParams struct {
	Number       string
	CustomerName string
	Product      ProductAttributes
	// OrderDate is the date of the creation entry; zero means today.
	OrderDate civil.Date
	Operator  string
}

// ActionCommand applies a quick action. A zero Date means today.
type ActionCommand struct {
	Action   ActionID
	Date     civil.Date
	Notes    string
	Operator string
}

type SkipCommand struct {
	Target   StatusKey
	Date     civil.Date
	Notes    string
	Operator string
}

type CancelCommand struct {
	Date     civil.Date
	Reason   string
	Operator string
}

// Outcome describes an accepted status change together with the SLA tag of
// the status that was left.
type Outcome struct {
	Entry             HistoryEntry `json:"entry"`
	Previous          StatusKey    `json:"previous_status"`
	PreviousDwellDays int          `json:"previous_dwell_days"`
	PreviousSeverity  Severity     `json:"previous_severity"`
}

// Field limits follow the column widths of the orders table.
const (
	maxOrderNumberLen    = 50
	maxCustomerNameLen   = 100
	maxProductionTypeLen = 100
	maxProductNameLen    = 100
	maxProductCodeLen    = 50
	maxPatternCodeLen    = 50
	maxFactoryLen        = 100
	creationNotes        = "order created"
)

// MaxOperatorLen is the widest operator name the history and audit log store.
const MaxOperatorLen = 50

// NewOrder validates the order fields and records the creation entry
func NewOrder(p NewOrderParams, today civil.Date) (*Order, error) {
	o := &Order{
		Number:        strings.TrimSpace(p.Number),
		CustomerName:  strings.TrimSpace(p.CustomerName),
		Product:       p.Product,
		CurrentStatus: StatusNewOrder,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	date := p.OrderDate
	if date == (civil.Date{}) {
		date = today
	}
	if !date.IsValid() {
		return nil, newError(KindInvalidDate, "order date %s is not a calendar date", date)
	}
	if date.After(today) {
		return nil, newError(KindInvalidDate, "order date %s is after today %s", date, today)
	}

	entry := HistoryEntry{
		ToStatus:   StatusNewOrder,
		Action:     ActionCreate,
		ActionDate: date,
		Notes:      creationNotes,
		Operator:   p.Operator,
	}
	if err := o.History.Append(entry); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate applies business validation rules
func (o *Order) Validate() error {
	if o.Number == "" {
		return newError(KindInvalidOrder, "order number is required")
	}
	if utf8.RuneCountInString(o.Number) > maxOrderNumberLen {
		return newError(KindInvalidOrder, "order number must be at most %d characters", maxOrderNumberLen)
	}
	if o.CustomerName == "" {
		return newError(KindInvalidOrder, "customer name is required")
	}
	if utf8.RuneCountInString(o.CustomerName) > maxCustomerNameLen {
		return newError(KindInvalidOrder, "customer name must be at most %d characters", maxCustomerNameLen)
	}
	return o.Product.validate()
}

func (p ProductAttributes) validate() error {
	limits := []struct {
		field, value string
		max          int
	}{
		{"production type", p.ProductionType, maxProductionTypeLen},
		{"product name", p.ProductName, maxProductNameLen},
		{"product code", p.ProductCode, maxProductCodeLen},
		{"pattern code", p.PatternCode, maxPatternCodeLen},
		{"factory", p.Factory, maxFactoryLen},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return newError(KindInvalidOrder, "%s must be at most %d characters", l.field, l.max)
		}
	}
	if p.Quantity < 0 {
		return newError(KindInvalidOrder, "quantity must not be negative")
	}
	if d := p.ExpectedDelivery; d != nil && !d.IsValid() {
		return newError(KindInvalidOrder, "expected delivery %s is not a calendar date", *d)
	}
	return nil
}

// Restore replaces the history with stored entries. The ledger is the
// source of truth for the current status.
func (o *Order) Restore(entries []HistoryEntry) error {
	l, err := NewLedger(entries)
	if err != nil {
		return err
	}
	cur, ok := l.Current()
	if !ok {
		return newError(KindChainBroken, "order %s has no history", o.Number)
	}
	o.History = l
	o.CurrentStatus = cur
	return nil
}

// EnteredAt returns the date the order entered its current status.
func (o *Order) EnteredAt() civil.Date {
	d, _ := o.History.EnteredAt()
	return d
}

// OrderDate is the date of the creation entry.
func (o *Order) OrderDate() civil.Date {
	first, _ := o.History.Entry(0)
	return first.ActionDate
}

func (o *Order) IsTerminal() bool { return o.CurrentStatus.IsTerminal() }

// ApplyAction moves the order along a configured quick action.
func (o *Order) ApplyAction(cmd ActionCommand, today civil.Date) (Outcome, error) {
	t, ok := FindAction(o.CurrentStatus, cmd.Action)
	if !ok {
		return Outcome{}, newError(KindUnknownAction, "action %q is not offered for %s", cmd.Action, o.CurrentStatus)
	}
	notes := strings.TrimSpace(cmd.Notes)
	if t.RequiresReason && notes == "" {
		return Outcome{}, newError(KindMissingReason, "action %q requires a reason", cmd.Action)
	}
	return o.advance(t.To, t.Action, cmd.Date, notes, cmd.Operator, today)
}

// Skip jumps forward to a later non-revision status. Notes are mandatory.
func (o *Order) Skip(cmd SkipCommand, today civil.Date) (Outcome, error) {
	if o.IsTerminal() {
		return Outcome{}, newError(KindTerminalStatus, "order %s is %s", o.Number, o.CurrentStatus)
	}
	if !CanSkipTo(o.CurrentStatus, cmd.Target) {
		return Outcome{}, newError(KindInvalidTarget, "cannot skip from %s to %s", o.CurrentStatus, cmd.Target)
	}
	notes := strings.TrimSpace(cmd.Notes)
	if notes == "" {
		return Outcome{}, newError(KindMissingReason, "skipping to %s requires a note", cmd.Target)
	}
	return o.advance(cmd.Target, ActionSkip, cmd.Date, notes, cmd.Operator, today)
}

// Cancel ends a non-terminal order.
func (o *Order) Cancel(cmd CancelCommand, today civil.Date) (Outcome, error) {
	if o.IsTerminal() {
		return Outcome{}, newError(KindTerminalStatus, "order %s is already %s", o.Number, o.CurrentStatus)
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return Outcome{}, newError(KindMissingReason, "cancelling requires a reason")
	}
	return o.advance(StatusCancelled, ActionCancel, cmd.Date, reason, cmd.Operator, today)
}

func (o *Order) advance(to StatusKey, action ActionID, date civil.Date, notes, operator string, today civil.Date) (Outcome, error) {
	if date == (civil.Date{}) {
		date = today
	}
	enteredAt := o.EnteredAt()
	if err := checkActionDate(date, enteredAt, today); err != nil {
		return Outcome{}, err
	}

	from := o.CurrentStatus
	entry := HistoryEntry{
		OrderID:    o.ID,
		FromStatus: statusPtr(from),
		ToStatus:   to,
		Action:     action,
		ActionDate: date,
		Notes:      notes,
		Operator:   operator,
	}
	if err := o.History.Append(entry); err != nil {
		return Outcome{}, err
	}
	o.CurrentStatus = to

	dwell := date.DaysSince(enteredAt)
	return Outcome{
		Entry:             entry,
		Previous:          from,
		PreviousDwellDays: dwell,
		PreviousSeverity:  SeverityForDays(from, dwell),
	}, nil
}

func checkActionDate(date, enteredAt, today civil.Date) error {
	if !date.IsValid() {
		return newError(KindInvalidDate, "%s is not a calendar date", date)
	}
	if date.Before(enteredAt) {
		return newError(KindInvalidDate, "date %s is before the previous step on %s", date, enteredAt)
	}
	if date.After(today) {
		return newError(KindInvalidDate, "date %s is after today %s", date, today)
	}
	return nil
}

// UndoLast removes the most recent step and restores the status it left.
func (o *Order) UndoLast() (HistoryEntry, error) {
	removed, err := o.History.UndoLast()
	if err != nil {
		return HistoryEntry{}, err
	}
	cur, _ := o.History.Current()
	o.CurrentStatus = cur
	return removed, nil
}

// Amend edits the date or notes of one history entry.
func (o *Order) Amend(entryID int64, a Amendment, today civil.Date) (HistoryEntry, error) {
	return o.History.Amend(entryID, a, today)
}

// RecordEntryID stores the id persistence assigned to the newest entry.
func (o *Order) RecordEntryID(id int64) {
	o.History.setLastID(id)
}
