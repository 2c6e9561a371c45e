package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// HistoryEntry is one row of an order's status history. FromStatus is nil
// only for the creation entry.
type HistoryEntry struct {
	ID         int64      `json:"id"`
	OrderID    int64      `json:"order_id"`
	FromStatus *StatusKey `json:"from_status"`
	ToStatus   StatusKey  `json:"to_status"`
	Action     ActionID   `json:"action"`
	ActionDate civil.Date `json:"action_date"`
	Notes      string     `json:"notes,omitempty"`
	Operator   string     `json:"operator,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func statusPtr(s StatusKey) *StatusKey { return &s }

// Amendment carries the editable fields of a history entry. FromStatus and
// ToStatus exist only so that attempts to change them can be rejected.
type Amendment struct {
	ActionDate civil.Date
	Notes      string
	FromStatus *StatusKey
	ToStatus   *StatusKey
}

// Ledger is the append-ordered status history of one order.
// The zero value is an empty ledger.
type Ledger struct {
	entries []HistoryEntry
}

// NewLedger builds a ledger from stored entries and verifies the chain.
func NewLedger(entries []HistoryEntry) (Ledger, error) {
	l := Ledger{entries: append([]HistoryEntry(nil), entries...)}
	if err := l.Verify(); err != nil {
		return Ledger{}, err
	}
	return l, nil
}

func (l *Ledger) Len() int { return len(l.entries) }

// Entries returns a copy of the entries in append order.
func (l *Ledger) Entries() []HistoryEntry {
	return append([]HistoryEntry(nil), l.entries...)
}

func (l *Ledger) Entry(i int) (HistoryEntry, bool) {
	if i < 0 || i >= len(l.entries) {
		return HistoryEntry{}, false
	}
	return l.entries[i], true
}

// Last returns the most recent entry.
func (l *Ledger) Last() (HistoryEntry, bool) {
	return l.Entry(len(l.entries) - 1)
}

// Current returns the status named by the last entry.
func (l *Ledger) Current() (StatusKey, bool) {
	last, ok := l.Last()
	if !ok {
		return "", false
	}
	return last.ToStatus, true
}

// Verify checks chain integrity over the whole ledger.
func (l *Ledger) Verify() error {
	for i, e := range l.entries {
		if i == 0 {
			if e.FromStatus != nil {
				return newError(KindChainBroken, "first entry starts from %s instead of creation", *e.FromStatus)
			}
			continue
		}
		prev := l.entries[i-1]
		if e.FromStatus == nil || *e.FromStatus != prev.ToStatus {
			return newError(KindChainBroken, "entry %d does not continue from %s", i, prev.ToStatus)
		}
	}
	return nil
}

// Append adds entry to the end of the ledger if it continues the chain.
func (l *Ledger) Append(entry HistoryEntry) error {
	last, ok := l.Last()
	if !ok {
		if entry.FromStatus != nil {
			return newError(KindChainBroken, "creation entry must not have a from status, got %s", *entry.FromStatus)
		}
		l.entries = append(l.entries, entry)
		return nil
	}
	if entry.FromStatus == nil || *entry.FromStatus != last.ToStatus {
		from := "creation"
		if entry.FromStatus != nil {
			from = string(*entry.FromStatus)
		}
		return newError(KindChainBroken, "entry starts from %s but the order is in %s", from, last.ToStatus)
	}
	l.entries = append(l.entries, entry)
	return nil
}

// UndoLast removes the last entry and returns it. The creation entry can
// never be removed. Removal is permanent: nothing keeps the deleted row, so
// callers must confirm with the operator before invoking it.
func (l *Ledger) UndoLast() (HistoryEntry, error) {
	if len(l.entries) <= 1 {
		return HistoryEntry{}, newError(KindNothingToUndo, "history has %d entry(ies)", len(l.entries))
	}
	last := l.entries[len(l.entries)-1]
	l.entries = l.entries[:len(l.entries)-1]
	return last, nil
}

// Amend updates the date and notes of entry id in place. Status fields are
// immutable here; a new date must keep dates non-decreasing and must not be
// later than today.
func (l *Ledger) Amend(id int64, a Amendment, today civil.Date) (HistoryEntry, error) {
	idx := -1
	for i, e := range l.entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return HistoryEntry{}, newError(KindEntryNotFound, "history entry %d not found", id)
	}
	cur := l.entries[idx]

	if a.ToStatus != nil && *a.ToStatus != cur.ToStatus {
		return HistoryEntry{}, newError(KindStatusImmutable, "to status %s cannot be changed to %s", cur.ToStatus, *a.ToStatus)
	}
	if a.FromStatus != nil && (cur.FromStatus == nil || *a.FromStatus != *cur.FromStatus) {
		return HistoryEntry{}, newError(KindStatusImmutable, "from status of entry %d cannot be changed", id)
	}

	if !a.ActionDate.IsValid() {
		return HistoryEntry{}, newError(KindInvalidDate, "action date is missing or invalid")
	}
	if a.ActionDate.After(today) {
		return HistoryEntry{}, newError(KindInvalidDate, "action date %s is after today %s", a.ActionDate, today)
	}
	if idx > 0 && a.ActionDate.Before(l.entries[idx-1].ActionDate) {
		return HistoryEntry{}, newError(KindInvalidDate, "action date %s is before the previous step on %s", a.ActionDate, l.entries[idx-1].ActionDate)
	}
	if idx < len(l.entries)-1 && a.ActionDate.After(l.entries[idx+1].ActionDate) {
		return HistoryEntry{}, newError(KindInvalidDate, "action date %s is after the next step on %s", a.ActionDate, l.entries[idx+1].ActionDate)
	}

	cur.ActionDate = a.ActionDate
	cur.Notes = a.Notes
	l.entries[idx] = cur
	return cur, nil
}

// DwellTime returns the days spent in the status of entry i: up to the next
// entry, or up to asOf for the last one. A negative result for the last
// entry comes with a DATA_ANOMALY error.
func (l *Ledger) DwellTime(i int, asOf civil.Date) (int, error) {
	e, ok := l.Entry(i)
	if !ok {
		return 0, newError(KindEntryNotFound, "history index %d out of range", i)
	}
	end := asOf
	if next, ok := l.Entry(i + 1); ok {
		end = next.ActionDate
	}
	return ElapsedDays(e.ActionDate, end)
}

// TotalElapsed returns the days from the creation entry to asOf.
func (l *Ledger) TotalElapsed(asOf civil.Date) (int, error) {
	first, ok := l.Entry(0)
	if !ok {
		return 0, newError(KindEntryNotFound, "history is empty")
	}
	return ElapsedDays(first.ActionDate, asOf)
}

// EnteredAt returns the date the current status was entered.
func (l *Ledger) EnteredAt() (civil.Date, bool) {
	last, ok := l.Last()
	if !ok {
		return civil.Date{}, false
	}
	return last.ActionDate, true
}

// FirstEntered returns the first date the ledger reached status.
func (l *Ledger) FirstEntered(status StatusKey) (civil.Date, bool) {
	for _, e := range l.entries {
		if e.ToStatus == status {
			return e.ActionDate, true
		}
	}
	return civil.Date{}, false
}

// setLastID stores the id persistence assigned to the last entry.
func (l *Ledger) setLastID(id int64) {
	if n := len(l.entries); n > 0 {
		l.entries[n-1].ID = id
	}
}
