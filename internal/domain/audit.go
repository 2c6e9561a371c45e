package domain

import (
	"strings"
	"time"
)

// AuditAction names an operation recorded in the audit log.
type AuditAction string

const (
	AuditCreate       AuditAction = "CREATE"
	AuditStatusUpdate AuditAction = "STATUS_UPDATE"
	AuditUndoStep     AuditAction = "UNDO_STEP"
	AuditEditHistory  AuditAction = "EDIT_HISTORY"
	AuditUpdateOrder  AuditAction = "UPDATE_ORDER"
	AuditDeleteOrder  AuditAction = "DELETE_ORDER"
)

// AuditDeleted is the new status written for a deleted order. It is not a
// workflow status.
const AuditDeleted StatusKey = "DELETED"

// AuditRecord is written in the same transaction as the change it describes.
type AuditRecord struct {
	ID          int64       `json:"id"`
	OrderNumber string      `json:"order_number"`
	Action      AuditAction `json:"action"`
	OldStatus   *StatusKey  `json:"old_status,omitempty"`
	NewStatus   *StatusKey  `json:"new_status,omitempty"`
	Operator    string      `json:"operator"`
	Reason      string      `json:"reason,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// AuditForOutcome builds the STATUS_UPDATE record of an accepted change.
func AuditForOutcome(number string, out Outcome) AuditRecord {
	return AuditRecord{
		OrderNumber: number,
		Action:      AuditStatusUpdate,
		OldStatus:   statusPtr(out.Previous),
		NewStatus:   statusPtr(out.Entry.ToStatus),
		Operator:    out.Entry.Operator,
		Reason:      out.Entry.Notes,
	}
}

// AuditForUndo records the removal of entry; the order returns to the
// entry's from status.
func AuditForUndo(number string, removed HistoryEntry, operator, reason string) AuditRecord {
	rec := AuditRecord{
		OrderNumber: number,
		Action:      AuditUndoStep,
		OldStatus:   statusPtr(removed.ToStatus),
		Operator:    operator,
		Reason:      reason,
	}
	if removed.FromStatus != nil {
		rec.NewStatus = statusPtr(*removed.FromStatus)
	}
	return rec
}

func AuditForAmend(number string, entry HistoryEntry, operator, reason string) AuditRecord {
	return AuditRecord{
		OrderNumber: number,
		Action:      AuditEditHistory,
		NewStatus:   statusPtr(entry.ToStatus),
		Operator:    operator,
		Reason:      reason,
	}
}

// AuditForUpdate lists the changed fields ahead of the operator's reason.
func AuditForUpdate(number string, current StatusKey, fields []string, operator, reason string) AuditRecord {
	text := "updated " + strings.Join(fields, ", ")
	if reason != "" {
		text += ": " + reason
	}
	return AuditRecord{
		OrderNumber: number,
		Action:      AuditUpdateOrder,
		OldStatus:   statusPtr(current),
		NewStatus:   statusPtr(current),
		Operator:    operator,
		Reason:      text,
	}
}

// AuditForDelete outlives the order it describes; the audit log has no
// foreign key to orders.
func AuditForDelete(number string, current StatusKey, operator, reason string) AuditRecord {
	return AuditRecord{
		OrderNumber: number,
		Action:      AuditDeleteOrder,
		OldStatus:   statusPtr(current),
		NewStatus:   statusPtr(AuditDeleted),
		Operator:    operator,
		Reason:      reason,
	}
}
