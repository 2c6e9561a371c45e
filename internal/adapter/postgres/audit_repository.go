package postgres

import (
	"context"
	"fmt"

	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

type auditRepository struct {
	db DB
}

func NewAuditRepository(db DB) interfaces.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) ListAudit(ctx context.Context, orderNumber string) ([]domain.AuditRecord, error) {
	query := `
		SELECT id, order_number, action_type, old_status, new_status, operator, reason, created_at
		FROM audit_log
		WHERE order_number = $1
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var (
			rec      domain.AuditRecord
			oldStatus, newStatus *string
		)
		if err := rows.Scan(&rec.ID, &rec.OrderNumber, &rec.Action, &oldStatus, &newStatus, &rec.Operator, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.OldStatus = statusFromDB(oldStatus)
		rec.NewStatus = statusFromDB(newStatus)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return out, nil
}

func insertAudit(ctx context.Context, tx Tx, rec domain.AuditRecord) error {
	query := `
		INSERT INTO audit_log (action_type, order_number, old_status, new_status, operator, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query,
		rec.Action, rec.OrderNumber, statusArg(rec.OldStatus), statusArg(rec.NewStatus), rec.Operator, rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func statusFromDB(s *string) *domain.StatusKey {
	if s == nil {
		return nil
	}
	k := domain.StatusKey(*s)
	return &k
}
