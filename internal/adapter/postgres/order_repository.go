package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

const uniqueViolation = "23505"

type orderRepository struct {
	db DB
}

func NewOrderRepository(db DB) interfaces.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	first, ok := order.History.Entry(0)
	if !ok || order.History.Len() != 1 {
		return fmt.Errorf("new order %s must carry exactly its creation entry", order.Number)
	}

	return withTx(ctx, r.db, func(tx Tx) error {
		query := `
			INSERT INTO orders (order_number, customer_name, order_date, current_status,
			                    last_status_change_date, production_type, product_name, product_code,
			                    pattern_code, quantity, factory, expected_delivery_date, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id, created_at, updated_at
		`
		p := order.Product
		err := tx.QueryRow(ctx, query,
			order.Number, order.CustomerName, toTime(first.ActionDate), order.CurrentStatus,
			toTime(first.ActionDate), p.ProductionType, p.ProductName, p.ProductCode,
			p.PatternCode, p.Quantity, p.Factory, toTimePtr(p.ExpectedDelivery), p.Notes,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return interfaces.ErrDuplicateNumber
			}
			return fmt.Errorf("failed to insert order: %w", err)
		}

		first.OrderID = order.ID
		id, _, err := insertEntry(ctx, tx, order.Number, first)
		if err != nil {
			return err
		}
		order.RecordEntryID(id)

		to := first.ToStatus
		return insertAudit(ctx, tx, domain.AuditRecord{
			OrderNumber: order.Number,
			Action:      domain.AuditCreate,
			NewStatus:   &to,
			Operator:    first.Operator,
			Reason:      first.Notes,
		})
	})
}

func (r *orderRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	query := `
		SELECT id, order_number, customer_name, production_type, product_name, product_code,
		       pattern_code, quantity, factory, expected_delivery_date, notes, created_at, updated_at
		FROM orders
		WHERE order_number = $1
	`

	var (
		order    domain.Order
		delivery *time.Time
	)
	p := &order.Product
	err := r.db.QueryRow(ctx, query, number).Scan(
		&order.ID, &order.Number, &order.CustomerName, &p.ProductionType, &p.ProductName, &p.ProductCode,
		&p.PatternCode, &p.Quantity, &p.Factory, &delivery, &p.Notes, &order.CreatedAt, &order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	p.ExpectedDelivery = toDatePtr(delivery)

	historyQuery := `
		SELECT id, order_id, from_status, to_status, action, action_date, operator, notes, created_at
		FROM status_history
		WHERE order_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, historyQuery, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			e          domain.HistoryEntry
			from       *string
			actionDate time.Time
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &from, &e.ToStatus, &e.Action, &actionDate, &e.Operator, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		e.FromStatus = statusFromDB(from)
		e.ActionDate = civil.DateOf(actionDate)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read status history: %w", err)
	}

	if err := order.Restore(entries); err != nil {
		return nil, fmt.Errorf("order %s: %w", number, err)
	}
	return &order, nil
}

// NextQuoteNumber returns KC followed by five digits, one above the highest
// quote number issued so far.
func (r *orderRepository) NextQuoteNumber(ctx context.Context) (string, error) {
	query := `
		SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM 3) AS INTEGER)), 0)
		FROM orders
		WHERE order_number ~ '^KC[0-9]{5}$'
	`
	var highest int
	if err := r.db.QueryRow(ctx, query).Scan(&highest); err != nil {
		return "", fmt.Errorf("failed to read quote numbers: %w", err)
	}
	return fmt.Sprintf("KC%05d", highest+1), nil
}

func (r *orderRepository) ListSummaries(ctx context.Context) ([]domain.Summary, error) {
	query := `
		SELECT order_number, customer_name, product_name, current_status,
		       last_status_change_date, order_date, status_light
		FROM orders
		ORDER BY order_date DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Summary
	for rows.Next() {
		var (
			s                  domain.Summary
			entered, orderDate time.Time
			light              string
		)
		if err := rows.Scan(&s.Number, &s.CustomerName, &s.ProductName, &s.Status, &entered, &orderDate, &light); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		s.EnteredAt = civil.DateOf(entered)
		s.OrderDate = civil.DateOf(orderDate)
		s.CachedSeverity = domain.SeverityFromLight(light)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	return out, nil
}

func (r *orderRepository) AppendEntry(ctx context.Context, order *domain.Order, entry domain.HistoryEntry, audit domain.AuditRecord) (domain.HistoryEntry, error) {
	err := withTx(ctx, r.db, func(tx Tx) error {
		last, err := lockLastEntry(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if entry.FromStatus == nil || *entry.FromStatus != last.status {
			return domain.Errorf(domain.KindChainBroken, "order %s is now in %s", order.Number, last.status)
		}

		entry.OrderID = order.ID
		entry.ID, entry.CreatedAt, err = insertEntry(ctx, tx, order.Number, entry)
		if err != nil {
			return err
		}
		if err := syncOrder(ctx, tx, order.ID, entry.ToStatus, entry.ActionDate); err != nil {
			return err
		}
		return insertAudit(ctx, tx, audit)
	})
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	return entry, nil
}

// DeleteLastEntry removes removed only while it is still the newest row.
func (r *orderRepository) DeleteLastEntry(ctx context.Context, order *domain.Order, removed domain.HistoryEntry, audit domain.AuditRecord) error {
	return withTx(ctx, r.db, func(tx Tx) error {
		last, err := lockLastEntry(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if last.id != removed.ID {
			return domain.Errorf(domain.KindChainBroken, "the last step of order %s changed meanwhile", order.Number)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM status_history WHERE id = $1 AND order_id = $2`, removed.ID, order.ID)
		if err != nil {
			return fmt.Errorf("failed to delete history entry: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return domain.Errorf(domain.KindChainBroken, "history entry %d vanished", removed.ID)
		}

		if err := syncOrder(ctx, tx, order.ID, order.CurrentStatus, order.EnteredAt()); err != nil {
			return err
		}
		return insertAudit(ctx, tx, audit)
	})
}

// UpdateEntry rewrites date and notes. The to_status guard makes a row that
// was replaced meanwhile count as a broken chain.
func (r *orderRepository) UpdateEntry(ctx context.Context, order *domain.Order, entry domain.HistoryEntry, audit domain.AuditRecord) error {
	return withTx(ctx, r.db, func(tx Tx) error {
		if _, err := lockLastEntry(ctx, tx, order.ID); err != nil {
			return err
		}

		query := `
			UPDATE status_history
			SET action_date = $1, notes = $2
			WHERE id = $3 AND order_id = $4 AND to_status = $5
		`
		tag, err := tx.Exec(ctx, query, toTime(entry.ActionDate), entry.Notes, entry.ID, order.ID, entry.ToStatus)
		if err != nil {
			return fmt.Errorf("failed to update history entry: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return domain.Errorf(domain.KindChainBroken,
				"history entry %d of order %s changed meanwhile", entry.ID, order.Number)
		}

		if err := syncOrder(ctx, tx, order.ID, order.CurrentStatus, order.EnteredAt()); err != nil {
			return err
		}
		// The creation entry carries the order date.
		if entry.FromStatus == nil {
			if _, err := tx.Exec(ctx, `UPDATE orders SET order_date = $1 WHERE id = $2`, toTime(entry.ActionDate), order.ID); err != nil {
				return fmt.Errorf("failed to update order date: %w", err)
			}
		}
		return insertAudit(ctx, tx, audit)
	})
}

func (r *orderRepository) UpdateAttributes(ctx context.Context, order *domain.Order, audit domain.AuditRecord) error {
	return withTx(ctx, r.db, func(tx Tx) error {
		if _, err := lockLastEntry(ctx, tx, order.ID); err != nil {
			return err
		}

		query := `
			UPDATE orders
			SET customer_name = $1, production_type = $2, product_name = $3, product_code = $4,
			    pattern_code = $5, quantity = $6, factory = $7, expected_delivery_date = $8,
			    notes = $9, updated_at = NOW()
			WHERE id = $10
			RETURNING updated_at
		`
		p := order.Product
		err := tx.QueryRow(ctx, query,
			order.CustomerName, p.ProductionType, p.ProductName, p.ProductCode,
			p.PatternCode, p.Quantity, p.Factory, toTimePtr(p.ExpectedDelivery),
			p.Notes, order.ID,
		).Scan(&order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		return insertAudit(ctx, tx, audit)
	})
}

// Delete writes the audit record first; the history rows go with the order
// through the foreign key.
func (r *orderRepository) Delete(ctx context.Context, order *domain.Order, audit domain.AuditRecord) error {
	return withTx(ctx, r.db, func(tx Tx) error {
		if _, err := lockLastEntry(ctx, tx, order.ID); err != nil {
			return err
		}
		if err := insertAudit(ctx, tx, audit); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, order.ID)
		if err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return interfaces.ErrNotFound
		}
		return nil
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *orderRepository) SearchCustomers(ctx context.Context, q string, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT customer_name
		FROM orders
		WHERE customer_name ILIKE $1
		ORDER BY customer_name
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, "%"+likeEscaper.Replace(q)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read customers: %w", err)
	}
	return names, nil
}

func (r *orderRepository) UpdateLight(ctx context.Context, number string, severity domain.Severity, statusDays int) error {
	query := `UPDATE orders SET status_light = $1, status_days = $2 WHERE order_number = $3`
	tag, err := r.db.Exec(ctx, query, severity.Light(), statusDays, number)
	if err != nil {
		return fmt.Errorf("failed to update status light: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

type lastEntry struct {
	id     int64
	status domain.StatusKey
}

// lockLastEntry takes the row lock of the order and reads its newest
// history entry. Concurrent writers queue on the lock and then fail the
// chain check.
func lockLastEntry(ctx context.Context, tx Tx, orderID int64) (lastEntry, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return lastEntry{}, interfaces.ErrNotFound
	}
	if err != nil {
		return lastEntry{}, fmt.Errorf("failed to lock order: %w", err)
	}

	var last lastEntry
	query := `SELECT id, to_status FROM status_history WHERE order_id = $1 ORDER BY id DESC LIMIT 1`
	err = tx.QueryRow(ctx, query, orderID).Scan(&last.id, &last.status)
	if errors.Is(err, pgx.ErrNoRows) {
		return lastEntry{}, domain.Errorf(domain.KindChainBroken, "order %d has no history", orderID)
	}
	if err != nil {
		return lastEntry{}, fmt.Errorf("failed to read last history entry: %w", err)
	}
	return last, nil
}

func insertEntry(ctx context.Context, tx Tx, number string, e domain.HistoryEntry) (int64, time.Time, error) {
	query := `
		INSERT INTO status_history (order_id, order_number, from_status, to_status, action,
		                            action_date, operator, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	var (
		id        int64
		createdAt time.Time
	)
	err := tx.QueryRow(ctx, query,
		e.OrderID, number, statusArg(e.FromStatus), e.ToStatus, e.Action,
		toTime(e.ActionDate), e.Operator, e.Notes,
	).Scan(&id, &createdAt)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to insert history entry: %w", err)
	}
	return id, createdAt, nil
}

func syncOrder(ctx context.Context, tx Tx, orderID int64, status domain.StatusKey, enteredAt civil.Date) error {
	query := `
		UPDATE orders
		SET current_status = $1, last_status_change_date = $2, updated_at = NOW()
		WHERE id = $3
	`
	if _, err := tx.Exec(ctx, query, status, toTime(enteredAt), orderID); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

func toTime(d civil.Date) time.Time {
	return d.In(time.UTC)
}

func toTimePtr(d *civil.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.In(time.UTC)
	return &t
}

func toDatePtr(t *time.Time) *civil.Date {
	if t == nil {
		return nil
	}
	d := civil.DateOf(*t)
	return &d
}

func statusArg(s *domain.StatusKey) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}
