package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

type sweeperRepository struct {
	db DB
}

func NewSweeperRepository(db DB) interfaces.SweeperRepository {
	return &sweeperRepository{db: db}
}

func (r *sweeperRepository) Create(ctx context.Context, sweeper *domain.Sweeper) error {
	query := `
		INSERT INTO sweepers (name, status, last_seen, orders_evaluated, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		sweeper.Name, sweeper.Status, sweeper.LastSeen, sweeper.OrdersEvaluated, sweeper.CreatedAt,
	).Scan(&sweeper.ID)
	if err != nil {
		return fmt.Errorf("failed to create sweeper: %w", err)
	}
	return nil
}

func (r *sweeperRepository) FindByName(ctx context.Context, name string) (*domain.Sweeper, error) {
	query := `
		SELECT id, name, status, last_seen, orders_evaluated, last_sweep_at, created_at
		FROM sweepers
		WHERE name = $1
	`

	var s domain.Sweeper
	err := r.db.QueryRow(ctx, query, name).Scan(
		&s.ID, &s.Name, &s.Status, &s.LastSeen, &s.OrdersEvaluated, &s.LastSweepAt, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sweeper: %w", err)
	}
	return &s, nil
}

func (r *sweeperRepository) Update(ctx context.Context, sweeper *domain.Sweeper) error {
	query := `
		UPDATE sweepers
		SET status = $1, last_seen = $2
		WHERE id = $3
	`
	_, err := r.db.Exec(ctx, query, sweeper.Status, sweeper.LastSeen, sweeper.ID)
	if err != nil {
		return fmt.Errorf("failed to update sweeper: %w", err)
	}
	return nil
}

func (r *sweeperRepository) UpdateHeartbeat(ctx context.Context, name string, at time.Time) error {
	query := `
		UPDATE sweepers
		SET last_seen = $1, status = $2
		WHERE name = $3
	`
	_, err := r.db.Exec(ctx, query, at, domain.SweeperStatusOnline, name)
	if err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}
	return nil
}

func (r *sweeperRepository) RecordSweep(ctx context.Context, name string, evaluated int, at time.Time) error {
	query := `
		UPDATE sweepers
		SET orders_evaluated = orders_evaluated + $1, last_sweep_at = $2, last_seen = $2
		WHERE name = $3
	`
	_, err := r.db.Exec(ctx, query, evaluated, at, name)
	if err != nil {
		return fmt.Errorf("failed to record sweep: %w", err)
	}
	return nil
}

func (r *sweeperRepository) ListAll(ctx context.Context) ([]*domain.Sweeper, error) {
	query := `
		SELECT id, name, status, last_seen, orders_evaluated, last_sweep_at, created_at
		FROM sweepers
		ORDER BY name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweepers: %w", err)
	}
	defer rows.Close()

	var sweepers []*domain.Sweeper
	for rows.Next() {
		var s domain.Sweeper
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Status, &s.LastSeen, &s.OrdersEvaluated, &s.LastSweepAt, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sweeper: %w", err)
		}
		sweepers = append(sweepers, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sweepers: %w", err)
	}
	return sweepers, nil
}
