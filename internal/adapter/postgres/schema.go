package postgres

import (
	"context"
	"fmt"
)

// Statuses are stored as registry keys, never as display labels.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id                      BIGSERIAL PRIMARY KEY,
		order_number            VARCHAR(50) UNIQUE NOT NULL,
		customer_name           VARCHAR(100) NOT NULL,
		order_date              DATE NOT NULL,
		current_status          VARCHAR(50) NOT NULL DEFAULT 'NEW_ORDER',
		status_light            VARCHAR(10) NOT NULL DEFAULT 'green',
		status_days             INTEGER NOT NULL DEFAULT 0,
		last_status_change_date DATE NOT NULL,
		production_type         VARCHAR(100) NOT NULL DEFAULT '',
		product_name            VARCHAR(100) NOT NULL DEFAULT '',
		product_code            VARCHAR(50) NOT NULL DEFAULT '',
		pattern_code            VARCHAR(50) NOT NULL DEFAULT '',
		quantity                INTEGER NOT NULL DEFAULT 0,
		factory                 VARCHAR(100) NOT NULL DEFAULT '',
		expected_delivery_date  DATE,
		notes                   TEXT NOT NULL DEFAULT '',
		created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS status_history (
		id           BIGSERIAL PRIMARY KEY,
		order_id     BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		order_number VARCHAR(50) NOT NULL,
		from_status  VARCHAR(50),
		to_status    VARCHAR(50) NOT NULL,
		action       VARCHAR(50) NOT NULL,
		action_date  DATE NOT NULL,
		operator     VARCHAR(50) NOT NULL DEFAULT '',
		notes        TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_status_history_order ON status_history (order_id, id)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id           BIGSERIAL PRIMARY KEY,
		action_type  VARCHAR(50) NOT NULL,
		order_number VARCHAR(50) NOT NULL,
		old_status   VARCHAR(50),
		new_status   VARCHAR(50),
		operator     VARCHAR(50) NOT NULL DEFAULT '',
		reason       TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_order ON audit_log (order_number, id)`,
	`CREATE TABLE IF NOT EXISTS sweepers (
		id               BIGSERIAL PRIMARY KEY,
		name             VARCHAR(100) UNIQUE NOT NULL,
		status           VARCHAR(10) NOT NULL,
		last_seen        TIMESTAMPTZ NOT NULL,
		orders_evaluated BIGINT NOT NULL DEFAULT 0,
		last_sweep_at    TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the tables if they do not exist yet. All statements run
// in one transaction.
func Migrate(ctx context.Context, db DB) error {
	return withTx(ctx, db, func(tx Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}
