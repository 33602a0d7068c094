package repository

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS stations (
		id {{id}},
		name TEXT NOT NULL UNIQUE,
		city TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS operators (
		id {{id}},
		tg_id BIGINT NOT NULL UNIQUE,
		handle TEXT,
		nickname TEXT,
		registered_by BIGINT,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS seen_users (
		tg_id BIGINT PRIMARY KEY,
		handle TEXT NOT NULL DEFAULT '',
		handle_lower TEXT NOT NULL DEFAULT '',
		last_seen {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS seen_users_handle_idx ON seen_users (handle_lower)`,
	`CREATE TABLE IF NOT EXISTS order_batches (
		id {{id}},
		station_id BIGINT REFERENCES stations(id),
		operator_id BIGINT REFERENCES operators(id) ON DELETE SET NULL,
		created_at {{ts}} NOT NULL,
		week_label TEXT NOT NULL,
		status TEXT NOT NULL,
		reject_reason TEXT,
		plate TEXT NOT NULL DEFAULT '',
		vin TEXT NOT NULL DEFAULT '',
		mileage TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		doc_date TEXT NOT NULL DEFAULT '',
		source_name TEXT NOT NULL DEFAULT '',
		review_reason TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS order_batches_status_idx ON order_batches (status)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id {{id}},
		batch_id BIGINT NOT NULL REFERENCES order_batches(id) ON DELETE CASCADE,
		work_name TEXT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		total DOUBLE PRECISION NOT NULL,
		vin TEXT,
		mileage TEXT,
		validation_error TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS order_items_batch_idx ON order_items (batch_id)`,
}

// Migrate creates the tables if they do not exist.
func (d *DB) Migrate(ctx context.Context) error {
	id, ts := "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP"
	if d.dialect == DialectPostgres {
		id, ts = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}
	r := strings.NewReplacer("{{id}}", id, "{{ts}}", ts)
	for _, stmt := range schemaStatements {
		if _, err := d.sql.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	d.logger.Info("database schema ready", "dialect", d.dialect)
	return nil
}
