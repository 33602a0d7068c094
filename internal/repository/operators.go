package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
)

type OperatorRepository interface {
	// Upsert registers tgID, replacing handle/nickname/registrar on an existing row.
	Upsert(ctx context.Context, op entity.Operator) (*entity.Operator, error)
	GetByTgID(ctx context.Context, tgID int64) (*entity.Operator, error)
	List(ctx context.Context) ([]entity.Operator, error)
	// Delete removes the operator; it reports false when nothing matched.
	Delete(ctx context.Context, tgID int64) (bool, error)

	RecordSeen(ctx context.Context, tgID int64, handle string) error
	// ResolveHandle finds the identity last seen under handle (case-insensitive, no @).
	ResolveHandle(ctx context.Context, handle string) (int64, bool, error)
}

type operatorRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewOperatorRepository(db *DB, logger *slog.Logger) OperatorRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &operatorRepository{db: db, logger: logger}
}

const operatorColumns = `id, tg_id, handle, nickname, registered_by, created_at`

func (r *operatorRepository) Upsert(ctx context.Context, op entity.Operator) (*entity.Operator, error) {
	row := r.db.sql.QueryRowContext(ctx, r.db.rebind(`
		INSERT INTO operators (tg_id, handle, nickname, registered_by, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tg_id) DO UPDATE SET
			handle = COALESCE(excluded.handle, operators.handle),
			nickname = excluded.nickname,
			registered_by = excluded.registered_by
		RETURNING `+operatorColumns),
		op.TgID, op.Handle, op.Nickname, op.RegisteredBy, time.Now().UTC())
	out, err := scanOperator(row)
	if err != nil {
		r.logger.Error("failed to upsert operator", "tg_id", op.TgID, "error", err)
		return nil, err
	}
	return out, nil
}

func (r *operatorRepository) GetByTgID(ctx context.Context, tgID int64) (*entity.Operator, error) {
	row := r.db.sql.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+operatorColumns+` FROM operators WHERE tg_id = ?`), tgID)
	return scanOperator(row)
}

func (r *operatorRepository) List(ctx context.Context) ([]entity.Operator, error) {
	rows, err := r.db.sql.QueryContext(ctx, `SELECT `+operatorColumns+` FROM operators ORDER BY created_at, id`)
	if err != nil {
		r.logger.Error("failed to list operators", "error", err)
		return nil, errors.Wrap(err, "list operators")
	}
	defer rows.Close()

	out := []entity.Operator{}
	for rows.Next() {
		var (
			o                entity.Operator
			handle, nickname sql.NullString
			registeredBy     sql.NullInt64
		)
		if err := rows.Scan(&o.ID, &o.TgID, &handle, &nickname, &registeredBy, &o.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan operator")
		}
		fillOperator(&o, handle, nickname, registeredBy)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *operatorRepository) Delete(ctx context.Context, tgID int64) (bool, error) {
	res, err := r.db.sql.ExecContext(ctx, r.db.rebind(`DELETE FROM operators WHERE tg_id = ?`), tgID)
	if err != nil {
		r.logger.Error("failed to delete operator", "tg_id", tgID, "error", err)
		return false, errors.Wrap(err, "delete operator")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "delete operator")
	}
	return n > 0, nil
}

func (r *operatorRepository) RecordSeen(ctx context.Context, tgID int64, handle string) error {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	_, err := r.db.sql.ExecContext(ctx, r.db.rebind(`
		INSERT INTO seen_users (tg_id, handle, handle_lower, last_seen) VALUES (?, ?, ?, ?)
		ON CONFLICT (tg_id) DO UPDATE SET
			handle = excluded.handle,
			handle_lower = excluded.handle_lower,
			last_seen = excluded.last_seen`),
		tgID, handle, strings.ToLower(handle), time.Now().UTC())
	if err != nil {
		r.logger.Error("failed to record seen user", "tg_id", tgID, "error", err)
		return errors.Wrap(err, "record seen user")
	}
	return nil
}

func (r *operatorRepository) ResolveHandle(ctx context.Context, handle string) (int64, bool, error) {
	h := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
	if h == "" {
		return 0, false, nil
	}
	var id int64
	err := r.db.sql.QueryRowContext(ctx, r.db.rebind(
		`SELECT tg_id FROM seen_users WHERE handle_lower = ? ORDER BY last_seen DESC LIMIT 1`), h).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "resolve handle")
	}
	return id, true, nil
}

func scanOperator(row *sql.Row) (*entity.Operator, error) {
	var (
		o                entity.Operator
		handle, nickname sql.NullString
		registeredBy     sql.NullInt64
	)
	if err := row.Scan(&o.ID, &o.TgID, &handle, &nickname, &registeredBy, &o.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan operator")
	}
	fillOperator(&o, handle, nickname, registeredBy)
	return &o, nil
}

func fillOperator(o *entity.Operator, handle, nickname sql.NullString, registeredBy sql.NullInt64) {
	if handle.Valid {
		o.Handle = &handle.String
	}
	if nickname.Valid {
		o.Nickname = &nickname.String
	}
	if registeredBy.Valid {
		o.RegisteredBy = &registeredBy.Int64
	}
}
