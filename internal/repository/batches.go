package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
)

// BatchFilter narrows List. Zero values mean "any".
type BatchFilter struct {
	Status     constants.BatchStatus
	OperatorID *int64
	WeekLabel  string
	From, To   time.Time
}

type BatchRepository interface {
	// Create inserts the batch and its items in one transaction and fills in ids.
	Create(ctx context.Context, b *entity.OrderBatch) error
	Get(ctx context.Context, id int64) (*entity.OrderBatch, error)
	List(ctx context.Context, f BatchFilter) ([]entity.OrderBatch, error)
	SetStatus(ctx context.Context, id int64, status constants.BatchStatus) error
	Reject(ctx context.Context, id int64, reason *string) error
}

type batchRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewBatchRepository(db *DB, logger *slog.Logger) BatchRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &batchRepository{db: db, logger: logger}
}

const batchColumns = `b.id, b.station_id, COALESCE(s.name, ''), b.operator_id, b.created_at, b.week_label,
	b.status, b.reject_reason, b.plate, b.vin, b.mileage, b.city, b.doc_date, b.source_name, b.review_reason`

const batchFrom = ` FROM order_batches b LEFT JOIN stations s ON s.id = b.station_id`

func (r *batchRepository) Create(ctx context.Context, b *entity.OrderBatch) (err error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, r.db.rebind(`
		INSERT INTO order_batches (station_id, operator_id, created_at, week_label, status, reject_reason,
			plate, vin, mileage, city, doc_date, source_name, review_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		b.StationID, b.OperatorID, b.CreatedAt, b.WeekLabel, string(b.Status), b.RejectReason,
		b.Plate, b.VIN, b.Mileage, b.City, b.DocDate, b.SourceName, b.ReviewReason,
	).Scan(&b.ID)
	if err != nil {
		r.logger.Error("failed to insert batch", "source", b.SourceName, "error", err)
		return errors.Wrap(err, "insert batch")
	}

	for i := range b.Items {
		it := &b.Items[i]
		it.BatchID = b.ID
		err = tx.QueryRowContext(ctx, r.db.rebind(`
			INSERT INTO order_items (batch_id, work_name, quantity, price, total, vin, mileage, validation_error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`),
			it.BatchID, it.WorkName, it.Quantity, it.Price, it.Total, it.VIN, it.Mileage, it.ValidationError,
		).Scan(&it.ID)
		if err != nil {
			r.logger.Error("failed to insert item", "batch_id", b.ID, "error", err)
			return errors.Wrap(err, "insert item")
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit batch")
	}
	return nil
}

func (r *batchRepository) Get(ctx context.Context, id int64) (*entity.OrderBatch, error) {
	rows, err := r.db.sql.QueryContext(ctx, r.db.rebind(`SELECT `+batchColumns+batchFrom+` WHERE b.id = ?`), id)
	if err != nil {
		return nil, errors.Wrap(err, "get batch")
	}
	batches, err := scanBatches(rows)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, common.ErrNotFound
	}
	if err := r.loadItems(ctx, batches); err != nil {
		return nil, err
	}
	return &batches[0], nil
}

func (r *batchRepository) List(ctx context.Context, f BatchFilter) ([]entity.OrderBatch, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, string(f.Status))
	}
	if f.OperatorID != nil {
		where = append(where, "b.operator_id = ?")
		args = append(args, *f.OperatorID)
	}
	if f.WeekLabel != "" {
		where = append(where, "b.week_label = ?")
		args = append(args, f.WeekLabel)
	}
	if !f.From.IsZero() {
		where = append(where, "b.created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "b.created_at < ?")
		args = append(args, f.To.UTC())
	}
	q := `SELECT ` + batchColumns + batchFrom
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY b.id"

	rows, err := r.db.sql.QueryContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		r.logger.Error("failed to list batches", "status", f.Status, "error", err)
		return nil, errors.Wrap(err, "list batches")
	}
	batches, err := scanBatches(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, batches); err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *batchRepository) SetStatus(ctx context.Context, id int64, status constants.BatchStatus) error {
	return r.update(ctx, `UPDATE order_batches SET status = ? WHERE id = ?`, string(status), id)
}

// Reject moves the batch to NEEDS_REVIEW and stores the reason (nil clears it).
func (r *batchRepository) Reject(ctx context.Context, id int64, reason *string) error {
	return r.update(ctx, `UPDATE order_batches SET status = ?, reject_reason = ? WHERE id = ?`,
		string(constants.BatchStatusNeedsReview), reason, id)
}

func (r *batchRepository) update(ctx context.Context, q string, args ...any) error {
	res, err := r.db.sql.ExecContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		r.logger.Error("failed to update batch", "error", err)
		return errors.Wrap(err, "update batch")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update batch")
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// itemChunk bounds bind variables per query; sqlite caps them at 32766.
const itemChunk = 500

func (r *batchRepository) loadItems(ctx context.Context, batches []entity.OrderBatch) error {
	index := make(map[int64]int, len(batches))
	for i, b := range batches {
		index[b.ID] = i
	}
	for lo := 0; lo < len(batches); lo += itemChunk {
		hi := min(lo+itemChunk, len(batches))
		if err := r.loadItemChunk(ctx, batches, index, batches[lo:hi]); err != nil {
			return err
		}
	}
	return nil
}

func (r *batchRepository) loadItemChunk(ctx context.Context, batches []entity.OrderBatch, index map[int64]int, chunk []entity.OrderBatch) error {
	ids := make([]any, 0, len(chunk))
	marks := make([]string, 0, len(chunk))
	for _, b := range chunk {
		ids = append(ids, b.ID)
		marks = append(marks, "?")
	}
	rows, err := r.db.sql.QueryContext(ctx, r.db.rebind(`
		SELECT id, batch_id, work_name, quantity, price, total, vin, mileage, validation_error
		FROM order_items WHERE batch_id IN (`+strings.Join(marks, ",")+`) ORDER BY id`), ids...)
	if err != nil {
		return errors.Wrap(err, "load items")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it                   entity.OrderItem
			vin, mileage, valErr sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.BatchID, &it.WorkName, &it.Quantity, &it.Price, &it.Total,
			&vin, &mileage, &valErr); err != nil {
			return errors.Wrap(err, "scan item")
		}
		it.VIN = nullString(vin)
		it.Mileage = nullString(mileage)
		it.ValidationError = nullString(valErr)
		i := index[it.BatchID]
		batches[i].Items = append(batches[i].Items, it)
	}
	return rows.Err()
}

func scanBatches(rows *sql.Rows) ([]entity.OrderBatch, error) {
	defer rows.Close()
	out := []entity.OrderBatch{}
	for rows.Next() {
		var (
			b                    entity.OrderBatch
			stationID, operator  sql.NullInt64
			status               string
			rejectReason, review sql.NullString
		)
		if err := rows.Scan(&b.ID, &stationID, &b.StationName, &operator, &b.CreatedAt, &b.WeekLabel,
			&status, &rejectReason, &b.Plate, &b.VIN, &b.Mileage, &b.City, &b.DocDate, &b.SourceName,
			&review); err != nil {
			return nil, errors.Wrap(err, "scan batch")
		}
		b.Status = constants.BatchStatus(status)
		if stationID.Valid {
			b.StationID = &stationID.Int64
		}
		if operator.Valid {
			b.OperatorID = &operator.Int64
		}
		b.RejectReason = nullString(rejectReason)
		b.ReviewReason = nullString(review)
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
