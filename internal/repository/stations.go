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

type StationRepository interface {
	GetOrCreate(ctx context.Context, name, city string) (*entity.Station, error)
	GetByID(ctx context.Context, id int64) (*entity.Station, error)
	List(ctx context.Context) ([]entity.Station, error)
}

type stationRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewStationRepository(db *DB, logger *slog.Logger) StationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &stationRepository{db: db, logger: logger}
}

// GetOrCreate returns the station with this name, inserting it first if needed.
func (r *stationRepository) GetOrCreate(ctx context.Context, name, city string) (*entity.Station, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.InvalidArgumentErrorf("station name is required")
	}
	_, err := r.db.sql.ExecContext(ctx, r.db.rebind(
		`INSERT INTO stations (name, city, created_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`),
		name, city, time.Now().UTC())
	if err != nil {
		r.logger.Error("failed to create station", "name", name, "error", err)
		return nil, errors.Wrap(err, "insert station")
	}
	row := r.db.sql.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, name, city, created_at FROM stations WHERE name = ?`), name)
	return scanStation(row)
}

func (r *stationRepository) GetByID(ctx context.Context, id int64) (*entity.Station, error) {
	row := r.db.sql.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, name, city, created_at FROM stations WHERE id = ?`), id)
	return scanStation(row)
}

func (r *stationRepository) List(ctx context.Context) ([]entity.Station, error) {
	rows, err := r.db.sql.QueryContext(ctx, `SELECT id, name, city, created_at FROM stations ORDER BY name`)
	if err != nil {
		r.logger.Error("failed to list stations", "error", err)
		return nil, errors.Wrap(err, "list stations")
	}
	defer rows.Close()

	out := []entity.Station{}
	for rows.Next() {
		var s entity.Station
		if err := rows.Scan(&s.ID, &s.Name, &s.City, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan station")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanStation(row *sql.Row) (*entity.Station, error) {
	var s entity.Station
	if err := row.Scan(&s.ID, &s.Name, &s.City, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan station")
	}
	return &s, nil
}
