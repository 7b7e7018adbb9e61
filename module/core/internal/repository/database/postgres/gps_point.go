package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

var _ database.PointRepository = (*PointRepo)(nil)

const pointColumns = `id, vehicle_id, vehicle_log_id, inspector_id, latitude, longitude, altitude, speed, heading, accuracy, recorded_at, created_at`

type PointRepo struct {
	db *sql.DB
}

func NewPointRepo(db *sql.DB) *PointRepo {
	return &PointRepo{db: db}
}

func (r *PointRepo) Insert(ctx context.Context, p *domain.GpsPoint) (bool, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO gps_points (tenant_id, vehicle_id, vehicle_log_id, inspector_id, latitude, longitude, altitude, speed, heading, accuracy, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id, vehicle_id, recorded_at) DO NOTHING
		RETURNING id, created_at`,
		p.TenantID, p.VehicleID, p.VehicleLogID, p.InspectorID, p.Lat, p.Lon,
		p.Altitude, p.Speed, p.Heading, p.Accuracy, p.RecordedAt,
	)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PointRepo) Latest(ctx context.Context, tenantID, vehicleID string, vehicleLogID int64) (*domain.GpsPoint, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+pointColumns+` FROM gps_points WHERE tenant_id = $1 AND vehicle_id = $2 AND vehicle_log_id = $3 ORDER BY recorded_at DESC LIMIT 1`,
		tenantID, vehicleID, vehicleLogID,
	)
	p, err := scanPoint(row)
	if err != nil {
		return nil, notFound(err)
	}
	p.TenantID = tenantID
	return p, nil
}

func (r *PointRepo) ListBySession(ctx context.Context, tenantID string, vehicleLogID int64) ([]domain.GpsPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+pointColumns+` FROM gps_points WHERE tenant_id = $1 AND vehicle_log_id = $2 ORDER BY recorded_at ASC, id ASC`,
		tenantID, vehicleLogID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.GpsPoint
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		p.TenantID = tenantID
		results = append(results, *p)
	}
	return results, rows.Err()
}

func (r *PointRepo) ActivityDays(ctx context.Context, tenantID, vehicleID string, from, to time.Time, tz string) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT EXTRACT(DAY FROM recorded_at AT TIME ZONE $5)::int AS day FROM gps_points WHERE tenant_id = $1 AND vehicle_id = $2 AND recorded_at >= $3 AND recorded_at < $4 ORDER BY day`,
		tenantID, vehicleID, from, to, tz,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	days := []int{}
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPoint(s scanner) (*domain.GpsPoint, error) {
	var (
		p                                  domain.GpsPoint
		altitude, speed, heading, accuracy sql.NullFloat64
	)
	if err := s.Scan(&p.ID, &p.VehicleID, &p.VehicleLogID, &p.InspectorID, &p.Lat, &p.Lon,
		&altitude, &speed, &heading, &accuracy, &p.RecordedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Altitude = nullFloat(altitude)
	p.Speed = nullFloat(speed)
	p.Heading = nullFloat(heading)
	p.Accuracy = nullFloat(accuracy)
	return &p, nil
}
