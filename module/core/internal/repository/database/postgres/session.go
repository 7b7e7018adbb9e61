package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

var _ database.SessionRepository = (*SessionRepo)(nil)

const sessionColumns = `id, vehicle_id, driver_id, status, start_km, end_km, start_time, end_time`

// SessionRepo reads the vehicle_logs table owned by the trip service.
type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Get(ctx context.Context, tenantID string, id int64) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM vehicle_logs WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	s, err := scanSession(row)
	if err != nil {
		return nil, notFound(err)
	}
	s.TenantID = tenantID
	return s, nil
}

func (r *SessionRepo) ActiveForDriver(ctx context.Context, tenantID, driverID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM vehicle_logs WHERE tenant_id = $1 AND driver_id = $2 AND status = 'active' ORDER BY start_time DESC LIMIT 1`,
		tenantID, driverID,
	)
	s, err := scanSession(row)
	if err != nil {
		return nil, notFound(err)
	}
	s.TenantID = tenantID
	return s, nil
}

func (r *SessionRepo) ListByVehicle(ctx context.Context, tenantID, vehicleID string, from, to time.Time) ([]domain.Session, error) {
	return r.list(ctx, tenantID,
		`SELECT `+sessionColumns+` FROM vehicle_logs WHERE tenant_id = $1 AND vehicle_id = $2 AND start_time <= $4 AND (end_time IS NULL OR end_time >= $3) ORDER BY start_time ASC`,
		tenantID, vehicleID, from, to,
	)
}

func (r *SessionRepo) ListInRange(ctx context.Context, tenantID string, from, to *time.Time) ([]domain.Session, error) {
	return r.list(ctx, tenantID,
		`SELECT `+sessionColumns+` FROM vehicle_logs WHERE tenant_id = $1 AND ($2::timestamptz IS NULL OR end_time IS NULL OR end_time >= $2) AND ($3::timestamptz IS NULL OR start_time <= $3) ORDER BY start_time ASC`,
		tenantID, from, to,
	)
}

func (r *SessionRepo) list(ctx context.Context, tenantID, query string, args ...any) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		s.TenantID = tenantID
		results = append(results, *s)
	}
	return results, rows.Err()
}

func scanSession(s scanner) (*domain.Session, error) {
	var (
		sess           domain.Session
		status         string
		startKm, endKm sql.NullFloat64
		endTime        sql.NullTime
	)
	if err := s.Scan(&sess.ID, &sess.VehicleID, &sess.DriverID, &status, &startKm, &endKm, &sess.StartTime, &endTime); err != nil {
		return nil, err
	}
	sess.Status = domain.SessionStatus(status)
	sess.StartKm = nullFloat(startKm)
	sess.EndKm = nullFloat(endKm)
	sess.EndTime = nullTime(endTime)
	return &sess, nil
}
