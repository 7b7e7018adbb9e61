package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

var _ database.GeofenceEventRepository = (*GeofenceEventRepo)(nil)

type GeofenceEventRepo struct {
	db *sql.DB
}

func NewGeofenceEventRepo(db *sql.DB) *GeofenceEventRepo {
	return &GeofenceEventRepo{db: db}
}

func (r *GeofenceEventRepo) Insert(ctx context.Context, e *domain.GeofenceEvent) error {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO geofence_events (tenant_id, geofence_id, vehicle_id, vehicle_log_id, event_type, latitude, longitude, recorded_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		e.TenantID, e.GeofenceID, e.VehicleID, e.VehicleLogID, string(e.EventType), e.Lat, e.Lon, e.RecordedAt,
	)
	return row.Scan(&e.ID)
}

func (r *GeofenceEventRepo) List(ctx context.Context, q *database.EventQuery) ([]domain.GeofenceEvent, error) {
	var ids any
	if len(q.GeofenceIDs) > 0 {
		ids = pq.Array(q.GeofenceIDs)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.geofence_id, COALESCE(g.name, ''), e.vehicle_id, e.vehicle_log_id, e.event_type, e.latitude, e.longitude, e.recorded_at
		FROM geofence_events e LEFT JOIN geofences g ON g.tenant_id = e.tenant_id AND g.id = e.geofence_id
		WHERE e.tenant_id = $1 AND ($2 = '' OR e.vehicle_id = $2) AND ($3::text[] IS NULL OR e.geofence_id = ANY($3::text[]))
		AND e.recorded_at >= $4 AND e.recorded_at <= $5
		ORDER BY e.recorded_at ASC, e.id ASC`,
		q.TenantID, q.VehicleID, ids, q.From, q.To,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := []domain.GeofenceEvent{}
	for rows.Next() {
		var (
			e   domain.GeofenceEvent
			typ string
		)
		if err := rows.Scan(&e.ID, &e.GeofenceID, &e.GeofenceName, &e.VehicleID, &e.VehicleLogID, &typ, &e.Lat, &e.Lon, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.TenantID = q.TenantID
		e.EventType = domain.GeofenceEventType(typ)
		results = append(results, e)
	}
	return results, rows.Err()
}
