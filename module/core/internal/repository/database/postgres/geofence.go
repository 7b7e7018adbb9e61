package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

var _ database.GeofenceRepository = (*GeofenceRepo)(nil)

const geofenceColumns = `id, name, type, center_lat, center_lng, radius_meters, vertices, is_active, created_at, updated_at`

type GeofenceRepo struct {
	db *sql.DB
}

func NewGeofenceRepo(db *sql.DB) *GeofenceRepo {
	return &GeofenceRepo{db: db}
}

func (r *GeofenceRepo) Create(ctx context.Context, g *domain.Geofence) error {
	vertices, err := encodeVertices(g.Vertices)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO geofences (id, tenant_id, name, type, center_lat, center_lng, radius_meters, vertices, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		g.ID, g.TenantID, g.Name, string(g.Type), g.CenterLat, g.CenterLon, g.RadiusMeters, vertices, g.IsActive, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

func (r *GeofenceRepo) Update(ctx context.Context, g *domain.Geofence) error {
	vertices, err := encodeVertices(g.Vertices)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE geofences SET name = $3, type = $4, center_lat = $5, center_lng = $6, radius_meters = $7, vertices = $8, is_active = $9, updated_at = $10 WHERE tenant_id = $1 AND id = $2`,
		g.TenantID, g.ID, g.Name, string(g.Type), g.CenterLat, g.CenterLon, g.RadiusMeters, vertices, g.IsActive, g.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *GeofenceRepo) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM geofences WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *GeofenceRepo) Get(ctx context.Context, tenantID, id string) (*domain.Geofence, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+geofenceColumns+` FROM geofences WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	g, err := scanGeofence(row)
	if err != nil {
		return nil, notFound(err)
	}
	g.TenantID = tenantID
	return g, nil
}

func (r *GeofenceRepo) List(ctx context.Context, tenantID string, activeOnly bool) ([]domain.Geofence, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+geofenceColumns+` FROM geofences WHERE tenant_id = $1 AND (is_active OR NOT $2) ORDER BY name, id`,
		tenantID, activeOnly,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := []domain.Geofence{}
	for rows.Next() {
		g, err := scanGeofence(rows)
		if err != nil {
			return nil, err
		}
		g.TenantID = tenantID
		results = append(results, *g)
	}
	return results, rows.Err()
}

func scanGeofence(s scanner) (*domain.Geofence, error) {
	var (
		g                         domain.Geofence
		typ                       string
		centerLat, centerLon, rad sql.NullFloat64
		vertices                  []byte
	)
	if err := s.Scan(&g.ID, &g.Name, &typ, &centerLat, &centerLon, &rad, &vertices, &g.IsActive, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Type = domain.GeofenceType(typ)
	g.CenterLat = nullFloat(centerLat)
	g.CenterLon = nullFloat(centerLon)
	g.RadiusMeters = nullFloat(rad)
	if len(vertices) > 0 {
		if err := json.Unmarshal(vertices, &g.Vertices); err != nil {
			return nil, fmt.Errorf("decode vertices for geofence %s: %w", g.ID, err)
		}
	}
	return &g, nil
}

// encodeVertices returns a jsonb parameter, nil for circles.
func encodeVertices(v []domain.Coord) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode vertices: %w", err)
	}
	return string(b), nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
