package database

import (
	"context"
	"time"

	"github.com/nandanugg/fleet-gps/module/core/domain"
)

// PointRepository stores GPS fixes. Insert reports false when the point
// already exists for the vehicle and timestamp.
type PointRepository interface {
	Insert(ctx context.Context, p *domain.GpsPoint) (bool, error)
	Latest(ctx context.Context, tenantID, vehicleID string, vehicleLogID int64) (*domain.GpsPoint, error)
	ListBySession(ctx context.Context, tenantID string, vehicleLogID int64) ([]domain.GpsPoint, error)
	ActivityDays(ctx context.Context, tenantID, vehicleID string, from, to time.Time, tz string) ([]int, error)
}

type GeofenceRepository interface {
	Create(ctx context.Context, g *domain.Geofence) error
	Update(ctx context.Context, g *domain.Geofence) error
	Delete(ctx context.Context, tenantID, id string) error
	Get(ctx context.Context, tenantID, id string) (*domain.Geofence, error)
	List(ctx context.Context, tenantID string, activeOnly bool) ([]domain.Geofence, error)
}

type EventQuery struct {
	TenantID    string
	VehicleID   string
	GeofenceIDs []string
	From        time.Time
	To          time.Time
}

type GeofenceEventRepository interface {
	Insert(ctx context.Context, e *domain.GeofenceEvent) error
	List(ctx context.Context, q *EventQuery) ([]domain.GeofenceEvent, error)
}

// SessionRepository is read-only access to vehicle usage logs.
type SessionRepository interface {
	Get(ctx context.Context, tenantID string, id int64) (*domain.Session, error)
	ActiveForDriver(ctx context.Context, tenantID, driverID string) (*domain.Session, error)
	ListByVehicle(ctx context.Context, tenantID, vehicleID string, from, to time.Time) ([]domain.Session, error)
	ListInRange(ctx context.Context, tenantID string, from, to *time.Time) ([]domain.Session, error)
}

type VehicleRepository interface {
	Describe(ctx context.Context, tenantID, vehicleID, driverID string) (*domain.VehicleInfo, error)
}
