package service

import (
	"context"
	"sync"
	"time"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

type mockPointRepo struct {
	insertFn        func(ctx context.Context, p *domain.GpsPoint) (bool, error)
	latestFn        func(ctx context.Context, tenantID, vehicleID string, vehicleLogID int64) (*domain.GpsPoint, error)
	listBySessionFn func(ctx context.Context, tenantID string, vehicleLogID int64) ([]domain.GpsPoint, error)
	activityDaysFn  func(ctx context.Context, tenantID, vehicleID string, from, to time.Time, tz string) ([]int, error)
}

func (m *mockPointRepo) Insert(ctx context.Context, p *domain.GpsPoint) (bool, error) {
	return m.insertFn(ctx, p)
}

func (m *mockPointRepo) Latest(ctx context.Context, tenantID, vehicleID string, vehicleLogID int64) (*domain.GpsPoint, error) {
	if m.latestFn == nil {
		return nil, domain.ErrNotFound
	}
	return m.latestFn(ctx, tenantID, vehicleID, vehicleLogID)
}

func (m *mockPointRepo) ListBySession(ctx context.Context, tenantID string, vehicleLogID int64) ([]domain.GpsPoint, error) {
	return m.listBySessionFn(ctx, tenantID, vehicleLogID)
}

func (m *mockPointRepo) ActivityDays(ctx context.Context, tenantID, vehicleID string, from, to time.Time, tz string) ([]int, error) {
	return m.activityDaysFn(ctx, tenantID, vehicleID, from, to, tz)
}

// memPoints is an in-memory point store honouring the uniqueness of
// (tenant, vehicle, recordedAt).
type memPoints struct {
	mu     sync.Mutex
	points []domain.GpsPoint
	fail   func(p *domain.GpsPoint) error
}

func (s *memPoints) repo() *mockPointRepo {
	return &mockPointRepo{
		insertFn: func(_ context.Context, p *domain.GpsPoint) (bool, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.fail != nil {
				if err := s.fail(p); err != nil {
					return false, err
				}
			}
			for _, existing := range s.points {
				if existing.TenantID == p.TenantID && existing.VehicleID == p.VehicleID && existing.RecordedAt.Equal(p.RecordedAt) {
					return false, nil
				}
			}
			p.ID = int64(len(s.points) + 1)
			s.points = append(s.points, *p)
			return true, nil
		},
		latestFn: func(_ context.Context, tenantID, vehicleID string, vehicleLogID int64) (*domain.GpsPoint, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var latest *domain.GpsPoint
			for i := range s.points {
				p := &s.points[i]
				if p.TenantID == tenantID && p.VehicleID == vehicleID && p.VehicleLogID == vehicleLogID {
					if latest == nil || p.RecordedAt.After(latest.RecordedAt) {
						latest = p
					}
				}
			}
			if latest == nil {
				return nil, domain.ErrNotFound
			}
			cp := *latest
			return &cp, nil
		},
		listBySessionFn: func(_ context.Context, tenantID string, vehicleLogID int64) ([]domain.GpsPoint, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []domain.GpsPoint
			for _, p := range s.points {
				if p.TenantID == tenantID && p.VehicleLogID == vehicleLogID {
					out = append(out, p)
				}
			}
			return out, nil
		},
	}
}

func (s *memPoints) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

type mockSessionRepo struct {
	getFn             func(ctx context.Context, tenantID string, id int64) (*domain.Session, error)
	activeForDriverFn func(ctx context.Context, tenantID, driverID string) (*domain.Session, error)
	listByVehicleFn   func(ctx context.Context, tenantID, vehicleID string, from, to time.Time) ([]domain.Session, error)
	listInRangeFn     func(ctx context.Context, tenantID string, from, to *time.Time) ([]domain.Session, error)
}

func (m *mockSessionRepo) Get(ctx context.Context, tenantID string, id int64) (*domain.Session, error) {
	return m.getFn(ctx, tenantID, id)
}

func (m *mockSessionRepo) ActiveForDriver(ctx context.Context, tenantID, driverID string) (*domain.Session, error) {
	return m.activeForDriverFn(ctx, tenantID, driverID)
}

func (m *mockSessionRepo) ListByVehicle(ctx context.Context, tenantID, vehicleID string, from, to time.Time) ([]domain.Session, error) {
	return m.listByVehicleFn(ctx, tenantID, vehicleID, from, to)
}

func (m *mockSessionRepo) ListInRange(ctx context.Context, tenantID string, from, to *time.Time) ([]domain.Session, error) {
	return m.listInRangeFn(ctx, tenantID, from, to)
}

type mockVehicleRepo struct {
	describeFn func(ctx context.Context, tenantID, vehicleID, driverID string) (*domain.VehicleInfo, error)
}

func (m *mockVehicleRepo) Describe(ctx context.Context, tenantID, vehicleID, driverID string) (*domain.VehicleInfo, error) {
	return m.describeFn(ctx, tenantID, vehicleID, driverID)
}

type mockGeofenceRepo struct {
	createFn func(ctx context.Context, g *domain.Geofence) error
	updateFn func(ctx context.Context, g *domain.Geofence) error
	deleteFn func(ctx context.Context, tenantID, id string) error
	getFn    func(ctx context.Context, tenantID, id string) (*domain.Geofence, error)
	listFn   func(ctx context.Context, tenantID string, activeOnly bool) ([]domain.Geofence, error)
}

func (m *mockGeofenceRepo) Create(ctx context.Context, g *domain.Geofence) error {
	return m.createFn(ctx, g)
}

func (m *mockGeofenceRepo) Update(ctx context.Context, g *domain.Geofence) error {
	return m.updateFn(ctx, g)
}

func (m *mockGeofenceRepo) Delete(ctx context.Context, tenantID, id string) error {
	return m.deleteFn(ctx, tenantID, id)
}

func (m *mockGeofenceRepo) Get(ctx context.Context, tenantID, id string) (*domain.Geofence, error) {
	return m.getFn(ctx, tenantID, id)
}

func (m *mockGeofenceRepo) List(ctx context.Context, tenantID string, activeOnly bool) ([]domain.Geofence, error) {
	if m.listFn == nil {
		return nil, nil
	}
	return m.listFn(ctx, tenantID, activeOnly)
}

type mockEventRepo struct {
	mu       sync.Mutex
	inserted []domain.GeofenceEvent
	insertFn func(ctx context.Context, e *domain.GeofenceEvent) error
	listFn   func(ctx context.Context, q *database.EventQuery) ([]domain.GeofenceEvent, error)
}

func (m *mockEventRepo) Insert(ctx context.Context, e *domain.GeofenceEvent) error {
	if m.insertFn != nil {
		if err := m.insertFn(ctx, e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.inserted) + 1)
	m.inserted = append(m.inserted, *e)
	return nil
}

func (m *mockEventRepo) List(ctx context.Context, q *database.EventQuery) ([]domain.GeofenceEvent, error) {
	return m.listFn(ctx, q)
}

// recordingSink captures published events in order.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (r *recordingSink) Publish(_ context.Context, e *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return r.err
}

func (r *recordingSink) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func circleFence(id string, lat, lon, radius float64) domain.Geofence {
	return domain.Geofence{
		ID:           id,
		TenantID:     "acme",
		Name:         "fence " + id,
		Type:         domain.GeofenceCircle,
		CenterLat:    floatPtr(lat),
		CenterLon:    floatPtr(lon),
		RadiusMeters: floatPtr(radius),
		IsActive:     true,
	}
}

// metersNorth returns the latitude d meters north of lat.
func metersNorth(lat, d float64) float64 {
	return lat + d/111194.92664455873
}
