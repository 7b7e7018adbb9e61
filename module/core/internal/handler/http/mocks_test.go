package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

type mockIngestService struct {
	ingestFn func(ctx context.Context, b *domain.Batch) (*domain.BatchResult, error)
}

func (m *mockIngestService) Ingest(ctx context.Context, b *domain.Batch) (*domain.BatchResult, error) {
	return m.ingestFn(ctx, b)
}

type mockTracker struct {
	listLiveFn func(tenantID string) []domain.LiveVehiclePosition
}

func (m *mockTracker) ListLive(tenantID string) []domain.LiveVehiclePosition {
	return m.listLiveFn(tenantID)
}

type mockRouteService struct {
	sessionRouteFn func(ctx context.Context, tenantID string, vehicleLogID int64, simplify bool) (*domain.RouteHistory, error)
	historyFn      func(ctx context.Context, q *domain.RouteQuery) ([]domain.RouteHistory, error)
	statsFn        func(ctx context.Context, q *domain.StatsQuery) (*domain.Stats, error)
	activityDaysFn func(ctx context.Context, tenantID, vehicleID string, year, month int) ([]int, error)
}

func (m *mockRouteService) SessionRoute(ctx context.Context, tenantID string, vehicleLogID int64, simplify bool) (*domain.RouteHistory, error) {
	return m.sessionRouteFn(ctx, tenantID, vehicleLogID, simplify)
}

func (m *mockRouteService) History(ctx context.Context, q *domain.RouteQuery) ([]domain.RouteHistory, error) {
	return m.historyFn(ctx, q)
}

func (m *mockRouteService) Stats(ctx context.Context, q *domain.StatsQuery) (*domain.Stats, error) {
	return m.statsFn(ctx, q)
}

func (m *mockRouteService) ActivityDays(ctx context.Context, tenantID, vehicleID string, year, month int) ([]int, error) {
	return m.activityDaysFn(ctx, tenantID, vehicleID, year, month)
}

type mockGeofenceService struct {
	createFn func(ctx context.Context, tenantID string, in *domain.GeofenceInput) (*domain.Geofence, error)
	updateFn func(ctx context.Context, tenantID, id string, in *domain.GeofenceInput) (*domain.Geofence, error)
	deleteFn func(ctx context.Context, tenantID, id string) error
	getFn    func(ctx context.Context, tenantID, id string) (*domain.Geofence, error)
	listFn   func(ctx context.Context, tenantID string, activeOnly bool) ([]domain.Geofence, error)
	eventsFn func(ctx context.Context, q *database.EventQuery) ([]domain.GeofenceEvent, error)
}

func (m *mockGeofenceService) Create(ctx context.Context, tenantID string, in *domain.GeofenceInput) (*domain.Geofence, error) {
	return m.createFn(ctx, tenantID, in)
}

func (m *mockGeofenceService) Update(ctx context.Context, tenantID, id string, in *domain.GeofenceInput) (*domain.Geofence, error) {
	return m.updateFn(ctx, tenantID, id, in)
}

func (m *mockGeofenceService) Delete(ctx context.Context, tenantID, id string) error {
	return m.deleteFn(ctx, tenantID, id)
}

func (m *mockGeofenceService) Get(ctx context.Context, tenantID, id string) (*domain.Geofence, error) {
	return m.getFn(ctx, tenantID, id)
}

func (m *mockGeofenceService) List(ctx context.Context, tenantID string, activeOnly bool) ([]domain.Geofence, error) {
	return m.listFn(ctx, tenantID, activeOnly)
}

func (m *mockGeofenceService) Events(ctx context.Context, q *database.EventQuery) ([]domain.GeofenceEvent, error) {
	return m.eventsFn(ctx, q)
}

type mockSessionService struct {
	transitionFn func(ctx context.Context, tenantID string, sessionID int64, status domain.SessionStatus) error
}

func (m *mockSessionService) Transition(ctx context.Context, tenantID string, sessionID int64, status domain.SessionStatus) error {
	return m.transitionFn(ctx, tenantID, sessionID, status)
}

type mockHub struct {
	serveFn func(conn *websocket.Conn, tenantID, vehicleID string)
}

func (m *mockHub) Serve(conn *websocket.Conn, tenantID, vehicleID string) {
	m.serveFn(conn, tenantID, vehicleID)
}

type registrar interface {
	Register(r *gin.RouterGroup)
}

func setupRouter(handlers ...registrar) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1", Identity())
	for _, h := range handlers {
		h.Register(g)
	}
	return r
}
