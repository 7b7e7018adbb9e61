package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

// SessionService reacts to lifecycle edges reported by the trip service.
type SessionService struct {
	sessions  database.SessionRepository
	vehicles  database.VehicleRepository
	tracker   *LiveTracker
	evaluator *GeofenceEvaluator
	sink      EventSink
	now       func() time.Time
}

func NewSessionService(
	sessions database.SessionRepository,
	vehicles database.VehicleRepository,
	tracker *LiveTracker,
	evaluator *GeofenceEvaluator,
	sink EventSink,
) *SessionService {
	return &SessionService{
		sessions:  sessions,
		vehicles:  vehicles,
		tracker:   tracker,
		evaluator: evaluator,
		sink:      sink,
		now:       time.Now,
	}
}

type sessionPayload struct {
	Session *domain.Session     `json:"session"`
	Vehicle *domain.VehicleInfo `json:"vehicle,omitempty"`
}

// Transition publishes vehicle:started or vehicle:stopped for a session.
// Ending a session removes the vehicle from the live map and clears its
// geofence memberships.
func (s *SessionService) Transition(ctx context.Context, tenantID string, sessionID int64, status domain.SessionStatus) error {
	if !status.Valid() {
		return domain.NewValidationError("status", "must be one of active, completed, cancelled")
	}

	session, err := s.sessions.Get(ctx, tenantID, sessionID)
	if err != nil {
		return lookupErr("get session", "vehicle log", strconv.FormatInt(sessionID, 10), err)
	}
	session.Status = status

	info, err := s.vehicles.Describe(ctx, tenantID, session.VehicleID, session.DriverID)
	if err != nil {
		slog.Warn("vehicle lookup failed for session event", "tenant", tenantID, "vehicle", session.VehicleID, "err", err)
	}
	payload := sessionPayload{Session: session, Vehicle: info}

	unlock := s.tracker.Lock(tenantID, session.VehicleID)
	if status == domain.SessionActive {
		s.tracker.ReopenSession(tenantID, session.VehicleID, session.ID)
		unlock()
		return s.sink.Publish(ctx, newEvent(domain.EventVehicleStarted, tenantID, session.VehicleID, s.now(), payload))
	}

	if s.tracker.EndSession(tenantID, session.VehicleID, session.ID) {
		s.evaluator.Forget(tenantID, session.VehicleID)
	}
	unlock()
	return s.sink.Publish(ctx, newEvent(domain.EventVehicleStopped, tenantID, session.VehicleID, s.now(), payload))
}
