package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/geo"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

// IngestService accepts batches of GPS points from drivers. Points of one
// vehicle are processed under a per-vehicle lock and in submission order.
type IngestService struct {
	points    database.PointRepository
	sessions  database.SessionRepository
	vehicles  database.VehicleRepository
	tracker   *LiveTracker
	evaluator *GeofenceEvaluator
	sink      EventSink
	policy    Policy
}

func NewIngestService(
	points database.PointRepository,
	sessions database.SessionRepository,
	vehicles database.VehicleRepository,
	tracker *LiveTracker,
	evaluator *GeofenceEvaluator,
	sink EventSink,
	policy Policy,
) *IngestService {
	return &IngestService{
		points:    points,
		sessions:  sessions,
		vehicles:  vehicles,
		tracker:   tracker,
		evaluator: evaluator,
		sink:      sink,
		policy:    policy,
	}
}

// anchor is the last accepted point used for dedupe and noise filtering.
type anchor struct {
	coord domain.Coord
	at    time.Time
}

// Ingest validates, persists and fans out a batch. Invalid points are
// rejected individually; the call only fails when nothing in the batch
// can be used or the session cannot be resolved.
func (s *IngestService) Ingest(ctx context.Context, b *domain.Batch) (*domain.BatchResult, error) {
	if b.VehicleID == "" {
		return nil, domain.NewValidationError("vehicleId", "required")
	}
	if len(b.Points) == 0 {
		return nil, domain.NewValidationError("points", "must not be empty")
	}
	if s.policy.MaxBatchSize > 0 && len(b.Points) > s.policy.MaxBatchSize {
		return nil, domain.NewValidationError("points", fmt.Sprintf("at most %d points per batch", s.policy.MaxBatchSize))
	}

	result := domain.NewBatchResult()
	var valid []int
	var invalid []int
	for i := range b.Points {
		if detail := validatePoint(&b.Points[i]); detail != "" {
			result.Reject(i, domain.ReasonInvalid, detail)
			invalid = append(invalid, i)
			continue
		}
		valid = append(valid, i)
	}
	if len(valid) == 0 {
		return nil, &domain.ValidationError{
			Fields:  map[string]string{"points": "no valid point in batch"},
			Indices: invalid,
		}
	}

	if s.policy.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.policy.BatchTimeout)
		defer cancel()
	}

	session, err := s.resolveSession(ctx, b)
	if err != nil {
		return nil, err
	}

	info, err := s.vehicles.Describe(ctx, b.TenantID, b.VehicleID, session.DriverID)
	if err != nil {
		return nil, lookupErr("describe vehicle", "vehicle", b.VehicleID, err)
	}

	unlock := s.tracker.Lock(b.TenantID, b.VehicleID)
	defer unlock()

	// the session may have ended while this batch waited for the lock
	if s.tracker.Ended(b.TenantID, b.VehicleID, session.ID) {
		return nil, &domain.NoActiveSessionError{DriverID: b.DriverID, VehicleLogID: session.ID}
	}

	last := s.lastAccepted(ctx, info, b.TenantID, b.VehicleID, session.ID)

	for n, i := range valid {
		if ctx.Err() != nil {
			for _, j := range valid[n:] {
				result.Reject(j, domain.ReasonTimeout, ctx.Err().Error())
			}
			break
		}

		in := &b.Points[i]
		p := &domain.GpsPoint{
			TenantID:     b.TenantID,
			VehicleID:    b.VehicleID,
			VehicleLogID: session.ID,
			InspectorID:  session.DriverID,
			Lat:          *in.Latitude,
			Lon:          *in.Longitude,
			Altitude:     in.Altitude,
			Speed:        in.Speed,
			Heading:      in.Heading,
			Accuracy:     in.Accuracy,
			RecordedAt:   in.RecordedAt.UTC(),
		}

		late := false
		if last != nil {
			if p.RecordedAt.Equal(last.at) {
				result.Skip(i, domain.ReasonDuplicate)
				continue
			}
			late = p.RecordedAt.Before(last.at)
			if !late && s.isNoise(last, p) {
				result.Skip(i, domain.ReasonBelowMinimum)
				continue
			}
		}

		inserted, err := s.points.Insert(ctx, p)
		if err != nil {
			reason := domain.ReasonStorage
			if errors.Is(err, context.DeadlineExceeded) {
				reason = domain.ReasonTimeout
			}
			slog.Error("failed to persist gps point", "tenant", b.TenantID, "vehicle", b.VehicleID, "index", i, "err", err)
			result.Reject(i, reason, err.Error())
			continue
		}
		if !inserted {
			result.Skip(i, domain.ReasonDuplicate)
			continue
		}
		result.Accept(i)

		// late points are kept for history but never move live state
		if late {
			continue
		}
		last = &anchor{coord: p.Coord(), at: p.RecordedAt}
		s.afterPersist(ctx, info, p)
	}

	return result, nil
}

// afterPersist updates live state, evaluates geofences, then publishes the
// position followed by any transitions.
func (s *IngestService) afterPersist(ctx context.Context, info *domain.VehicleInfo, p *domain.GpsPoint) {
	pos := s.tracker.Update(info, p)

	transitions, err := s.evaluator.Evaluate(ctx, p)
	if err != nil {
		slog.Error("geofence evaluation failed", "tenant", p.TenantID, "vehicle", p.VehicleID, "err", err)
	}

	_ = s.sink.Publish(ctx, newEvent(domain.EventVehiclePosition, p.TenantID, p.VehicleID, p.RecordedAt, pos))
	for i := range transitions {
		ev := &transitions[i]
		_ = s.sink.Publish(ctx, newEvent(geofenceEventType(ev.EventType), p.TenantID, p.VehicleID, ev.RecordedAt, ev))
	}
}

func (s *IngestService) resolveSession(ctx context.Context, b *domain.Batch) (*domain.Session, error) {
	if b.VehicleLogID == nil {
		session, err := s.sessions.ActiveForDriver(ctx, b.TenantID, b.DriverID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.NoActiveSessionError{DriverID: b.DriverID}
		}
		if err != nil {
			return nil, &domain.TransientStorageError{Op: "active session", Err: err}
		}
		if session.VehicleID != b.VehicleID {
			return nil, domain.NewValidationError("vehicleId", "does not match the active session")
		}
		return session, nil
	}

	id := *b.VehicleLogID
	session, err := s.sessions.Get(ctx, b.TenantID, id)
	if err != nil {
		return nil, lookupErr("get session", "vehicle log", strconv.FormatInt(id, 10), err)
	}
	if session.Status != domain.SessionActive {
		return nil, &domain.NoActiveSessionError{DriverID: b.DriverID, VehicleLogID: id}
	}
	if session.VehicleID != b.VehicleID {
		return nil, domain.NewValidationError("vehicleLogId", "belongs to another vehicle")
	}
	return session, nil
}

// lastAccepted returns the newest accepted point of the session, falling
// back to storage when the process has no live entry for it.
func (s *IngestService) lastAccepted(ctx context.Context, info *domain.VehicleInfo, tenantID, vehicleID string, sessionID int64) *anchor {
	if pos, ok := s.tracker.Get(tenantID, vehicleID); ok && pos.VehicleLogID == sessionID {
		return &anchor{coord: domain.Coord{Lat: pos.Lat, Lon: pos.Lon}, at: pos.RecordedAt}
	}

	p, err := s.points.Latest(ctx, tenantID, vehicleID, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("could not restore last point", "tenant", tenantID, "vehicle", vehicleID, "err", err)
		}
		return nil
	}
	s.tracker.Seed(info, p)
	return &anchor{coord: p.Coord(), at: p.RecordedAt}
}

func (s *IngestService) isNoise(last *anchor, p *domain.GpsPoint) bool {
	if s.policy.MinDistanceMeters <= 0 {
		return false
	}
	dist := geo.DistanceMeters(last.coord, p.Coord())
	elapsed := p.RecordedAt.Sub(last.at)
	return dist < s.policy.MinDistanceMeters && elapsed < s.policy.MinInterval
}

func validatePoint(p *domain.PointInput) string {
	switch {
	case p.Latitude == nil || p.Longitude == nil:
		return "latitude and longitude are required"
	case !finite(*p.Latitude) || *p.Latitude < -90 || *p.Latitude > 90:
		return "latitude out of range"
	case !finite(*p.Longitude) || *p.Longitude < -180 || *p.Longitude > 180:
		return "longitude out of range"
	case p.RecordedAt == nil || p.RecordedAt.IsZero():
		return "recordedAt is required"
	case p.Speed != nil && (!finite(*p.Speed) || *p.Speed < 0):
		return "speed must be a non-negative number"
	case p.Heading != nil && (!finite(*p.Heading) || *p.Heading < 0 || *p.Heading > 360):
		return "heading must be within [0, 360]"
	case p.Accuracy != nil && (!finite(*p.Accuracy) || *p.Accuracy < 0):
		return "accuracy must be a non-negative number"
	}
	return ""
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// lookupErr maps a repository error to the domain taxonomy.
func lookupErr(op, resource, id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.NotFoundError{Resource: resource, ID: id}
	}
	return &domain.TransientStorageError{Op: op, Err: err}
}
