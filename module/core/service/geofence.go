package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

// geofenceInvalidator is implemented by GeofenceEvaluator.
type geofenceInvalidator interface {
	Invalidate(tenantID string)
}

type GeofenceService struct {
	repo     database.GeofenceRepository
	events   database.GeofenceEventRepository
	cache    geofenceInvalidator
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

func NewGeofenceService(repo database.GeofenceRepository, events database.GeofenceEventRepository, cache geofenceInvalidator) *GeofenceService {
	return &GeofenceService{
		repo:     repo,
		events:   events,
		cache:    cache,
		validate: newValidator(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *GeofenceService) Create(ctx context.Context, tenantID string, in *domain.GeofenceInput) (*domain.Geofence, error) {
	now := s.now().UTC()
	g := &domain.Geofence{
		ID:        s.newID(),
		TenantID:  tenantID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.apply(g, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, &domain.TransientStorageError{Op: "create geofence", Err: err}
	}
	s.cache.Invalidate(tenantID)
	return g, nil
}

// Update replaces the geometry and name of a geofence. IsActive is kept
// when the input leaves it unset.
func (s *GeofenceService) Update(ctx context.Context, tenantID, id string, in *domain.GeofenceInput) (*domain.Geofence, error) {
	g, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, lookupErr("get geofence", "geofence", id, err)
	}
	if err := s.apply(g, in); err != nil {
		return nil, err
	}
	g.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, g); err != nil {
		return nil, lookupErr("update geofence", "geofence", id, err)
	}
	s.cache.Invalidate(tenantID)
	return g, nil
}

func (s *GeofenceService) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return lookupErr("delete geofence", "geofence", id, err)
	}
	s.cache.Invalidate(tenantID)
	return nil
}

func (s *GeofenceService) Get(ctx context.Context, tenantID, id string) (*domain.Geofence, error) {
	g, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, lookupErr("get geofence", "geofence", id, err)
	}
	return g, nil
}

func (s *GeofenceService) List(ctx context.Context, tenantID string, activeOnly bool) ([]domain.Geofence, error) {
	list, err := s.repo.List(ctx, tenantID, activeOnly)
	if err != nil {
		return nil, &domain.TransientStorageError{Op: "list geofences", Err: err}
	}
	return list, nil
}

// Events lists recorded enter/exit transitions.
func (s *GeofenceService) Events(ctx context.Context, q *database.EventQuery) ([]domain.GeofenceEvent, error) {
	if q.From.IsZero() || q.To.IsZero() || q.To.Before(q.From) {
		return nil, domain.NewValidationError("range", "from and to are required and from must not be after to")
	}
	events, err := s.events.List(ctx, q)
	if err != nil {
		return nil, &domain.TransientStorageError{Op: "list geofence events", Err: err}
	}
	return events, nil
}

func (s *GeofenceService) apply(g *domain.Geofence, in *domain.GeofenceInput) error {
	if err := s.validate.Struct(in); err != nil {
		return toValidationError(err)
	}

	g.Name = strings.TrimSpace(in.Name)
	g.Type = in.Type
	if in.IsActive != nil {
		g.IsActive = *in.IsActive
	}

	switch in.Type {
	case domain.GeofenceCircle:
		verr := &domain.ValidationError{Fields: map[string]string{}}
		if in.CenterLat == nil || in.CenterLon == nil {
			verr.Fields["center"] = "centerLat and centerLng are required for a circle"
		}
		if in.RadiusMeters == nil {
			verr.Fields["radiusMeters"] = "required for a circle"
		}
		if len(verr.Fields) > 0 {
			return verr
		}
		g.CenterLat, g.CenterLon, g.RadiusMeters = in.CenterLat, in.CenterLon, in.RadiusMeters
		g.Vertices = nil
	case domain.GeofencePolygon:
		ring := closeRing(in.Vertices)
		if distinct(ring) < 3 {
			return domain.NewValidationError("vertices", "a polygon needs at least 3 distinct vertices")
		}
		g.Vertices = ring
		g.CenterLat, g.CenterLon, g.RadiusMeters = nil, nil, nil
	}
	return nil
}

// closeRing drops a trailing vertex that repeats the first, since rings
// are implicitly closed.
func closeRing(v []domain.Coord) []domain.Coord {
	out := append([]domain.Coord(nil), v...)
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

func distinct(v []domain.Coord) int {
	seen := make(map[domain.Coord]struct{}, len(v))
	for _, c := range v {
		seen[c] = struct{}{}
	}
	return len(seen)
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NewValidationError("body", err.Error())
	}
	out := &domain.ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out.Fields[field] = msg
	}
	return out
}
