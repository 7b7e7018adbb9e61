package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/geo"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

// RouteService derives route history and statistics from stored points.
type RouteService struct {
	points   database.PointRepository
	sessions database.SessionRepository
	policy   Policy
}

func NewRouteService(points database.PointRepository, sessions database.SessionRepository, policy Policy) *RouteService {
	return &RouteService{points: points, sessions: sessions, policy: policy}
}

// SessionRoute returns the route of one session.
func (s *RouteService) SessionRoute(ctx context.Context, tenantID string, vehicleLogID int64, simplify bool) (*domain.RouteHistory, error) {
	session, err := s.sessions.Get(ctx, tenantID, vehicleLogID)
	if err != nil {
		return nil, lookupErr("get session", "vehicle log", strconv.FormatInt(vehicleLogID, 10), err)
	}
	points, err := s.points.ListBySession(ctx, tenantID, vehicleLogID)
	if err != nil {
		return nil, &domain.TransientStorageError{Op: "list points", Err: err}
	}
	route := s.buildRoute(session, points, simplify)
	return &route, nil
}

// History returns one route per session of the vehicle overlapping [From, To].
func (s *RouteService) History(ctx context.Context, q *domain.RouteQuery) ([]domain.RouteHistory, error) {
	if q.VehicleID == "" {
		return nil, domain.NewValidationError("vehicleId", "required")
	}
	if q.From.IsZero() || q.To.IsZero() || q.To.Before(q.From) {
		return nil, domain.NewValidationError("range", "from and to are required and from must not be after to")
	}

	sessions, err := s.sessions.ListByVehicle(ctx, q.TenantID, q.VehicleID, q.From, q.To)
	if err != nil {
		return nil, &domain.TransientStorageError{Op: "list sessions", Err: err}
	}

	routes := make([]domain.RouteHistory, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i := range sessions {
		i := i
		g.Go(func() error {
			points, err := s.points.ListBySession(gctx, q.TenantID, sessions[i].ID)
			if err != nil {
				return &domain.TransientStorageError{Op: "list points", Err: err}
			}
			routes[i] = s.buildRoute(&sessions[i], points, q.Simplify)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(routes, func(i, j int) bool { return routes[i].StartTime.Before(routes[j].StartTime) })
	return routes, nil
}

// Stats aggregates distance and speed over every session overlapping the
// optional range, in total and per vehicle and inspector.
func (s *RouteService) Stats(ctx context.Context, q *domain.StatsQuery) (*domain.Stats, error) {
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, domain.NewValidationError("range", "from must not be after to")
	}

	sessions, err := s.sessions.ListInRange(ctx, q.TenantID, q.From, q.To)
	if err != nil {
		return nil, &domain.TransientStorageError{Op: "list sessions", Err: err}
	}

	var (
		mu          sync.Mutex
		total       tally
		byVehicle   = map[string]*tally{}
		byInspector = map[string]*tally{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i := range sessions {
		session := &sessions[i]
		g.Go(func() error {
			points, err := s.points.ListBySession(gctx, q.TenantID, session.ID)
			if err != nil {
				return &domain.TransientStorageError{Op: "list points", Err: err}
			}
			points = withinRange(points, q.From, q.To)
			m := measure(points)

			mu.Lock()
			defer mu.Unlock()
			total.add(m)
			tallyFor(byVehicle, session.VehicleID).add(m)
			tallyFor(byInspector, session.DriverID).add(m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.Stats{
		TotalKm:     total.meters / 1000,
		Trips:       total.trips,
		Points:      total.points,
		AvgSpeed:    geo.SpeedKmh(total.meters, total.seconds),
		MaxSpeed:    total.maxSpeed,
		ByVehicle:   breakdown(byVehicle),
		ByInspector: breakdown(byInspector),
	}, nil
}

// ActivityDays lists the days of a month on which the vehicle reported a point.
func (s *RouteService) ActivityDays(ctx context.Context, tenantID, vehicleID string, year, month int) ([]int, error) {
	if vehicleID == "" {
		return nil, domain.NewValidationError("vehicleId", "required")
	}
	if month < 1 || month > 12 {
		return nil, domain.NewValidationError("month", "must be between 1 and 12")
	}
	if year < 1970 || year > 9999 {
		return nil, domain.NewValidationError("year", "out of range")
	}

	loc := s.policy.Location
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, 0)

	days, err := s.points.ActivityDays(ctx, tenantID, vehicleID, from, to, loc.String())
	if err != nil {
		return nil, &domain.TransientStorageError{Op: "activity days", Err: err}
	}
	if days == nil {
		days = []int{}
	}
	return days, nil
}

func (s *RouteService) concurrency() int {
	if s.policy.StatsConcurrency > 0 {
		return s.policy.StatsConcurrency
	}
	return 1
}

func (s *RouteService) buildRoute(session *domain.Session, points []domain.GpsPoint, simplify bool) domain.RouteHistory {
	m := measure(points)
	route := domain.RouteHistory{
		VehicleLogID: session.ID,
		VehicleID:    session.VehicleID,
		InspectorID:  session.DriverID,
		Status:       session.Status,
		StartTime:    session.StartTime,
		EndTime:      session.EndTime,
		TotalKm:      m.meters / 1000,
		AvgSpeed:     geo.SpeedKmh(m.meters, m.seconds),
		MaxSpeed:     m.maxSpeed,
		PointCount:   len(points),
		Points:       points,
	}
	if route.Points == nil {
		route.Points = []domain.GpsPoint{}
	}
	if simplify && len(points) > 2 {
		route.Points = geo.Simplify(points, s.policy.SimplifyTolerance, domain.GpsPoint.Coord)
		route.Simplified = true
	}

	coords := make([]domain.Coord, len(route.Points))
	for i, p := range route.Points {
		coords[i] = p.Coord()
	}
	route.Polyline = geo.EncodePolyline(coords)
	return route
}

type measurement struct {
	meters   float64
	seconds  float64
	maxSpeed float64
	points   int
}

// measure sums consecutive-pair distances over time-ordered points.
// Pairs with no elapsed time and no movement are replays and are ignored.
func measure(points []domain.GpsPoint) measurement {
	m := measurement{points: len(points)}
	for i := range points {
		p := &points[i]
		if p.Speed != nil && *p.Speed > m.maxSpeed {
			m.maxSpeed = *p.Speed
		}
		if i == 0 {
			continue
		}
		prev := &points[i-1]
		dist := geo.DistanceMeters(prev.Coord(), p.Coord())
		elapsed := p.RecordedAt.Sub(prev.RecordedAt).Seconds()
		if dist == 0 && elapsed == 0 {
			continue
		}
		m.meters += dist
		if elapsed > 0 {
			m.seconds += elapsed
		}
		if p.Speed == nil {
			if v := geo.SpeedKmh(dist, elapsed); v > m.maxSpeed {
				m.maxSpeed = v
			}
		}
	}
	return m
}

func withinRange(points []domain.GpsPoint, from, to *time.Time) []domain.GpsPoint {
	if from == nil && to == nil {
		return points
	}
	out := points[:0:0]
	for _, p := range points {
		if from != nil && p.RecordedAt.Before(*from) {
			continue
		}
		if to != nil && p.RecordedAt.After(*to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

type tally struct {
	meters   float64
	seconds  float64
	maxSpeed float64
	points   int
	trips    int
}

func (t *tally) add(m measurement) {
	t.meters += m.meters
	t.seconds += m.seconds
	t.points += m.points
	t.trips++
	if m.maxSpeed > t.maxSpeed {
		t.maxSpeed = m.maxSpeed
	}
}

func tallyFor(m map[string]*tally, key string) *tally {
	t, ok := m[key]
	if !ok {
		t = &tally{}
		m[key] = t
	}
	return t
}

func breakdown(m map[string]*tally) []domain.StatsBreakdown {
	out := make([]domain.StatsBreakdown, 0, len(m))
	for key, t := range m {
		out = append(out, domain.StatsBreakdown{
			Key:      key,
			TotalKm:  t.meters / 1000,
			Trips:    t.trips,
			AvgSpeed: geo.SpeedKmh(t.meters, t.seconds),
			MaxSpeed: t.maxSpeed,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
