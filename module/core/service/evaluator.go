package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/geo"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

// GeofenceEvaluator turns accepted points into enter/exit transitions.
// Membership is the last known containment per vehicle and geofence; the
// first observation of a pair only seeds it.
type GeofenceEvaluator struct {
	geofences  database.GeofenceRepository
	events     database.GeofenceEventRepository
	membership *shardedMap[map[string]bool]
	cache      *geofenceCache
	policy     Policy
}

func NewGeofenceEvaluator(geofences database.GeofenceRepository, events database.GeofenceEventRepository, policy Policy) *GeofenceEvaluator {
	return &GeofenceEvaluator{
		geofences:  geofences,
		events:     events,
		membership: newShardedMap[map[string]bool](defaultShards),
		cache:      newGeofenceCache(policy.GeofenceCacheTTL),
		policy:     policy,
	}
}

// Evaluate tests p against the tenant's active geofences and returns the
// transitions it caused. A broken geofence or a failed event insert is
// logged and does not affect the others.
func (e *GeofenceEvaluator) Evaluate(ctx context.Context, p *domain.GpsPoint) ([]domain.GeofenceEvent, error) {
	fences, err := e.cache.get(ctx, p.TenantID, e.loadActive)
	if err != nil {
		return nil, &domain.TransientStorageError{Op: "list geofences", Err: err}
	}

	inside := make(map[string]bool, len(fences))
	for i := range fences {
		in, err := Contains(&fences[i], p.Coord())
		if err != nil {
			slog.Warn("skipping geofence", "tenant", p.TenantID, "geofence", fences[i].ID, "err", err)
			continue
		}
		inside[fences[i].ID] = in
	}

	var transitions []domain.GeofenceEvent
	e.membership.Update(vehicleKey(p.TenantID, p.VehicleID), func(old map[string]bool, _ bool) (map[string]bool, bool) {
		next := make(map[string]bool, len(inside))
		for i := range fences {
			g := &fences[i]
			in, evaluated := inside[g.ID]
			if !evaluated {
				if prev, ok := old[g.ID]; ok {
					next[g.ID] = prev
				}
				continue
			}
			next[g.ID] = in

			prev, known := old[g.ID]
			var typ domain.GeofenceEventType
			switch {
			case !known && in && e.policy.EmitInitialEnter:
				typ = domain.GeofenceEnter
			case !known:
				continue
			case !prev && in:
				typ = domain.GeofenceEnter
			case prev && !in:
				typ = domain.GeofenceExit
			default:
				continue
			}
			transitions = append(transitions, domain.GeofenceEvent{
				TenantID:     p.TenantID,
				GeofenceID:   g.ID,
				GeofenceName: g.Name,
				VehicleID:    p.VehicleID,
				VehicleLogID: p.VehicleLogID,
				EventType:    typ,
				Lat:          p.Lat,
				Lon:          p.Lon,
				RecordedAt:   p.RecordedAt,
			})
		}
		return next, true
	})

	for i := range transitions {
		if err := e.events.Insert(ctx, &transitions[i]); err != nil {
			slog.Error("failed to persist geofence event",
				"tenant", p.TenantID, "vehicle", p.VehicleID, "geofence", transitions[i].GeofenceID, "err", err)
		}
	}
	return transitions, nil
}

// Forget clears the memberships of a vehicle whose session ended.
func (e *GeofenceEvaluator) Forget(tenantID, vehicleID string) {
	e.membership.Delete(vehicleKey(tenantID, vehicleID))
}

// Invalidate drops the cached geofence list of a tenant.
func (e *GeofenceEvaluator) Invalidate(tenantID string) {
	e.cache.invalidate(tenantID)
}

func (e *GeofenceEvaluator) loadActive(ctx context.Context, tenantID string) ([]domain.Geofence, error) {
	return e.geofences.List(ctx, tenantID, true)
}

// Contains reports whether c lies in g. The circle boundary counts as inside.
func Contains(g *domain.Geofence, c domain.Coord) (bool, error) {
	switch g.Type {
	case domain.GeofenceCircle:
		center, ok := g.Center()
		if !ok || g.RadiusMeters == nil || *g.RadiusMeters <= 0 {
			return false, fmt.Errorf("circle %s has no center or radius", g.ID)
		}
		return geo.IsInsideCircle(c, center, *g.RadiusMeters), nil
	case domain.GeofencePolygon:
		if len(g.Vertices) < 3 {
			return false, fmt.Errorf("polygon %s has %d vertices", g.ID, len(g.Vertices))
		}
		return geo.IsInsidePolygon(c, g.Vertices), nil
	default:
		return false, fmt.Errorf("geofence %s has unknown type %q", g.ID, g.Type)
	}
}

// geofenceCache holds active geofences per tenant. Each invalidation bumps
// the tenant generation so a load that raced with it is not stored.
type geofenceCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cachedGeofences
	gen     map[string]uint64
	now     func() time.Time
}

type cachedGeofences struct {
	fences  []domain.Geofence
	expires time.Time
}

func newGeofenceCache(ttl time.Duration) *geofenceCache {
	return &geofenceCache{
		ttl:     ttl,
		entries: make(map[string]cachedGeofences),
		gen:     make(map[string]uint64),
		now:     time.Now,
	}
}

func (c *geofenceCache) get(ctx context.Context, tenantID string, load func(context.Context, string) ([]domain.Geofence, error)) ([]domain.Geofence, error) {
	if c.ttl <= 0 {
		return load(ctx, tenantID)
	}

	c.mu.Lock()
	entry, ok := c.entries[tenantID]
	gen := c.gen[tenantID]
	c.mu.Unlock()
	if ok && c.now().Before(entry.expires) {
		return entry.fences, nil
	}

	fences, err := load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen[tenantID] == gen {
		c.entries[tenantID] = cachedGeofences{fences: fences, expires: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()
	return fences, nil
}

func (c *geofenceCache) invalidate(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenantID)
	c.gen[tenantID]++
}
