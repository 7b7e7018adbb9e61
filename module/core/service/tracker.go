package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/geo"
)

// LiveTracker keeps the last known position of every vehicle with an
// active session. Entries are keyed by tenant and vehicle.
// Work that reads or writes one vehicle's state holds Lock for it.
type LiveTracker struct {
	entries *shardedMap[domain.LiveVehiclePosition]
	ended   *shardedMap[int64]
	locks   *keyedMutex
	policy  Policy
	now     func() time.Time
}

func NewLiveTracker(policy Policy) *LiveTracker {
	return &LiveTracker{
		entries: newShardedMap[domain.LiveVehiclePosition](defaultShards),
		ended:   newShardedMap[int64](defaultShards),
		locks:   newKeyedMutex(),
		policy:  policy,
		now:     time.Now,
	}
}

// Lock serialises ingest and session lifecycle work for one vehicle.
func (t *LiveTracker) Lock(tenantID, vehicleID string) (unlock func()) {
	return t.locks.Lock(vehicleKey(tenantID, vehicleID))
}

// EndSession marks a session as ended and drops the live entry when it
// belongs to that session. It reports whether the vehicle's state was
// cleared. Callers hold Lock.
func (t *LiveTracker) EndSession(tenantID, vehicleID string, sessionID int64) bool {
	key := vehicleKey(tenantID, vehicleID)
	t.ended.Set(key, sessionID)
	if pos, ok := t.entries.Get(key); ok && pos.VehicleLogID != sessionID {
		return false
	}
	t.entries.Delete(key)
	return true
}

// ReopenSession clears the ended mark of a session reported active again.
func (t *LiveTracker) ReopenSession(tenantID, vehicleID string, sessionID int64) {
	key := vehicleKey(tenantID, vehicleID)
	if id, ok := t.ended.Get(key); ok && id == sessionID {
		t.ended.Delete(key)
	}
}

// Ended reports whether sessionID is the last session ended for the vehicle.
func (t *LiveTracker) Ended(tenantID, vehicleID string, sessionID int64) bool {
	id, ok := t.ended.Get(vehicleKey(tenantID, vehicleID))
	return ok && id == sessionID
}

// Classify maps a speed in km/h to a movement status.
func (t *LiveTracker) Classify(speedKmh float64) domain.MovementStatus {
	switch {
	case speedKmh >= t.policy.MovingSpeedKmh:
		return domain.StatusMoving
	case speedKmh > 0:
		return domain.StatusSlow
	default:
		return domain.StatusStopped
	}
}

func (t *LiveTracker) Get(tenantID, vehicleID string) (domain.LiveVehiclePosition, bool) {
	return t.entries.Get(vehicleKey(tenantID, vehicleID))
}

// Seed installs a position restored from storage unless a fresher entry
// for the same session already exists.
func (t *LiveTracker) Seed(info *domain.VehicleInfo, p *domain.GpsPoint) {
	pos := t.position(info, p, nil)
	t.entries.Update(vehicleKey(p.TenantID, p.VehicleID), func(old domain.LiveVehiclePosition, ok bool) (domain.LiveVehiclePosition, bool) {
		if ok && old.VehicleLogID == p.VehicleLogID && !old.RecordedAt.Before(p.RecordedAt) {
			return old, true
		}
		return pos, true
	})
}

// Update applies an accepted point and returns the new live entry.
// Missing speed is derived from the previous entry of the same session.
func (t *LiveTracker) Update(info *domain.VehicleInfo, p *domain.GpsPoint) domain.LiveVehiclePosition {
	return t.entries.Update(vehicleKey(p.TenantID, p.VehicleID), func(old domain.LiveVehiclePosition, ok bool) (domain.LiveVehiclePosition, bool) {
		var prev *domain.LiveVehiclePosition
		if ok && old.VehicleLogID == p.VehicleLogID {
			prev = &old
		}
		return t.position(info, p, prev), true
	})
}

func (t *LiveTracker) position(info *domain.VehicleInfo, p *domain.GpsPoint, prev *domain.LiveVehiclePosition) domain.LiveVehiclePosition {
	pos := domain.LiveVehiclePosition{
		VehicleID:    p.VehicleID,
		VehicleLogID: p.VehicleLogID,
		InspectorID:  p.InspectorID,
		Lat:          p.Lat,
		Lon:          p.Lon,
		RecordedAt:   p.RecordedAt,
		LastUpdate:   t.now(),
	}
	if info != nil {
		pos.Plate = info.Plate
		pos.Label = info.Label
		pos.InspectorName = info.DriverName
	}

	var dist, elapsed float64
	if prev != nil {
		dist = geo.DistanceMeters(domain.Coord{Lat: prev.Lat, Lon: prev.Lon}, p.Coord())
		elapsed = p.RecordedAt.Sub(prev.RecordedAt).Seconds()
		pos.Heading = prev.Heading
	}

	switch {
	case p.Speed != nil:
		pos.Speed = *p.Speed
	case prev != nil:
		pos.Speed = geo.SpeedKmh(dist, elapsed)
	}

	switch {
	case p.Heading != nil:
		pos.Heading = *p.Heading
	case prev != nil && dist > 0:
		pos.Heading = geo.BearingDegrees(domain.Coord{Lat: prev.Lat, Lon: prev.Lon}, p.Coord())
	}

	pos.Status = t.Classify(pos.Speed)
	return pos
}

// Remove drops the live entry of a vehicle whose session ended.
func (t *LiveTracker) Remove(tenantID, vehicleID string) {
	t.entries.Delete(vehicleKey(tenantID, vehicleID))
}

// ListLive returns the tenant's vehicles updated within the staleness
// window, ordered by vehicle id.
func (t *LiveTracker) ListLive(tenantID string) []domain.LiveVehiclePosition {
	now := t.now()
	prefix := tenantID + "\x00"
	results := []domain.LiveVehiclePosition{}
	t.entries.Range(func(key string, pos domain.LiveVehiclePosition) bool {
		if !strings.HasPrefix(key, prefix) {
			return true
		}
		if t.policy.StaleAfter > 0 && now.Sub(pos.LastUpdate) > t.policy.StaleAfter {
			return true
		}
		results = append(results, pos)
		return true
	})
	sort.Slice(results, func(i, j int) bool { return results[i].VehicleID < results[j].VehicleID })
	return results
}

// Sweep evicts entries not updated for EvictAfter. It is a no-op when
// eviction is disabled.
func (t *LiveTracker) Sweep() int {
	if t.policy.EvictAfter <= 0 {
		return 0
	}
	cutoff := t.now().Add(-t.policy.EvictAfter)
	return t.entries.DeleteIf(func(_ string, pos domain.LiveVehiclePosition) bool {
		return pos.LastUpdate.Before(cutoff)
	})
}

// RunJanitor sweeps periodically until ctx is cancelled.
func (t *LiveTracker) RunJanitor(ctx context.Context, interval time.Duration) {
	if t.policy.EvictAfter <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(); n > 0 {
				slog.Info("evicted idle live entries", "count", n)
			}
		}
	}
}
