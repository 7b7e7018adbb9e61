package service

import (
	"testing"
	"time"

	"github.com/nandanugg/fleet-gps/module/core/domain"
)

func floatPtr(v float64) *float64 { return &v }

func testPoint(vehicleID string, lat, lon float64, speed *float64, at time.Time) *domain.GpsPoint {
	return &domain.GpsPoint{
		TenantID:     "acme",
		VehicleID:    vehicleID,
		VehicleLogID: 7,
		InspectorID:  "driver-1",
		Lat:          lat,
		Lon:          lon,
		Speed:        speed,
		RecordedAt:   at,
	}
}

func TestLiveTracker_ReportedSpeedStates(t *testing.T) {
	tr := NewLiveTracker(DefaultPolicy())
	info := &domain.VehicleInfo{VehicleID: "V1", Plate: "ABCD-12", DriverName: "Ana"}
	base := time.Unix(1715000000, 0)

	tests := []struct {
		lat, lon, speed float64
		want            domain.MovementStatus
	}{
		{-37.1738, -72.4598, 0, domain.StatusStopped},
		{-37.1739, -72.4599, 45, domain.StatusMoving},
		{-37.1740, -72.4600, 3, domain.StatusSlow},
	}
	for i, tt := range tests {
		pos := tr.Update(info, testPoint("V1", tt.lat, tt.lon, floatPtr(tt.speed), base.Add(time.Duration(i)*30*time.Second)))
		if pos.Status != tt.want {
			t.Errorf("point %d: expected %s, got %s", i, tt.want, pos.Status)
		}
	}

	pos, ok := tr.Get("acme", "V1")
	if !ok {
		t.Fatal("expected live entry")
	}
	if pos.Plate != "ABCD-12" || pos.InspectorName != "Ana" {
		t.Errorf("expected display fields, got %+v", pos)
	}
}

func TestLiveTracker_DerivedSpeed(t *testing.T) {
	tr := NewLiveTracker(DefaultPolicy())
	base := time.Unix(1715000000, 0)

	tr.Update(nil, testPoint("V1", 0, 0, nil, base))
	// ~111 m in 10 s is ~40 km/h
	pos := tr.Update(nil, testPoint("V1", 0.001, 0, nil, base.Add(10*time.Second)))
	if pos.Speed < 39 || pos.Speed > 41 {
		t.Fatalf("expected ~40 km/h, got %f", pos.Speed)
	}
	if pos.Status != domain.StatusMoving {
		t.Errorf("expected moving, got %s", pos.Status)
	}
	if pos.Heading > 0.01 && pos.Heading < 359.99 {
		t.Errorf("expected northbound heading, got %f", pos.Heading)
	}
}

func TestLiveTracker_SameTimestampIsStopped(t *testing.T) {
	tr := NewLiveTracker(DefaultPolicy())
	at := time.Unix(1715000000, 0)

	tr.Update(nil, testPoint("V1", 0, 0, nil, at))
	pos := tr.Update(nil, testPoint("V1", 0.001, 0, nil, at))
	if pos.Speed != 0 || pos.Status != domain.StatusStopped {
		t.Fatalf("expected stopped with zero speed, got %f %s", pos.Speed, pos.Status)
	}
}

func TestLiveTracker_ListLiveExcludesStaleAndOtherTenants(t *testing.T) {
	policy := DefaultPolicy()
	policy.StaleAfter = time.Minute
	tr := NewLiveTracker(policy)

	now := time.Unix(1715000000, 0)
	tr.now = func() time.Time { return now.Add(-2 * time.Minute) }
	tr.Update(nil, testPoint("V-old", 0, 0, nil, now))

	tr.now = func() time.Time { return now }
	tr.Update(nil, testPoint("V2", 0, 0, nil, now))
	tr.Update(nil, testPoint("V1", 0, 0, nil, now))
	other := testPoint("V3", 0, 0, nil, now)
	other.TenantID = "other"
	tr.Update(nil, other)

	live := tr.ListLive("acme")
	if len(live) != 2 {
		t.Fatalf("expected 2 live vehicles, got %d", len(live))
	}
	if live[0].VehicleID != "V1" || live[1].VehicleID != "V2" {
		t.Errorf("expected sorted [V1 V2], got [%s %s]", live[0].VehicleID, live[1].VehicleID)
	}
}

func TestLiveTracker_RemoveAndSweep(t *testing.T) {
	policy := DefaultPolicy()
	policy.EvictAfter = time.Hour
	tr := NewLiveTracker(policy)
	now := time.Unix(1715000000, 0)

	tr.now = func() time.Time { return now.Add(-2 * time.Hour) }
	tr.Update(nil, testPoint("V1", 0, 0, nil, now))
	tr.now = func() time.Time { return now }
	tr.Update(nil, testPoint("V2", 0, 0, nil, now))
	tr.Update(nil, testPoint("V3", 0, 0, nil, now))

	if n := tr.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	tr.Remove("acme", "V2")

	if _, ok := tr.Get("acme", "V2"); ok {
		t.Error("expected V2 removed")
	}
	if _, ok := tr.Get("acme", "V3"); !ok {
		t.Error("expected V3 kept")
	}
}

func TestLiveTracker_SeedKeepsNewerEntry(t *testing.T) {
	tr := NewLiveTracker(DefaultPolicy())
	now := time.Unix(1715000000, 0)

	tr.Update(nil, testPoint("V1", 1, 1, floatPtr(10), now))
	tr.Seed(nil, testPoint("V1", 2, 2, nil, now.Add(-time.Minute)))

	pos, _ := tr.Get("acme", "V1")
	if pos.Lat != 1 {
		t.Fatalf("seed must not overwrite newer entry, got lat %f", pos.Lat)
	}
}

func TestLiveTracker_EndSession(t *testing.T) {
	tr := NewLiveTracker(DefaultPolicy())
	tr.Update(nil, testPoint("V1", 0, 0, nil, time.Now()))

	unlock := tr.Lock("acme", "V1")
	if tr.EndSession("acme", "V1", 3) {
		t.Error("ending another session must not clear the entry of session 7")
	}
	if !tr.EndSession("acme", "V1", 7) {
		t.Error("expected session 7 to clear the entry")
	}
	unlock()

	if _, ok := tr.Get("acme", "V1"); ok {
		t.Error("expected entry removed")
	}
	if !tr.Ended("acme", "V1", 7) || tr.Ended("acme", "V1", 8) {
		t.Error("expected only session 7 marked ended")
	}

	tr.ReopenSession("acme", "V1", 7)
	if tr.Ended("acme", "V1", 7) {
		t.Error("expected mark cleared on reopen")
	}
}
