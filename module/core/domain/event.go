package domain

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventVehiclePosition EventType = "vehicle:position"
	EventVehicleStarted  EventType = "vehicle:started"
	EventVehicleStopped  EventType = "vehicle:stopped"
	EventGeofenceEnter   EventType = "geofence:enter"
	EventGeofenceExit    EventType = "geofence:exit"
)

// Event is the envelope published on the realtime bus.
type Event struct {
	Type       EventType `json:"type"`
	TenantID   string    `json:"tenantId"`
	VehicleID  string    `json:"vehicleId"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// TenantChannel names the tenant-wide subscriber group.
func TenantChannel(tenantID string) string {
	return "tenant:" + tenantID
}

// VehicleChannel names the per-vehicle subscriber group.
func VehicleChannel(tenantID, vehicleID string) string {
	return fmt.Sprintf("tenant:%s:vehicle:%s", tenantID, vehicleID)
}
