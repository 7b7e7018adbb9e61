package domain

import "time"

type GeofenceType string

const (
	GeofenceCircle  GeofenceType = "circle"
	GeofencePolygon GeofenceType = "polygon"
)

type Geofence struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"-"`
	Name         string       `json:"name"`
	Type         GeofenceType `json:"type"`
	CenterLat    *float64     `json:"centerLat,omitempty"`
	CenterLon    *float64     `json:"centerLng,omitempty"`
	RadiusMeters *float64     `json:"radiusMeters,omitempty"`
	Vertices     []Coord      `json:"vertices,omitempty"`
	IsActive     bool         `json:"isActive"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// GeofenceInput is the create/update payload. Geometry fields required by
// the chosen type are checked by the geofence service.
type GeofenceInput struct {
	Name         string       `json:"name" validate:"required,max=120"`
	Type         GeofenceType `json:"type" validate:"required,oneof=circle polygon"`
	CenterLat    *float64     `json:"centerLat" validate:"omitempty,gte=-90,lte=90"`
	CenterLon    *float64     `json:"centerLng" validate:"omitempty,gte=-180,lte=180"`
	RadiusMeters *float64     `json:"radiusMeters" validate:"omitempty,gt=0"`
	Vertices     []Coord      `json:"vertices" validate:"omitempty,dive"`
	IsActive     *bool        `json:"isActive"`
}

type GeofenceEventType string

const (
	GeofenceEnter GeofenceEventType = "enter"
	GeofenceExit  GeofenceEventType = "exit"
)

// GeofenceEvent is an immutable containment transition.
type GeofenceEvent struct {
	ID           int64             `json:"id"`
	TenantID     string            `json:"-"`
	GeofenceID   string            `json:"geofenceId"`
	GeofenceName string            `json:"geofenceName"`
	VehicleID    string            `json:"vehicleId"`
	VehicleLogID int64             `json:"vehicleLogId"`
	EventType    GeofenceEventType `json:"eventType"`
	Lat          float64           `json:"latitude"`
	Lon          float64           `json:"longitude"`
	RecordedAt   time.Time         `json:"recordedAt"`
}

// Center returns the circle center; ok is false for polygons.
func (g Geofence) Center() (Coord, bool) {
	if g.CenterLat == nil || g.CenterLon == nil {
		return Coord{}, false
	}
	return Coord{Lat: *g.CenterLat, Lon: *g.CenterLon}, true
}
