package domain

import "time"

// RouteHistory is a derived view over one session's points.
type RouteHistory struct {
	VehicleLogID int64         `json:"vehicleLogId"`
	VehicleID    string        `json:"vehicleId"`
	InspectorID  string        `json:"inspectorId"`
	Status       SessionStatus `json:"status"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      *time.Time    `json:"endTime,omitempty"`
	TotalKm      float64       `json:"totalKm"`
	AvgSpeed     float64       `json:"avgSpeed"`
	MaxSpeed     float64       `json:"maxSpeed"`
	PointCount   int           `json:"pointCount"`
	Simplified   bool          `json:"simplified"`
	Points       []GpsPoint    `json:"points"`
	Polyline     string        `json:"polyline"`
}

type RouteQuery struct {
	TenantID  string
	VehicleID string
	From      time.Time
	To        time.Time
	Simplify  bool
}

type StatsQuery struct {
	TenantID string
	From     *time.Time
	To       *time.Time
}

type StatsBreakdown struct {
	Key      string  `json:"key"`
	TotalKm  float64 `json:"totalKm"`
	Trips    int     `json:"trips"`
	AvgSpeed float64 `json:"avgSpeed"`
	MaxSpeed float64 `json:"maxSpeed"`
}

type Stats struct {
	TotalKm     float64          `json:"totalKm"`
	Trips       int              `json:"trips"`
	Points      int              `json:"points"`
	AvgSpeed    float64          `json:"avgSpeed"`
	MaxSpeed    float64          `json:"maxSpeed"`
	ByVehicle   []StatsBreakdown `json:"byVehicle"`
	ByInspector []StatsBreakdown `json:"byInspector"`
}
