package domain

import "time"

type MovementStatus string

const (
	StatusUnknown MovementStatus = "unknown"
	StatusMoving  MovementStatus = "moving"
	StatusSlow    MovementStatus = "slow"
	StatusStopped MovementStatus = "stopped"
)

// LiveVehiclePosition is the last known state of a vehicle in an active session.
type LiveVehiclePosition struct {
	VehicleID     string         `json:"vehicleId"`
	VehicleLogID  int64          `json:"vehicleLogId"`
	Plate         string         `json:"plate"`
	Label         string         `json:"label"`
	InspectorID   string         `json:"inspectorId"`
	InspectorName string         `json:"inspectorName"`
	Lat           float64        `json:"latitude"`
	Lon           float64        `json:"longitude"`
	Speed         float64        `json:"speed"`
	Heading       float64        `json:"heading"`
	Status        MovementStatus `json:"status"`
	RecordedAt    time.Time      `json:"recordedAt"`
	LastUpdate    time.Time      `json:"lastUpdate"`
}
