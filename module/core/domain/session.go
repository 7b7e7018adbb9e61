package domain

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is a vehicle usage log owned by the trip collaborator. It is only read here.
type Session struct {
	ID        int64         `json:"id"`
	TenantID  string        `json:"-"`
	VehicleID string        `json:"vehicleId"`
	DriverID  string        `json:"driverId"`
	Status    SessionStatus `json:"status"`
	StartKm   *float64      `json:"startKm,omitempty"`
	EndKm     *float64      `json:"endKm,omitempty"`
	StartTime time.Time     `json:"startTime"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// VehicleInfo carries display fields denormalized into live positions.
type VehicleInfo struct {
	VehicleID  string `json:"vehicleId"`
	Plate      string `json:"plate"`
	Label      string `json:"label"`
	DriverID   string `json:"inspectorId"`
	DriverName string `json:"inspectorName"`
}
