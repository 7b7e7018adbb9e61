package domain

import "time"

// GpsPoint is one stored fix. Points are immutable once persisted.
type GpsPoint struct {
	ID           int64     `json:"id"`
	TenantID     string    `json:"-"`
	VehicleID    string    `json:"vehicleId"`
	VehicleLogID int64     `json:"vehicleLogId"`
	InspectorID  string    `json:"inspectorId"`
	Lat          float64   `json:"latitude"`
	Lon          float64   `json:"longitude"`
	Altitude     *float64  `json:"altitude,omitempty"`
	Speed        *float64  `json:"speed,omitempty"`
	Heading      *float64  `json:"heading,omitempty"`
	Accuracy     *float64  `json:"accuracy,omitempty"`
	RecordedAt   time.Time `json:"recordedAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Coord returns the point position.
func (p GpsPoint) Coord() Coord {
	return Coord{Lat: p.Lat, Lon: p.Lon}
}

// Coord is a plain WGS84 position in degrees.
type Coord struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// PointInput is a point as submitted by a mobile client.
type PointInput struct {
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
	Altitude   *float64   `json:"altitude,omitempty"`
	Speed      *float64   `json:"speed,omitempty"`
	Heading    *float64   `json:"heading,omitempty"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	RecordedAt *time.Time `json:"recordedAt"`
}

// Batch is a batch ingest request.
type Batch struct {
	TenantID     string       `json:"-"`
	DriverID     string       `json:"-"`
	VehicleID    string       `json:"vehicleId"`
	VehicleLogID *int64       `json:"vehicleLogId,omitempty"`
	Points       []PointInput `json:"points"`
}

// Reasons reported per point.
const (
	ReasonInvalid      = "invalid"
	ReasonStorage      = "storage_error"
	ReasonTimeout      = "timeout"
	ReasonDuplicate    = "duplicate"
	ReasonBelowMinimum = "below_min_distance"
)

type PointIssue struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// BatchResult enumerates the outcome of every point in a batch. Rejected
// points may be resent; skipped points are never going to be stored.
type BatchResult struct {
	Accepted        int          `json:"accepted"`
	AcceptedIndices []int        `json:"acceptedIndices"`
	Rejected        []PointIssue `json:"rejected"`
	Skipped         []PointIssue `json:"skipped"`
}

func NewBatchResult() *BatchResult {
	return &BatchResult{
		AcceptedIndices: []int{},
		Rejected:        []PointIssue{},
		Skipped:         []PointIssue{},
	}
}

// Accept records index i as persisted.
func (r *BatchResult) Accept(i int) {
	r.Accepted++
	r.AcceptedIndices = append(r.AcceptedIndices, i)
}

func (r *BatchResult) Reject(i int, reason, detail string) {
	r.Rejected = append(r.Rejected, PointIssue{Index: i, Reason: reason, Detail: detail})
}

func (r *BatchResult) Skip(i int, reason string) {
	r.Skipped = append(r.Skipped, PointIssue{Index: i, Reason: reason})
}
