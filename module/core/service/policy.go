package service

import "time"

// Policy holds the tracking knobs shared by the ingest, live state and route services.
type Policy struct {
	MinDistanceMeters float64
	MinInterval       time.Duration
	MovingSpeedKmh    float64
	StaleAfter        time.Duration
	EvictAfter        time.Duration
	BatchTimeout      time.Duration
	SimplifyTolerance float64
	EmitInitialEnter  bool
	GeofenceCacheTTL  time.Duration
	Location          *time.Location
	StatsConcurrency  int
	MaxBatchSize      int
}

func DefaultPolicy() Policy {
	return Policy{
		MinDistanceMeters: 10,
		MinInterval:       30 * time.Second,
		MovingSpeedKmh:    5,
		StaleAfter:        10 * time.Minute,
		BatchTimeout:      15 * time.Second,
		SimplifyTolerance: 0.00001,
		GeofenceCacheTTL:  30 * time.Second,
		Location:          time.UTC,
		StatsConcurrency:  8,
		MaxBatchSize:      500,
	}
}
