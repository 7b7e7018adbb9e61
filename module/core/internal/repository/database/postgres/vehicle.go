package postgres

import (
	"context"
	"database/sql"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

var _ database.VehicleRepository = (*VehicleRepo)(nil)

type VehicleRepo struct {
	db *sql.DB
}

func NewVehicleRepo(db *sql.DB) *VehicleRepo {
	return &VehicleRepo{db: db}
}

// Describe returns display fields for a vehicle and, when known, its driver.
func (r *VehicleRepo) Describe(ctx context.Context, tenantID, vehicleID, driverID string) (*domain.VehicleInfo, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT v.id, v.plate, COALESCE(v.label, ''), COALESCE(u.id, ''), COALESCE(u.name, '')
		FROM vehicles v LEFT JOIN users u ON u.tenant_id = v.tenant_id AND u.id = $3
		WHERE v.tenant_id = $1 AND v.id = $2`,
		tenantID, vehicleID, driverID,
	)
	var info domain.VehicleInfo
	if err := row.Scan(&info.VehicleID, &info.Plate, &info.Label, &info.DriverID, &info.DriverName); err != nil {
		return nil, notFound(err)
	}
	if info.DriverID == "" {
		info.DriverID = driverID
	}
	return &info, nil
}
