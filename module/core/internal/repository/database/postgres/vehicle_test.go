package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nandanugg/fleet-gps/module/core/domain"
)

func TestVehicleDescribe_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"id", "plate", "label", "user_id", "name"}).
		AddRow("V1", "ABCD-12", "Pickup 4", "driver-1", "Ana Soto")
	mock.ExpectQuery(`SELECT (.+) FROM vehicles v LEFT JOIN users u`).
		WithArgs("acme", "V1", "driver-1").
		WillReturnRows(rows)

	repo := NewVehicleRepo(db)
	info, err := repo.Describe(context.Background(), "acme", "V1", "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Plate != "ABCD-12" || info.DriverName != "Ana Soto" {
		t.Errorf("unexpected info %+v", info)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestVehicleDescribe_UnknownDriverKeepsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"id", "plate", "label", "user_id", "name"}).
		AddRow("V1", "ABCD-12", "", "", "")
	mock.ExpectQuery(`SELECT (.+) FROM vehicles`).WillReturnRows(rows)

	repo := NewVehicleRepo(db)
	info, err := repo.Describe(context.Background(), "acme", "V1", "driver-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.DriverID != "driver-9" {
		t.Errorf("expected driver-9, got %s", info.DriverID)
	}
}

func TestVehicleDescribe_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT (.+) FROM vehicles`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "plate", "label", "user_id", "name"}))

	repo := NewVehicleRepo(db)
	_, err = repo.Describe(context.Background(), "acme", "missing", "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
