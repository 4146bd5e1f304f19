package implementation

import (
	"context"
	"database/sql"
	"errors"

	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
)

type PostgresDeviceRepository struct {
	db *sql.DB
}

func NewPostgresDeviceRepository(db *sql.DB) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

func (r *PostgresDeviceRepository) GetDeviceBySerial(ctx context.Context, serial string) (*pdsmodels.Device, error) {
	query := `SELECT id, user_id, serial, secret_hash, created_at FROM devices WHERE serial = $1`
	return r.scanDevice(r.db.QueryRowContext(ctx, query, serial))
}

func (r *PostgresDeviceRepository) GetDevice(ctx context.Context, deviceID string) (*pdsmodels.Device, error) {
	query := `SELECT id, user_id, serial, secret_hash, created_at FROM devices WHERE id = $1`
	return r.scanDevice(r.db.QueryRowContext(ctx, query, deviceID))
}

func (r *PostgresDeviceRepository) scanDevice(row *sql.Row) (*pdsmodels.Device, error) {
	var device pdsmodels.Device
	err := row.Scan(&device.ID, &device.UserID, &device.Serial, &device.SecretHash, &device.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &device, nil
}

type PostgresCompartmentRepository struct {
	db *sql.DB
}

func NewPostgresCompartmentRepository(db *sql.DB) *PostgresCompartmentRepository {
	return &PostgresCompartmentRepository{db: db}
}

// GetCompartment only finds compartments that belong to deviceID
func (r *PostgresCompartmentRepository) GetCompartment(ctx context.Context, deviceID, compartmentID string) (*pdsmodels.Compartment, error) {
	query := `SELECT id, device_id, idx, title FROM compartments WHERE id = $1 AND device_id = $2`

	var c pdsmodels.Compartment
	var title sql.NullString
	err := r.db.QueryRowContext(ctx, query, compartmentID, deviceID).Scan(&c.ID, &c.DeviceID, &c.Idx, &title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	c.Title = nullStringPtr(title)
	return &c, nil
}
