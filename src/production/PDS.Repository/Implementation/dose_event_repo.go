package implementation

import (
	"context"
	"database/sql"

	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
)

type PostgresDoseEventRepository struct {
	db *sql.DB
}

func NewPostgresDoseEventRepository(db *sql.DB) *PostgresDoseEventRepository {
	return &PostgresDoseEventRepository{db: db}
}

// CreateDoseEvent never deduplicates; two identical calls give two rows
func (r *PostgresDoseEventRepository) CreateDoseEvent(ctx context.Context, event pdsmodels.DoseEvent) (*pdsmodels.DoseEvent, error) {
	query := `
		INSERT INTO dose_events
			(id, device_id, compartment_id, schedule_id, scheduled_at, status, actual_at, delta_weight_g, source, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		event.ID,
		event.DeviceID,
		event.CompartmentID,
		event.ScheduleID,
		event.ScheduledAt,
		string(event.Status),
		event.ActualAt,
		event.DeltaWeightG,
		string(event.Source),
		event.Notes,
	).Scan(&event.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &event, nil
}
