package implementation

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
)

type PostgresWeightReadingRepository struct {
	db *sql.DB
}

func NewPostgresWeightReadingRepository(db *sql.DB) *PostgresWeightReadingRepository {
	return &PostgresWeightReadingRepository{db: db}
}

// CreateReadings streams the batch with COPY inside one transaction.
// Any failure rolls the whole batch back.
func (r *PostgresWeightReadingRepository) CreateReadings(ctx context.Context, readings []pdsmodels.WeightReading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback()

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn("weight_readings", "device_id", "measured_at", "weight_g", "raw"))
	if err != nil {
		return 0, err
	}

	for _, reading := range readings {
		if _, err := stmt.ExecContext(ctx, reading.DeviceID, reading.MeasuredAt, reading.WeightG, jsonText(reading.Raw)); err != nil {
			stmt.Close()
			return 0, err
		}
	}

	// flush the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, err
	}

	if err := stmt.Close(); err != nil {
		return 0, err
	}

	if err := txn.Commit(); err != nil {
		return 0, err
	}

	return len(readings), nil
}
