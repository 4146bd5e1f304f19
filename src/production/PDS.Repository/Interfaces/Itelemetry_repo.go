package interfaces

import (
	"context"

	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
)

type DoseEventRepository interface {
	// CreateDoseEvent inserts one row and returns it with server-set columns
	CreateDoseEvent(ctx context.Context, event pdsmodels.DoseEvent) (*pdsmodels.DoseEvent, error)
}

type WeightReadingRepository interface {
	// CreateReadings inserts all readings in one transaction or none of them
	CreateReadings(ctx context.Context, readings []pdsmodels.WeightReading) (int, error)
}

// TelemetryArchive keeps raw copies of accepted telemetry
type TelemetryArchive interface {
	InsertOne(ctx context.Context, rec pdsmodels.TelemetryRecord) error
	InsertMany(ctx context.Context, recs []pdsmodels.TelemetryRecord) error
}
