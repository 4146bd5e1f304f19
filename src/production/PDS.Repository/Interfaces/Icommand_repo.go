package interfaces

import (
	"context"
	"time"

	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
)

type CommandRepository interface {
	CreateCommand(ctx context.Context, cmd pdsmodels.Command) (*pdsmodels.Command, error)
	GetCommand(ctx context.Context, deviceID, commandID string) (*pdsmodels.Command, error)
	ListPendingCommands(ctx context.Context, deviceID string, limit int) ([]pdsmodels.Command, error)

	// MarkConsumed flips a pending command to consumed. Returns sql.ErrNoRows
	// when no pending command with that id belongs to the device.
	MarkConsumed(ctx context.Context, deviceID, commandID string, at time.Time) (*pdsmodels.Command, error)
}
