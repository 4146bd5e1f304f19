package interfaces

import (
	"context"

	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
)

// DeviceRepository reads provisioned devices. Lookups that find nothing
// return sql.ErrNoRows.
type DeviceRepository interface {
	GetDeviceBySerial(ctx context.Context, serial string) (*pdsmodels.Device, error)
	GetDevice(ctx context.Context, deviceID string) (*pdsmodels.Device, error)
}

// CompartmentRepository reads compartments scoped to their device
type CompartmentRepository interface {
	GetCompartment(ctx context.Context, deviceID, compartmentID string) (*pdsmodels.Compartment, error)
}
