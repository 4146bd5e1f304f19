package credentials

import (
	"context"
	"database/sql"
	"errors"

	pdserrors "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Errors"
	logger "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Logger"
	metrics "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Metrics"
	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
	interfaces "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Repository/Interfaces"
)

// Verifier authenticates devices by serial and shared secret
type Verifier struct {
	deviceRepo interfaces.DeviceRepository
	logger     *logger.Logger
}

func NewVerifier(deviceRepo interfaces.DeviceRepository, log *logger.Logger) *Verifier {
	return &Verifier{
		deviceRepo: deviceRepo,
		logger:     log.WithComponent("credential-verifier"),
	}
}

// Verify returns the device whose serial and secret match. Nothing is cached;
// every call reads the store.
func (v *Verifier) Verify(ctx context.Context, serial, secret string) (*pdsmodels.Device, error) {
	if serial == "" || secret == "" {
		return nil, pdserrors.Validation("Missing required fields")
	}

	device, err := v.deviceRepo.GetDeviceBySerial(ctx, serial)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.CredentialFailures.WithLabelValues("unknown_serial").Inc()
			v.logger.Logger.Warn().Str("serial", serial).Msg("Unknown device serial")
			return nil, pdserrors.DeviceNotFound()
		}
		metrics.CredentialFailures.WithLabelValues("store_error").Inc()
		return nil, pdserrors.Store(err)
	}

	if !MatchesDigest(device.SecretHash, secret) {
		metrics.CredentialFailures.WithLabelValues("bad_secret").Inc()
		v.logger.Logger.Warn().Str("serial", serial).Msg("Device secret mismatch")
		return nil, pdserrors.InvalidCredentials()
	}

	return device, nil
}
