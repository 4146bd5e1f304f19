package alarm

import (
	"context"
	"database/sql"
	"errors"

	config "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Config"
	pdserrors "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Errors"
	logger "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Logger"
	metrics "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Metrics"
	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
	api_models "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models/api"
	interfaces "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Repository/Interfaces"
)

// DeviceVerifier authenticates a device
type DeviceVerifier interface {
	Verify(ctx context.Context, serial, secret string) (*pdsmodels.Device, error)
}

// Pusher delivers a notification to every client registered by a user.
// Implementations bound each call with a timeout.
type Pusher interface {
	Send(ctx context.Context, n pdsmodels.Notification) (*pdsmodels.PushResult, error)
}

// Dispatcher turns an alarm trigger into a push notification for the
// device owner.
type Dispatcher struct {
	verifier     DeviceVerifier
	compartments interfaces.CompartmentRepository
	pusher       Pusher
	composer     *Composer
	logger       *logger.Logger
}

func NewDispatcher(
	verifier DeviceVerifier,
	compartments interfaces.CompartmentRepository,
	pusher Pusher,
	opts config.Options,
	log *logger.Logger,
) (*Dispatcher, error) {
	composer, err := NewComposer(opts)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		verifier:     verifier,
		compartments: compartments,
		pusher:       pusher,
		composer:     composer,
		logger:       log.WithComponent("alarm-dispatcher"),
	}, nil
}

// DispatchAlarm authenticates the device, composes the notification and
// sends it once. A collaborator failure comes back as a Collaborator error;
// zero recipients is a successful result with Sent == 0.
func (d *Dispatcher) DispatchAlarm(ctx context.Context, req api_models.AlarmStartRequest) (*pdsmodels.PushResult, error) {
	if req.Serial == "" || req.Secret == "" || req.CompartmentID == "" || req.ScheduledAt == nil {
		return nil, pdserrors.Validation("Missing required fields")
	}

	device, err := d.verifier.Verify(ctx, req.Serial, req.Secret)
	if err != nil {
		return nil, err
	}

	compartment, err := d.compartments.GetCompartment(ctx, device.ID, req.CompartmentID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			d.logger.Logger.Warn().Err(err).Str("device_id", device.ID).Msg("Compartment lookup failed, using fallback label")
		}
		compartment = nil
	}

	alarm := Alarm{
		UserID:        device.UserID,
		DeviceID:      device.ID,
		CompartmentID: req.CompartmentID,
		ScheduledAt:   req.ScheduledAt.Time,
		ScheduledText: req.ScheduledAt.Text(),
		Compartment:   compartment,
	}
	if req.ScheduleID != nil {
		alarm.ScheduleID = *req.ScheduleID
	}
	if req.Title != nil {
		alarm.FallbackTitle = *req.Title
	}

	result, err := d.pusher.Send(ctx, d.composer.Compose(alarm))
	if err != nil {
		metrics.AlarmDispatches.WithLabelValues("failed").Inc()
		d.logger.Logger.Error().Err(err).Str("device_id", device.ID).Str("user_id", device.UserID).Msg("Push dispatch failed")
		return nil, pdserrors.Collaborator(err)
	}

	outcome := "sent"
	if result.Sent == 0 {
		outcome = "no_recipients"
	}
	metrics.AlarmDispatches.WithLabelValues(outcome).Inc()
	metrics.NotificationsSent.Add(float64(result.Sent))

	d.logger.Logger.Info().
		Str("device_id", device.ID).
		Str("compartment_id", req.CompartmentID).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("Alarm dispatched")

	return result, nil
}
