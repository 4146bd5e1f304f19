package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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

// CommandPublisher pushes a freshly queued command to the device over a
// live channel. It is optional; devices can always poll.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, serial string, cmd pdsmodels.Command) error
}

// Service queues commands for devices and hands them back to the devices
type Service struct {
	devices   interfaces.DeviceRepository
	commands  interfaces.CommandRepository
	verifier  DeviceVerifier
	publisher CommandPublisher
	opts      config.Options
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(
	devices interfaces.DeviceRepository,
	commands interfaces.CommandRepository,
	verifier DeviceVerifier,
	opts config.Options,
	log *logger.Logger,
) *Service {
	return &Service{
		devices:  devices,
		commands: commands,
		verifier: verifier,
		opts:     opts,
		logger:   log.WithComponent("commands"),
		now:      time.Now,
	}
}

// SetPublisher attaches a live command channel. Passing nil detaches it.
func (s *Service) SetPublisher(p CommandPublisher) {
	s.publisher = p
}

// EnqueueCommand stores a pending command for a device owned by userID.
// A device that does not exist or belongs to someone else is reported as
// not found.
func (s *Service) EnqueueCommand(ctx context.Context, userID string, req api_models.EnqueueCommandRequest) (*pdsmodels.Command, error) {
	if req.DeviceID == "" || req.Type == "" {
		return nil, pdserrors.Validation("deviceId and type are required")
	}

	cmdType := pdsmodels.CommandType(req.Type)
	if !cmdType.Valid() {
		return nil, pdserrors.Validation("unsupported command type %q", req.Type)
	}

	payload, err := s.snoozePayload(req.Payload)
	if err != nil {
		return nil, err
	}

	device, err := s.devices.GetDevice(ctx, req.DeviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pdserrors.DeviceNotFound()
		}
		return nil, pdserrors.Store(err)
	}
	if !device.OwnedBy(userID) {
		s.logger.Logger.Warn().Str("device_id", device.ID).Str("user_id", userID).Msg("Command rejected for device not owned by caller")
		return nil, pdserrors.DeviceNotFound()
	}

	cmd, err := s.commands.CreateCommand(ctx, pdsmodels.Command{
		ID:       uuid.New().String(),
		DeviceID: device.ID,
		Type:     cmdType,
		Payload:  payload,
		Status:   pdsmodels.CommandStatusPending,
	})
	if err != nil {
		s.logger.Logger.Error().Err(err).Str("device_id", device.ID).Msg("Failed to insert command")
		return nil, pdserrors.Store(err)
	}

	metrics.CommandsEnqueued.WithLabelValues(string(cmd.Type)).Inc()
	s.logger.Logger.Info().
		Str("device_id", device.ID).
		Str("command_id", cmd.ID).
		Str("type", string(cmd.Type)).
		Msg("Command queued")

	if s.publisher != nil {
		if err := s.publisher.PublishCommand(ctx, device.Serial, *cmd); err != nil {
			s.logger.Logger.Warn().Err(err).Str("command_id", cmd.ID).Msg("Failed to publish command, device will poll")
		}
	}

	return cmd, nil
}

// snoozePayload normalises the payload, filling in the default minutes
func (s *Service) snoozePayload(raw json.RawMessage) (json.RawMessage, error) {
	var p pdsmodels.SnoozePayload
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, pdserrors.Validation("invalid snooze payload: %v", err)
		}
	}
	if p.Minutes == 0 {
		p.Minutes = s.opts.SnoozeMinutes
	}
	if p.Minutes < 1 || p.Minutes > s.opts.MaxSnoozeMinutes {
		return nil, pdserrors.Validation("minutes must be between 1 and %d", s.opts.MaxSnoozeMinutes)
	}
	out, err := json.Marshal(p)
	if err != nil {
		return nil, pdserrors.Validation("invalid snooze payload: %v", err)
	}
	return out, nil
}

// Snooze runs the notification action: queue a snooze with the default
// minutes and report the notice and navigation as separate effects. The
// navigation is returned whatever the outcome.
func (s *Service) Snooze(ctx context.Context, userID string, req api_models.SnoozeRequest) api_models.SnoozeOutcome {
	outcome := api_models.SnoozeOutcome{
		Navigation: api_models.Navigation{
			Route:   s.opts.AlarmRoute,
			Replace: true,
			DelayMs: s.opts.SnoozeRedirectDelay.Milliseconds(),
		},
	}

	cmd, err := s.snooze(ctx, userID, req)
	if err != nil {
		s.logger.Logger.Warn().Err(err).Str("user_id", userID).Msg("Snooze failed")
		outcome.Error = err.Error()
		outcome.Notice = api_models.Notice{
			Title:       "Error",
			Description: err.Error(),
			Variant:     "destructive",
		}
		return outcome
	}

	outcome.Command = cmd
	outcome.Notice = api_models.Notice{
		Title:       "Alarma pospuesta",
		Description: fmt.Sprintf("La alarma se ha pospuesto %d minutos", s.opts.SnoozeMinutes),
	}
	return outcome
}

func (s *Service) snooze(ctx context.Context, userID string, req api_models.SnoozeRequest) (*pdsmodels.Command, error) {
	if req.DeviceID == "" {
		return nil, pdserrors.Validation("No device ID provided")
	}
	payload, err := json.Marshal(pdsmodels.SnoozePayload{
		Minutes:       s.opts.SnoozeMinutes,
		CompartmentID: req.CompartmentID,
		ScheduledAt:   req.ScheduledAt,
	})
	if err != nil {
		return nil, err
	}
	return s.EnqueueCommand(ctx, userID, api_models.EnqueueCommandRequest{
		DeviceID: req.DeviceID,
		Type:     string(pdsmodels.CommandTypeSnooze),
		Payload:  payload,
	})
}

// PendingCommands lists the verified device's pending commands, oldest first
func (s *Service) PendingCommands(ctx context.Context, serial, secret string, limit int) ([]pdsmodels.Command, error) {
	if serial == "" || secret == "" {
		return nil, pdserrors.Validation("Missing required fields")
	}
	if limit < 0 {
		return nil, pdserrors.Validation("limit must not be negative")
	}
	if limit == 0 {
		limit = s.opts.PendingCommandLimit
	}
	if limit > s.opts.MaxPendingCommandLimit {
		limit = s.opts.MaxPendingCommandLimit
	}

	device, err := s.verifier.Verify(ctx, serial, secret)
	if err != nil {
		return nil, err
	}

	cmds, err := s.commands.ListPendingCommands(ctx, device.ID, limit)
	if err != nil {
		return nil, pdserrors.Store(err)
	}
	return cmds, nil
}

// AcknowledgeCommand marks a pending command consumed. Acknowledging a
// command twice returns it unchanged.
func (s *Service) AcknowledgeCommand(ctx context.Context, serial, secret, commandID string) (*pdsmodels.Command, error) {
	if serial == "" || secret == "" || commandID == "" {
		return nil, pdserrors.Validation("Missing required fields")
	}

	device, err := s.verifier.Verify(ctx, serial, secret)
	if err != nil {
		return nil, err
	}

	cmd, err := s.commands.MarkConsumed(ctx, device.ID, commandID, s.now().UTC())
	if err == nil {
		metrics.CommandsConsumed.Inc()
		s.logger.Logger.Info().Str("device_id", device.ID).Str("command_id", cmd.ID).Msg("Command acknowledged")
		return cmd, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, pdserrors.Store(err)
	}

	// not pending: either already consumed or not this device's command
	existing, err := s.commands.GetCommand(ctx, device.ID, commandID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pdserrors.NotFound("Command")
		}
		return nil, pdserrors.Store(err)
	}
	return existing, nil
}
