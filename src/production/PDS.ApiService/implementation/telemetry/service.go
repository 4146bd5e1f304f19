package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
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

const (
	msgMissingFields       = "Missing required fields"
	msgMissingOrInvalid    = "Missing or invalid fields"
	msgCompartmentNotOwned = "compartment does not belong to device"
	defaultTransport       = "http"
)

// DeviceVerifier authenticates a device
type DeviceVerifier interface {
	Verify(ctx context.Context, serial, secret string) (*pdsmodels.Device, error)
}

// Service ingests dose events and weight batches from authenticated devices
type Service struct {
	verifier     DeviceVerifier
	compartments interfaces.CompartmentRepository
	doseEvents   interfaces.DoseEventRepository
	weights      interfaces.WeightReadingRepository
	archive      interfaces.TelemetryArchive
	opts         config.Options
	logger       *logger.Logger
	now          func() time.Time
}

func NewService(
	verifier DeviceVerifier,
	compartments interfaces.CompartmentRepository,
	doseEvents interfaces.DoseEventRepository,
	weights interfaces.WeightReadingRepository,
	archive interfaces.TelemetryArchive,
	opts config.Options,
	log *logger.Logger,
) *Service {
	return &Service{
		verifier:     verifier,
		compartments: compartments,
		doseEvents:   doseEvents,
		weights:      weights,
		archive:      archive,
		opts:         opts,
		logger:       log.WithComponent("telemetry"),
		now:          time.Now,
	}
}

// RecordDoseEvent validates, authenticates and appends one dose event
func (s *Service) RecordDoseEvent(ctx context.Context, req api_models.DoseEventRequest) (*pdsmodels.DoseEvent, error) {
	if req.Serial == "" || req.Secret == "" || req.CompartmentID == "" || req.ScheduledAt == nil || req.Status == "" {
		return nil, pdserrors.Validation(msgMissingFields)
	}

	status := pdsmodels.DoseStatus(req.Status)
	if !status.Valid() {
		return nil, pdserrors.Validation("invalid status %q", req.Status)
	}

	source := pdsmodels.DoseSource(s.opts.DoseSource)
	if req.Source != "" {
		source = pdsmodels.DoseSource(req.Source)
	}
	if !source.Valid() {
		return nil, pdserrors.Validation("invalid source %q", req.Source)
	}

	if !status.Completed() && (req.ActualAt != nil || req.DeltaWeightG != nil) {
		return nil, pdserrors.Validation("actualAt and deltaWeightG are only accepted for status %q", pdsmodels.DoseStatusTaken)
	}

	device, err := s.verifier.Verify(ctx, req.Serial, req.Secret)
	if err != nil {
		return nil, err
	}

	if _, err := s.compartments.GetCompartment(ctx, device.ID, req.CompartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pdserrors.Validation(msgCompartmentNotOwned)
		}
		return nil, pdserrors.Store(err)
	}

	event := pdsmodels.DoseEvent{
		ID:            uuid.New().String(),
		DeviceID:      device.ID,
		CompartmentID: req.CompartmentID,
		ScheduleID:    req.ScheduleID,
		ScheduledAt:   req.ScheduledAt.UTC(),
		Status:        status,
		DeltaWeightG:  req.DeltaWeightG,
		Source:        source,
		Notes:         req.Notes,
	}
	if req.ActualAt != nil {
		actual := req.ActualAt.UTC()
		event.ActualAt = &actual
	}

	created, err := s.doseEvents.CreateDoseEvent(ctx, event)
	if err != nil {
		s.logger.Logger.Error().Err(err).Str("device_id", device.ID).Msg("Failed to insert dose event")
		return nil, pdserrors.Store(err)
	}

	metrics.DoseEventsRecorded.WithLabelValues(string(created.Status)).Inc()
	s.logger.Logger.Info().
		Str("device_id", device.ID).
		Str("event_id", created.ID).
		Str("status", string(created.Status)).
		Msg("Dose event recorded")

	s.archiveOne(ctx, pdsmodels.TelemetryRecord{
		Kind:       pdsmodels.RecordKindDoseEvent,
		DeviceID:   device.ID,
		Serial:     device.Serial,
		Transport:  transportOf(req.Transport),
		Payload:    created,
		ReceivedAt: s.now().UTC(),
	})

	return created, nil
}

// RecordWeightReadings validates the whole batch, authenticates, then
// inserts every reading or none.
func (s *Service) RecordWeightReadings(ctx context.Context, req api_models.WeightBatchRequest) (int, error) {
	if req.Serial == "" || req.Secret == "" {
		return 0, pdserrors.Validation(msgMissingOrInvalid)
	}
	if len(req.Readings) == 0 {
		metrics.WeightBatches.WithLabelValues("rejected").Inc()
		return 0, pdserrors.Validation("readings must be a non-empty array")
	}
	if len(req.Readings) > s.opts.MaxWeightBatch {
		metrics.WeightBatches.WithLabelValues("rejected").Inc()
		return 0, pdserrors.Validation("too many readings: %d (max %d)", len(req.Readings), s.opts.MaxWeightBatch)
	}
	for i, item := range req.Readings {
		if err := validateReading(i, item); err != nil {
			metrics.WeightBatches.WithLabelValues("rejected").Inc()
			return 0, err
		}
	}

	device, err := s.verifier.Verify(ctx, req.Serial, req.Secret)
	if err != nil {
		return 0, err
	}

	readings := make([]pdsmodels.WeightReading, 0, len(req.Readings))
	for _, item := range req.Readings {
		readings = append(readings, pdsmodels.WeightReading{
			DeviceID:   device.ID,
			MeasuredAt: item.MeasuredAt.UTC(),
			WeightG:    *item.WeightG,
			Raw:        item.Raw,
		})
	}

	inserted, err := s.weights.CreateReadings(ctx, readings)
	if err != nil {
		metrics.WeightBatches.WithLabelValues("failed").Inc()
		s.logger.Logger.Error().Err(err).Str("device_id", device.ID).Int("batch_size", len(readings)).Msg("Failed to insert weight batch")
		return 0, pdserrors.Store(err)
	}

	metrics.WeightBatches.WithLabelValues("accepted").Inc()
	metrics.WeightReadingsInserted.Add(float64(inserted))
	s.logger.Logger.Info().Str("device_id", device.ID).Int("inserted", inserted).Msg("Weight batch recorded")

	receivedAt := s.now().UTC()
	records := make([]pdsmodels.TelemetryRecord, 0, len(readings))
	for _, r := range readings {
		records = append(records, pdsmodels.TelemetryRecord{
			Kind:       pdsmodels.RecordKindWeightReading,
			DeviceID:   device.ID,
			Serial:     device.Serial,
			Transport:  transportOf(req.Transport),
			Payload:    r,
			ReceivedAt: receivedAt,
		})
	}
	s.archiveMany(ctx, records)

	return inserted, nil
}

func validateReading(i int, item api_models.WeightReadingItem) error {
	if item.MeasuredAt == nil || item.MeasuredAt.IsZero() {
		return pdserrors.Validation("readings[%d]: measuredAt is required", i)
	}
	if item.WeightG == nil {
		return pdserrors.Validation("readings[%d]: weightG is required", i)
	}
	if len(item.Raw) > 0 && !json.Valid(item.Raw) {
		return pdserrors.Validation("readings[%d]: raw is not valid JSON", i)
	}
	return nil
}

// archive writes are best effort; the store write has already succeeded
func (s *Service) archiveOne(ctx context.Context, rec pdsmodels.TelemetryRecord) {
	if s.archive == nil {
		return
	}
	if err := s.archive.InsertOne(ctx, rec); err != nil {
		metrics.ArchiveFailures.Inc()
		s.logger.Logger.Warn().Err(err).Str("kind", rec.Kind).Msg("Failed to archive telemetry")
	}
}

func (s *Service) archiveMany(ctx context.Context, recs []pdsmodels.TelemetryRecord) {
	if s.archive == nil {
		return
	}
	if err := s.archive.InsertMany(ctx, recs); err != nil {
		metrics.ArchiveFailures.Inc()
		s.logger.Logger.Warn().Err(err).Int("count", len(recs)).Msg("Failed to archive telemetry batch")
	}
}

func transportOf(t string) string {
	if t == "" {
		return defaultTransport
	}
	return t
}
