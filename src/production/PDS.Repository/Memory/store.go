// Package memory is an in-process implementation of the repository
// interfaces, used by tests and local runs without Postgres.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
)

// Store keeps every entity in maps guarded by one mutex. Set Err to make
// every write and read fail with it.
type Store struct {
	mu sync.Mutex

	devices      map[string]pdsmodels.Device
	compartments map[string]pdsmodels.Compartment
	doseEvents   []pdsmodels.DoseEvent
	readings     []pdsmodels.WeightReading
	commands     []pdsmodels.Command
	archived     []pdsmodels.TelemetryRecord

	nextReadingID int64
	now           func() time.Time

	Err error
}

func NewStore() *Store {
	return &Store{
		devices:      make(map[string]pdsmodels.Device),
		compartments: make(map[string]pdsmodels.Compartment),
		now:          time.Now,
	}
}

// AddDevice seeds a provisioned device
func (s *Store) AddDevice(d pdsmodels.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().UTC()
	}
	s.devices[d.ID] = d
}

// AddCompartment seeds a compartment
func (s *Store) AddCompartment(c pdsmodels.Compartment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compartments[c.ID] = c
}

func (s *Store) GetDeviceBySerial(_ context.Context, serial string) (*pdsmodels.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, d := range s.devices {
		if d.Serial == serial {
			d := d
			return &d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) GetDevice(_ context.Context, deviceID string) (*pdsmodels.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	d, ok := s.devices[deviceID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &d, nil
}

func (s *Store) GetCompartment(_ context.Context, deviceID, compartmentID string) (*pdsmodels.Compartment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	c, ok := s.compartments[compartmentID]
	if !ok || c.DeviceID != deviceID {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (s *Store) CreateDoseEvent(_ context.Context, event pdsmodels.DoseEvent) (*pdsmodels.DoseEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	event.CreatedAt = s.now().UTC()
	s.doseEvents = append(s.doseEvents, event)
	return &event, nil
}

func (s *Store) CreateReadings(_ context.Context, readings []pdsmodels.WeightReading) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	for _, r := range readings {
		s.nextReadingID++
		r.ID = s.nextReadingID
		s.readings = append(s.readings, r)
	}
	return len(readings), nil
}

func (s *Store) CreateCommand(_ context.Context, cmd pdsmodels.Command) (*pdsmodels.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	// keep creation order stable for equal clock readings
	cmd.CreatedAt = s.now().UTC().Add(time.Duration(len(s.commands)) * time.Microsecond)
	s.commands = append(s.commands, cmd)
	return &cmd, nil
}

func (s *Store) GetCommand(_ context.Context, deviceID, commandID string) (*pdsmodels.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, c := range s.commands {
		if c.ID == commandID && c.DeviceID == deviceID {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) ListPendingCommands(_ context.Context, deviceID string, limit int) ([]pdsmodels.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]pdsmodels.Command, 0)
	for _, c := range s.commands {
		if c.DeviceID == deviceID && c.Status == pdsmodels.CommandStatusPending {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkConsumed(_ context.Context, deviceID, commandID string, at time.Time) (*pdsmodels.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for i := range s.commands {
		c := &s.commands[i]
		if c.ID == commandID && c.DeviceID == deviceID && c.Status == pdsmodels.CommandStatusPending {
			c.Status = pdsmodels.CommandStatusConsumed
			t := at
			c.ConsumedAt = &t
			out := *c
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) InsertOne(_ context.Context, rec pdsmodels.TelemetryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, rec)
	return nil
}

func (s *Store) InsertMany(_ context.Context, recs []pdsmodels.TelemetryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, recs...)
	return nil
}

// DoseEvents returns a copy of the stored dose events
func (s *Store) DoseEvents() []pdsmodels.DoseEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pdsmodels.DoseEvent(nil), s.doseEvents...)
}

// WeightReadings returns a copy of the stored readings
func (s *Store) WeightReadings() []pdsmodels.WeightReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pdsmodels.WeightReading(nil), s.readings...)
}

// Commands returns a copy of the stored commands
func (s *Store) Commands() []pdsmodels.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pdsmodels.Command(nil), s.commands...)
}

// Archived returns a copy of the archived telemetry records
func (s *Store) Archived() []pdsmodels.TelemetryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pdsmodels.TelemetryRecord(nil), s.archived...)
}
