package implementation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.ApiService/health"
	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
)

// Run with INTEGRATION_TESTS=1 and POSTGRES_TEST_DSN pointing at a scratch database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run Postgres tests")
	}
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := health.NewDatabaseManager(db).CreateTables(ctx); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	return db
}

func seedDevice(t *testing.T, db *sql.DB) (pdsmodels.Device, pdsmodels.Compartment) {
	t.Helper()
	device := pdsmodels.Device{
		ID:         uuid.New().String(),
		UserID:     "user-" + uuid.New().String()[:8],
		Serial:     "SER-" + uuid.New().String()[:8],
		SecretHash: "6ca13d52ca70c883e0f0bb101e425a89e8624de51db2d2392593af6a84118090",
	}
	title := "Losartán"
	compartment := pdsmodels.Compartment{ID: uuid.New().String(), DeviceID: device.ID, Idx: 1, Title: &title}

	if _, err := db.Exec(`INSERT INTO devices (id, user_id, serial, secret_hash) VALUES ($1, $2, $3, $4)`,
		device.ID, device.UserID, device.Serial, device.SecretHash); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO compartments (id, device_id, idx, title) VALUES ($1, $2, $3, $4)`,
		compartment.ID, compartment.DeviceID, compartment.Idx, title); err != nil {
		t.Fatalf("seed compartment: %v", err)
	}
	t.Cleanup(func() { db.Exec(`DELETE FROM devices WHERE id = $1`, device.ID) })
	return device, compartment
}

func TestPostgresDeviceAndCompartment(t *testing.T) {
	db := openTestDB(t)
	device, compartment := seedDevice(t, db)
	ctx := context.Background()

	got, err := NewPostgresDeviceRepository(db).GetDeviceBySerial(ctx, device.Serial)
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if got.ID != device.ID || got.SecretHash != device.SecretHash {
		t.Fatalf("unexpected device %+v", got)
	}
	if _, err := NewPostgresDeviceRepository(db).GetDeviceBySerial(ctx, "SER-missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}

	compartments := NewPostgresCompartmentRepository(db)
	c, err := compartments.GetCompartment(ctx, device.ID, compartment.ID)
	if err != nil || c.Title == nil || *c.Title != "Losartán" {
		t.Fatalf("unexpected compartment %+v %v", c, err)
	}
	if _, err := compartments.GetCompartment(ctx, "other-device", compartment.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected compartment lookup scoped to device, got %v", err)
	}
}

func TestPostgresDoseEventAndWeights(t *testing.T) {
	db := openTestDB(t)
	device, compartment := seedDevice(t, db)
	ctx := context.Background()

	event, err := NewPostgresDoseEventRepository(db).CreateDoseEvent(ctx, pdsmodels.DoseEvent{
		ID:            uuid.New().String(),
		DeviceID:      device.ID,
		CompartmentID: compartment.ID,
		ScheduledAt:   time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Status:        pdsmodels.DoseStatusTaken,
		Source:        pdsmodels.DoseSourceAuto,
	})
	if err != nil {
		t.Fatalf("create dose event: %v", err)
	}
	if event.CreatedAt.IsZero() {
		t.Fatalf("expected created_at from the database")
	}

	weights := NewPostgresWeightReadingRepository(db)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	n, err := weights.CreateReadings(ctx, []pdsmodels.WeightReading{
		{DeviceID: device.ID, MeasuredAt: base, WeightG: 12.5, Raw: json.RawMessage(`{"adc":81234}`)},
		{DeviceID: device.ID, MeasuredAt: base.Add(time.Second), WeightG: 12.1},
	})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 inserted, got %d %v", n, err)
	}
	var raw string
	if err := db.QueryRow(`SELECT raw::text FROM weight_readings WHERE device_id = $1 AND measured_at = $2`, device.ID, base.Add(time.Second)).Scan(&raw); err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if raw != "{}" {
		t.Fatalf("expected empty object for a reading without raw, got %q", raw)
	}

	// a foreign key violation on the second row rolls back the first
	_, err = weights.CreateReadings(ctx, []pdsmodels.WeightReading{
		{DeviceID: device.ID, MeasuredAt: base, WeightG: 1},
		{DeviceID: "no-such-device", MeasuredAt: base, WeightG: 1},
	})
	if err == nil {
		t.Fatalf("expected batch failure")
	}
	var count int
	if err := db.QueryRow(`SELECT count(*) FROM weight_readings WHERE device_id = $1`, device.ID).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected failed batch to leave 2 rows, got %d", count)
	}
}

func TestPostgresCommands(t *testing.T) {
	db := openTestDB(t)
	device, _ := seedDevice(t, db)
	ctx := context.Background()
	repo := NewPostgresCommandRepository(db)

	cmd, err := repo.CreateCommand(ctx, pdsmodels.Command{
		ID:       uuid.New().String(),
		DeviceID: device.ID,
		Type:     pdsmodels.CommandTypeSnooze,
		Payload:  json.RawMessage(`{"minutes":5}`),
		Status:   pdsmodels.CommandStatusPending,
	})
	if err != nil {
		t.Fatalf("create command: %v", err)
	}

	pending, err := repo.ListPendingCommands(ctx, device.ID, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != cmd.ID {
		t.Fatalf("unexpected pending %+v %v", pending, err)
	}

	consumed, err := repo.MarkConsumed(ctx, device.ID, cmd.ID, time.Now().UTC())
	if err != nil || consumed.Status != pdsmodels.CommandStatusConsumed || consumed.ConsumedAt == nil {
		t.Fatalf("unexpected consumed %+v %v", consumed, err)
	}
	if _, err := repo.MarkConsumed(ctx, device.ID, cmd.ID, time.Now().UTC()); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows on second consume, got %v", err)
	}
}
