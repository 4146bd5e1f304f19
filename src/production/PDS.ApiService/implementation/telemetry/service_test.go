package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.ApiService/implementation/credentials"
	config "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Config"
	pdserrors "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Errors"
	logger "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Logger"
	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
	api_models "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models/api"
	memory "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Repository/Memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.AddDevice(pdsmodels.Device{ID: "dev-1", UserID: "user-1", Serial: "SER-001", SecretHash: credentials.HashSecret("abc123")})
	store.AddDevice(pdsmodels.Device{ID: "dev-2", UserID: "user-2", Serial: "SER-002", SecretHash: credentials.HashSecret("zzz")})
	store.AddCompartment(pdsmodels.Compartment{ID: "c-1", DeviceID: "dev-1", Idx: 1})
	store.AddCompartment(pdsmodels.Compartment{ID: "c-9", DeviceID: "dev-2", Idx: 1})

	log := logger.NewNop()
	verifier := credentials.NewVerifier(store, log)
	svc := NewService(verifier, store, store, store, store, config.DefaultOptions(), log)
	return svc, store
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrFloat(f float64) *float64 { return &f }

func doseRequest() api_models.DoseEventRequest {
	return api_models.DoseEventRequest{
		DeviceCredentials: api_models.DeviceCredentials{Serial: "SER-001", Secret: "abc123"},
		CompartmentID:     "c-1",
		ScheduledAt:       ptrTime(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)),
		Status:            "taken",
	}
}

func TestRecordDoseEvent(t *testing.T) {
	svc, store := newTestService(t)

	event, err := svc.RecordDoseEvent(context.Background(), doseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID == "" {
		t.Fatalf("expected generated id")
	}
	if event.DeviceID != "dev-1" {
		t.Fatalf("expected event scoped to verified device, got %s", event.DeviceID)
	}
	if event.Source != pdsmodels.DoseSourceAuto {
		t.Fatalf("expected default source auto, got %s", event.Source)
	}
	if event.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
	if len(store.DoseEvents()) != 1 {
		t.Fatalf("expected one stored event")
	}
	if len(store.Archived()) != 1 || store.Archived()[0].Transport != "http" {
		t.Fatalf("expected one archived http record, got %+v", store.Archived())
	}
}

func TestRecordDoseEventNoDedup(t *testing.T) {
	svc, store := newTestService(t)

	first, err := svc.RecordDoseEvent(context.Background(), doseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.RecordDoseEvent(context.Background(), doseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids")
	}
	if len(store.DoseEvents()) != 2 {
		t.Fatalf("expected two rows, got %d", len(store.DoseEvents()))
	}
}

func TestRecordDoseEventValidation(t *testing.T) {
	svc, store := newTestService(t)

	cases := map[string]func(r *api_models.DoseEventRequest){
		"missing serial":      func(r *api_models.DoseEventRequest) { r.Serial = "" },
		"missing compartment": func(r *api_models.DoseEventRequest) { r.CompartmentID = "" },
		"missing scheduledAt": func(r *api_models.DoseEventRequest) { r.ScheduledAt = nil },
		"unknown status":      func(r *api_models.DoseEventRequest) { r.Status = "eaten" },
		"unknown source":      func(r *api_models.DoseEventRequest) { r.Source = "robot" },
		"actual on missed": func(r *api_models.DoseEventRequest) {
			r.Status = "missed"
			r.ActualAt = ptrTime(time.Now())
		},
		"delta on skipped": func(r *api_models.DoseEventRequest) {
			r.Status = "skipped"
			r.DeltaWeightG = ptrFloat(-0.4)
		},
		"foreign compartment": func(r *api_models.DoseEventRequest) { r.CompartmentID = "c-9" },
	}

	for name, mutate := range cases {
		req := doseRequest()
		mutate(&req)
		if _, err := svc.RecordDoseEvent(context.Background(), req); !errors.Is(err, pdserrors.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if len(store.DoseEvents()) != 0 {
		t.Fatalf("expected nothing written")
	}
}

func TestRecordDoseEventCompletionFields(t *testing.T) {
	svc, _ := newTestService(t)

	req := doseRequest()
	req.ActualAt = ptrTime(time.Date(2024, 5, 1, 8, 3, 0, 0, time.UTC))
	req.DeltaWeightG = ptrFloat(-0.52)
	req.Source = "manual"

	event, err := svc.RecordDoseEvent(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ActualAt == nil || event.DeltaWeightG == nil || *event.DeltaWeightG != -0.52 {
		t.Fatalf("expected completion fields to be kept, got %+v", event)
	}
	if event.Source != pdsmodels.DoseSourceManual {
		t.Fatalf("expected manual source")
	}
}

func TestRecordDoseEventCredentials(t *testing.T) {
	svc, store := newTestService(t)

	req := doseRequest()
	req.Secret = "nope"
	if _, err := svc.RecordDoseEvent(context.Background(), req); !errors.Is(err, pdserrors.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	req = doseRequest()
	req.Serial = "SER-404"
	if _, err := svc.RecordDoseEvent(context.Background(), req); !errors.Is(err, pdserrors.ErrDeviceNotFound) {
		t.Fatalf("expected device not found, got %v", err)
	}

	if len(store.DoseEvents()) != 0 {
		t.Fatalf("expected nothing written")
	}
}

func weightRequest(n int) api_models.WeightBatchRequest {
	req := api_models.WeightBatchRequest{
		DeviceCredentials: api_models.DeviceCredentials{Serial: "SER-001", Secret: "abc123"},
	}
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		req.Readings = append(req.Readings, api_models.WeightReadingItem{
			MeasuredAt: ptrTime(base.Add(time.Duration(i) * time.Second)),
			WeightG:    ptrFloat(12.5 - float64(i)),
		})
	}
	return req
}

func TestRecordWeightReadings(t *testing.T) {
	svc, store := newTestService(t)

	req := weightRequest(2)
	req.Readings[0].Raw = json.RawMessage(`{"adc":81234}`)

	n, err := svc.RecordWeightReadings(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected insertedCount 2, got %d", n)
	}
	stored := store.WeightReadings()
	if len(stored) != 2 || stored[0].DeviceID != "dev-1" {
		t.Fatalf("unexpected stored readings %+v", stored)
	}
	if len(store.Archived()) != 2 {
		t.Fatalf("expected two archived records")
	}
}

func TestRecordWeightReadingsRejectsWholeBatch(t *testing.T) {
	svc, store := newTestService(t)

	req := weightRequest(3)
	req.Readings[2].WeightG = nil

	if _, err := svc.RecordWeightReadings(context.Background(), req); !errors.Is(err, pdserrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.WeightReadings()) != 0 {
		t.Fatalf("expected zero rows after malformed batch")
	}
}

func TestRecordWeightReadingsEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	req := weightRequest(0)
	req.Readings = []api_models.WeightReadingItem{}
	if _, err := svc.RecordWeightReadings(context.Background(), req); !errors.Is(err, pdserrors.ErrValidation) {
		t.Fatalf("expected empty batch to be a validation error, got %v", err)
	}
}

func TestRecordWeightReadingsTooLarge(t *testing.T) {
	svc, _ := newTestService(t)
	svc.opts.MaxWeightBatch = 2

	if _, err := svc.RecordWeightReadings(context.Background(), weightRequest(3)); !errors.Is(err, pdserrors.ErrValidation) {
		t.Fatalf("expected oversize batch to be rejected, got %v", err)
	}
}

func TestRecordWeightReadingsStoreFailure(t *testing.T) {
	svc, store := newTestService(t)

	// verification reads the same store, so fail only the write path
	failing := &failingWeights{err: errors.New("disk full")}
	svc.weights = failing

	if _, err := svc.RecordWeightReadings(context.Background(), weightRequest(2)); !errors.Is(err, pdserrors.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(store.Archived()) != 0 {
		t.Fatalf("nothing should be archived after a failed insert")
	}
}

type failingWeights struct {
	err error
}

func (f *failingWeights) CreateReadings(context.Context, []pdsmodels.WeightReading) (int, error) {
	return 0, f.err
}
