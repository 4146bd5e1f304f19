package alarm

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

type fakePusher struct {
	sent   []pdsmodels.Notification
	result *pdsmodels.PushResult
	err    error
}

func (f *fakePusher) Send(_ context.Context, n pdsmodels.Notification) (*pdsmodels.PushResult, error) {
	f.sent = append(f.sent, n)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func strPtr(s string) *string { return &s }

func newDispatcher(t *testing.T, pusher *fakePusher) *Dispatcher {
	t.Helper()
	store := memory.NewStore()
	store.AddDevice(pdsmodels.Device{ID: "dev-1", UserID: "user-1", Serial: "SER-001", SecretHash: credentials.HashSecret("abc123")})
	store.AddCompartment(pdsmodels.Compartment{ID: "c-1", DeviceID: "dev-1", Idx: 2, Title: strPtr("Losartán")})
	store.AddCompartment(pdsmodels.Compartment{ID: "c-untitled", DeviceID: "dev-1", Idx: 3})

	log := logger.NewNop()
	d, err := NewDispatcher(credentials.NewVerifier(store, log), store, pusher, config.DefaultOptions(), log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return d
}

func alarmRequest(compartmentID string) api_models.AlarmStartRequest {
	at := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	return api_models.AlarmStartRequest{
		DeviceCredentials: api_models.DeviceCredentials{Serial: "SER-001", Secret: "abc123"},
		CompartmentID:     compartmentID,
		ScheduledAt:       api_models.NewInstant(at),
	}
}

func TestComposeWithCompartment(t *testing.T) {
	c, err := NewComposer(config.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n := c.Compose(Alarm{
		UserID:        "user-1",
		DeviceID:      "dev-1",
		CompartmentID: "c-1",
		ScheduledAt:   time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC),
		Compartment:   &pdsmodels.Compartment{ID: "c-1", Idx: 2, Title: strPtr("Losartán")},
	})

	if n.Title != "💊 Hora de tu pastilla" {
		t.Fatalf("unexpected title %q", n.Title)
	}
	// Mexico City is UTC-6 all year since 2022
	if n.Body != "Losartán — 08:00 (compartimento 2)" {
		t.Fatalf("unexpected body %q", n.Body)
	}
	if n.Data.Route != "/dashboard" || n.Data.Action != "open_app" {
		t.Fatalf("unexpected data %+v", n.Data)
	}
	if n.Data.ScheduledAt != "2024-05-01T14:00:00Z" {
		t.Fatalf("unexpected scheduledAt %q", n.Data.ScheduledAt)
	}
}

func TestComposeFallbacks(t *testing.T) {
	c, _ := NewComposer(config.DefaultOptions())
	at := time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC)

	missing := c.Compose(Alarm{ScheduledAt: at})
	if missing.Body != "Medicamento — 08:30 (compartimento ?)" {
		t.Fatalf("unexpected body for missing compartment %q", missing.Body)
	}

	untitled := c.Compose(Alarm{ScheduledAt: at, Compartment: &pdsmodels.Compartment{Idx: 4, Title: strPtr("  ")}})
	if untitled.Body != "Medicamento — 08:30 (compartimento 4)" {
		t.Fatalf("unexpected body for untitled compartment %q", untitled.Body)
	}

	titled := c.Compose(Alarm{ScheduledAt: at, FallbackTitle: "Metformina"})
	if titled.Body != "Metformina — 08:30 (compartimento ?)" {
		t.Fatalf("unexpected body with caller title %q", titled.Body)
	}
}

func TestComposeLocale(t *testing.T) {
	opts := config.DefaultOptions()
	opts.AlarmLocale = "en-US"
	opts.AlarmTimezone = "UTC"
	c, err := NewComposer(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := c.Compose(Alarm{ScheduledAt: time.Date(2024, 5, 1, 20, 5, 0, 0, time.UTC)})
	if n.Body != "Medicamento — 08:05 PM (compartimento ?)" {
		t.Fatalf("unexpected body %q", n.Body)
	}
}

func TestDispatchAlarm(t *testing.T) {
	pusher := &fakePusher{result: &pdsmodels.PushResult{Sent: 2}}
	d := newDispatcher(t, pusher)

	res, err := d.DispatchAlarm(context.Background(), alarmRequest("c-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Sent != 2 {
		t.Fatalf("expected 2 sent, got %d", res.Sent)
	}
	if len(pusher.sent) != 1 || pusher.sent[0].UserID != "user-1" {
		t.Fatalf("expected one notification to the owner, got %+v", pusher.sent)
	}
}

func TestDispatchAlarmKeepsScheduledAtText(t *testing.T) {
	pusher := &fakePusher{result: &pdsmodels.PushResult{Sent: 1}}
	d := newDispatcher(t, pusher)

	var req api_models.AlarmStartRequest
	body := `{"serial":"SER-001","secret":"abc123","compartmentId":"c-1","scheduledAt":"2024-05-01T14:00:00.000Z"}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}

	if _, err := d.DispatchAlarm(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := pusher.sent[0].Data.ScheduledAt; got != "2024-05-01T14:00:00.000Z" {
		t.Fatalf("expected scheduledAt echoed as sent, got %q", got)
	}
	if pusher.sent[0].Body != "Losartán — 08:00 (compartimento 2)" {
		t.Fatalf("unexpected body %q", pusher.sent[0].Body)
	}
}

func TestDispatchAlarmMissingCompartment(t *testing.T) {
	pusher := &fakePusher{result: &pdsmodels.PushResult{Sent: 1}}
	d := newDispatcher(t, pusher)

	if _, err := d.DispatchAlarm(context.Background(), alarmRequest("c-gone")); err != nil {
		t.Fatalf("missing compartment must not fail dispatch: %v", err)
	}
	if pusher.sent[0].Body != "Medicamento — 08:00 (compartimento ?)" {
		t.Fatalf("unexpected fallback body %q", pusher.sent[0].Body)
	}

	if _, err := d.DispatchAlarm(context.Background(), alarmRequest("c-untitled")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pusher.sent[1].Body != "Medicamento — 08:00 (compartimento 3)" {
		t.Fatalf("unexpected untitled body %q", pusher.sent[1].Body)
	}
}

func TestDispatchAlarmZeroRecipients(t *testing.T) {
	d := newDispatcher(t, &fakePusher{result: &pdsmodels.PushResult{Sent: 0}})

	res, err := d.DispatchAlarm(context.Background(), alarmRequest("c-1"))
	if err != nil {
		t.Fatalf("zero recipients is not a failure: %v", err)
	}
	if res.Sent != 0 {
		t.Fatalf("expected 0 sent")
	}
}

func TestDispatchAlarmCollaboratorFailure(t *testing.T) {
	d := newDispatcher(t, &fakePusher{err: errors.New("dial tcp: connection refused")})

	_, err := d.DispatchAlarm(context.Background(), alarmRequest("c-1"))
	if !errors.Is(err, pdserrors.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
}

func TestDispatchAlarmAuth(t *testing.T) {
	pusher := &fakePusher{result: &pdsmodels.PushResult{Sent: 1}}
	d := newDispatcher(t, pusher)

	req := alarmRequest("c-1")
	req.Secret = "bad"
	if _, err := d.DispatchAlarm(context.Background(), req); !errors.Is(err, pdserrors.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	req = alarmRequest("c-1")
	req.ScheduledAt = nil
	if _, err := d.DispatchAlarm(context.Background(), req); !errors.Is(err, pdserrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if len(pusher.sent) != 0 {
		t.Fatalf("nothing should be pushed on rejected requests")
	}
}
