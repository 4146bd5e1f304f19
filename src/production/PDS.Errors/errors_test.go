package pdserrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("verify: %w", DeviceNotFound())
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected wrapped error to match ErrDeviceNotFound")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("did not expect match on another kind")
	}
	if KindOf(err) != KindDeviceNotFound {
		t.Fatalf("unexpected kind %s", KindOf(err))
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatalf("plain errors should be unknown")
	}
}

func TestStoreKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Store(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if err.Error() != "connection refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestValidationMessage(t *testing.T) {
	err := Validation("readings[%d]: weightG is required", 3)
	if err.Error() != "readings[3]: weightG is required" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation kind")
	}
}
