package api_models

import (
	"encoding/json"

	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
)

// EnqueueCommandRequest is the body of POST /commands
type EnqueueCommandRequest struct {
	DeviceID string          `json:"deviceId" binding:"required"`
	Type     string          `json:"type" binding:"required"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// SnoozeRequest is the body of POST /notifications/snooze
type SnoozeRequest struct {
	DeviceID      string  `json:"deviceId"`
	CompartmentID *string `json:"compartmentId,omitempty"`
	ScheduledAt   *string `json:"scheduledAt,omitempty"`
}

// Notice is a transient message for the UI
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
}

// Navigation tells the UI where to go once the notice has been shown
type Navigation struct {
	Route   string `json:"route"`
	Replace bool   `json:"replace"`
	DelayMs int64  `json:"delayMs"`
}

// SnoozeOutcome keeps the command result and the navigation effect apart.
// Navigation is always present.
type SnoozeOutcome struct {
	Command    *pdsmodels.Command `json:"command,omitempty"`
	Error      string             `json:"error,omitempty"`
	Notice     Notice             `json:"notice"`
	Navigation Navigation         `json:"navigation"`
}
