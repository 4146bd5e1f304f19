package pdsmodels

import "time"

type DoseStatus string

const (
	DoseStatusPending DoseStatus = "pending"
	DoseStatusTaken   DoseStatus = "taken"
	DoseStatusMissed  DoseStatus = "missed"
	DoseStatusSkipped DoseStatus = "skipped"
	DoseStatusSnoozed DoseStatus = "snoozed"
)

// Valid reports whether s is a known status
func (s DoseStatus) Valid() bool {
	switch s {
	case DoseStatusPending, DoseStatusTaken, DoseStatusMissed, DoseStatusSkipped, DoseStatusSnoozed:
		return true
	}
	return false
}

// Completed is true for statuses that may carry actual_at and delta_weight_g
func (s DoseStatus) Completed() bool {
	return s == DoseStatusTaken
}

type DoseSource string

const (
	DoseSourceAuto   DoseSource = "auto"
	DoseSourceManual DoseSource = "manual"
)

func (s DoseSource) Valid() bool {
	return s == DoseSourceAuto || s == DoseSourceManual
}

// DoseEvent records the outcome of one scheduled dose. Rows are append-only.
type DoseEvent struct {
	ID            string     `json:"id" db:"id"`
	DeviceID      string     `json:"device_id" db:"device_id"`
	CompartmentID string     `json:"compartment_id" db:"compartment_id"`
	ScheduleID    *string    `json:"schedule_id" db:"schedule_id"`
	ScheduledAt   time.Time  `json:"scheduled_at" db:"scheduled_at"`
	Status        DoseStatus `json:"status" db:"status"`
	ActualAt      *time.Time `json:"actual_at" db:"actual_at"`
	DeltaWeightG  *float64   `json:"delta_weight_g" db:"delta_weight_g"`
	Source        DoseSource `json:"source" db:"source"`
	Notes         *string    `json:"notes" db:"notes"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
