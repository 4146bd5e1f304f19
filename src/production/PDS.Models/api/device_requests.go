package api_models

import (
	"encoding/json"
	"time"
)

// DeviceCredentials identify a device on every device-originated call.
// Secret is the raw provisioning secret and is never logged.
type DeviceCredentials struct {
	Serial string `json:"serial"`
	Secret string `json:"secret"`
}

// DoseEventRequest is the body of POST /events/dose
type DoseEventRequest struct {
	DeviceCredentials
	CompartmentID string     `json:"compartmentId" binding:"required"`
	ScheduledAt   *time.Time `json:"scheduledAt" binding:"required"`
	Status        string     `json:"status" binding:"required"`
	ActualAt      *time.Time `json:"actualAt,omitempty"`
	DeltaWeightG  *float64   `json:"deltaWeightG,omitempty"`
	Source        string     `json:"source,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	ScheduleID    *string    `json:"scheduleId,omitempty"`

	// Transport is set by the receiving side ("http" or "mqtt")
	Transport string `json:"-"`
}

// WeightReadingItem is one element of a weight batch
type WeightReadingItem struct {
	MeasuredAt *time.Time      `json:"measuredAt"`
	WeightG    *float64        `json:"weightG"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// WeightBatchRequest is the body of POST /weights/bulk
type WeightBatchRequest struct {
	DeviceCredentials
	Readings []WeightReadingItem `json:"readings" binding:"required"`

	Transport string `json:"-"`
}

// WeightBatchResponse keeps the legacy "inserted" key alongside insertedCount
type WeightBatchResponse struct {
	InsertedCount int `json:"insertedCount"`
	Inserted      int `json:"inserted"`
}

// AlarmStartRequest is the body of POST /alarms/start
type AlarmStartRequest struct {
	DeviceCredentials
	CompartmentID string     `json:"compartmentId" binding:"required"`
	ScheduledAt   *Instant `json:"scheduledAt" binding:"required"`
	ScheduleID    *string  `json:"scheduleId,omitempty"`
	Title         *string  `json:"title,omitempty"`
}

// AlarmStartResponse reports how many notifications the collaborator sent
type AlarmStartResponse struct {
	Success           bool   `json:"success"`
	NotificationsSent int    `json:"notificationsSent"`
	Failed            int    `json:"failed,omitempty"`
	Error             string `json:"error,omitempty"`
}

// PendingCommandsRequest is the body of POST /devices/commands/pending
type PendingCommandsRequest struct {
	DeviceCredentials
	Limit int `json:"limit,omitempty"`
}
