package pdsmodels

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CommandTypeSnooze CommandType = "snooze"
)

func (t CommandType) Valid() bool {
	return t == CommandTypeSnooze
}

type CommandStatus string

const (
	CommandStatusPending  CommandStatus = "pending"
	CommandStatusConsumed CommandStatus = "consumed"
)

// Command is an instruction queued for a device
type Command struct {
	ID         string          `json:"id" db:"id"`
	DeviceID   string          `json:"device_id" db:"device_id"`
	Type       CommandType     `json:"type" db:"type"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	Status     CommandStatus   `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	ConsumedAt *time.Time      `json:"consumed_at,omitempty" db:"consumed_at"`
}

// SnoozePayload is the payload of a snooze command
type SnoozePayload struct {
	Minutes       int     `json:"minutes"`
	CompartmentID *string `json:"compartmentId"`
	ScheduledAt   *string `json:"scheduledAt"`
}
