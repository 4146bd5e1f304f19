package pdsmodels

import (
	"encoding/json"
	"time"
)

// WeightReading is one raw load-cell sample reported by a device
type WeightReading struct {
	ID         int64           `json:"id,omitempty" db:"id"`
	DeviceID   string          `json:"device_id" db:"device_id"`
	MeasuredAt time.Time       `json:"measured_at" db:"measured_at"`
	WeightG    float64         `json:"weight_g" db:"weight_g"`
	Raw        json.RawMessage `json:"raw,omitempty" db:"raw"`
}
