package pdsmodels

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RecordKindDoseEvent     = "dose_event"
	RecordKindWeightReading = "weight_reading"
)

// TelemetryRecord is a raw copy of accepted device telemetry kept in the archive
type TelemetryRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Kind       string             `bson:"kind" json:"kind"`
	DeviceID   string             `bson:"device_id" json:"device_id"`
	Serial     string             `bson:"serial" json:"serial"`
	Transport  string             `bson:"transport" json:"transport"`
	Payload    interface{}        `bson:"payload" json:"payload"`
	ReceivedAt time.Time          `bson:"received_at" json:"received_at"`
}
