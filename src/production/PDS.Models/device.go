package pdsmodels

import "time"

// Device is a physical dispenser registered to one user
type Device struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Serial     string    `json:"serial" db:"serial"`
	SecretHash string    `json:"-" db:"secret_hash"` // never leaves the credential verifier
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// OwnedBy reports whether userID owns the device
func (d *Device) OwnedBy(userID string) bool {
	return d != nil && userID != "" && d.UserID == userID
}

// Compartment is one medication slot on a device
type Compartment struct {
	ID       string  `json:"id" db:"id"`
	DeviceID string  `json:"device_id" db:"device_id"`
	Idx      int     `json:"idx" db:"idx"`
	Title    *string `json:"title,omitempty" db:"title"`
}
