// Package device manages enrolled endpoint devices and authenticates their
// telemetry submissions with per-device request signatures.
package device

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an enrolled device.
type Status string

const (
	StatusActive  Status = "active"
	StatusOffline Status = "offline"
	StatusRevoked Status = "revoked"
)

// Headers used for device request authentication.
const (
	HeaderDeviceID  = "X-Aegis-Device"
	HeaderSignature = "X-Aegis-Signature"
)

// Device is an enrolled telemetry source. DeviceID is the operator-chosen
// identifier carried in telemetry; Secret is the shared HMAC key issued at
// enrollment and never returned again.
type Device struct {
	ID         uuid.UUID  `json:"id"                     db:"id"`
	DeviceID   string     `json:"device_id"              db:"device_id"`
	Name       string     `json:"name"                   db:"name"`
	Platform   string     `json:"platform"               db:"platform"`
	Secret     string     `json:"-"                      db:"secret"`
	Status     Status     `json:"status"                 db:"status"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
	CreatedAt  time.Time  `json:"created_at"             db:"created_at"`
}

// EnrollRequest is the payload for enrolling a device.
type EnrollRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
}

// EnrollResponse returns the device record plus the one-time secret.
type EnrollResponse struct {
	Device *Device `json:"device"`
	// Secret is the HMAC signing key. It is delivered ONCE at enrollment
	// time and cannot be retrieved later.
	Secret string `json:"secret"`
}
